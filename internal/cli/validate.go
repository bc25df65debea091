package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/zenibako/boardsync/board"
)

func newValidateCommand(a *app) *cobra.Command {
	var retries uint64
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the API key and board access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validate(cmd.Context(), retries)
		},
	}
	cmd.Flags().Uint64Var(&retries, "retries", 3, "Retries when the API is unreachable")
	return cmd
}

func newValidateBackoff(ctx context.Context, retries uint64) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx)
}

// retryUnreachable runs op until it succeeds, fails permanently, or the
// retries run out. Only unreachable errors are retried.
func (a *app) retryUnreachable(ctx context.Context, retries uint64, op func() error) error {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && !board.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newValidateBackoff(ctx, retries))
	if attempts > 1 {
		a.logger.Debug("Retried API call", "attempts", attempts)
	}
	return err
}

func (a *app) validate(ctx context.Context, retries uint64) error {
	key, err := a.apiKey()
	if err != nil {
		return err
	}
	client := a.newClient(key)
	client.SetDryRun(false)

	var account board.Account
	err = a.retryUnreachable(ctx, retries, func() error {
		var err error
		account, err = client.Me(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("checking API key: %w", err)
	}
	fmt.Fprintf(a.out, "Authenticated as %s <%s> (ID: %s)\n", account.Name, account.Email, account.ID)

	if a.cfg.Board.ID == "" {
		return nil
	}
	var groups []board.Group
	err = a.retryUnreachable(ctx, retries, func() error {
		var err error
		groups, err = client.ListGroups(ctx, a.cfg.Board.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("checking board %s: %w", a.cfg.Board.ID, err)
	}
	fmt.Fprintf(a.out, "Board %s is reachable with %d group(s)\n", a.cfg.Board.ID, len(groups))
	return nil
}
