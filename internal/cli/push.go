package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/zenibako/boardsync/reconcile"
	"github.com/zenibako/boardsync/sheet"
	"github.com/zenibako/boardsync/syncer"
)

func newPushCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "push <spreadsheet>",
		Short: "Make the board group match the spreadsheet",
		Long: `Push reads the first worksheet and makes the board group named after the file
match it. In replace mode the existing group is archived and rebuilt; in
incremental mode only items whose values changed are updated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.push(cmd.Context(), args[0], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Replace without asking")
	cmd.Flags().String("board-name", "", "Find or create the board by name when --board is not set")
	cmd.Flags().String("workspace", "", "Workspace ID for --board-name")
	return cmd
}

func (a *app) push(ctx context.Context, path string, yes bool) error {
	opts, err := a.syncerOptions()
	if err != nil {
		return err
	}
	unlock, err := lockSheet(path)
	if err != nil {
		return err
	}
	defer unlock()

	key, err := a.apiKey()
	if err != nil {
		return err
	}
	client := a.newClient(key)
	boardID, err := a.resolveBoard(ctx, client, true)
	if err != nil {
		return err
	}

	if opts.Mode == reconcile.ModeReplace && !opts.DryRun && !yes {
		if err := a.confirmReplace(boardID, opts, path); err != nil {
			return err
		}
	}

	emitter, err := a.newEmitter()
	if err != nil {
		return err
	}
	engine := syncer.NewEngine(client, opts, emitter)
	engine.SetLogger(a.logger)

	report, err := engine.Push(context.WithoutCancel(ctx), boardID, path)
	a.printReport(report, err)
	if errors.Is(err, syncer.ErrReplaceIncomplete) {
		return fmt.Errorf("the old group was archived but the new group is incomplete: %w", err)
	}
	return err
}

func (a *app) confirmReplace(boardID string, opts syncer.Options, path string) error {
	if !a.interactive() {
		return errNeedsYes
	}
	group := opts.GroupName
	if group == "" {
		group = sheet.GroupLabel(path)
	}
	ok, err := a.confirm(fmt.Sprintf("Archive group %q on board %s and rebuild it from %s?", group, boardID, path))
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}
	return nil
}

// printReport writes the summary to stdout and, at debug level, the item by
// item results to the log.
func (a *app) printReport(report *syncer.Report, runErr error) {
	if report == nil {
		return
	}
	if a.logger.GetLevel() <= log.DebugLevel {
		syncer.PrintReport(a.logger, report)
	}
	fmt.Fprint(a.out, renderSummary(a.out, report, runErr))
}
