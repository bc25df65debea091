package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/zenibako/boardsync/invocation"
	"github.com/zenibako/boardsync/syncer"
)

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one request read as JSON from stdin",
		Long: `Run reads {"direction","boardId","apiKey","filePath"} from stdin, performs the
push or pull and writes {"success","message","runId"} to stdout. Front ends
use it instead of push and pull. Replace mode never prompts here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context())
		},
	}
}

func (a *app) run(ctx context.Context) error {
	result := a.runRequest(ctx)
	enc := json.NewEncoder(a.out)
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return errRunFailed
	}
	return nil
}

func (a *app) runRequest(ctx context.Context) invocation.Result {
	req, err := invocation.DecodeRequest(a.in)
	if err != nil {
		return invocation.Failure(err)
	}
	if err := req.Validate(); err != nil {
		return invocation.Failure(err)
	}
	opts, err := a.syncerOptions()
	if err != nil {
		return invocation.Failure(err)
	}
	unlock, err := lockSheet(req.FilePath)
	if err != nil {
		return invocation.Failure(err)
	}
	defer unlock()

	emitter, err := a.newEmitter()
	if err != nil {
		return invocation.Failure(err)
	}
	engine := syncer.NewEngine(a.newClient(req.APIKey), opts, emitter)
	engine.SetLogger(a.logger)
	return engine.Run(context.WithoutCancel(ctx), req)
}
