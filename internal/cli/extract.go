package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zenibako/boardsync/extract"
)

func newExtractCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <document>...",
		Short: "Run the document extraction command on PDFs",
		Long: `Extract hands the given documents to the configured extraction command
(extract.command) in one invocation. Its output is logged; boardsync does not
read the files it produces.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.extract(cmd.Context(), args)
		},
	}
	cmd.Flags().String("command", "", "Extraction command (overrides extract.command)")
	return cmd
}

func (a *app) extract(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errNoDocument
	}
	emitter, err := a.newEmitter()
	if err != nil {
		return err
	}
	runner := extract.NewRunner(a.cfg.Extract.Command, a.cfg.Extract.Args, emitter)
	runner.Timeout = a.cfg.Extract.Timeout
	runner.SetLogger(a.logger)

	_, err = runner.Run(ctx, paths)
	return err
}
