package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zenibako/boardsync/syncer"
)

func newPullCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <spreadsheet>",
		Short: "Copy board values into the spreadsheet",
		Long: `Pull finds the board group named after the file and writes every value that
differs back into the matching row. Rows are never added or removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.pull(cmd.Context(), args[0])
		},
	}
	cmd.Flags().Bool("preserve-formatting", true, "Keep cell styles of written cells")
	cmd.Flags().String("board-name", "", "Find the board by name when --board is not set")
	cmd.Flags().String("workspace", "", "Workspace ID for --board-name")
	return cmd
}

func (a *app) pull(ctx context.Context, path string) error {
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
	boardID, err := a.resolveBoard(ctx, client, false)
	if err != nil {
		return err
	}

	emitter, err := a.newEmitter()
	if err != nil {
		return err
	}
	engine := syncer.NewEngine(client, opts, emitter)
	engine.SetLogger(a.logger)

	report, err := engine.Pull(context.WithoutCancel(ctx), boardID, path)
	a.printReport(report, err)
	return err
}
