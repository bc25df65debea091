package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/zenibako/boardsync/board"
)

func newBoardsCommand(a *app) *cobra.Command {
	var pick bool
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "List the boards the API key can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.boards(cmd.Context(), pick)
		},
	}
	cmd.Flags().BoolVar(&pick, "pick", false, "Choose a board interactively and print its ID")
	cmd.Flags().String("workspace", "", "Only list boards of this workspace")
	return cmd
}

func (a *app) boards(ctx context.Context, pick bool) error {
	key, err := a.apiKey()
	if err != nil {
		return err
	}
	client := a.newClient(key)

	workspaces, err := client.ListWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("listing workspaces: %w", err)
	}
	wsNames := make(map[string]string, len(workspaces))
	for _, ws := range workspaces {
		wsNames[ws.ID] = ws.Name
	}

	boards, err := client.ListBoards(ctx, a.cfg.Board.Workspace)
	if err != nil {
		return fmt.Errorf("listing boards: %w", err)
	}
	if len(boards) == 0 {
		fmt.Fprintln(a.out, "No boards found")
		return nil
	}

	if pick {
		if !a.interactive() {
			return fmt.Errorf("--pick needs a terminal")
		}
		id, err := pickBoard(boards, wsNames)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, id)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tWORKSPACE")
	for _, b := range boards {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID, b.Name, workspaceLabel(b, wsNames))
	}
	return tw.Flush()
}

func workspaceLabel(b board.Board, names map[string]string) string {
	if name, ok := names[b.WorkspaceID]; ok {
		return name
	}
	if b.WorkspaceID == "" {
		return "-"
	}
	return b.WorkspaceID
}

func pickBoard(boards []board.Board, wsNames map[string]string) (string, error) {
	options := make([]huh.Option[string], 0, len(boards))
	for _, b := range boards {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", b.Name, workspaceLabel(b, wsNames)), b.ID))
	}

	var id string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which board should boardsync use?").
				Options(options...).
				Value(&id),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("failed to get board choice: %v", err)
	}
	return id, nil
}
