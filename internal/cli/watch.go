package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCommand(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <spreadsheet>",
		Short: "Push the spreadsheet every time it is saved",
		Long: `Watch pushes once and then again after each save. Saves closer together than
the debounce interval trigger a single push. In replace mode only the first
push asks for confirmation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			return a.watch(cmd.Context(), args[0], debounce, yes)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "Quiet period after a save before pushing")
	cmd.Flags().BoolP("yes", "y", false, "Replace without asking")
	cmd.Flags().String("board-name", "", "Find or create the board by name when --board is not set")
	cmd.Flags().String("workspace", "", "Workspace ID for --board-name")
	return cmd
}

func (a *app) watch(ctx context.Context, path string, debounce time.Duration, yes bool) error {
	push := func(ctx context.Context) error {
		return a.push(ctx, path, yes)
	}

	fw, err := newFileWatcher(path, a.logger)
	if err != nil {
		return err
	}
	defer fw.Close()

	// the first push may prompt; later ones reuse the answer
	if err := push(ctx); err != nil {
		return err
	}
	yes = true
	a.logger.Info("Watching for changes", "file", path, "debounce", debounce)
	return fw.Run(ctx, debounce, func(ctx context.Context) {
		if err := push(ctx); err != nil {
			a.logger.Error("Push failed", "file", path, "err", err)
		}
	})
}

// fileWatcher reports saves of one file. The parent directory is watched
// because editors often replace the file instead of writing it.
type fileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *log.Logger
}

func newFileWatcher(path string, logger *log.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &fileWatcher{path: abs, watcher: w, logger: logger}, nil
}

func (fw *fileWatcher) Close() error {
	return fw.watcher.Close()
}

// Run calls onChange after each burst of saves until ctx is done.
func (fw *fileWatcher) Run(ctx context.Context, debounce time.Duration, onChange func(context.Context)) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if !fw.relevant(event) {
				continue
			}
			fw.logger.Debug("Spreadsheet changed", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn("Watcher error", "err", err)

		case <-fire:
			fire = nil
			onChange(ctx)
		}
	}
}

func (fw *fileWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != fw.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
