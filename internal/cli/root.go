package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zenibako/boardsync/config"
)

// flagKeys maps command-line flags to config keys. A flag only wins when
// the user actually set it.
var flagKeys = map[string]string{
	"board":               "board.id",
	"board-name":          "board.name",
	"workspace":           "board.workspace",
	"group":               "board.group",
	"mode":                "sync.mode",
	"key-field":           "sync.key_field",
	"preserve-formatting": "sync.preserve_formatting",
	"dry-run":             "sync.dry_run",
	"endpoint":            "api.endpoint",
	"command":             "extract.command",
	"log-level":           "log.level",
	"log-file":            "log.file",
}

// app holds what every command shares.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *log.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logFile     io.Closer
	interactive func() bool
	confirm     func(title string) (bool, error)
	promptKey   func() (string, error)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{
		in:     in,
		out:    out,
		errOut: errOut,
		cfg:    config.DefaultConfig(),
		logger: log.NewWithOptions(errOut, log.Options{ReportTimestamp: true}),
	}
	a.interactive = func() bool {
		return isTerminal(in) && isTerminal(out)
	}
	a.confirm = huhConfirm
	a.promptKey = huhAPIKey
	return a
}

// NewRootCommand builds the command tree reading from in and writing to out
// and errOut.
func NewRootCommand(version string, in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := newApp(in, out, errOut)

	root := &cobra.Command{
		Use:   "boardsync",
		Short: "Reconcile spreadsheets with board groups",
		Long: `boardsync keeps a spreadsheet and one group of a work-management board in step.

push makes the group match the spreadsheet, pull copies board values back into
the spreadsheet. Each row is matched to an item by its key field.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default: ~/.config/boardsync/config.yaml then ./boardsync.yaml)")
	pf.String("board", "", "Board ID")
	pf.String("group", "", "Group title (default: first word of the file name)")
	pf.String("mode", "", "Sync mode: replace or incremental")
	pf.String("key-field", "", "Spreadsheet field that identifies a row")
	pf.Bool("dry-run", false, "Plan and log every change without writing anything")
	pf.String("endpoint", "", "Board API endpoint")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Also write logs to this file, rotated")

	root.AddCommand(
		newPushCommand(a),
		newPullCommand(a),
		newRunCommand(a),
		newValidateCommand(a),
		newBoardsCommand(a),
		newWatchCommand(a),
		newExtractCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the root command
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(version, os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// skipConfig marks commands that must run without an existing config file.
const skipConfig = "boardsync/skip-config"

// setup loads configuration and configures logging for the command.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if cmd.Annotations[skipConfig] == "" {
		var err error
		cfg, err = config.Load(config.LoadOptions{
			File:     a.cfgFile,
			Flags:    cmd.Flags(),
			FlagKeys: flagKeys,
		})
		if err != nil {
			return err
		}
	}
	a.cfg = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	var w io.Writer = a.errOut
	if cfg.Log.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		a.logFile = rotating
		w = io.MultiWriter(a.errOut, rotating)
	}

	a.logger = log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	log.SetDefault(a.logger)
	return nil
}

func (a *app) teardown() error {
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
