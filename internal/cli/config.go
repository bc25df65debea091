package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zenibako/boardsync/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage boardsync configuration",
	}

	var global, force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configInit(global, force)
		},
	}
	initCmd.Flags().BoolVar(&global, "global", false, "Write the user config instead of ./boardsync.yaml")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configShow()
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configPath()
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}

func (a *app) configPaths() (global, project string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	return config.GlobalPath(home), filepath.Join(wd, config.FileName), nil
}

func (a *app) configInit(global, force bool) error {
	globalPath, projectPath, err := a.configPaths()
	if err != nil {
		return err
	}
	path := projectPath
	if global {
		path = globalPath
	}
	if a.cfgFile != "" {
		path = a.cfgFile
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(a.out, "Wrote %s\n", path)
	return nil
}

func (a *app) configShow() error {
	data, err := config.Marshal(a.cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(a.out, "# Merged configuration (defaults + global + project + env + flags)")
	_, err = a.out.Write(data)
	return err
}

func (a *app) configPath() error {
	globalPath, projectPath, err := a.configPaths()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Global:  %s\n", globalPath)
	fmt.Fprintf(a.out, "Project: %s\n", projectPath)
	return nil
}
