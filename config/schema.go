package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/zenibako/boardsync/reconcile"
)

// Config represents the full boardsync configuration
type Config struct {
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Board   BoardConfig   `yaml:"board" mapstructure:"board"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Audit   AuditConfig   `yaml:"audit" mapstructure:"audit"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the board API client
type APIConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Version  string        `yaml:"version" mapstructure:"version"`
	Key      string        `yaml:"key" mapstructure:"key"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	PageSize int           `yaml:"page_size" mapstructure:"page_size"`
}

// BoardConfig selects the board and group
type BoardConfig struct {
	ID        string `yaml:"id" mapstructure:"id"`
	Name      string `yaml:"name" mapstructure:"name"`           // resolve or create a board by name when ID is empty
	Workspace string `yaml:"workspace" mapstructure:"workspace"` // workspace id for boards created by name
	Group     string `yaml:"group" mapstructure:"group"`         // empty uses the first word of the file name
}

// SyncConfig configures reconciliation
type SyncConfig struct {
	Mode               string        `yaml:"mode" mapstructure:"mode"`
	KeyField           string        `yaml:"key_field" mapstructure:"key_field"`
	DisplayColumn      string        `yaml:"display_column" mapstructure:"display_column"`
	ProtectedFields    []string      `yaml:"protected_fields" mapstructure:"protected_fields"`
	PreserveFormatting bool          `yaml:"preserve_formatting" mapstructure:"preserve_formatting"`
	SettleDelay        time.Duration `yaml:"settle_delay" mapstructure:"settle_delay"`
	DryRun             bool          `yaml:"dry_run" mapstructure:"dry_run"`
}

// ExtractConfig configures the external document extraction command
type ExtractConfig struct {
	Command string        `yaml:"command" mapstructure:"command"`
	Args    []string      `yaml:"args" mapstructure:"args"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AuditConfig configures where audit lines go besides the log
type AuditConfig struct {
	OSCAddr string `yaml:"osc_addr" mapstructure:"osc_addr"` // host:port of a UI listener, empty disables
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

// Validate checks values that cannot be caught while decoding
func (c *Config) Validate() error {
	if _, err := reconcile.ParseMode(c.Sync.Mode); err != nil {
		return err
	}
	if strings.TrimSpace(c.Sync.KeyField) == "" {
		return fmt.Errorf("sync.key_field must not be empty")
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be positive, got %d", c.API.PageSize)
	}
	if c.Sync.SettleDelay < 0 {
		return fmt.Errorf("sync.settle_delay must not be negative")
	}
	return nil
}
