package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Endpoint: "https://api.monday.com/v2",
			Timeout:  30 * time.Second,
			PageSize: 500,
		},
		Sync: SyncConfig{
			Mode:               "incremental",
			KeyField:           "Year",
			DisplayColumn:      "Name",
			ProtectedFields:    []string{"Comment"},
			PreserveFormatting: true,
			SettleDelay:        time.Second,
		},
		Extract: ExtractConfig{
			Timeout: 10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// WriteDefault writes the default configuration to a file
func WriteDefault(path string) error {
	content := `# boardsync configuration

api:
  endpoint: https://api.monday.com/v2
  # version: "2024-10"
  # The key is better kept in BOARDSYNC_API_KEY or a .env file
  # key: ""
  timeout: 30s
  page_size: 500

board:
  # id: "1234567890"
  # Resolve (or create) the board by name when id is empty
  # name: ""
  # workspace: ""
  # Group title; empty uses the first word of the spreadsheet file name
  group: ""

sync:
  # replace: archive the group and rebuild it
  # incremental: update only items that changed
  mode: incremental
  key_field: Year
  display_column: Name
  protected_fields:
    - Comment
  preserve_formatting: true
  # Wait between creating an item and filling its columns
  settle_delay: 1s
  dry_run: false

extract:
  # command: docuparse
  # args: ["--out", "extracted"]
  timeout: 10m

audit:
  # Send every audit line to an OSC listener
  # osc_addr: 127.0.0.1:53100
  osc_addr: ""

log:
  level: info
  # file: ~/.local/state/boardsync/boardsync.log
`
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
