// Package appctx bootstraps the pieces every csvmerge3 subcommand needs:
// configuration, and an optional connection to the run history database.
package appctx

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablestream/csvmerge3/internal/config"
	"github.com/tablestream/csvmerge3/internal/db"
)

// Context holds per-invocation state resolved from flags, environment, and
// config file.
type Context struct {
	Config  *config.Config
	JSON    bool
	History *db.DB
}

// Load resolves configuration and the --json/--history-db flags for cmd. It
// does not open the history database; call OpenHistory for that.
func Load(cmd *cobra.Command) (*Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if path, _ := cmd.Flags().GetString("history-db"); path != "" {
		cfg.HistoryDBPath = path
	}
	jsonOut, _ := cmd.Flags().GetBool("json")

	return &Context{Config: cfg, JSON: jsonOut}, nil
}

// OpenHistory opens (and migrates) the run history database at c.Config's
// resolved path, and remembers it on c for the caller to close.
func (c *Context) OpenHistory() (*db.DB, error) {
	if c.History != nil {
		return c.History, nil
	}
	database, err := db.Open(c.Config.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	c.History = database
	return database, nil
}

// Close releases any resources Load/OpenHistory acquired.
func (c *Context) Close() error {
	if c.History != nil {
		return c.History.Close()
	}
	return nil
}
