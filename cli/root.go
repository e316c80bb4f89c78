/*
Package cli implements the leaved command tree.

COMMANDS:
  leaved serve                       Run the HTTP server and scheduler
  leaved grant [--until DATE]        Population generation run
  leaved expire [--as-of DATE]       Population expiry run
  leaved recalc EMPLOYEE_ID          Rebuild one employee's lot balances
  leaved policy activate VERSION     Switch the active policy version

All commands read the same config file and database as the server, so a
one-off run from an operator's shell acts on the live ledger.
*/
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hrforge/leave-engine/config"
	"github.com/hrforge/leave-engine/engine"
	"github.com/hrforge/leave-engine/store/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "leaved",
	Short: "Leave accrual and consumption ledger",
	Long: `leaved maintains a ledger of leave grant lots: scheduled accrual by
tenure, FIFO consumption on approval, exact reversal on rejection, and
expiry of unused balances.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "leaved.toml", "Path to TOML config file")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config, treating the path as explicit only when
// the flag was set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(configPath, cmd.Flags().Changed("config"))
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// openEngine opens the configured database and builds the engine on it.
// The store doubles as the audit log.
func openEngine(cfg config.Config, log zerolog.Logger) (*engine.Engine, *sqlite.Store, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store at %s: %w", cfg.Database.Path, err)
	}
	eng := engine.New(store, engine.WithAudit(store), engine.WithLogger(log))
	return eng, store, nil
}
