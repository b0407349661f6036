// Command dupcheck checks invoices for duplicates against a local history
// store and keeps the results and their audit trails.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/steveyegge/dupcheck/internal/config"
	"github.com/steveyegge/dupcheck/internal/storage"
)

var (
	cfgFile string
	dbPath  string
	verbose bool

	appCfg *config.Config
	store  storage.Storage
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dupcheck",
	Short: "Duplicate invoice detection",
	Long: `dupcheck compares new invoices against previously seen ones and reports
exact and near duplicates with a confidence score, a risk level and the
recommended mitigation actions. Every check is recorded with a full audit
trail.

Configuration is layered: built-in defaults, then the YAML file given by
--config, then DUPCHECK_* environment variables (a .env file in the working
directory is loaded first), then command-line flags.

Without --db or a configured database, dupcheck uses the nearest
.dupcheck/dupcheck.db in the working directory or its parents, and creates
one in the working directory if there is none.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		logger, err = newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		appCfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		switch {
		case dbPath != "":
			appCfg.Database = dbPath
		case appCfg.Database == config.DefaultDatabasePath:
			if wd, err := os.Getwd(); err == nil {
				if found, err := storage.DiscoverDatabase(wd); err == nil {
					appCfg.Database = found
				}
			}
		}

		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: appCfg.Database})
		if err != nil {
			return fmt.Errorf("failed to open store %s: %w", appCfg.Database, err)
		}
		logger.Debug("store opened", zap.String("path", appCfg.Database))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config and DUPCHECK_DB)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug) logging")
}

// newLogger returns a development logger when verbose, otherwise a
// production logger that only reports warnings and errors.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

// shutdown flushes the logger and closes the store. It runs after every
// command, including failed ones, which skip cobra's post-run hooks.
func shutdown() {
	if logger != nil {
		_ = logger.Sync()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
		store = nil
	}
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	shutdown()
	if err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with a specific code without printing.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
