package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/database"
	"github.com/brainblog/pkg/logger"
	"github.com/spf13/cobra"
)

var migrationsPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the BrainBlog PostgreSQL schema",
	Long: `Apply or roll back the SQL migrations used by the postgres store backend.

Connection settings come from the same DB_* environment variables as the server.`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *database.DB) error {
			return db.RunMigrations(migrationsPath)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *database.DB) error {
			return db.MigrateDown(migrationsPath)
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate up or down to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withDB(func(db *database.DB) error {
			return db.MigrateToVersion(migrationsPath, uint(version))
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *database.DB) error {
			version, dirty, err := db.MigrationVersion(migrationsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (default: MIGRATIONS_PATH or ./migrations)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
}

// withDB opens the configured database, runs fn and closes it
func withDB(fn func(db *database.DB) error) error {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("migrations only apply to the postgres backend, STORE_BACKEND is %q", cfg.Store.Backend)
	}
	if migrationsPath == "" {
		migrationsPath = cfg.Store.MigrationsPath
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
