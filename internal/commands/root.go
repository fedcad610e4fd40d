package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"timeclock/internal/civiltime"
	"timeclock/internal/config"
	"timeclock/internal/database"
	"timeclock/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "timeclock",
	Short: "Staff time clock service",
	Long: `timeclock records staff clock-in and clock-out sessions, handles
retroactive clock requests and produces per-location hour summaries.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// env is what every subcommand needs before it can touch the database.
type env struct {
	cfg    *config.Config
	clock  civiltime.Clock
	logger *slog.Logger
	db     *gorm.DB
}

var (
	defaultMigrate = database.Migrate
	migrate        = defaultMigrate
)

// loadEnv reads configuration, connects and migrates.
func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return openEnv(cmd.Context(), cfg, logger)
}

// openEnv connects and migrates; the connection is closed on failure.
func openEnv(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*env, error) {
	clock, err := civiltime.Load(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, clock: clock, logger: logger, db: db}
	if err := migrate(ctx, db); err != nil {
		e.close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return e, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func SetVersion(v, c string) {
	version = v
	commit = c
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// bare `timeclock` serves
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "timeclock %s (%s)\n", version, commit)
	},
}
