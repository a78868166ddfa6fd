// Package cli implements the mediaforge command line.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mediaforge-app/mediaforge/internal/daemon"
	"github.com/mediaforge-app/mediaforge/internal/infra/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mediaforge",
	Short: "Asynchronous transcription and video generation jobs",
	Long: `MediaForge runs paid media jobs against hosted inference workers.
Each job reserves coins from its owner's balance, is submitted to an external
worker, polled until it finishes, and stored with its final result.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal outside development.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $MEDIAFORGE_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func loadConfig() (daemon.Config, error) {
	return daemon.LoadConfig(configPath)
}

// openDB opens the configured database for one-shot commands.
func openDB() (*sqlite.DB, daemon.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	db, err := sqlite.Open(cfg.DatabaseDir())
	if err != nil {
		return nil, cfg, fmt.Errorf("open database: %w", err)
	}
	return db, cfg, nil
}
