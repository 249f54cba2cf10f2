package main

import (
	"fmt"
	"os"

	"therapy-chat-be/internal/config"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/client"
	"therapy-chat-be/pkg/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	settingsPath string
	profileName  string
)

var rootCmd = &cobra.Command{
	Use:   "ops",
	Short: "Operational tasks for the therapy chat backend",
	Long: `ops - maintenance commands for the therapy chat backend

Database commands (migrate, sweep-locks, poll-finetune) read the same
environment as the server. API commands (summarize, snapshots) use a
profile from the TOML settings file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", client.DefaultSettingsPath(), "TOML settings file")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Settings profile (defaults to the file's default)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor("error:"), err)
		os.Exit(1)
	}
}

type dbEnv struct {
	cfg        *config.Config
	db         *gorm.DB
	log        logger.ILogger
	uowFactory unitofwork.RepositoryFactory
}

func openDB() (*dbEnv, error) {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &dbEnv{
		cfg:        cfg,
		db:         db,
		log:        logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction()),
		uowFactory: unitofwork.NewRepositoryFactory(db),
	}, nil
}

func apiClient() (*client.Client, error) {
	settings, err := client.LoadSettings(settingsPath, profileName)
	if err != nil {
		return nil, err
	}
	return client.NewFromSettings(settings), nil
}
