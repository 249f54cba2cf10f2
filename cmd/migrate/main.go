package main

import (
	"log"

	"therapy-chat-be/internal/bootstrap"
	"therapy-chat-be/internal/config"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	sysLog := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLog.Sync()

	if err := bootstrap.Migrate(db, sysLog); err != nil {
		log.Fatalf("Error: migration failed: %v", err)
	}
	sysLog.Info("MIGRATE", "Database migration completed", nil)
}
