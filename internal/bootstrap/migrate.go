package bootstrap

import (
	"fmt"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"

	"gorm.io/gorm"
)

// Models lists every table AutoMigrate owns.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Team{},
		&model.TeamMember{},
		&model.InviteLog{},
		&model.ChatSession{},
		&model.Message{},
		&model.EmotionLog{},
		&model.Annotation{},
		&model.FineTuneSnapshot{},
		&model.ExportLock{},
	}
}

// Migrate creates extensions, runs AutoMigrate and (re)creates the
// training view. It is safe to run repeatedly.
func Migrate(db *gorm.DB, log logger.ILogger) error {
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Warn("MIGRATE", "Setup statement failed, continuing", map[string]interface{}{"error": err.Error()})
		}
	}

	models := Models()
	log.Info("MIGRATE", "Running AutoMigrate", map[string]interface{}{"tables": len(models)})
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	postMigrationSQL := []string{
		`CREATE OR REPLACE FUNCTION set_current_timestamp_updated_at() RETURNS trigger LANGUAGE plpgsql AS $$
		DECLARE _new_value TIMESTAMP WITH TIME ZONE;
		BEGIN
		  _new_value := now();
		  IF NEW.updated_at IS DISTINCT FROM _new_value THEN NEW.updated_at = _new_value; END IF;
		  RETURN NEW;
		END; $$;`,
		`DROP VIEW IF EXISTS training_data_view;`,
		model.TrainingDataViewSQL,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("post-migration: %w", err)
		}
	}
	return nil
}
