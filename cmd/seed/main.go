package main

import (
	"log"
	"os"

	"therapy-chat-be/internal/config"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/pkg/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type demoUser struct {
	Email    string
	FullName string
	Role     string
}

var demoUsers = []demoUser{
	{Email: "admin@demo.local", FullName: "Demo Admin", Role: model.RoleAdmin},
	{Email: "therapist@demo.local", FullName: "Demo Therapist", Role: model.RoleTherapist},
	{Email: "client@demo.local", FullName: "Demo Client", Role: model.RoleUser},
}

var demoConversation = []struct {
	Role    string
	Content string
	Emotion string
	Tone    string
	Level   float64
}{
	{model.MessageRoleUser, "I haven't been sleeping well since the new project started.", "anxious", "worried", 0.7},
	{model.MessageRoleAssistant, "That sounds exhausting. What goes through your mind when you lie down at night?", "", "", 0},
	{model.MessageRoleUser, "Mostly the deadlines. I keep replaying meetings.", "stressed", "tense", 0.6},
	{model.MessageRoleAssistant, "Replaying things can keep the body on alert. Would it help to talk about one of those meetings?", "", "", 0},
	{model.MessageRoleUser, "Maybe. Talking about it already feels a bit lighter.", "hopeful", "calm", 0.3},
}

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Error: Failed to hash password:", err)
	}

	log.Println("Seeding demo accounts...")
	users := make(map[string]*model.User, len(demoUsers))
	for _, du := range demoUsers {
		var existing model.User
		if err := db.Where("email = ?", du.Email).First(&existing).Error; err == nil {
			log.Printf("User '%s' already exists, skipping...", du.Email)
			users[du.Role] = &existing
			continue
		}

		u := &model.User{Id: uuid.New(), Email: du.Email, FullName: du.FullName, Role: du.Role, PasswordHash: string(hash)}
		if err := db.Create(u).Error; err != nil {
			log.Fatalf("Error: Failed to create user %s: %v", du.Email, err)
		}
		users[du.Role] = u
		log.Printf("Created %s '%s'", du.Role, du.Email)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return seedTeam(tx, users[model.RoleTherapist], users[model.RoleUser])
	}); err != nil {
		log.Fatal("Error: Failed to seed team:", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return seedSession(tx, users[model.RoleUser])
	}); err != nil {
		log.Fatal("Error: Failed to seed session:", err)
	}

	log.Println("Seeding complete. Password for every demo account:", password)
}

func seedTeam(tx *gorm.DB, owner, member *model.User) error {
	var count int64
	if err := tx.Model(&model.Team{}).Where("owner_id = ?", owner.Id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Demo team already exists, skipping...")
		return nil
	}

	team := &model.Team{Id: uuid.New(), Name: "Demo Practice", OwnerId: owner.Id}
	if err := tx.Create(team).Error; err != nil {
		return err
	}
	members := []model.TeamMember{
		{TeamId: team.Id, UserId: owner.Id, Role: "owner"},
		{TeamId: team.Id, UserId: member.Id, Role: "member"},
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.User{}).Where("id IN ?", []uuid.UUID{owner.Id, member.Id}).Update("team_id", team.Id).Error; err != nil {
		return err
	}
	log.Printf("Created team '%s'", team.Name)
	return nil
}

func seedSession(tx *gorm.DB, owner *model.User) error {
	var count int64
	if err := tx.Model(&model.ChatSession{}).Where("user_id = ?", owner.Id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Demo session already exists, skipping...")
		return nil
	}

	session := &model.ChatSession{Id: uuid.New(), UserId: owner.Id, Title: "Sleep and work stress"}
	if err := tx.Create(session).Error; err != nil {
		return err
	}

	for _, turn := range demoConversation {
		msg := &model.Message{Id: uuid.New(), SessionId: session.Id, Role: turn.Role, Content: turn.Content}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if turn.Emotion == "" {
			continue
		}
		entry := &model.EmotionLog{
			Id:        uuid.New(),
			SessionId: session.Id,
			MessageId: msg.Id,
			Emotion:   turn.Emotion,
			Tone:      turn.Tone,
			Intensity: turn.Level,
			Topic:     "sleep",
			Source:    model.EmotionSourceAI,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
	}
	log.Printf("Created session '%s' with %d messages", session.Title, len(demoConversation))
	return nil
}
