package specification

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrainingFilter composes the parameterized read against training_data_view.
// Zero-valued fields do not constrain the query.
type TrainingFilter struct {
	From          *time.Time
	To            *time.Time
	SessionID     *uuid.UUID
	UserID        *uuid.UUID
	Roles         []string
	Emotions      []string
	Tones         []string
	Topic         string
	MinIntensity  *float64
	MaxIntensity  *float64
	CorrectedOnly bool
	Search        string
}

func (f TrainingFilter) Apply(db *gorm.DB) *gorm.DB {
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at < ?", *f.To)
	}
	if f.SessionID != nil {
		db = db.Where("session_id = ?", *f.SessionID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if len(f.Roles) > 0 {
		db = db.Where("role IN ?", f.Roles)
	}
	if len(f.Emotions) > 0 {
		db = db.Where("emotion IN ?", f.Emotions)
	}
	if len(f.Tones) > 0 {
		db = db.Where("tone IN ?", f.Tones)
	}
	if f.Topic != "" {
		db = db.Where("topic = ?", f.Topic)
	}
	if f.MinIntensity != nil {
		db = db.Where("intensity >= ?", *f.MinIntensity)
	}
	if f.MaxIntensity != nil {
		db = db.Where("intensity <= ?", *f.MaxIntensity)
	}
	if f.CorrectedOnly {
		db = db.Where("corrected = ?", true)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		db = db.Where("content ILIKE ?", "%"+escapeLike(s)+"%")
	}
	return db
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
