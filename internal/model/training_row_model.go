package model

import (
	"time"

	"github.com/google/uuid"
)

// TrainingRow is read from the training_data_view created by cmd/migrate.
// Emotion fields come from the newest therapist annotation when one exists
// (Corrected = true), otherwise from the newest AI emotion log.
type TrainingRow struct {
	MessageId      uuid.UUID
	SessionId      uuid.UUID
	UserId         uuid.UUID
	Role           string
	Content        string
	Emotion        string
	Tone           string
	Intensity      float64
	Topic          string
	AlignmentScore *float64
	Corrected      bool
	TherapistId    *uuid.UUID
	CreatedAt      time.Time
}

func (TrainingRow) TableName() string {
	return "training_data_view"
}

// TrainingDataViewSQL defines training_data_view.
const TrainingDataViewSQL = `
CREATE OR REPLACE VIEW training_data_view AS
SELECT
	m.id          AS message_id,
	m.session_id  AS session_id,
	s.user_id     AS user_id,
	m.role        AS role,
	m.content     AS content,
	COALESCE(a.emotion, e.emotion, '')     AS emotion,
	COALESCE(a.tone, e.tone, '')           AS tone,
	COALESCE(a.intensity, e.intensity, 0)  AS intensity,
	COALESCE(a.topic, e.topic, '')         AS topic,
	e.alignment_score                      AS alignment_score,
	(a.id IS NOT NULL)                     AS corrected,
	a.therapist_id                         AS therapist_id,
	m.created_at  AS created_at
FROM messages m
JOIN chat_sessions s ON s.id = m.session_id
LEFT JOIN LATERAL (
	SELECT * FROM emotion_logs el
	WHERE el.message_id = m.id
	ORDER BY el.created_at DESC
	LIMIT 1
) e ON TRUE
LEFT JOIN LATERAL (
	SELECT * FROM annotations an
	WHERE an.source_id = m.id AND an.source_type = 'message'
	ORDER BY an.updated_at DESC
	LIMIT 1
) a ON TRUE;
`

// EmotionAggregate is one GROUP BY emotion row over training_data_view.
type EmotionAggregate struct {
	Emotion          string
	Count            int
	AverageIntensity float64
	AverageScore     *float64
	High             int
	Medium           int
	Low              int
}
