package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"
)

// CSVHeader is the fixed column order of the CSV export.
var CSVHeader = []string{
	"message_id", "session_id", "role", "content", "emotion",
	"tone", "intensity", "topic", "corrected", "created_at",
}

const trainingSystemPrompt = "Label the emotional content of the user's message as JSON with emotion, tone, intensity and topic."

func trainingFilter(f dto.ExportFilter) specification.TrainingFilter {
	return specification.TrainingFilter{
		From:          f.From,
		To:            f.To,
		SessionID:     f.SessionId,
		UserID:        f.UserId,
		Roles:         f.Roles,
		Emotions:      f.Emotions,
		Tones:         f.Tones,
		Topic:         f.Topic,
		MinIntensity:  f.MinIntensity,
		MaxIntensity:  f.MaxIntensity,
		CorrectedOnly: f.CorrectedOnly,
		Search:        f.Search,
	}
}

type jsonlMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonlLabel struct {
	Emotion   string  `json:"emotion"`
	Tone      string  `json:"tone"`
	Intensity float64 `json:"intensity"`
	Topic     string  `json:"topic"`
}

// BuildTrainingJSONL renders labelled rows in the chat fine-tuning format,
// one example per line. Rows without an emotion label are skipped.
func BuildTrainingJSONL(rows []*model.TrainingRow) ([]byte, int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	written := 0
	for _, r := range rows {
		if r.Emotion == "" {
			continue
		}
		label, err := json.Marshal(jsonlLabel{Emotion: r.Emotion, Tone: r.Tone, Intensity: r.Intensity, Topic: r.Topic})
		if err != nil {
			return nil, 0, err
		}
		example := struct {
			Messages []jsonlMessage `json:"messages"`
		}{
			Messages: []jsonlMessage{
				{Role: "system", Content: trainingSystemPrompt},
				{Role: "user", Content: r.Content},
				{Role: "assistant", Content: string(label)},
			},
		}
		if err := enc.Encode(example); err != nil {
			return nil, 0, err
		}
		written++
	}
	return buf.Bytes(), written, nil
}

// WriteTrainingCSV writes the header and one record per row.
func WriteTrainingCSV(w io.Writer, rows []*model.TrainingRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.MessageId.String(),
			r.SessionId.String(),
			r.Role,
			r.Content,
			r.Emotion,
			r.Tone,
			strconv.FormatFloat(r.Intensity, 'f', -1, 64),
			r.Topic,
			strconv.FormatBool(r.Corrected),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
