package dto

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"therapy-chat-be/pkg/analytics"

	"github.com/google/uuid"
)

// ExportFilter selects training rows. Its canonical JSON is what the filter
// hash is computed over, so every field is omitempty.
type ExportFilter struct {
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	SessionId     *uuid.UUID `json:"session_id,omitempty"`
	UserId        *uuid.UUID `json:"user_id,omitempty"`
	Roles         []string   `json:"roles,omitempty" validate:"omitempty,dive,oneof=user assistant system"`
	Emotions      []string   `json:"emotions,omitempty" validate:"omitempty,dive,max=50"`
	Tones         []string   `json:"tones,omitempty" validate:"omitempty,dive,max=50"`
	Topic         string     `json:"topic,omitempty" validate:"max=100"`
	MinIntensity  *float64   `json:"min_intensity,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxIntensity  *float64   `json:"max_intensity,omitempty" validate:"omitempty,gte=0,lte=1"`
	CorrectedOnly bool       `json:"corrected_only,omitempty"`
	Search        string     `json:"search,omitempty" validate:"max=200"`
}

// Normalize lowercases, dedupes and sorts the list fields and moves times to
// UTC so equivalent filters hash the same.
func (f ExportFilter) Normalize() ExportFilter {
	f.Roles = normalizeList(f.Roles)
	f.Emotions = normalizeList(f.Emotions)
	f.Tones = normalizeList(f.Tones)
	f.Topic = strings.TrimSpace(f.Topic)
	f.Search = strings.TrimSpace(f.Search)
	if f.From != nil {
		t := f.From.UTC()
		f.From = &t
	}
	if f.To != nil {
		t := f.To.UTC()
		f.To = &t
	}
	return f
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// ExportFilterFromQuery builds a filter from CSV export query parameters.
// List parameters are comma separated; times are RFC 3339 or YYYY-MM-DD.
func ExportFilterFromQuery(get func(key string) string) (ExportFilter, error) {
	var f ExportFilter

	if v := get("session_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fmt.Errorf("invalid session_id")
		}
		f.SessionId = &id
	}
	if v := get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fmt.Errorf("invalid user_id")
		}
		f.UserId = &id
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := get(key)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			return f, fmt.Errorf("invalid %s", key)
		}
		*dst = &t
	}
	for key, dst := range map[string]**float64{"min_intensity": &f.MinIntensity, "max_intensity": &f.MaxIntensity} {
		v := get(key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("invalid %s", key)
		}
		*dst = &n
	}

	f.Roles = splitList(get("roles"))
	f.Emotions = splitList(get("emotions"))
	f.Tones = splitList(get("tones"))
	f.Topic = get("topic")
	f.Search = get("search")
	f.CorrectedOnly = get("corrected_only") == "true" || get("corrected_only") == "1"
	return f, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

type ExportPreviewRequest struct {
	Filters ExportFilter `json:"filters"`
	Limit   int          `json:"limit" validate:"omitempty,min=1,max=5000"`
}

type TrainingRowResponse struct {
	MessageId      uuid.UUID `json:"message_id"`
	SessionId      uuid.UUID `json:"session_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Emotion        string    `json:"emotion"`
	Tone           string    `json:"tone"`
	Intensity      float64   `json:"intensity"`
	Topic          string    `json:"topic"`
	AlignmentScore *float64  `json:"alignment_score"`
	Corrected      bool      `json:"corrected"`
	CreatedAt      time.Time `json:"created_at"`
}

type EmotionSummary struct {
	Emotion          string  `json:"emotion"`
	Count            int     `json:"count"`
	AverageIntensity float64 `json:"average_intensity"`
	AverageScore     float64 `json:"average_score"`
}

type ExportPreviewResponse struct {
	FilterHash string                      `json:"filter_hash"`
	Total      int64                       `json:"total"`
	Rows       []*TrainingRowResponse      `json:"rows"`
	Summary    []EmotionSummary            `json:"summary"`
	Severity   analytics.SeverityBreakdown `json:"severity"`
}

type CreateSnapshotRequest struct {
	Name    string       `json:"name" validate:"required,min=1,max=255"`
	Filters ExportFilter `json:"filters"`
}

type SnapshotResponse struct {
	Id             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Version        int             `json:"version"`
	Filters        json.RawMessage `json:"filters"`
	FilterHash     string          `json:"filter_hash"`
	RowCount       int             `json:"row_count"`
	JobStatus      string          `json:"job_status"`
	JobId          string          `json:"job_id,omitempty"`
	FineTunedModel string          `json:"fine_tuned_model,omitempty"`
	StorageURI     string          `json:"storage_uri,omitempty"`
	RetryCount     int             `json:"retry_count"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type DuplicateSnapshotData struct {
	ExistingId uuid.UUID `json:"existing_id"`
	FilterHash string    `json:"filter_hash"`
}

type LockedData struct {
	Locked    bool      `json:"locked"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateLockRequest struct {
	Reason     string `json:"reason" validate:"max=500"`
	TTLSeconds int    `json:"ttl_seconds" validate:"omitempty,min=1,max=86400"`
}

type LockResponse struct {
	Id        uuid.UUID `json:"id"`
	Scope     string    `json:"scope"`
	LockedBy  uuid.UUID `json:"locked_by"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type StartFineTuneResponse struct {
	Snapshot *SnapshotResponse `json:"snapshot"`
	Polling  bool              `json:"polling"`
}
