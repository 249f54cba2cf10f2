package client

import "time"

type Profile struct {
	Id        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	TeamId    string    `json:"team_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	Id         string    `json:"id"`
	UserId     string    `json:"user_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	SharedWith []string  `json:"shared_with"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Message is a chat message. A provisional message has no Id yet and is
// identified by ClientId until the server confirms it.
type Message struct {
	Id          string    `json:"id"`
	SessionId   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	ClientId    string    `json:"client_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Provisional bool      `json:"-"`
}

type Summary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type Snapshot struct {
	Id             string    `json:"id"`
	Name           string    `json:"name"`
	Version        int       `json:"version"`
	FilterHash     string    `json:"filter_hash"`
	RowCount       int       `json:"row_count"`
	JobStatus      string    `json:"job_status"`
	JobId          string    `json:"job_id,omitempty"`
	FineTunedModel string    `json:"fine_tuned_model,omitempty"`
	RetryCount     int       `json:"retry_count"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
