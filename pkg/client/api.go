package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"therapy-chat-be/internal/pkg/scheduler"
)

type saveSummaryRequest struct {
	SessionId string `json:"session_id"`
	Summary   string `json:"summary"`
}

// SaveSummary stores summary on the session. It returns the server's
// envelope on success and an *APIError carrying the server message
// otherwise.
func (c *Client) SaveSummary(ctx context.Context, sessionID, summary string) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/api/save-summary", saveSummaryRequest{SessionId: sessionID, Summary: summary}, nil)
}

// SummarizeSession asks the server to summarize the session and returns the
// generated title.
func (c *Client) SummarizeSession(ctx context.Context, sessionID string) (string, error) {
	var out Summary
	if _, err := c.do(ctx, http.MethodPost, "/api/summarize", map[string]string{"session_id": sessionID}, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Profile, error) {
	var out struct {
		AccessToken string   `json:"access_token"`
		User        *Profile `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.AccessToken)
	return out.User, nil
}

func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var out Profile
	if _, err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LatestSession(ctx context.Context) (*Session, error) {
	var out Session
	if _, err := c.do(ctx, http.MethodGet, "/api/sessions/latest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Snapshots(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	if _, err := c.do(ctx, http.MethodGet, "/api/finetune/snapshots", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RetryPolicy bounds LoadProfile. Zero values mean 3 attempts 2s apart.
type RetryPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// LoadProfile fetches the caller's profile, retrying after Delay on
// failure. 401 and 403 are not retried.
func (c *Client) LoadProfile(ctx context.Context, policy RetryPolicy) (*Profile, error) {
	if policy.Delay <= 0 {
		policy.Delay = 2 * time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	var (
		profile *Profile
		fatal   error
	)
	task := scheduler.New("load-profile", scheduler.Policy{
		Interval:       policy.Delay,
		MaxAttempts:    policy.MaxAttempts,
		RunImmediately: true,
	}, func(ctx context.Context, attempt int) (bool, error) {
		p, err := c.Me(ctx)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
				fatal = err
				return true, err
			}
			return false, err
		}
		profile = p
		return true, nil
	})

	if err := task.Start(ctx); err != nil {
		return nil, err
	}
	select {
	case <-task.Done():
	case <-ctx.Done():
		task.Stop()
		<-task.Done()
		return nil, ctx.Err()
	}

	if fatal != nil {
		return nil, fatal
	}
	res := task.Result()
	if profile == nil {
		if res.LastErr != nil {
			return nil, fmt.Errorf("load profile after %d attempts: %w", res.Attempts, res.LastErr)
		}
		return nil, fmt.Errorf("load profile: %s", res.Outcome)
	}
	return profile, nil
}

type sendMessageRequest struct {
	Content  string `json:"content"`
	ClientId string `json:"client_id"`
}

type sendMessageResponse struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message,omitempty"`
}

// SendMessage appends a provisional message to the store, posts it, and
// reconciles the store with the server's copies. On failure the
// provisional message is removed again.
func (c *Client) SendMessage(ctx context.Context, store *Store, sessionID, clientID, content string) (State, error) {
	provisional := Message{
		SessionId:   sessionID,
		Role:        "user",
		Content:     content,
		ClientId:    clientID,
		CreatedAt:   time.Now().UTC(),
		Provisional: true,
	}
	store.Update(func(s State) State {
		return s.WithMessages(append(s.Messages(), provisional)).WithSending(true)
	})

	var out sendMessageResponse
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/messages"
	if _, err := c.do(ctx, http.MethodPost, path, sendMessageRequest{Content: content, ClientId: clientID}, &out); err != nil {
		state := store.Update(func(s State) State {
			kept := make([]Message, 0, len(s.Messages()))
			for _, m := range s.Messages() {
				if !(m.Provisional && m.ClientId == clientID) {
					kept = append(kept, m)
				}
			}
			return s.WithMessages(kept).WithSending(false)
		})
		return state, err
	}

	confirmed := make([]Message, 0, 2)
	if out.UserMessage != nil {
		confirmed = append(confirmed, *out.UserMessage)
	}
	if out.AssistantMessage != nil {
		confirmed = append(confirmed, *out.AssistantMessage)
	}
	return store.Update(func(s State) State {
		return s.WithMessages(Reconcile(s.Messages(), confirmed, MessageKey)).WithSending(false)
	}), nil
}
