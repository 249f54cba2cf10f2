package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSaveSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/save-summary", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body saveSummaryRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Summary == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "code": 400, "error": "Summary is required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "code": 200, "message": "Summary saved"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))

	env, err := c.SaveSummary(context.Background(), "abc", "test summary")
	require.NoError(t, err)
	assert.True(t, env.Success)

	_, err = c.SaveSummary(context.Background(), "abc", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Summary is required", apiErr.Message)
}

func TestSummarizeSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["session_id"] == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "code": 404, "error": "Session not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]string{"title": "Sleep and stress", "summary": "..."},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)

	title, err := c.SummarizeSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Sleep and stress", title)

	_, err = c.SummarizeSession(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Session not found")
}

func TestLoadProfileRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "db down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]string{"id": "u1", "full_name": "Ana"}})
	}))
	defer srv.Close()

	profile, err := New(srv.URL).LoadProfile(context.Background(), RetryPolicy{Delay: 5 * time.Millisecond, MaxAttempts: 5})
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.FullName)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLoadProfileGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"success": false, "error": "upstream"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).LoadProfile(context.Background(), RetryPolicy{Delay: time.Millisecond, MaxAttempts: 2})
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoadProfileDoesNotRetryUnauthorized(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "Invalid token"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).LoadProfile(context.Background(), RetryPolicy{Delay: time.Millisecond, MaxAttempts: 5})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendMessageReconcilesProvisional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"user_message":      map[string]string{"id": "m1", "role": "user", "content": body.Content, "client_id": body.ClientId},
				"assistant_message": map[string]string{"id": "m2", "role": "assistant", "content": "How did that feel?"},
			},
		})
	}))
	defer srv.Close()

	store := NewStore(State{}.WithMessages([]Message{{Id: "m0", Role: "assistant", Content: "Hi"}}))
	var seen []int
	unsubscribe := store.Subscribe(func(s State) { seen = append(seen, len(s.Messages())) })
	defer unsubscribe()

	state, err := New(srv.URL).SendMessage(context.Background(), store, "s1", "c-1", "I slept badly")
	require.NoError(t, err)

	msgs := state.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m0", msgs[0].Id)
	assert.Equal(t, "m1", msgs[1].Id)
	assert.False(t, msgs[1].Provisional)
	assert.Equal(t, "m2", msgs[2].Id)
	assert.False(t, state.Sending())
	assert.Equal(t, []int{2, 3}, seen)
}

func TestSendMessageRemovesProvisionalOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "error": "You do not have access to this session"})
	}))
	defer srv.Close()

	store := NewStore(State{})
	state, err := New(srv.URL).SendMessage(context.Background(), store, "s1", "c-1", "hello")
	require.Error(t, err)
	assert.Empty(t, state.Messages())
	assert.False(t, state.Sending())
}

func TestReconcile(t *testing.T) {
	type row struct {
		ID  int
		Val string
	}
	key := func(r row) int { return r.ID }
	current := []row{{1, "a"}, {2, "b-provisional"}}

	out := Reconcile(current, []row{{2, "b"}, {3, "c"}}, key)

	assert.Equal(t, []row{{1, "a"}, {2, "b"}, {3, "c"}}, out)
	assert.Equal(t, "b-provisional", current[1].Val)
}

func TestStateIsImmutable(t *testing.T) {
	base := State{}.WithMessages([]Message{{Id: "a"}})
	next := base.WithMessages(append(base.Messages(), Message{Id: "b"}))

	assert.Len(t, base.Messages(), 1)
	assert.Len(t, next.Messages(), 2)

	msgs := next.Messages()
	msgs[0].Id = "mutated"
	assert.Equal(t, "a", next.Messages()[0].Id)

	p := &Profile{FullName: "Ana"}
	withProfile := base.WithProfile(p)
	p.FullName = "Changed"
	assert.Equal(t, "Ana", withProfile.Profile().FullName)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
default = "local"

[profiles.local]
base_url = "http://localhost:3000"
token = "abc"

[profiles.broken]
token = "x"
`), 0o600))

	s, err := LoadSettings(path, "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", s.BaseURL)
	assert.Equal(t, "abc", s.Token)

	_, err = LoadSettings(path, "missing")
	assert.Error(t, err)

	_, err = LoadSettings(path, "broken")
	assert.Error(t, err)
}
