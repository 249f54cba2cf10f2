package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(register func(r fiber.Router, auth fiber.Handler)) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler(logger.NewNop())})
	register(app.Group("/api"), serverutils.NewJwtMiddleware(testSecret))
	return app
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok, err := serverutils.IssueToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, app *fiber.App, method, path, bearer, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

type mockSummaryService struct{ mock.Mock }

func (m *mockSummaryService) Summarize(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) (*dto.SummarizeResponse, error) {
	args := m.Called(ctx, caller, sessionId)
	res, _ := args.Get(0).(*dto.SummarizeResponse)
	return res, args.Error(1)
}

func (m *mockSummaryService) SaveSummary(ctx context.Context, caller serverutils.Identity, req *dto.SaveSummaryRequest) error {
	return m.Called(ctx, caller, req).Error(0)
}

func TestSaveSummaryRejectsGetBeforeAuth(t *testing.T) {
	summary := new(mockSummaryService)
	app := newTestApp(NewSessionController(nil, summary).RegisterRoutes)

	status, env := do(t, app, fiber.MethodGet, "/api/save-summary", "", "")

	assert.Equal(t, fiber.StatusMethodNotAllowed, status)
	assert.False(t, env.Success)
	summary.AssertNotCalled(t, "SaveSummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveSummaryRequiresToken(t *testing.T) {
	app := newTestApp(NewSessionController(nil, new(mockSummaryService)).RegisterRoutes)

	status, _ := do(t, app, fiber.MethodPost, "/api/save-summary", "", `{"session_id":"`+uuid.NewString()+`","summary":"x"}`)

	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestSaveSummaryValidation(t *testing.T) {
	summary := new(mockSummaryService)
	app := newTestApp(NewSessionController(nil, summary).RegisterRoutes)
	tok := token(t, uuid.New(), model.RoleUser)

	cases := map[string]string{
		"empty body":      "",
		"empty object":    `{}`,
		"missing summary": `{"session_id":"` + uuid.NewString() + `"}`,
		"bad session id":  `{"session_id":"nope","summary":"hello"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, env := do(t, app, fiber.MethodPost, "/api/save-summary", tok, body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
	summary.AssertNotCalled(t, "SaveSummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveSummarySuccess(t *testing.T) {
	summary := new(mockSummaryService)
	app := newTestApp(NewSessionController(nil, summary).RegisterRoutes)
	userID := uuid.New()
	sessionID := uuid.NewString()

	summary.On("SaveSummary", mock.Anything, serverutils.Identity{UserID: userID, Role: model.RoleUser},
		&dto.SaveSummaryRequest{SessionId: sessionID, Summary: "Talked about sleep."}).Return(nil).Once()

	status, env := do(t, app, fiber.MethodPost, "/api/save-summary", token(t, userID, model.RoleUser),
		`{"session_id":"`+sessionID+`","summary":"Talked about sleep."}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	summary.AssertExpectations(t)
}

func TestSaveSummaryPassesServiceErrors(t *testing.T) {
	summary := new(mockSummaryService)
	app := newTestApp(NewSessionController(nil, summary).RegisterRoutes)

	summary.On("SaveSummary", mock.Anything, mock.Anything, mock.Anything).
		Return(serverutils.NotFound("Session not found")).Once()

	status, env := do(t, app, fiber.MethodPost, "/api/save-summary", token(t, uuid.New(), model.RoleUser),
		`{"session_id":"`+uuid.NewString()+`","summary":"x"}`)

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Session not found", env.Error)
}
