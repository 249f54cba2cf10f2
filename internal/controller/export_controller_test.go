package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/scheduler"
	"therapy-chat-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExportService struct{ mock.Mock }

func (m *mockExportService) Preview(ctx context.Context, req *dto.ExportPreviewRequest) (*dto.ExportPreviewResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*dto.ExportPreviewResponse)
	return res, args.Error(1)
}

func (m *mockExportService) CreateSnapshot(ctx context.Context, caller serverutils.Identity, req *dto.CreateSnapshotRequest) (*dto.SnapshotResponse, error) {
	args := m.Called(ctx, caller, req)
	res, _ := args.Get(0).(*dto.SnapshotResponse)
	return res, args.Error(1)
}

func (m *mockExportService) GetSnapshots(ctx context.Context) ([]*dto.SnapshotResponse, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]*dto.SnapshotResponse)
	return res, args.Error(1)
}

func (m *mockExportService) ShowSnapshot(ctx context.Context, id uuid.UUID) (*dto.SnapshotResponse, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*dto.SnapshotResponse)
	return res, args.Error(1)
}

func (m *mockExportService) ExportCSV(ctx context.Context, filter dto.ExportFilter, w io.Writer) (int, error) {
	args := m.Called(ctx, filter, w)
	if s, ok := args.Get(2).(string); ok {
		_, _ = io.WriteString(w, s)
	}
	return args.Int(0), args.Error(1)
}

type mockLockService struct{ mock.Mock }

func (m *mockLockService) Create(ctx context.Context, caller serverutils.Identity, req *dto.CreateLockRequest) (*dto.LockResponse, error) {
	args := m.Called(ctx, caller, req)
	res, _ := args.Get(0).(*dto.LockResponse)
	return res, args.Error(1)
}

func (m *mockLockService) Release(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLockService) GetActive(ctx context.Context) ([]*dto.LockResponse, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]*dto.LockResponse)
	return res, args.Error(1)
}

func (m *mockLockService) Active(ctx context.Context) (*model.ExportLock, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*model.ExportLock)
	return res, args.Error(1)
}

func (m *mockLockService) Sweep(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLockService) StartSweeper(ctx context.Context, interval time.Duration) (*scheduler.Task, error) {
	args := m.Called(ctx, interval)
	res, _ := args.Get(0).(*scheduler.Task)
	return res, args.Error(1)
}

func TestCreateSnapshotLocked(t *testing.T) {
	export := new(mockExportService)
	app := newTestApp(NewExportController(export, nil, new(mockLockService)).RegisterRoutes)
	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)

	export.On("CreateSnapshot", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, serverutils.Locked("Exports are locked", dto.LockedData{Locked: true, ExpiresAt: expires})).Once()

	status, env := do(t, app, fiber.MethodPost, "/api/finetune/snapshots", token(t, uuid.New(), model.RoleTherapist),
		`{"name":"calm-v1","filters":{"emotions":["calm"]}}`)

	assert.Equal(t, fiber.StatusLocked, status)
	var data dto.LockedData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Locked)
	assert.True(t, expires.Equal(data.ExpiresAt))
}

func TestCreateSnapshotDuplicate(t *testing.T) {
	export := new(mockExportService)
	app := newTestApp(NewExportController(export, nil, new(mockLockService)).RegisterRoutes)
	existing := uuid.New()

	export.On("CreateSnapshot", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, serverutils.Conflict("Snapshot already exists", dto.DuplicateSnapshotData{ExistingId: existing, FilterHash: "abc"})).Once()

	status, env := do(t, app, fiber.MethodPost, "/api/finetune/snapshots", token(t, uuid.New(), model.RoleAdmin),
		`{"name":"calm-v1"}`)

	assert.Equal(t, fiber.StatusConflict, status)
	var data dto.DuplicateSnapshotData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, existing, data.ExistingId)
}

func TestSnapshotsRequireReviewerRole(t *testing.T) {
	export := new(mockExportService)
	app := newTestApp(NewExportController(export, nil, new(mockLockService)).RegisterRoutes)

	status, _ := do(t, app, fiber.MethodGet, "/api/finetune/snapshots", token(t, uuid.New(), model.RoleUser), "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, fiber.MethodDelete, "/api/finetune/snapshots", token(t, uuid.New(), model.RoleAdmin), "")
	assert.Equal(t, fiber.StatusMethodNotAllowed, status)

	export.AssertNotCalled(t, "GetSnapshots", mock.Anything)
}

func TestExportCSVAttachment(t *testing.T) {
	export := new(mockExportService)
	app := newTestApp(NewExportController(export, nil, new(mockLockService)).RegisterRoutes)

	export.On("ExportCSV", mock.Anything, mock.MatchedBy(func(f dto.ExportFilter) bool {
		return len(f.Emotions) == 2 && f.CorrectedOnly
	}), mock.Anything).Return(1, nil, "message_id,session_id\n").Once()

	req := httptest.NewRequest(fiber.MethodGet, "/api/export/csv?emotions=calm,anxious&corrected_only=true", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, uuid.New(), model.RoleTherapist))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "training-export-"+time.Now().UTC().Format("2006-01-02")+".csv")
	assert.Equal(t, "message_id,session_id\n", string(body))
	export.AssertExpectations(t)
}

func TestExportCSVBadQuery(t *testing.T) {
	app := newTestApp(NewExportController(new(mockExportService), nil, new(mockLockService)).RegisterRoutes)

	status, _ := do(t, app, fiber.MethodGet, "/api/export/csv?session_id=nope", token(t, uuid.New(), model.RoleTherapist), "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAdminLocksAreAdminOnly(t *testing.T) {
	locks := new(mockLockService)
	app := newTestApp(NewExportController(new(mockExportService), nil, locks).RegisterRoutes)
	adminID := uuid.New()

	status, _ := do(t, app, fiber.MethodPost, "/api/admin/locks", token(t, uuid.New(), model.RoleTherapist), `{}`)
	assert.Equal(t, fiber.StatusForbidden, status)

	locks.On("Create", mock.Anything, serverutils.Identity{UserID: adminID, Role: model.RoleAdmin}, &dto.CreateLockRequest{Reason: "audit", TTLSeconds: 60}).
		Return(&dto.LockResponse{Id: uuid.New(), Scope: "finetune", LockedBy: adminID}, nil).Once()

	status, env := do(t, app, fiber.MethodPost, "/api/admin/locks", token(t, adminID, model.RoleAdmin), `{"reason":"audit","ttl_seconds":60}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	locks.AssertExpectations(t)
}

func TestReleaseUnknownLock(t *testing.T) {
	locks := new(mockLockService)
	app := newTestApp(NewExportController(new(mockExportService), nil, locks).RegisterRoutes)
	id := uuid.New()

	locks.On("Release", mock.Anything, id).Return(serverutils.NotFound("Lock not found")).Once()

	status, _ := do(t, app, fiber.MethodPost, "/api/admin/locks/"+id.String()+"/release", token(t, uuid.New(), model.RoleAdmin), "")
	assert.Equal(t, fiber.StatusNotFound, status)
}
