package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/pkg/events"
	"therapy-chat-be/pkg/finetune"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFineTuneAPI struct {
	mu          sync.Mutex
	uploads     int
	jobs        int
	uploadErr   error
	uploadDelay time.Duration
	job         finetune.Job
}

func (a *fakeFineTuneAPI) UploadFile(_ context.Context, _ string, data []byte) (string, error) {
	time.Sleep(a.uploadDelay)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploads++
	if a.uploadErr != nil {
		return "", a.uploadErr
	}
	return "file-1", nil
}

func (a *fakeFineTuneAPI) CreateJob(_ context.Context, fileID, _, _ string) (*finetune.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs++
	return &finetune.Job{ID: fmt.Sprintf("ftjob-%d", a.jobs), Status: "validating_files", TrainingFile: fileID}, nil
}

func (a *fakeFineTuneAPI) counts() (uploads, jobs int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uploads, a.jobs
}

func (a *fakeFineTuneAPI) GetJob(context.Context, string) (*finetune.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j := a.job
	return &j, nil
}

func (a *fakeFineTuneAPI) setJob(j finetune.Job) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.job = j
}

func newFineTuneFixture(snap *model.FineTuneSnapshot, rows ...*model.TrainingRow) (*fakeUoW, *fakeFineTuneAPI, *recordingPublisher, IFineTuneService) {
	uow := &fakeUoW{snapshots: newFakeSnapshotRepo(snap), training: &fakeTrainingRepo{rows: rows}}
	api := &fakeFineTuneAPI{}
	pub := &recordingPublisher{}
	svc := NewFineTuneService(uow, api, pub, nil, FineTunePolicy{BaseModel: "gpt-4o-mini", PollInterval: time.Hour, MaxAttempts: 3}, logger.NewNop())
	return uow, api, pub, svc
}

func TestPollOnceStoresStatusChanges(t *testing.T) {
	snap := &model.FineTuneSnapshot{Id: uuid.New(), Name: "weekly", Version: 2, JobId: "ftjob-1", JobStatus: model.JobStatusQueued, CreatedBy: uuid.New()}
	uow, api, pub, svc := newFineTuneFixture(snap)
	ctx := context.Background()

	api.setJob(finetune.Job{ID: "ftjob-1", Status: "queued"})
	status, done, err := svc.PollOnce(ctx, snap.Id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, status)
	assert.False(t, done)
	assert.Empty(t, uow.snapshots.updates)
	assert.Empty(t, pub.Events())

	api.setJob(finetune.Job{ID: "ftjob-1", Status: "running"})
	status, done, err = svc.PollOnce(ctx, snap.Id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, status)
	assert.False(t, done)

	api.setJob(finetune.Job{ID: "ftjob-1", Status: "succeeded", FineTunedModel: "ft:gpt-4o-mini:weekly-v2"})
	status, done, err = svc.PollOnce(ctx, snap.Id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, status)
	assert.True(t, done)

	stored, err := uow.snapshots.FindOne(ctx, specification.ByID{ID: snap.Id})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, stored.JobStatus)
	assert.Equal(t, "ft:gpt-4o-mini:weekly-v2", stored.FineTunedModel)

	evts := pub.Events()
	require.Len(t, evts, 2)
	for _, e := range evts {
		assert.Equal(t, events.TypeFineTuneStatus, e.EventType())
		assert.Equal(t, snap.CreatedBy.String(), events.RecipientID(e))
	}
	assert.Equal(t, model.JobStatusSucceeded, evts[1].Payload()["status"])
}

func TestPollOnceWithoutJobFails(t *testing.T) {
	snap := &model.FineTuneSnapshot{Id: uuid.New(), JobStatus: model.JobStatusPending}
	_, _, _, svc := newFineTuneFixture(snap)

	_, done, err := svc.PollOnce(context.Background(), snap.Id)
	assert.Error(t, err)
	assert.False(t, done)

	_, done, err = svc.PollOnce(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.True(t, done)
}

func TestStartSubmitsJobAndPolls(t *testing.T) {
	snap := &model.FineTuneSnapshot{Id: uuid.New(), Name: "weekly", Version: 1, JobStatus: model.JobStatusPending}
	uow, api, _, svc := newFineTuneFixture(snap, &model.TrainingRow{Content: "hi", Emotion: "calm"})
	defer svc.Shutdown()
	api.setJob(finetune.Job{ID: "ftjob-1", Status: "running"})

	res, err := svc.Start(context.Background(), snap.Id)
	require.NoError(t, err)
	assert.Equal(t, "ftjob-1", res.Snapshot.JobId)
	assert.Equal(t, model.JobStatusQueued, res.Snapshot.JobStatus)
	assert.True(t, res.Polling)
	uploads, jobs := api.counts()
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, jobs)

	stored, err := uow.snapshots.FindOne(context.Background(), specification.ByID{ID: snap.Id})
	require.NoError(t, err)
	assert.Equal(t, "file-1", stored.TrainingFileId)
}

func TestStartFailureBumpsRetry(t *testing.T) {
	snap := &model.FineTuneSnapshot{Id: uuid.New(), Name: "weekly", Version: 1, JobStatus: model.JobStatusPending}
	uow, api, _, svc := newFineTuneFixture(snap, &model.TrainingRow{Content: "hi", Emotion: "calm"})
	api.uploadErr = errors.New("provider down")

	_, err := svc.Start(context.Background(), snap.Id)
	require.Error(t, err)

	stored, err := uow.snapshots.FindOne(context.Background(), specification.ByID{ID: snap.Id})
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, model.JobStatusPending, stored.JobStatus)
	assert.Contains(t, stored.LastError, "provider down")
}

func TestStartRejectsFinishedJob(t *testing.T) {
	snap := &model.FineTuneSnapshot{Id: uuid.New(), JobId: "ftjob-1", JobStatus: model.JobStatusSucceeded}
	_, _, _, svc := newFineTuneFixture(snap)

	_, err := svc.Start(context.Background(), snap.Id)
	assert.Error(t, err)
}

func TestConcurrentStartsSubmitOneJob(t *testing.T) {
	snap := &model.FineTuneSnapshot{Id: uuid.New(), Name: "weekly", Version: 1, JobStatus: model.JobStatusPending}
	uow, api, _, svc := newFineTuneFixture(snap, &model.TrainingRow{Content: "hi", Emotion: "calm"})
	defer svc.Shutdown()
	api.uploadDelay = 50 * time.Millisecond
	api.setJob(finetune.Job{ID: "ftjob-1", Status: "running"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Start(context.Background(), snap.Id)
		}(i)
	}
	wg.Wait()

	uploads, jobs := api.counts()
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, jobs)

	var ok, conflicts int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if serverutils.StatusOf(err) == 409 {
			conflicts++
		}
	}
	assert.GreaterOrEqual(t, ok, 1)
	assert.Equal(t, 2, ok+conflicts)

	stored, err := uow.snapshots.FindOne(context.Background(), specification.ByID{ID: snap.Id})
	require.NoError(t, err)
	assert.Equal(t, "ftjob-1", stored.JobId)
}

func TestStartAfterSubmissionReusesJob(t *testing.T) {
	snap := &model.FineTuneSnapshot{Id: uuid.New(), Name: "weekly", Version: 1, JobStatus: model.JobStatusPending}
	_, api, _, svc := newFineTuneFixture(snap, &model.TrainingRow{Content: "hi", Emotion: "calm"})
	defer svc.Shutdown()
	api.setJob(finetune.Job{ID: "ftjob-1", Status: "running"})

	_, err := svc.Start(context.Background(), snap.Id)
	require.NoError(t, err)
	res, err := svc.Start(context.Background(), snap.Id)
	require.NoError(t, err)

	assert.Equal(t, "ftjob-1", res.Snapshot.JobId)
	_, jobs := api.counts()
	assert.Equal(t, 1, jobs)
}

func TestStaleSubmittingClaimIsTakenOver(t *testing.T) {
	snap := &model.FineTuneSnapshot{
		Id:        uuid.New(),
		Name:      "weekly",
		Version:   1,
		JobStatus: model.JobStatusSubmitting,
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	_, api, _, svc := newFineTuneFixture(snap, &model.TrainingRow{Content: "hi", Emotion: "calm"})
	defer svc.Shutdown()
	api.setJob(finetune.Job{ID: "ftjob-1", Status: "running"})

	res, err := svc.Start(context.Background(), snap.Id)
	require.NoError(t, err)
	assert.Equal(t, "ftjob-1", res.Snapshot.JobId)
}
