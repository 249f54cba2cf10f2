package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/scheduler"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/events"
	"therapy-chat-be/pkg/finetune"

	"github.com/google/uuid"
)

// FineTuneAPI is the slice of the provider client the service drives.
type FineTuneAPI interface {
	UploadFile(ctx context.Context, filename string, data []byte) (string, error)
	CreateJob(ctx context.Context, trainingFileID, baseModel, suffix string) (*finetune.Job, error)
	GetJob(ctx context.Context, jobID string) (*finetune.Job, error)
}

// EventPublisher is satisfied by the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IFineTuneService interface {
	Start(ctx context.Context, id uuid.UUID) (*dto.StartFineTuneResponse, error)
	// PollOnce fetches the job status once and reports whether the job
	// reached a terminal state. Only a changed status or model is stored
	// and announced to the snapshot's creator.
	PollOnce(ctx context.Context, id uuid.UUID) (string, bool, error)
	NewPoller(id uuid.UUID) *scheduler.Task
	ResumePolling(ctx context.Context) (int, error)
	Shutdown()
}

// kickoffStaleAfter is how long a submitting claim is honoured before
// another Start may take it over.
const kickoffStaleAfter = 10 * time.Minute

type FineTunePolicy struct {
	BaseModel    string
	PollInterval time.Duration
	MaxAttempts  int
}

type fineTuneService struct {
	uowFactory unitofwork.RepositoryFactory
	api        FineTuneAPI
	publisher  EventPublisher
	pollers    *scheduler.Group
	policy     FineTunePolicy
	now        func() time.Time
	mapper     *mapper.ExportMapper
	logger     logger.ILogger
}

func NewFineTuneService(
	uowFactory unitofwork.RepositoryFactory,
	api FineTuneAPI,
	publisher EventPublisher,
	pollers *scheduler.Group,
	policy FineTunePolicy,
	log logger.ILogger,
) IFineTuneService {
	if policy.PollInterval <= 0 {
		policy.PollInterval = 30 * time.Second
	}
	if pollers == nil {
		pollers = scheduler.NewGroup()
	}
	return &fineTuneService{
		uowFactory: uowFactory,
		api:        api,
		publisher:  publisher,
		pollers:    pollers,
		policy:     policy,
		now:        time.Now,
		mapper:     mapper.NewExportMapper(),
		logger:     log,
	}
}

// Start submits the snapshot's training file and job when that has not
// happened yet, then makes sure a poller is running. Submission is guarded
// by a conditional claim on the snapshot row, so concurrent callers create
// at most one provider job. A failed submission bumps retry_count and puts
// the snapshot back to pending so it can be retried.
func (s *fineTuneService) Start(ctx context.Context, id uuid.UUID) (*dto.StartFineTuneResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	snapshot, err := uow.SnapshotRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, serverutils.Internal("Failed to load snapshot", err)
	}
	if snapshot == nil {
		return nil, serverutils.NotFound("Snapshot not found")
	}
	if model.IsTerminalJobStatus(snapshot.JobStatus) {
		return nil, serverutils.Conflict("Fine-tune job already finished", s.mapper.ToSnapshot(snapshot))
	}

	if snapshot.JobId == "" {
		snapshot, err = s.submit(ctx, uow, snapshot)
		if err != nil {
			return nil, err
		}
	}

	started, err := s.pollers.Start(context.Background(), snapshot.Id.String(), s.NewPoller(snapshot.Id))
	if err != nil {
		return nil, serverutils.Internal("Failed to start poller", err)
	}
	if started {
		s.logger.Info("FINETUNE", "Poller started", map[string]interface{}{"snapshot_id": snapshot.Id, "job_id": snapshot.JobId})
	}

	return &dto.StartFineTuneResponse{
		Snapshot: s.mapper.ToSnapshot(snapshot),
		Polling:  s.pollers.Running(snapshot.Id.String()),
	}, nil
}

// submit claims the snapshot and runs kickoff. When the claim is lost it
// returns the snapshot as another caller left it if that caller already
// stored a job, and 409 while the other submission is still in flight.
func (s *fineTuneService) submit(ctx context.Context, uow unitofwork.UnitOfWork, snapshot *model.FineTuneSnapshot) (*model.FineTuneSnapshot, error) {
	claimed, err := uow.SnapshotRepository().ClaimKickoff(ctx, snapshot.Id, s.now().Add(-kickoffStaleAfter))
	if err != nil {
		return nil, serverutils.Internal("Failed to claim snapshot", err)
	}
	if !claimed {
		current, err := uow.SnapshotRepository().FindOne(ctx, specification.ByID{ID: snapshot.Id})
		if err != nil {
			return nil, serverutils.Internal("Failed to load snapshot", err)
		}
		if current != nil && current.JobId != "" {
			return current, nil
		}
		return nil, serverutils.Conflict("Fine-tune job is already being submitted", s.mapper.ToSnapshot(snapshot))
	}

	if err := s.kickoff(ctx, uow, snapshot); err != nil {
		if incErr := uow.SnapshotRepository().IncrementRetry(ctx, snapshot.Id, err.Error()); incErr != nil {
			s.logger.Error("FINETUNE", "Failed to record retry", map[string]interface{}{"snapshot_id": snapshot.Id, "error": incErr.Error()})
		}
		if relErr := uow.SnapshotRepository().UpdateFields(ctx, snapshot.Id, map[string]interface{}{"job_status": model.JobStatusPending}); relErr != nil {
			s.logger.Error("FINETUNE", "Failed to release kickoff claim", map[string]interface{}{"snapshot_id": snapshot.Id, "error": relErr.Error()})
		}
		s.logger.Error("FINETUNE", "Fine-tune kickoff failed", map[string]interface{}{"snapshot_id": snapshot.Id, "error": err.Error()})
		return nil, serverutils.Internal("Failed to start fine-tune job", err)
	}
	return snapshot, nil
}

func (s *fineTuneService) kickoff(ctx context.Context, uow unitofwork.UnitOfWork, snapshot *model.FineTuneSnapshot) error {
	var filter dto.ExportFilter
	if len(snapshot.Filters) > 0 {
		if err := json.Unmarshal(snapshot.Filters, &filter); err != nil {
			return fmt.Errorf("decode snapshot filters: %w", err)
		}
	}

	rows, err := uow.TrainingRowRepository().FindAll(ctx, trainingFilter(filter), specification.OrderBy{Field: "created_at"})
	if err != nil {
		return fmt.Errorf("load training rows: %w", err)
	}
	data, examples, err := BuildTrainingJSONL(rows)
	if err != nil {
		return fmt.Errorf("render training file: %w", err)
	}
	if examples == 0 {
		return fmt.Errorf("snapshot has no labelled rows")
	}

	fileID, err := s.api.UploadFile(ctx, fmt.Sprintf("%s-v%d.jsonl", snapshot.Name, snapshot.Version), data)
	if err != nil {
		return fmt.Errorf("upload training file: %w", err)
	}
	job, err := s.api.CreateJob(ctx, fileID, s.policy.BaseModel, fmt.Sprintf("%s-v%d", snapshot.Name, snapshot.Version))
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	status := job.NormalizedStatus()
	fields := map[string]interface{}{
		"job_id":           job.ID,
		"training_file_id": fileID,
		"job_status":       status,
		"last_error":       "",
	}
	if err := uow.SnapshotRepository().UpdateFields(ctx, snapshot.Id, fields); err != nil {
		return fmt.Errorf("store job id: %w", err)
	}

	snapshot.JobId = job.ID
	snapshot.TrainingFileId = fileID
	snapshot.JobStatus = status
	snapshot.LastError = ""
	return nil
}

func (s *fineTuneService) PollOnce(ctx context.Context, id uuid.UUID) (string, bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	snapshot, err := uow.SnapshotRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return "", false, err
	}
	if snapshot == nil {
		return "", true, fmt.Errorf("snapshot %s not found", id)
	}
	if snapshot.JobId == "" {
		return snapshot.JobStatus, false, fmt.Errorf("snapshot %s has no job", id)
	}

	job, err := s.api.GetJob(ctx, snapshot.JobId)
	if err != nil {
		return snapshot.JobStatus, false, err
	}

	status := job.NormalizedStatus()
	terminal := model.IsTerminalJobStatus(status)
	if status == snapshot.JobStatus && job.FineTunedModel == snapshot.FineTunedModel {
		return status, terminal, nil
	}

	fields := map[string]interface{}{
		"job_status":       status,
		"fine_tuned_model": job.FineTunedModel,
	}
	if job.Error != nil && job.Error.Message != "" {
		fields["last_error"] = job.Error.Message
	}
	if err := uow.SnapshotRepository().UpdateFields(ctx, snapshot.Id, fields); err != nil {
		return status, false, err
	}

	s.notify(ctx, snapshot, status, job.FineTunedModel)
	return status, terminal, nil
}

func (s *fineTuneService) notify(ctx context.Context, snapshot *model.FineTuneSnapshot, status, fineTunedModel string) {
	if s.publisher == nil {
		return
	}
	evt := events.New(events.TypeFineTuneStatus, map[string]interface{}{
		"user_id":          snapshot.CreatedBy.String(),
		"snapshot_id":      snapshot.Id.String(),
		"name":             snapshot.Name,
		"version":          snapshot.Version,
		"status":           status,
		"fine_tuned_model": fineTunedModel,
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("FINETUNE", "Failed to publish status event", map[string]interface{}{"snapshot_id": snapshot.Id, "error": err.Error()})
	}
}

// NewPoller builds, but does not start, the polling task for a snapshot.
func (s *fineTuneService) NewPoller(id uuid.UUID) *scheduler.Task {
	policy := scheduler.Policy{
		Interval:       s.policy.PollInterval,
		MaxAttempts:    s.policy.MaxAttempts,
		RunImmediately: true,
	}
	return scheduler.New("finetune-poll-"+id.String(), policy,
		func(ctx context.Context, attempt int) (bool, error) {
			status, done, err := s.PollOnce(ctx, id)
			if err == nil {
				s.logger.Debug("FINETUNE", "Polled job", map[string]interface{}{"snapshot_id": id, "attempt": attempt, "status": status})
			}
			if done && err == nil {
				s.logger.Info("FINETUNE", "Job finished", map[string]interface{}{"snapshot_id": id, "status": status})
			}
			return done, err
		},
		scheduler.WithErrorHook(func(attempt int, err error) {
			s.logger.Warn("FINETUNE", "Poll attempt failed", map[string]interface{}{"snapshot_id": id, "attempt": attempt, "error": err.Error()})
		}),
	)
}

// ResumePolling restarts pollers for snapshots whose job is still in flight,
// e.g. after a restart.
func (s *fineTuneService) ResumePolling(ctx context.Context) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	items, err := uow.SnapshotRepository().FindAll(ctx,
		specification.ByJobStatuses{Statuses: []string{model.JobStatusQueued, model.JobStatusRunning}},
	)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, snap := range items {
		if snap.JobId == "" {
			continue
		}
		started, err := s.pollers.Start(context.Background(), snap.Id.String(), s.NewPoller(snap.Id))
		if err != nil {
			return resumed, err
		}
		if started {
			resumed++
		}
	}
	return resumed, nil
}

func (s *fineTuneService) Shutdown() {
	s.pollers.StopAll()
}
