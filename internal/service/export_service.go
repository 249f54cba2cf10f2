package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/filterhash"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/objectstore"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/contract"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/analytics"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DefaultPreviewLimit = 500
	maxVersionAttempts  = 3
)

// PreviewStore caches previews by filter hash and row limit.
type PreviewStore interface {
	Save(filterHash string, limit int, preview *dto.ExportPreviewResponse)
	Get(filterHash string, limit int) (*dto.ExportPreviewResponse, bool)
	Flush()
}

type IExportService interface {
	Preview(ctx context.Context, req *dto.ExportPreviewRequest) (*dto.ExportPreviewResponse, error)
	CreateSnapshot(ctx context.Context, caller serverutils.Identity, req *dto.CreateSnapshotRequest) (*dto.SnapshotResponse, error)
	GetSnapshots(ctx context.Context) ([]*dto.SnapshotResponse, error)
	ShowSnapshot(ctx context.Context, id uuid.UUID) (*dto.SnapshotResponse, error)
	ExportCSV(ctx context.Context, filter dto.ExportFilter, w io.Writer) (int, error)
}

type exportService struct {
	uowFactory   unitofwork.RepositoryFactory
	locks        ILockService
	cache        PreviewStore
	store        objectstore.Store
	previewLimit int
	mapper       *mapper.ExportMapper
	logger       logger.ILogger
}

func NewExportService(
	uowFactory unitofwork.RepositoryFactory,
	locks ILockService,
	cache PreviewStore,
	store objectstore.Store,
	previewLimit int,
	log logger.ILogger,
) IExportService {
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	if store == nil {
		store = objectstore.Nop{}
	}
	return &exportService{
		uowFactory:   uowFactory,
		locks:        locks,
		cache:        cache,
		store:        store,
		previewLimit: previewLimit,
		mapper:       mapper.NewExportMapper(),
		logger:       log,
	}
}

func (s *exportService) Preview(ctx context.Context, req *dto.ExportPreviewRequest) (*dto.ExportPreviewResponse, error) {
	filter := req.Filters.Normalize()
	hash, err := filterhash.Hash(filter)
	if err != nil {
		return nil, serverutils.BadRequest("Invalid filters")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.previewLimit
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(hash, limit); ok {
			return cached, nil
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	where := trainingFilter(filter)

	total, err := uow.TrainingRowRepository().Count(ctx, where)
	if err != nil {
		return nil, serverutils.Internal("Failed to count training rows", err)
	}

	rows, err := uow.TrainingRowRepository().FindAll(ctx,
		where,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, serverutils.Internal("Failed to load training rows", err)
	}

	aggregates, err := uow.TrainingRowRepository().Aggregate(ctx, where)
	if err != nil {
		return nil, serverutils.Internal("Failed to summarize training rows", err)
	}
	summary, severity := summarizeEmotions(aggregates)

	res := &dto.ExportPreviewResponse{
		FilterHash: hash,
		Total:      total,
		Rows:       s.mapper.ToTrainingRows(rows),
		Summary:    summary,
		Severity:   severity,
	}
	if s.cache != nil {
		s.cache.Save(hash, limit, res)
	}
	return res, nil
}

// summarizeEmotions sorts by count descending, then emotion name. Rows with
// no label are grouped under "unlabeled".
func summarizeEmotions(aggregates []*model.EmotionAggregate) ([]dto.EmotionSummary, analytics.SeverityBreakdown) {
	summary := make([]dto.EmotionSummary, 0, len(aggregates))
	var counts analytics.SeverityCounts
	for _, a := range aggregates {
		emotion := a.Emotion
		if emotion == "" {
			emotion = "unlabeled"
		}
		item := dto.EmotionSummary{
			Emotion:          emotion,
			Count:            a.Count,
			AverageIntensity: a.AverageIntensity,
		}
		if a.AverageScore != nil {
			item.AverageScore = *a.AverageScore
		}
		summary = append(summary, item)
		counts.High += a.High
		counts.Medium += a.Medium
		counts.Low += a.Low
	}

	sort.Slice(summary, func(i, j int) bool {
		if summary[i].Count != summary[j].Count {
			return summary[i].Count > summary[j].Count
		}
		return summary[i].Emotion < summary[j].Emotion
	})
	return summary, analytics.Breakdown(counts)
}

// CreateSnapshot refuses while an export lock is active (423) and when a
// snapshot with the same filter hash exists (409). The unique index on
// filter_hash decides between concurrent creators.
func (s *exportService) CreateSnapshot(ctx context.Context, caller serverutils.Identity, req *dto.CreateSnapshotRequest) (*dto.SnapshotResponse, error) {
	lock, err := s.locks.Active(ctx)
	if err != nil {
		return nil, serverutils.Internal("Failed to check export lock", err)
	}
	if lock != nil {
		return nil, serverutils.Locked("Export is locked", dto.LockedData{Locked: true, ExpiresAt: lock.ExpiresAt})
	}

	filter := req.Filters.Normalize()
	canonical, err := filterhash.Canonical(filter)
	if err != nil {
		return nil, serverutils.BadRequest("Invalid filters")
	}
	hash, err := filterhash.Hash(filter)
	if err != nil {
		return nil, serverutils.BadRequest("Invalid filters")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	where := trainingFilter(filter)

	rows, err := uow.TrainingRowRepository().FindAll(ctx, where, specification.OrderBy{Field: "created_at"})
	if err != nil {
		return nil, serverutils.Internal("Failed to load training rows", err)
	}
	if len(rows) == 0 {
		return nil, serverutils.BadRequest("No training rows match the filters")
	}

	name := strings.TrimSpace(req.Name)
	snapshot := &model.FineTuneSnapshot{
		Id:         uuid.New(),
		Name:       name,
		Filters:    datatypes.JSON(canonical),
		FilterHash: hash,
		RowCount:   len(rows),
		JobStatus:  model.JobStatusPending,
		CreatedBy:  caller.UserID,
	}

	// A concurrent create under the same name can take the version between
	// NextVersion and the insert; the (name, version) index rejects it and
	// the version is recomputed.
	var inserted bool
	for attempt := 1; ; attempt++ {
		snapshot.Version, err = uow.SnapshotRepository().NextVersion(ctx, name)
		if err != nil {
			return nil, serverutils.Internal("Failed to compute snapshot version", err)
		}
		inserted, err = uow.SnapshotRepository().CreateIfAbsent(ctx, snapshot)
		if errors.Is(err, contract.ErrSnapshotVersionTaken) && attempt < maxVersionAttempts {
			continue
		}
		if err != nil {
			return nil, serverutils.Internal("Failed to create snapshot", err)
		}
		break
	}
	if !inserted {
		existing, err := uow.SnapshotRepository().FindOne(ctx, specification.ByFilterHash{Hash: hash})
		if err != nil {
			return nil, serverutils.Internal("Failed to load existing snapshot", err)
		}
		data := dto.DuplicateSnapshotData{FilterHash: hash}
		if existing != nil {
			data.ExistingId = existing.Id
		}
		return nil, serverutils.Conflict("A snapshot with these filters already exists", data)
	}

	s.logger.Info("EXPORT", "Snapshot created", map[string]interface{}{
		"snapshot_id": snapshot.Id,
		"name":        name,
		"version":     snapshot.Version,
		"rows":        len(rows),
	})

	if uri := s.upload(ctx, snapshot, rows); uri != "" {
		if err := uow.SnapshotRepository().UpdateFields(ctx, snapshot.Id, map[string]interface{}{"storage_uri": uri}); err != nil {
			s.logger.Warn("EXPORT", "Failed to record snapshot location", map[string]interface{}{"snapshot_id": snapshot.Id, "error": err.Error()})
		} else {
			snapshot.StorageURI = uri
		}
	}

	return s.mapper.ToSnapshot(snapshot), nil
}

// upload stores the snapshot's JSONL. The snapshot stays valid without it.
func (s *exportService) upload(ctx context.Context, snapshot *model.FineTuneSnapshot, rows []*model.TrainingRow) string {
	data, _, err := BuildTrainingJSONL(rows)
	if err != nil {
		s.logger.Warn("EXPORT", "Failed to render snapshot JSONL", map[string]interface{}{"snapshot_id": snapshot.Id, "error": err.Error()})
		return ""
	}

	key := fmt.Sprintf("snapshots/%s/v%d-%s.jsonl", snapshot.Name, snapshot.Version, snapshot.FilterHash[:12])
	uri, err := s.store.Put(ctx, key, "application/jsonl", bytes.NewReader(data))
	if err != nil {
		if !errors.Is(err, objectstore.ErrDisabled) {
			s.logger.Warn("EXPORT", "Snapshot upload failed", map[string]interface{}{"snapshot_id": snapshot.Id, "error": err.Error()})
		}
		return ""
	}
	return uri
}

func (s *exportService) GetSnapshots(ctx context.Context) ([]*dto.SnapshotResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	items, err := uow.SnapshotRepository().FindAll(ctx, specification.OrderBy{Field: "created_at", Desc: true})
	if err != nil {
		return nil, serverutils.Internal("Failed to list snapshots", err)
	}
	return s.mapper.ToSnapshots(items), nil
}

func (s *exportService) ShowSnapshot(ctx context.Context, id uuid.UUID) (*dto.SnapshotResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	snapshot, err := uow.SnapshotRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, serverutils.Internal("Failed to load snapshot", err)
	}
	if snapshot == nil {
		return nil, serverutils.NotFound("Snapshot not found")
	}
	return s.mapper.ToSnapshot(snapshot), nil
}

// ExportCSV writes every matching row and returns how many were written.
func (s *exportService) ExportCSV(ctx context.Context, filter dto.ExportFilter, w io.Writer) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.TrainingRowRepository().FindAll(ctx,
		trainingFilter(filter.Normalize()),
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return 0, serverutils.Internal("Failed to load training rows", err)
	}
	if err := WriteTrainingCSV(w, rows); err != nil {
		return 0, serverutils.Internal("Failed to write CSV", err)
	}
	return len(rows), nil
}
