package mapper

import (
	"encoding/json"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
)

type ExportMapper struct{}

func NewExportMapper() *ExportMapper {
	return &ExportMapper{}
}

func (m *ExportMapper) ToTrainingRow(r *model.TrainingRow) *dto.TrainingRowResponse {
	if r == nil {
		return nil
	}
	return &dto.TrainingRowResponse{
		MessageId:      r.MessageId,
		SessionId:      r.SessionId,
		Role:           r.Role,
		Content:        r.Content,
		Emotion:        r.Emotion,
		Tone:           r.Tone,
		Intensity:      r.Intensity,
		Topic:          r.Topic,
		AlignmentScore: r.AlignmentScore,
		Corrected:      r.Corrected,
		CreatedAt:      r.CreatedAt,
	}
}

func (m *ExportMapper) ToTrainingRows(rows []*model.TrainingRow) []*dto.TrainingRowResponse {
	res := make([]*dto.TrainingRowResponse, 0, len(rows))
	for _, r := range rows {
		res = append(res, m.ToTrainingRow(r))
	}
	return res
}

func (m *ExportMapper) ToSnapshot(s *model.FineTuneSnapshot) *dto.SnapshotResponse {
	if s == nil {
		return nil
	}
	filters := json.RawMessage(s.Filters)
	if len(filters) == 0 {
		filters = json.RawMessage("{}")
	}
	return &dto.SnapshotResponse{
		Id:             s.Id,
		Name:           s.Name,
		Version:        s.Version,
		Filters:        filters,
		FilterHash:     s.FilterHash,
		RowCount:       s.RowCount,
		JobStatus:      s.JobStatus,
		JobId:          s.JobId,
		FineTunedModel: s.FineTunedModel,
		StorageURI:     s.StorageURI,
		RetryCount:     s.RetryCount,
		LastError:      s.LastError,
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (m *ExportMapper) ToSnapshots(items []*model.FineTuneSnapshot) []*dto.SnapshotResponse {
	res := make([]*dto.SnapshotResponse, 0, len(items))
	for _, s := range items {
		res = append(res, m.ToSnapshot(s))
	}
	return res
}

func (m *ExportMapper) ToLock(l *model.ExportLock) *dto.LockResponse {
	if l == nil {
		return nil
	}
	return &dto.LockResponse{
		Id:        l.Id,
		Scope:     l.Scope,
		LockedBy:  l.LockedBy,
		Reason:    l.Reason,
		ExpiresAt: l.ExpiresAt,
		CreatedAt: l.CreatedAt,
	}
}
