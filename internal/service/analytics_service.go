package service

import (
	"context"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/analytics"

	"github.com/google/uuid"
)

type IAnalyticsService interface {
	Score(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) (*dto.SessionScoreResponse, error)
	Severity(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) (*dto.SessionSeverityResponse, error)
}

type analyticsService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewAnalyticsService(uowFactory unitofwork.RepositoryFactory) IAnalyticsService {
	return &analyticsService{uowFactory: uowFactory}
}

func (s *analyticsService) Score(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) (*dto.SessionScoreResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := loadReadableSession(ctx, uow, caller, sessionId); err != nil {
		return nil, err
	}

	logs, err := uow.EmotionLogRepository().FindAll(ctx, specification.BySessionID{SessionID: sessionId})
	if err != nil {
		return nil, serverutils.Internal("Failed to load emotion logs", err)
	}

	rows := make([]analytics.ScoreRow, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, analytics.ScoreRow{AlignmentScore: l.AlignmentScore, Tone: l.Tone})
	}

	return &dto.SessionScoreResponse{
		SessionId:    sessionId,
		SessionScore: analytics.ScoreSession(rows),
	}, nil
}

func (s *analyticsService) Severity(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) (*dto.SessionSeverityResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := loadReadableSession(ctx, uow, caller, sessionId); err != nil {
		return nil, err
	}

	logs, err := uow.EmotionLogRepository().FindAll(ctx, specification.BySessionID{SessionID: sessionId})
	if err != nil {
		return nil, serverutils.Internal("Failed to load emotion logs", err)
	}

	var counts analytics.SeverityCounts
	for _, l := range logs {
		counts.Add(l.Intensity)
	}

	return &dto.SessionSeverityResponse{
		SessionId:         sessionId,
		SeverityBreakdown: analytics.Breakdown(counts),
	}, nil
}
