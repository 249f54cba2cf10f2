package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/llm"

	"github.com/google/uuid"
)

// SummaryWindow is how many recent messages a summary is built from.
const SummaryWindow = 20

const summaryPrompt = `Summarize the therapy conversation below for the user's own records.
Answer with a single JSON object and nothing else: {"title": string, "summary": string}
"title" is at most 8 words. "summary" is 2 to 5 sentences covering the main concerns, feelings and any next steps.

Conversation:
%s`

type ISummaryService interface {
	Summarize(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) (*dto.SummarizeResponse, error)
	SaveSummary(ctx context.Context, caller serverutils.Identity, req *dto.SaveSummaryRequest) error
}

type summaryService struct {
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewSummaryService(uowFactory unitofwork.RepositoryFactory, llmProvider llm.LLMProvider, log logger.ILogger) ISummaryService {
	return &summaryService{
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		logger:      log,
	}
}

func (s *summaryService) Summarize(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) (*dto.SummarizeResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := loadReadableSession(ctx, uow, caller, sessionId); err != nil {
		return nil, err
	}

	messages, err := uow.MessageRepository().FindRecent(ctx, sessionId, SummaryWindow)
	if err != nil {
		return nil, serverutils.Internal("Failed to load messages", err)
	}
	if len(messages) == 0 {
		return nil, serverutils.BadRequest("Session has no messages to summarize")
	}

	raw, err := s.llmProvider.Generate(ctx, fmt.Sprintf(summaryPrompt, transcript(messages)), llm.WithJSON(), llm.WithTemperature(0.3))
	if err != nil {
		return nil, serverutils.Internal("Failed to summarize session", err)
	}

	res, err := parseSummary(raw)
	if err != nil {
		return nil, serverutils.Internal("Failed to summarize session", err)
	}

	if _, err := uow.ChatSessionRepository().SaveSummary(ctx, sessionId, res.Summary, res.Title); err != nil {
		return nil, serverutils.Internal("Failed to save summary", err)
	}

	s.logger.Info("SUMMARY", "Session summarized", map[string]interface{}{"session_id": sessionId, "messages": len(messages)})
	return res, nil
}

func (s *summaryService) SaveSummary(ctx context.Context, caller serverutils.Identity, req *dto.SaveSummaryRequest) error {
	sessionId, err := uuid.Parse(req.SessionId)
	if err != nil {
		return serverutils.BadRequest("Invalid session_id")
	}
	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return serverutils.BadRequest("Summary is required")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := loadReadableSession(ctx, uow, caller, sessionId); err != nil {
		return err
	}

	updated, err := uow.ChatSessionRepository().SaveSummary(ctx, sessionId, summary, "")
	if err != nil {
		return serverutils.Internal("Failed to save summary", err)
	}
	if !updated {
		return serverutils.NotFound("Session not found")
	}
	return nil
}

func transcript(messages []*model.Message) string {
	var b strings.Builder
	for _, m := range messages {
		speaker := "User"
		if m.Role == model.MessageRoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}
	return b.String()
}

func parseSummary(raw string) (*dto.SummarizeResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var res dto.SummarizeResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	res.Title = strings.TrimSpace(res.Title)
	res.Summary = strings.TrimSpace(res.Summary)
	if res.Summary == "" {
		return nil, llm.ErrEmptyResponse
	}
	return &res, nil
}
