package service

import (
	"context"
	"encoding/json"
	"strings"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/realtime"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/llm"

	"github.com/google/uuid"
)

const assistantSystemPrompt = `You are a supportive, non-judgemental therapy assistant.
Listen carefully, reflect the user's feelings back in plain language and ask one gentle follow-up question at a time.
Do not diagnose or prescribe. If the user mentions self-harm or danger, encourage them to contact local emergency services or a crisis line.
Keep replies under 150 words.`

type ISessionService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetAll(ctx context.Context, caller serverutils.Identity) ([]*dto.SessionResponse, error)
	Latest(ctx context.Context, userId uuid.UUID) (*dto.SessionResponse, error)
	Show(ctx context.Context, caller serverutils.Identity, id uuid.UUID) (*dto.SessionDetailResponse, error)
	Share(ctx context.Context, userId uuid.UUID, id uuid.UUID, req *dto.ShareSessionRequest) (*dto.SessionResponse, error)
	SendMessage(ctx context.Context, caller serverutils.Identity, id uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	// Authorize answers 404 or 403 like Show, without loading messages.
	Authorize(ctx context.Context, caller serverutils.Identity, id uuid.UUID) error
}

type sessionService struct {
	uowFactory    unitofwork.RepositoryFactory
	llmProvider   llm.LLMProvider
	feed          realtime.Publisher
	classifyQueue IPublisherService
	historyWindow int
	mapper        *mapper.ChatMapper
	logger        logger.ILogger
}

func NewSessionService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	feed realtime.Publisher,
	classifyQueue IPublisherService,
	historyWindow int,
	log logger.ILogger,
) ISessionService {
	if historyWindow <= 0 {
		historyWindow = 12
	}
	return &sessionService{
		uowFactory:    uowFactory,
		llmProvider:   llmProvider,
		feed:          feed,
		classifyQueue: classifyQueue,
		historyWindow: historyWindow,
		mapper:        mapper.NewChatMapper(),
		logger:        log,
	}
}

// loadReadableSession returns 404 for a missing session and 403 when the
// caller may not read it.
func loadReadableSession(ctx context.Context, uow unitofwork.UnitOfWork, caller serverutils.Identity, id uuid.UUID) (*model.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, serverutils.Internal("Failed to load session", err)
	}
	if session == nil {
		return nil, serverutils.NotFound("Session not found")
	}
	if !session.CanRead(caller.UserID, caller.Role) {
		return nil, serverutils.Forbidden("You do not have access to this session")
	}
	return session, nil
}

// publishRowChange never fails the caller; listeners can reload on ready.
func publishRowChange(ctx context.Context, feed realtime.Publisher, log logger.ILogger, table, op string, sessionId, rowId uuid.UUID, row interface{}) {
	if feed == nil {
		return
	}
	change, err := realtime.NewRowChange(table, op, sessionId, rowId, row)
	if err == nil {
		err = feed.Publish(ctx, change)
	}
	if err != nil {
		log.Warn("REALTIME", "Failed to publish row change", map[string]interface{}{
			"table":      table,
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}

func (s *sessionService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session := &model.ChatSession{
		Id:     uuid.New(),
		UserId: userId,
		Title:  strings.TrimSpace(req.Title),
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, serverutils.Internal("Failed to create session", err)
	}
	return s.mapper.ToSession(session), nil
}

func (s *sessionService) GetAll(ctx context.Context, caller serverutils.Identity) ([]*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{specification.OrderBy{Field: "created_at", Desc: true}}
	if caller.Role != model.RoleTherapist && caller.Role != model.RoleAdmin {
		specs = append(specs, specification.AccessibleBy{UserID: caller.UserID})
	}

	sessions, err := uow.ChatSessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, serverutils.Internal("Failed to list sessions", err)
	}
	return s.mapper.ToSessions(sessions), nil
}

// Latest returns the caller's newest session, creating the first one on a
// user's first visit.
func (s *sessionService) Latest(ctx context.Context, userId uuid.UUID) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, serverutils.Internal("Failed to load session", err)
	}
	if session != nil {
		return s.mapper.ToSession(session), nil
	}

	return s.Create(ctx, userId, &dto.CreateSessionRequest{})
}

func (s *sessionService) Show(ctx context.Context, caller serverutils.Identity, id uuid.UUID) (*dto.SessionDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := loadReadableSession(ctx, uow, caller, id)
	if err != nil {
		return nil, err
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, serverutils.Internal("Failed to load messages", err)
	}

	return &dto.SessionDetailResponse{
		SessionResponse: *s.mapper.ToSession(session),
		Messages:        s.mapper.ToMessages(messages),
	}, nil
}

func (s *sessionService) Authorize(ctx context.Context, caller serverutils.Identity, id uuid.UUID) error {
	_, err := loadReadableSession(ctx, s.uowFactory.NewUnitOfWork(ctx), caller, id)
	return err
}

func (s *sessionService) Share(ctx context.Context, userId uuid.UUID, id uuid.UUID, req *dto.ShareSessionRequest) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, serverutils.Internal("Failed to load session", err)
	}
	if session == nil {
		return nil, serverutils.NotFound("Session not found")
	}
	if session.UserId != userId {
		return nil, serverutils.Forbidden("Only the owner can share a session")
	}

	for _, uid := range req.UserIds {
		if uid == userId || session.IsSharedWith(uid) {
			continue
		}
		session.SharedWith = append(session.SharedWith, uid.String())
	}

	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return nil, serverutils.Internal("Failed to share session", err)
	}
	return s.mapper.ToSession(session), nil
}

// SendMessage stores the user's message and the assistant's reply. A failed
// reply does not roll back the user's message: the response then carries
// only the user message.
func (s *sessionService) SendMessage(ctx context.Context, caller serverutils.Identity, id uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := loadReadableSession(ctx, uow, caller, id); err != nil {
		return nil, err
	}

	userMsg := &model.Message{
		Id:        uuid.New(),
		SessionId: id,
		Role:      model.MessageRoleUser,
		Content:   strings.TrimSpace(req.Content),
	}
	if userMsg.Content == "" {
		return nil, serverutils.BadRequest("Message content is required")
	}
	if err := uow.MessageRepository().Create(ctx, userMsg); err != nil {
		return nil, serverutils.Internal("Failed to save message", err)
	}

	userRes := s.mapper.ToMessage(userMsg)
	userRes.ClientId = req.ClientId
	publishRowChange(ctx, s.feed, s.logger, realtime.TableMessages, realtime.OpInsert, id, userMsg.Id, userRes)
	s.enqueueClassification(ctx, userMsg)

	res := &dto.SendMessageResponse{UserMessage: userRes}

	reply, err := s.reply(ctx, uow, id)
	if err != nil {
		s.logger.Error("SESSION", "Assistant reply failed", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
		return res, nil
	}

	assistantMsg := &model.Message{
		Id:        uuid.New(),
		SessionId: id,
		Role:      model.MessageRoleAssistant,
		Content:   reply,
	}
	if err := uow.MessageRepository().Create(ctx, assistantMsg); err != nil {
		return nil, serverutils.Internal("Failed to save reply", err)
	}

	res.AssistantMessage = s.mapper.ToMessage(assistantMsg)
	publishRowChange(ctx, s.feed, s.logger, realtime.TableMessages, realtime.OpInsert, id, assistantMsg.Id, res.AssistantMessage)
	return res, nil
}

func (s *sessionService) reply(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) (string, error) {
	recent, err := uow.MessageRepository().FindRecent(ctx, sessionId, s.historyWindow)
	if err != nil {
		return "", err
	}

	history := make([]llm.Message, 0, len(recent)+1)
	history = append(history, llm.Message{Role: llm.RoleSystem, Content: assistantSystemPrompt})
	for _, m := range recent {
		role := llm.RoleUser
		if m.Role == model.MessageRoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	out, err := s.llmProvider.Chat(ctx, history, llm.WithTemperature(0.6))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", llm.ErrEmptyResponse
	}
	return out, nil
}

func (s *sessionService) enqueueClassification(ctx context.Context, msg *model.Message) {
	if s.classifyQueue == nil {
		return
	}
	payload, err := json.Marshal(dto.ClassifyMessageJob{MessageId: msg.Id, SessionId: msg.SessionId})
	if err == nil {
		err = s.classifyQueue.Publish(ctx, payload)
	}
	if err != nil {
		s.logger.Warn("SESSION", "Failed to enqueue classification", map[string]interface{}{
			"message_id": msg.Id,
			"error":      err.Error(),
		})
	}
}
