package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/realtime"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

const classifyPrompt = `Classify the emotional content of the message below.
Answer with a single JSON object and nothing else, using exactly these keys:
{"emotion": string, "tone": string, "intensity": number between 0 and 1, "topic": string, "alignment_score": number between 0 and 1}
"emotion" is one lowercase word such as joy, sadness, anger, fear, anxiety, shame, hope or neutral.
"tone" is one lowercase word such as calm, anxious, hopeful, hostile, supportive or neutral.
"alignment_score" says how well the conversation is helping the user (1 = very well).

Message:
%s`

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type classification struct {
	Emotion        string   `json:"emotion"`
	Tone           string   `json:"tone"`
	Intensity      float64  `json:"intensity"`
	Topic          string   `json:"topic"`
	AlignmentScore *float64 `json:"alignment_score"`
}

type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	feed        realtime.Publisher
	retry       middleware.Retry
	mapper      *mapper.EmotionMapper
	logger      logger.ILogger
}

// NewConsumerService classifies user messages published on topicName and
// stores one ai emotion log per message. Repository and model failures are
// retried with backoff, then the message is dropped.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	feed realtime.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		feed:        feed,
		retry:       newHandlerRetry(log, "CLASSIFIER"),
		mapper:      mapper.NewEmotionMapper(),
		logger:      log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	handleWithRetry(msg, cs.retry, cs.logger, "CLASSIFIER", func(m *message.Message) error {
		return cs.classify(ctx, m)
	})
}

// classify returns an error only for failures worth retrying. Invalid
// payloads, missing messages and unparseable output are logged and dropped.
func (cs *consumerService) classify(ctx context.Context, msg *message.Message) error {
	var payload dto.ClassifyMessageJob
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.MessageId == uuid.Nil {
		cs.logger.Warn("CLASSIFIER", "Dropping invalid classify payload", map[string]interface{}{"uuid": msg.UUID})
		return nil
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	source, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: payload.MessageId})
	if err != nil {
		cs.logger.Error("CLASSIFIER", "Failed to load message", map[string]interface{}{"message_id": payload.MessageId, "error": err.Error()})
		return err
	}
	if source == nil {
		return nil
	}

	raw, err := cs.llmProvider.Generate(ctx, fmt.Sprintf(classifyPrompt, source.Content), llm.WithJSON(), llm.WithTemperature(0))
	if err != nil {
		cs.logger.Error("CLASSIFIER", "Classification request failed", map[string]interface{}{"message_id": source.Id, "error": err.Error()})
		return err
	}

	result, err := parseClassification(raw)
	if err != nil {
		cs.logger.Warn("CLASSIFIER", "Unparseable classification", map[string]interface{}{"message_id": source.Id, "error": err.Error()})
		return nil
	}

	entry := &model.EmotionLog{
		Id:             uuid.New(),
		SessionId:      source.SessionId,
		MessageId:      source.Id,
		Emotion:        result.Emotion,
		Tone:           result.Tone,
		Intensity:      result.Intensity,
		Topic:          result.Topic,
		AlignmentScore: result.AlignmentScore,
		Source:         model.EmotionSourceAI,
	}
	if err := uow.EmotionLogRepository().Create(ctx, entry); err != nil {
		cs.logger.Error("CLASSIFIER", "Failed to store emotion log", map[string]interface{}{"message_id": source.Id, "error": err.Error()})
		return err
	}

	publishRowChange(ctx, cs.feed, cs.logger, realtime.TableEmotionLogs, realtime.OpInsert, entry.SessionId, entry.Id, cs.mapper.ToEmotionLog(entry))
	cs.logger.Debug("CLASSIFIER", "Message classified", map[string]interface{}{"message_id": source.Id, "emotion": entry.Emotion})
	return nil
}

// parseClassification accepts the model's JSON object, tolerating prose or
// code fences around it, and clamps numeric fields to [0,1].
func parseClassification(raw string) (*classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var c classification
	if err := json.Unmarshal([]byte(raw[start:end+1]), &c); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}

	c.Emotion = strings.ToLower(strings.TrimSpace(c.Emotion))
	if c.Emotion == "" {
		return nil, fmt.Errorf("classification has no emotion")
	}
	c.Emotion = truncate(c.Emotion, 50)
	c.Tone = truncate(strings.ToLower(strings.TrimSpace(c.Tone)), 50)
	c.Topic = truncate(strings.TrimSpace(c.Topic), 100)
	c.Intensity = clamp01(c.Intensity)
	if c.AlignmentScore != nil {
		v := clamp01(*c.AlignmentScore)
		c.AlignmentScore = &v
	}
	return &c, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
