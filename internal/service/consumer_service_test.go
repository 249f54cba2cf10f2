package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMessage(t *testing.T) {
	valid := `{"emotion": "Anxiety", "tone": "anxious", "intensity": 0.8, "topic": "exams", "alignment_score": 0.6}`
	down := llmAnswer{err: errors.New("provider down")}

	tests := []struct {
		name      string
		answers   []llmAnswer
		findErrs  []error
		missing   bool
		wantLogs  int
		wantCalls int
	}{
		{name: "classified", answers: []llmAnswer{{text: valid}}, wantLogs: 1, wantCalls: 1},
		{name: "provider failure is retried", answers: []llmAnswer{down, {text: valid}}, wantLogs: 1, wantCalls: 2},
		{name: "load failure is retried", answers: []llmAnswer{{text: valid}}, findErrs: []error{errors.New("conn reset")}, wantLogs: 1, wantCalls: 1},
		{name: "unparseable answer is dropped", answers: []llmAnswer{{text: "no idea"}}, wantLogs: 0, wantCalls: 1},
		{name: "missing message is dropped", answers: []llmAnswer{{text: valid}}, missing: true, wantLogs: 0, wantCalls: 0},
		{name: "persistent failure is dropped", answers: []llmAnswer{down}, wantLogs: 0, wantCalls: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &model.Message{Id: uuid.New(), SessionId: uuid.New(), Role: model.MessageRoleUser, Content: "exams tomorrow"}
			messages := &fakeMessageRepo{findErrs: tt.findErrs}
			if !tt.missing {
				messages.items = []*model.Message{source}
			}
			emotions := &fakeEmotionRepo{}
			provider := &fakeLLM{answers: tt.answers}
			uow := &fakeUoW{messages: messages, emotions: emotions}

			cs := NewConsumerService(nil, "classify", uow, provider, nil, logger.NewNop()).(*consumerService)
			cs.retry.InitialInterval = time.Millisecond
			cs.retry.MaxInterval = time.Millisecond

			msg := jobMessage(t, dto.ClassifyMessageJob{MessageId: source.Id, SessionId: source.SessionId})
			cs.processMessage(context.Background(), msg)

			assertAcked(t, msg)
			assert.Equal(t, tt.wantCalls, provider.callCount())
			require.Len(t, emotions.logs, tt.wantLogs)
			if tt.wantLogs == 0 {
				return
			}

			entry := emotions.logs[0]
			assert.Equal(t, source.Id, entry.MessageId)
			assert.Equal(t, source.SessionId, entry.SessionId)
			assert.Equal(t, "anxiety", entry.Emotion)
			assert.Equal(t, 0.8, entry.Intensity)
			assert.Equal(t, model.EmotionSourceAI, entry.Source)
			require.NotNil(t, entry.AlignmentScore)
			assert.Equal(t, 0.6, *entry.AlignmentScore)
		})
	}
}
