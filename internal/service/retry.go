package service

import (
	"time"

	"therapy-chat-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// newHandlerRetry is the backoff consumers apply to transient failures.
func newHandlerRetry(log logger.ILogger, module string) middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		OnRetryHook: func(retryNum int, delay time.Duration) {
			log.Warn(module, "Retrying message", map[string]interface{}{"retry": retryNum, "delay": delay.String()})
		},
	}
}

// handleWithRetry runs handle under retry and acks msg once it returns. A
// message still failing after the last retry is logged and dropped.
func handleWithRetry(msg *message.Message, retry middleware.Retry, log logger.ILogger, module string, handle func(*message.Message) error) {
	_, err := retry.Middleware(func(m *message.Message) ([]*message.Message, error) {
		return nil, handle(m)
	})(msg)
	if err != nil {
		log.Error(module, "Dropping message after retries", map[string]interface{}{"uuid": msg.UUID, "error": err.Error()})
	}
	msg.Ack()
}
