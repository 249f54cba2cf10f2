package bootstrap

import (
	"context"
	"fmt"

	"therapy-chat-be/internal/config"
	"therapy-chat-be/internal/controller"
	"therapy-chat-be/internal/handler"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/mailer"
	"therapy-chat-be/internal/pkg/objectstore"
	"therapy-chat-be/internal/pkg/scheduler"
	"therapy-chat-be/internal/realtime"
	"therapy-chat-be/internal/repository/memory"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/internal/service"
	"therapy-chat-be/internal/websocket"
	"therapy-chat-be/pkg/finetune"
	"therapy-chat-be/pkg/llm/factory"
	pktNats "therapy-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	AuthController    controller.IAuthController
	SessionController controller.ISessionController
	ReviewController  controller.IReviewController
	ExportController  controller.IExportController
	TeamController    controller.ITeamController

	// WebSockets
	RealtimeHandler *handler.RealtimeHandler
	WebSocketHub    *websocket.Hub

	// Background work, started by cmd/rest
	Consumers           []service.IConsumerService
	NotificationService *service.NotificationService
	LockService         service.ILockService
	FineTuneService     service.IFineTuneService
	SummaryService      service.ISummaryService

	closers []func()
}

// Close releases the broker, cache and storage connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	rtLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogPath)

	c := &Container{Logger: sysLogger}
	c.closers = append(c.closers, func() { _ = sysLogger.Sync(); _ = rtLogger.Sync() })

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.SiteURL,
	)

	// 2. In-process job queue
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		OpenAIKey:     cfg.Ai.OpenAIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})

	// 3. Infrastructure. NATS and Redis are optional; without them the
	// realtime feed and presence stay in-process.
	var (
		broker   realtime.Broker         = realtime.NewMemoryBroker()
		presence websocket.PresenceStore = websocket.NewMemoryPresenceStore()
		events   service.EventPublisher
		rdb      *redis.Client
	)

	natsConn, err := pktNats.Connect(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS unavailable, using in-process realtime feed", map[string]interface{}{"error": err.Error()})
	} else {
		broker = realtime.NewNatsBroker(natsConn.NC())
		events = pktNats.NewPublisher(natsConn)
		c.closers = append(c.closers, natsConn.Close)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb = redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		sysLogger.Warn("BOOTSTRAP", "Redis unavailable, presence is per instance", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		rdb = nil
	} else {
		presence = websocket.NewRedisPresenceStore(rdb, 0)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	store, err := objectstore.New(ctx, cfg.Export.GCSBucket)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Object storage unavailable, snapshots stay in the database", map[string]interface{}{"error": err.Error()})
		store = objectstore.Nop{}
	}
	c.closers = append(c.closers, func() { _ = store.Close() })

	feed := realtime.NewFeed(broker, rtLogger)
	wsHub := websocket.NewHub(rdb, presence, rtLogger)
	previewCache := memory.NewPreviewCache(cfg.Export.PreviewCacheTTL)

	// 4. Services
	classifyQueue := service.NewPublisherService(service.TopicClassifyMessage, pubSub)
	inviteQueue := service.NewPublisherService(service.TopicInviteCreated, pubSub)

	authService := service.NewAuthService(uowFactory, cfg.App.JwtSecret, cfg.App.JwtTTL, sysLogger)
	sessionService := service.NewSessionService(uowFactory, llmProvider, feed, classifyQueue, cfg.Ai.HistoryWindow, sysLogger)
	summaryService := service.NewSummaryService(uowFactory, llmProvider, sysLogger)
	analyticsService := service.NewAnalyticsService(uowFactory)
	annotationService := service.NewAnnotationService(uowFactory, feed, previewCache, sysLogger)
	lockService := service.NewLockService(uowFactory, cfg.Export.LockTTL, sysLogger)
	exportService := service.NewExportService(uowFactory, lockService, previewCache, store, cfg.Export.PreviewLimit, sysLogger)
	fineTuneService := service.NewFineTuneService(
		uowFactory,
		finetune.NewClient(cfg.Ai.OpenAIKey, cfg.Ai.OpenAIBaseURL),
		events,
		scheduler.NewGroup(),
		service.FineTunePolicy{
			BaseModel:    cfg.FineTune.BaseModel,
			PollInterval: cfg.FineTune.PollInterval,
			MaxAttempts:  cfg.FineTune.MaxAttempts,
		},
		sysLogger,
	)
	teamService := service.NewTeamService(uowFactory, inviteQueue, events, sysLogger)

	c.Consumers = []service.IConsumerService{
		service.NewConsumerService(pubSub, service.TopicClassifyMessage, uowFactory, llmProvider, feed, sysLogger),
		service.NewInviteDispatcher(pubSub, service.TopicInviteCreated, uowFactory, emailService, events, sysLogger),
	}
	if natsConn != nil {
		c.NotificationService = service.NewNotificationService(pktNats.NewSubscriber(natsConn), wsHub, rtLogger)
	}

	// 5. Controllers
	c.AuthController = controller.NewAuthController(authService)
	c.SessionController = controller.NewSessionController(sessionService, summaryService)
	c.ReviewController = controller.NewReviewController(annotationService, analyticsService)
	c.ExportController = controller.NewExportController(exportService, fineTuneService, lockService)
	c.TeamController = controller.NewTeamController(teamService)

	c.RealtimeHandler = handler.NewRealtimeHandler(wsHub, feed, sessionService, authService, cfg.App.JwtSecret, rtLogger)
	c.WebSocketHub = wsHub
	c.LockService = lockService
	c.FineTuneService = fineTuneService
	c.SummaryService = summaryService

	return c, nil
}
