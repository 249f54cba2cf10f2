package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"therapy-chat-be/internal/bootstrap"
	"therapy-chat-be/internal/config"
	"therapy-chat-be/internal/server"
	"therapy-chat-be/internal/tracer"
	"therapy-chat-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration
	cfg := config.Load()
	if cfg.App.JwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// 2. Initialize database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap dependencies
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()
	sysLog := container.Logger

	shutdownTracer := tracer.InitTracer(ctx, cfg.Telemetry, sysLog)
	defer shutdownTracer(context.Background())

	srv := server.New(cfg, container)

	// 4. Background services
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})

	for _, consumer := range container.Consumers {
		if err := consumer.Consume(gctx); err != nil {
			log.Fatalf("Failed to start consumer: %v", err)
		}
	}

	if container.NotificationService != nil {
		if err := container.NotificationService.Start(gctx); err != nil {
			sysLog.Warn("MAIN", "Notification relay not started", map[string]interface{}{"error": err.Error()})
		} else {
			defer container.NotificationService.Stop()
		}
	}

	if _, err := container.LockService.StartSweeper(gctx, cfg.Export.SweepInterval); err != nil {
		log.Fatalf("Failed to start lock sweeper: %v", err)
	}

	resumed, err := container.FineTuneService.ResumePolling(gctx)
	if err != nil {
		sysLog.Warn("MAIN", "Failed to resume fine-tune pollers", map[string]interface{}{"error": err.Error()})
	} else if resumed > 0 {
		sysLog.Info("MAIN", "Resumed fine-tune pollers", map[string]interface{}{"count": resumed})
	}
	defer container.FineTuneService.Shutdown()

	// 5. HTTP server
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sysLog.Error("MAIN", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
	sysLog.Info("MAIN", "Shutdown complete", nil)
}
