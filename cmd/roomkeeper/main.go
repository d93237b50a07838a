package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomkeeper/internal/analytics"
	"roomkeeper/internal/audit"
	"roomkeeper/internal/bot"
	"roomkeeper/internal/config"
	"roomkeeper/internal/rooms"
	"roomkeeper/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel, cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	events, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("event store init failed", zap.Error(err))
	}
	defer events.Close()
	if err := events.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ownership, err := rooms.Open(cfg.StorePath)
	if err != nil {
		logger.Fatal("ownership store init failed", zap.Error(err))
	}

	auditLogger := audit.NewLogger(events, logger)
	analyticsService := analytics.New(events)

	botSvc, err := bot.New(cfg, logger, ownership, events, auditLogger, analyticsService)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
