package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kinderlink/child-profile/internal/clients"
	"kinderlink/child-profile/internal/config"
	internalhttp "kinderlink/child-profile/internal/http"
	"kinderlink/child-profile/internal/linking"
	"kinderlink/child-profile/internal/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codes, err := linking.New(cfg.JWTSecret, cfg.LinkingCodeTTL)
	if err != nil {
		logger.Fatal("linking codec init failed", zap.Error(err))
	}

	db := clients.NewDBInteract(cfg.DBInteractURL, cfg.DBInteractTimeout, logger)
	server := internalhttp.NewServer(cfg, db, codes, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("child-profile http listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("db_interact_url", cfg.DBInteractURL))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
