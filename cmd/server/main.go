package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medchat/internal/config"
	"medchat/internal/logging"
	"medchat/internal/server"
)

func main() {
	boot := logging.MustNew("info", false)
	cfg := config.LoadServer(boot)

	logger := logging.MustNew(cfg.LogLevel, false)
	defer func() { _ = logger.Sync() }()

	logger.Info("chat backend starting",
		zap.String("port", cfg.ServerPort),
		zap.String("jwt_secret_prefix", previewSecret(cfg.JWTSecret)))

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(context.Background(), cfg, logger, server.WithRequestLog())
	if err != nil {
		logger.Fatal("server setup failed", zap.Error(err))
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exiting")
}

func previewSecret(secret string) string {
	if len(secret) >= 5 {
		return secret[:5] + "..."
	}
	return "..."
}
