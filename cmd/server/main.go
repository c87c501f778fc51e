package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockadvisor/internal/app"
	"stockadvisor/internal/config"
	"stockadvisor/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	cfg := config.Load(logger)

	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warnf("invalid LOG_LEVEL %q, using debug", cfg.Server.LogLevel)
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	if a.Fetcher != nil && cfg.MarketData.RefreshInterval > 0 {
		a.Fetcher.Start(ctx, cfg.MarketData.RefreshInterval)
		logger.Infof("refreshing stored snapshots every %s", cfg.MarketData.RefreshInterval)
	}

	var history handlers.HistoryStore
	if a.Repo != nil {
		history = a.Repo
	}
	var cache handlers.Pinger
	if a.Cache != nil {
		cache = a.Cache
	}
	h := handlers.NewHandler(a.Analyzer, history, cache, logger)

	rg := gin.Default()
	rg.GET("/health", h.GetHealth)
	rg.GET("/usage", h.GetUsage)
	rg.GET("/analyses", h.GetAnalyses)
	rg.POST("/analyse", h.PostAnalyse)
	rg.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      rg,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("server starting on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	logger.Info("server stopped")
}
