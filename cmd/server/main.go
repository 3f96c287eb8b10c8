package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockdash/internal/app"
	"stockdash/internal/config"
	httpapi "stockdash/internal/http"
	"stockdash/internal/scheduler"
	"stockdash/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to configure backend", zap.Error(err))
	}
	defer application.Close()

	loadCtx, cancel := context.WithTimeout(ctx, time.Minute)
	report, err := application.Service.Load(loadCtx)
	cancel()
	if err != nil {
		log.Error("initial load failed, serving until a reload succeeds", zap.Error(err))
	} else if len(report.Failed) > 0 {
		log.Warn("initial load incomplete", zap.Any("failed", report.Failed))
	}

	sched, err := scheduler.New(application.Service, scheduler.Options{
		ReportCron:  cfg.ReportCron,
		RefreshCron: cfg.RefreshCron,
		Timezone:    cfg.Timezone,
	}, log)
	if err != nil {
		log.Fatal("failed to configure scheduler", zap.Error(err))
	}
	sched.Start()

	handler := httpapi.NewHandler(application.Service, log)
	if application.Cache != nil {
		handler.WithCacheStats(application.CacheStats)
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("stockdash listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	sched.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			log.Error("force close failed", zap.Error(closeErr))
		}
	}
}
