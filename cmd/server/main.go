package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/app"
	"github.com/mamadbah2/milkwatch/internal/config"
	"github.com/mamadbah2/milkwatch/internal/scheduler"
	"github.com/mamadbah2/milkwatch/internal/server/handlers"
	"github.com/mamadbah2/milkwatch/internal/server/router"
	herdsvc "github.com/mamadbah2/milkwatch/internal/service/herd"
	ingestsvc "github.com/mamadbah2/milkwatch/internal/service/ingest"
	"github.com/mamadbah2/milkwatch/internal/service/milkyield"
	"github.com/mamadbah2/milkwatch/internal/service/reconciliation"
	"github.com/mamadbah2/milkwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.Debug))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := app.OpenStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init event store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close event store", zap.Error(err))
		}
	}()

	auditSink, err := app.OpenAuditSink(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init audit sink", zap.Error(err))
	}

	notifier := app.NewNotifier(cfg, baseLogger)
	reconcileSvc := reconciliation.NewService(store, auditSink, cfg.Reconciliation.PageSize, baseLogger.Named("svc.reconciliation"))
	ingestSvc := ingestsvc.NewService(store, baseLogger.Named("svc.ingest"))
	herdSvc := herdsvc.NewService(store, baseLogger.Named("svc.herd"))
	materializer := milkyield.NewMaterializer(store, time.Now, baseLogger.Named("svc.milkyield"))

	eventHandler := handlers.NewEventHandler(ingestSvc, materializer, notifier, baseLogger.Named("handlers.events"))
	herdHandler := handlers.NewHerdHandler(herdSvc, reconcileSvc, baseLogger.Named("handlers.herd"))
	engine := router.New(eventHandler, herdHandler, cfg.Server.Debug, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Reconciliation, reconcileSvc, notifier, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
