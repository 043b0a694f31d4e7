package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/config"
	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/service/reconciliation"
)

const runTimeout = 30 * time.Minute

// Reconciler runs one reconciliation.
type Reconciler interface {
	Run(ctx context.Context, opts reconciliation.RunOptions) (models.RunReport, error)
}

// ReportNotifier publishes the outcome of a run.
type ReportNotifier interface {
	NotifyRunReport(ctx context.Context, report models.RunReport) error
}

// Scheduler triggers periodic reconciliation runs.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	notifier   ReportNotifier
	cfg        config.ReconciliationConfig
	logger     *zap.Logger
}

// NewScheduler creates a new scheduler instance in the configured timezone.
func NewScheduler(cfg config.ReconciliationConfig, reconciler Reconciler, notifier ReportNotifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(location)),
		reconciler: reconciler,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Start registers the reconciliation job and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runReconciliation); err != nil {
		return fmt.Errorf("schedule reconciliation %q: %w", s.cfg.CronSchedule, err)
	}

	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runReconciliation() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	report, err := s.reconciler.Run(ctx, reconciliation.RunOptions{Limit: s.cfg.MaxRecords})
	if errors.Is(err, reconciliation.ErrRunInProgress) {
		s.logger.Warn("skipping scheduled reconciliation, a run is in progress")
		return
	}
	if err != nil {
		s.logger.Error("scheduled reconciliation failed", zap.Error(err))
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRunReport(ctx, report); err != nil {
		s.logger.Error("failed to send reconciliation report", zap.Error(err))
	} else {
		s.logger.Info("reconciliation report sent", zap.String("run_id", report.RunID))
	}
}
