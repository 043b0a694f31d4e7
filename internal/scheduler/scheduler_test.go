package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/milkwatch/internal/config"
	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/service/reconciliation"
)

type stubReconciler struct {
	opts   []reconciliation.RunOptions
	report models.RunReport
	err    error
}

func (s *stubReconciler) Run(_ context.Context, opts reconciliation.RunOptions) (models.RunReport, error) {
	s.opts = append(s.opts, opts)
	return s.report, s.err
}

type stubNotifier struct {
	reports []models.RunReport
}

func (s *stubNotifier) NotifyRunReport(_ context.Context, report models.RunReport) error {
	s.reports = append(s.reports, report)
	return nil
}

func testConfig() config.ReconciliationConfig {
	return config.ReconciliationConfig{CronSchedule: "0 2 * * *", Timezone: "UTC", MaxRecords: 500}
}

func TestRunReconciliation_NotifiesReport(t *testing.T) {
	rec := &stubReconciler{report: models.RunReport{RunID: "r1", State: models.RunFinished}}
	notifier := &stubNotifier{}
	s, err := NewScheduler(testConfig(), rec, notifier, nil)
	require.NoError(t, err)

	s.runReconciliation()

	require.Len(t, rec.opts, 1)
	assert.Equal(t, 500, rec.opts[0].Limit)
	require.Len(t, notifier.reports, 1)
	assert.Equal(t, "r1", notifier.reports[0].RunID)
}

func TestRunReconciliation_AbortedRunIsStillReported(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &stubReconciler{report: models.RunReport{State: models.RunAborted}, err: errors.New("store down")}
	notifier := &stubNotifier{}
	s, err := NewScheduler(testConfig(), rec, notifier, zap.New(core))
	require.NoError(t, err)

	s.runReconciliation()

	assert.Len(t, notifier.reports, 1)
	assert.Equal(t, 1, logs.FilterMessage("scheduled reconciliation failed").Len())
}

func TestRunReconciliation_SkipsWhenBusy(t *testing.T) {
	rec := &stubReconciler{err: reconciliation.ErrRunInProgress}
	notifier := &stubNotifier{}
	s, err := NewScheduler(testConfig(), rec, notifier, nil)
	require.NoError(t, err)

	s.runReconciliation()
	assert.Empty(t, notifier.reports)
}

func TestNewScheduler_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Nowhere/City"
	_, err := NewScheduler(cfg, &stubReconciler{}, nil, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.CronSchedule = "every day"
	s, err := NewScheduler(cfg, &stubReconciler{}, nil, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start())
}
