package sheets

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
)

var _ repository.AuditSink = (*AuditSink)(nil)

// AuditSink appends reconciliation audit rows to a spreadsheet range. Each run
// starts with a marker row carrying its start time, followed by the header.
type AuditSink struct {
	repo       Repository
	sheetRange string
	logger     *zap.Logger
}

// NewAuditSink returns a sink writing into sheetRange through repo.
func NewAuditSink(repo Repository, sheetRange string, logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditSink{repo: repo, sheetRange: sheetRange, logger: logger}
}

// Open writes the run marker and header rows.
func (s *AuditSink) Open(ctx context.Context, startedAt time.Time) (repository.AuditLog, error) {
	if err := s.repo.WriteRow(ctx, s.sheetRange, []interface{}{"run_started_at", startedAt.Format(time.RFC3339)}); err != nil {
		return nil, err
	}
	if err := s.repo.WriteRow(ctx, s.sheetRange, toCells(models.AuditHeader)); err != nil {
		return nil, err
	}
	s.logger.Info("audit sheet opened", zap.String("range", s.sheetRange))
	return &sheetLog{sink: s}, nil
}

type sheetLog struct {
	sink *AuditSink
}

func (l *sheetLog) Append(ctx context.Context, row models.AuditRow) error {
	return l.sink.repo.WriteRow(ctx, l.sink.sheetRange, toCells(row.Values()))
}

func (l *sheetLog) Close() error {
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
