// Package csvlog writes reconciliation audit logs as CSV files, one file per run.
package csvlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
)

const fileNameLayout = "lactation_log_2006_01_02_15_04_05.csv"

var _ repository.AuditSink = (*Sink)(nil)

// FileName returns the audit file name of a run started at the given time.
func FileName(startedAt time.Time) string {
	return startedAt.Format(fileNameLayout)
}

// Sink creates audit files in a directory.
type Sink struct {
	dir    string
	logger *zap.Logger
}

// NewSink returns a sink writing into dir, created on first use.
func NewSink(dir string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{dir: dir, logger: logger}
}

// Open creates the run's audit file and writes the header row. An existing
// file with the same name is never truncated.
func (s *Sink) Open(_ context.Context, startedAt time.Time) (repository.AuditLog, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	path := filepath.Join(s.dir, FileName(startedAt))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create audit file: %w", err)
	}

	log := &Log{file: f, out: f, path: path}
	if err := log.write(models.AuditHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write audit header: %w", err)
	}

	s.logger.Info("audit log opened", zap.String("path", path))
	return log, nil
}

// Log is an open audit file. Every row is written to the file on its own,
// so a failed row leaves the log usable for the rows after it.
type Log struct {
	file io.Closer
	out  io.Writer
	path string
}

// Path returns the location of the audit file.
func (l *Log) Path() string {
	return l.path
}

// Append writes one audit row.
func (l *Log) Append(_ context.Context, row models.AuditRow) error {
	return l.write(row.Values())
}

// Close closes the file.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Log) write(record []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := l.out.Write(buf.Bytes())
	return err
}
