// Package reconciliation assigns lactations to unassigned milking events in
// bounded pages and records an audit trail of every processed record.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
	"github.com/mamadbah2/milkwatch/internal/service/lactation"
)

// DefaultPageSize bounds how many milking events are held in memory at once.
const DefaultPageSize = 100

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// Store is the event store surface used by a run.
type Store interface {
	CountUnassignedMilkings(ctx context.Context) (int, error)
	FindUnassignedMilkings(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error)
	FindAnimalEvents(ctx context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error)
	CommitAssignments(ctx context.Context, assignments []models.LactationAssignment) error
	SaveRunReport(ctx context.Context, report models.RunReport) error
}

// RunOptions controls a single run.
type RunOptions struct {
	// Limit caps the number of records processed. Zero or less means all
	// outstanding candidates.
	Limit int
}

// Service runs lactation reconciliations. Only one run executes at a time.
type Service struct {
	store    Store
	audit    repository.AuditSink
	pageSize int
	logger   *zap.Logger
	now      func() time.Time

	running sync.Mutex
}

// NewService builds a reconciliation service. A non-positive page size falls
// back to DefaultPageSize.
func NewService(store Store, audit repository.AuditSink, pageSize int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if audit == nil {
		audit = discardSink{}
	}
	return &Service{
		store:    store,
		audit:    audit,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
	}
}

// pageResult holds the staged work of one page until it is committed.
type pageResult struct {
	assignments []models.LactationAssignment
	rows        []models.AuditRow
	notFound    int
	failed      int
}

// Run processes unassigned milking events, most recent first, until the
// effective limit is reached. On a store failure the run stops and the
// returned report covers the pages committed so far.
func (s *Service) Run(ctx context.Context, opts RunOptions) (models.RunReport, error) {
	if !s.running.TryLock() {
		return models.RunReport{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	report := models.RunReport{
		RunID:     uuid.NewString(),
		State:     models.RunInitializing,
		StartedAt: s.now(),
	}
	log := s.logger.With(zap.String("run_id", report.RunID))

	total, err := s.store.CountUnassignedMilkings(ctx)
	if err != nil {
		return s.abort(ctx, log, report, fmt.Errorf("count unassigned milking events: %w", err))
	}
	report.Candidates = total
	report.Limit = total
	if opts.Limit > 0 && opts.Limit < total {
		report.Limit = opts.Limit
	}

	auditLog, err := s.audit.Open(ctx, report.StartedAt)
	if err != nil {
		return s.abort(ctx, log, report, fmt.Errorf("open audit log: %w", err))
	}
	defer func() {
		if cerr := auditLog.Close(); cerr != nil {
			log.Warn("failed to close audit log", zap.Error(cerr))
		}
	}()

	log.Info("reconciliation started",
		zap.Int("candidates", report.Candidates),
		zap.Int("limit", report.Limit),
		zap.Int("page_size", s.pageSize),
	)
	report.State = models.RunPaging

	offset := 0
	for report.Processed < report.Limit {
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, log, report, err)
		}

		size := min(s.pageSize, report.Limit-report.Processed)
		page, err := s.store.FindUnassignedMilkings(ctx, offset, size)
		if err != nil {
			return s.abort(ctx, log, report, fmt.Errorf("fetch page at offset %d: %w", offset, err))
		}
		if len(page) == 0 {
			log.Warn("candidate set exhausted before limit", zap.Int("processed", report.Processed))
			break
		}

		result, err := s.matchPage(ctx, log, page)
		if err != nil {
			return s.abort(ctx, log, report, err)
		}
		if err := s.store.CommitAssignments(ctx, result.assignments); err != nil {
			return s.abort(ctx, log, report, fmt.Errorf("commit page at offset %d: %w", offset, err))
		}

		writeFailed := s.emit(ctx, log, auditLog, result.rows)

		report.Pages++
		report.Processed += len(page)
		report.Assigned += len(result.assignments)
		report.NotFound += result.notFound
		report.Failed += result.failed
		report.WriteFailed += writeFailed

		// Committed records leave the candidate set; only the rest shift the offset.
		offset += len(page) - len(result.assignments)

		log.Info("page committed",
			zap.Int("page", report.Pages),
			zap.Int("records", len(page)),
			zap.Int("assigned", len(result.assignments)),
			zap.Int("processed", report.Processed),
		)
	}

	report.State = models.RunFinished
	report.FinishedAt = s.now()
	s.saveReport(ctx, log, report)

	log.Info("reconciliation finished",
		zap.Int("processed", report.Processed),
		zap.Int("assigned", report.Assigned),
		zap.Int("not_found", report.NotFound),
		zap.Int("failed", report.Failed),
		zap.Int("write_failed", report.WriteFailed),
	)
	return report, nil
}

// matchPage stages an assignment and an audit row for every record of the
// page. Calving events are cached per animal for the page only.
func (s *Service) matchPage(ctx context.Context, log *zap.Logger, page []models.AnimalEvent) (pageResult, error) {
	var result pageResult
	calvings := make(map[int64][]models.AnimalEvent)

	for _, milking := range page {
		if !milking.IsMilking() || milking.Assigned() {
			log.Warn("skipping invalid candidate",
				zap.Int64("milking_event_id", milking.ID),
				zap.String("kind", string(milking.Kind)),
			)
			result.failed++
			result.rows = append(result.rows, models.AuditRow{MilkingEventID: milking.ID})
			continue
		}

		candidates, ok := calvings[milking.AnimalID]
		if !ok {
			var err error
			candidates, err = s.store.FindAnimalEvents(ctx, milking.AnimalID, models.EventCalving)
			if err != nil {
				return pageResult{}, fmt.Errorf("load calving events of animal %d: %w", milking.AnimalID, err)
			}
			calvings[milking.AnimalID] = candidates
		}

		calvingID, found := lactation.Match(milking, candidates)
		if !found {
			log.Debug("no lactation found", zap.Int64("milking_event_id", milking.ID))
			result.notFound++
			result.rows = append(result.rows, models.AuditRow{MilkingEventID: milking.ID})
			continue
		}

		log.Debug("lactation matched",
			zap.Int64("milking_event_id", milking.ID),
			zap.Int64("calving_event_id", calvingID),
		)
		result.assignments = append(result.assignments, models.LactationAssignment{
			MilkingEventID: milking.ID,
			CalvingEventID: calvingID,
		})
		result.rows = append(result.rows, models.AuditRow{
			MilkingEventID: milking.ID,
			CalvingEventID: &calvingID,
			Assigned:       true,
		})
	}
	return result, nil
}

// emit appends the page rows in order and returns how many could not be written.
func (s *Service) emit(ctx context.Context, log *zap.Logger, auditLog repository.AuditLog, rows []models.AuditRow) int {
	failed := 0
	for _, row := range rows {
		if err := auditLog.Append(ctx, row); err != nil {
			failed++
			log.Error("failed to write audit row",
				zap.Int64("milking_event_id", row.MilkingEventID),
				zap.String("outcome", string(models.OutcomeWriteFailed)),
				zap.Error(err),
			)
		}
	}
	return failed
}

func (s *Service) abort(ctx context.Context, log *zap.Logger, report models.RunReport, cause error) (models.RunReport, error) {
	report.State = models.RunAborted
	report.FinishedAt = s.now()
	report.Error = cause.Error()

	log.Error("reconciliation aborted",
		zap.Int("processed", report.Processed),
		zap.Int("assigned", report.Assigned),
		zap.Error(cause),
	)
	s.saveReport(ctx, log, report)
	return report, fmt.Errorf("reconciliation %s aborted: %w", report.RunID, cause)
}

func (s *Service) saveReport(ctx context.Context, log *zap.Logger, report models.RunReport) {
	if err := s.store.SaveRunReport(context.WithoutCancel(ctx), report); err != nil {
		log.Warn("failed to save run report", zap.Error(err))
	}
}

type discardSink struct{}

func (discardSink) Open(context.Context, time.Time) (repository.AuditLog, error) {
	return discardLog{}, nil
}

type discardLog struct{}

func (discardLog) Append(context.Context, models.AuditRow) error { return nil }
func (discardLog) Close() error                                  { return nil }
