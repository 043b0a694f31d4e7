package reconciliation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
	"github.com/mamadbah2/milkwatch/internal/repository/memory"
)

var errDisk = errors.New("disk full")

type recordingSink struct {
	mu     sync.Mutex
	rows   []models.AuditRow
	opened int
	closed int
	failOn map[int64]bool
}

func (s *recordingSink) Open(context.Context, time.Time) (repository.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return s, nil
}

func (s *recordingSink) Append(_ context.Context, row models.AuditRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[row.MilkingEventID] {
		return errDisk
	}
	s.rows = append(s.rows, row)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

var epoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// seedHerd stores n milking events one day apart. Even events belong to an
// animal that calved on the epoch; odd events to one that never calved.
func seedHerd(t *testing.T, n int) (*memory.Store, []models.AnimalEvent) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.SaveAnimal(ctx, &models.Animal{ID: 1}))
	require.NoError(t, store.SaveAnimal(ctx, &models.Animal{ID: 2}))
	require.NoError(t, store.InsertEvent(ctx, &models.AnimalEvent{ID: 10, AnimalID: 1, Kind: models.EventCalving, Date: epoch}))

	milkings := make([]models.AnimalEvent, 0, n)
	for i := 0; i < n; i++ {
		event := models.AnimalEvent{
			ID:       int64(1000 + i),
			AnimalID: int64(1 + i%2),
			Kind:     models.EventMilking,
			Date:     epoch.AddDate(0, 0, 1+i),
			Milking:  &models.Milking{},
		}
		require.NoError(t, store.InsertEvent(ctx, &event))
		milkings = append(milkings, event)
	}
	return store, milkings
}

func TestRun_PagesUpToLimit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store, milkings := seedHerd(t, 250)
	sink := &recordingSink{}

	svc := NewService(store, sink, 100, zap.New(core))
	report, err := svc.Run(context.Background(), RunOptions{Limit: 150})
	require.NoError(t, err)

	assert.Equal(t, models.RunFinished, report.State)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 250, report.Candidates)
	assert.Equal(t, 150, report.Limit)
	assert.Equal(t, 150, report.Processed)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 75, report.Assigned)
	assert.Equal(t, 75, report.NotFound)
	assert.Zero(t, report.WriteFailed)
	assert.LessOrEqual(t, report.Assigned, 150)

	// the 150 most recent milkings are processed in descending date order
	require.Len(t, sink.rows, 150)
	for i, row := range sink.rows {
		assert.Equal(t, milkings[249-i].ID, row.MilkingEventID)
	}
	assert.Equal(t, 1, sink.opened)
	assert.Equal(t, 1, sink.closed)

	pages := logs.FilterMessage("page committed").All()
	require.Len(t, pages, 2)
	assert.EqualValues(t, 100, pages[0].ContextMap()["records"])
	assert.EqualValues(t, 50, pages[1].ContextMap()["records"])

	reports := store.RunReports()
	require.Len(t, reports, 1)
	assert.Equal(t, report.RunID, reports[0].RunID)
}

func TestRun_AuditRows(t *testing.T) {
	store, milkings := seedHerd(t, 2)
	sink := &recordingSink{}

	_, err := NewService(store, sink, 10, nil).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, sink.rows, 2)

	// most recent first: the odd (never calved) event, then the matched one
	assert.Equal(t, []string{"1001", models.AuditNotFound, "N"}, sink.rows[0].Values())
	assert.Equal(t, []string{"1000", "10", "Y"}, sink.rows[1].Values())

	event, err := store.FindEvent(context.Background(), milkings[0].ID)
	require.NoError(t, err)
	lactation, ok := event.LactationID()
	require.True(t, ok)
	assert.Equal(t, int64(10), lactation)
}

func TestRun_SecondRunAssignsNothing(t *testing.T) {
	store, _ := seedHerd(t, 30)
	svc := NewService(store, &recordingSink{}, 7, nil)

	first, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 30, first.Processed)
	assert.Equal(t, 15, first.Assigned)

	second, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 15, second.Candidates)
	assert.Equal(t, 15, second.Processed)
	assert.Zero(t, second.Assigned)
	assert.Equal(t, 15, second.NotFound)
}

func TestRun_AuditWriteFailureContinues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store, milkings := seedHerd(t, 5)
	sink := &recordingSink{failOn: map[int64]bool{milkings[2].ID: true}}

	report, err := NewService(store, sink, 2, zap.New(core)).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 1, report.WriteFailed)
	assert.Len(t, sink.rows, 4)

	// the assignment stands even though its row was lost
	event, err := store.FindEvent(context.Background(), milkings[2].ID)
	require.NoError(t, err)
	assert.True(t, event.Assigned())

	failures := logs.FilterMessage("failed to write audit row").All()
	require.Len(t, failures, 1)
	assert.Equal(t, milkings[2].ID, failures[0].ContextMap()["milking_event_id"])
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
}

func TestRun_CommitFailureAborts(t *testing.T) {
	store, _ := seedHerd(t, 10)
	commits := 0
	store.FailCommit = func([]models.LactationAssignment) error {
		commits++
		if commits == 2 {
			return errors.New("connection reset")
		}
		return nil
	}
	sink := &recordingSink{}

	report, err := NewService(store, sink, 4, nil).Run(context.Background(), RunOptions{})
	require.Error(t, err)

	assert.Equal(t, models.RunAborted, report.State)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 2, report.Assigned)
	assert.Contains(t, report.Error, "connection reset")
	assert.Len(t, sink.rows, 4, "rows of the failed page are not emitted")

	remaining, err := store.CountUnassignedMilkings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, remaining)

	saved := store.RunReports()
	require.Len(t, saved, 1)
	assert.Equal(t, models.RunAborted, saved[0].State)
}

func TestRun_FetchFailureAborts(t *testing.T) {
	store, _ := seedHerd(t, 10)
	store.FailFetch = func(offset int) error {
		if offset > 0 {
			return errors.New("timeout")
		}
		return nil
	}

	report, err := NewService(store, nil, 5, nil).Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Equal(t, models.RunAborted, report.State)
	assert.Equal(t, 5, report.Processed)
}

func TestRun_CanceledContext(t *testing.T) {
	store, _ := seedHerd(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewService(store, nil, 5, nil).Run(ctx, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.RunAborted, report.State)
	assert.Zero(t, report.Processed)
}

type blockingStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) CountUnassignedMilkings(ctx context.Context) (int, error) {
	close(b.entered)
	<-b.release
	return b.Store.CountUnassignedMilkings(ctx)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	inner, _ := seedHerd(t, 1)
	store := &blockingStore{Store: inner, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(store, nil, 5, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), RunOptions{})
		done <- err
	}()

	<-store.entered
	_, err := svc.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(store.release)
	require.NoError(t, <-done)
}
