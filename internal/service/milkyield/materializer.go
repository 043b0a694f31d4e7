package milkyield

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/service/eligibility"
)

// EventReader is the subset of the event store needed to materialize records.
type EventReader interface {
	FindEvent(ctx context.Context, id int64) (models.AnimalEvent, error)
	FindAnimal(ctx context.Context, id int64) (models.Animal, error)
	FindAnimalEvents(ctx context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error)
	FindMilkingEvents(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error)
}

// Materializer attaches yield records to milking events at read time. It
// never writes to the store.
type Materializer struct {
	store  EventReader
	logger *zap.Logger
	now    func() time.Time
}

// NewMaterializer builds a Materializer. A nil clock defaults to time.Now.
func NewMaterializer(store EventReader, now func() time.Time, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Materializer{store: store, logger: logger, now: now}
}

// Materialize loads one milking event and attaches its yield record. The
// record is nil when the event is not eligible for evaluation.
func (m *Materializer) Materialize(ctx context.Context, milkingID int64) (models.MilkingView, error) {
	event, err := m.store.FindEvent(ctx, milkingID)
	if err != nil {
		return models.MilkingView{}, fmt.Errorf("load milking event %d: %w", milkingID, err)
	}
	if !event.IsMilking() {
		return models.MilkingView{}, fmt.Errorf("%w: event %d is %s", ErrNotMilkingEvent, event.ID, event.Kind)
	}

	record, err := m.evaluate(ctx, event)
	if err != nil {
		return models.MilkingView{Event: event}, err
	}
	return models.MilkingView{Event: event, MilkYieldRecord: record}, nil
}

// MaterializePage returns a page of milking events, most recent first, each
// with its yield record when one could be computed. Record-level failures are
// logged and leave that record empty; store failures abort the page.
func (m *Materializer) MaterializePage(ctx context.Context, offset, limit int) ([]models.MilkingView, error) {
	events, err := m.store.FindMilkingEvents(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("load milking events: %w", err)
	}

	views := make([]models.MilkingView, 0, len(events))
	for _, event := range events {
		record, err := m.evaluate(ctx, event)
		if err != nil {
			if !IsRecordError(err) {
				return nil, err
			}
			m.logger.Warn("milk yield evaluation failed",
				zap.Int64("milking_event_id", event.ID),
				zap.Error(err),
			)
		}
		views = append(views, models.MilkingView{Event: event, MilkYieldRecord: record})
	}
	return views, nil
}

// IsRecordError reports whether err only concerns the evaluated record's data.
func IsRecordError(err error) bool {
	return errors.Is(err, ErrNotMilkingEvent) ||
		errors.Is(err, ErrNotCalvingEvent) ||
		errors.Is(err, ErrCalvingAfterMilking) ||
		errors.Is(err, ErrMissingMilkVolume)
}

func (m *Materializer) evaluate(ctx context.Context, event models.AnimalEvent) (*models.MilkYieldRecord, error) {
	if !event.Assigned() {
		return nil, nil
	}

	animal, err := m.store.FindAnimal(ctx, event.AnimalID)
	if err != nil {
		return nil, fmt.Errorf("load animal %d: %w", event.AnimalID, err)
	}
	exits, err := m.store.FindAnimalEvents(ctx, animal.ID, models.EventExit)
	if err != nil {
		return nil, fmt.Errorf("load exit events of animal %d: %w", animal.ID, err)
	}

	verdict := eligibility.Evaluate(event, animal, exits, m.now())
	if !verdict.Eligible {
		m.logger.Debug("milking event not eligible",
			zap.Int64("milking_event_id", event.ID),
			zap.String("reason", string(verdict.Reason)),
		)
		return nil, nil
	}

	lactationID, _ := event.LactationID()
	calving, err := m.store.FindEvent(ctx, lactationID)
	if err != nil {
		return nil, fmt.Errorf("load lactation %d: %w", lactationID, err)
	}

	record, err := Evaluate(event, calving, Options{
		FarmID:         animal.FarmID,
		FarmRelocation: verdict.FarmRelocated,
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
