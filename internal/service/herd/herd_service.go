// Package herd aggregates the lactation history of individual animals.
package herd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/service/milkyield"
)

// CalvingIntervalAlarmDays is the number of days since the last calving after
// which the interval is flagged.
const CalvingIntervalAlarmDays = 365

// Store is the event store surface used by summaries.
type Store interface {
	FindAnimal(ctx context.Context, id int64) (models.Animal, error)
	FindAnimalEvents(ctx context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error)
}

// Service builds animal summaries.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService wires a new herd service instance.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Summary reports the calving and milking history of one animal as of now.
func (s *Service) Summary(ctx context.Context, animalID int64, now time.Time) (models.AnimalSummary, error) {
	animal, err := s.store.FindAnimal(ctx, animalID)
	if err != nil {
		return models.AnimalSummary{}, fmt.Errorf("load animal: %w", err)
	}
	calvings, err := s.store.FindAnimalEvents(ctx, animalID, models.EventCalving)
	if err != nil {
		return models.AnimalSummary{}, fmt.Errorf("load calving events: %w", err)
	}
	milkings, err := s.store.FindAnimalEvents(ctx, animalID, models.EventMilking)
	if err != nil {
		return models.AnimalSummary{}, fmt.Errorf("load milking events: %w", err)
	}

	summary := models.AnimalSummary{
		AnimalID:      animal.ID,
		AgeYears:      animal.AgeYears(now),
		MilkingEvents: len(milkings),
	}

	if last, ok := latest(calvings); ok {
		summary.LastCalving = &last
		days := models.DaysBetween(last.Date, now)
		summary.CalvingInterval = &models.CalvingInterval{
			DaysSinceLastCalving: days,
			Alarm:                days > CalvingIntervalAlarmDays,
		}
	}
	if last, ok := latest(milkings); ok {
		summary.LastMilking = &last
	}
	summary.AverageMilkYield = s.averageYield(milkings)

	return summary, nil
}

func (s *Service) averageYield(milkings []models.AnimalEvent) *float64 {
	var (
		total   float64
		entries int
	)
	for _, event := range milkings {
		observed, err := milkyield.ObservedTotal(event.Milking)
		if err != nil {
			s.logger.Debug("skip milking event without volumes", zap.Int64("milking_event_id", event.ID), zap.Error(err))
			continue
		}
		total += observed
		entries++
	}
	if entries == 0 {
		return nil
	}
	avg := total / float64(entries)
	return &avg
}

// latest returns the most recent event by day; the lowest id wins a tie.
func latest(events []models.AnimalEvent) (models.AnimalEvent, bool) {
	var (
		best  models.AnimalEvent
		found bool
	)
	for _, event := range events {
		day := models.Day(event.Date)
		bestDay := models.Day(best.Date)
		if !found || day.After(bestDay) || (day.Equal(bestDay) && event.ID < best.ID) {
			best = event
			found = true
		}
	}
	return best, found
}
