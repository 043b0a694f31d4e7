// Package ingest validates and records new animal events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

var (
	// ErrInvalidEvent indicates a request that cannot describe a valid event.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrLactationNotFound indicates a milking event for an animal that has never calved.
	ErrLactationNotFound = errors.New("animal has no calving event")
	// ErrLactationPreassigned indicates a milking event submitted with a lactation reference.
	ErrLactationPreassigned = errors.New("lactation is assigned by reconciliation")
)

// Store is the event store surface used by ingestion.
type Store interface {
	SaveAnimal(ctx context.Context, animal *models.Animal) error
	FindAnimal(ctx context.Context, id int64) (models.Animal, error)
	FindAnimalEvents(ctx context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error)
	InsertEvent(ctx context.Context, event *models.AnimalEvent) error
}

// NewEventRequest is an event as submitted by a data collector. Attributes are
// keyed by numeric attribute code.
type NewEventRequest struct {
	AnimalID    int64            `json:"animal_id" binding:"required"`
	Kind        models.EventKind `json:"kind" binding:"required"`
	Date        time.Time        `json:"event_date" binding:"required"`
	Location    *models.Location `json:"location"`
	LactationID *int64           `json:"lactation_id"`
	Attributes  map[string]any   `json:"additional_attributes"`
}

// NewAnimalRequest registers an animal.
type NewAnimalRequest struct {
	BirthDate time.Time       `json:"birth_date" binding:"required"`
	FarmID    *int64          `json:"farm_id"`
	Location  models.Location `json:"location"`
}

// Service records animals and their events.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService wires a new ingestion service instance.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// RegisterAnimal stores a new animal.
func (s *Service) RegisterAnimal(ctx context.Context, req NewAnimalRequest) (models.Animal, error) {
	if req.BirthDate.IsZero() {
		return models.Animal{}, fmt.Errorf("%w: birth date is required", ErrInvalidEvent)
	}

	animal := models.Animal{BirthDate: req.BirthDate, FarmID: req.FarmID, Location: req.Location}
	if err := s.store.SaveAnimal(ctx, &animal); err != nil {
		return models.Animal{}, fmt.Errorf("store animal: %w", err)
	}
	s.logger.Info("animal registered", zap.Int64("animal_id", animal.ID))
	return animal, nil
}

// RecordEvent validates the request against its animal and stores the event.
func (s *Service) RecordEvent(ctx context.Context, req NewEventRequest) (models.AnimalEvent, error) {
	if !req.Kind.Valid() {
		return models.AnimalEvent{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, req.Kind)
	}
	if req.Date.IsZero() {
		return models.AnimalEvent{}, fmt.Errorf("%w: event date is required", ErrInvalidEvent)
	}
	if req.LactationID != nil {
		return models.AnimalEvent{}, ErrLactationPreassigned
	}

	milking, exit, err := models.DecodeAttributes(req.Kind, req.Attributes)
	if err != nil {
		return models.AnimalEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	animal, err := s.store.FindAnimal(ctx, req.AnimalID)
	if err != nil {
		return models.AnimalEvent{}, fmt.Errorf("load animal %d: %w", req.AnimalID, err)
	}

	event := models.AnimalEvent{
		AnimalID: animal.ID,
		Kind:     req.Kind,
		Date:     req.Date,
		Milking:  milking,
		Exit:     exit,
	}
	if req.Location != nil {
		event.Location = *req.Location
	}

	if req.Kind == models.EventMilking {
		calvings, err := s.store.FindAnimalEvents(ctx, animal.ID, models.EventCalving)
		if err != nil {
			return models.AnimalEvent{}, fmt.Errorf("load calving events of animal %d: %w", animal.ID, err)
		}
		if len(calvings) == 0 {
			return models.AnimalEvent{}, fmt.Errorf("%w: animal %d", ErrLactationNotFound, animal.ID)
		}
		if !event.Location.HasDivisions() {
			event.Location = inheritLocation(event.Location, animal.Location)
		}
	}

	if err := s.store.InsertEvent(ctx, &event); err != nil {
		return models.AnimalEvent{}, fmt.Errorf("store event: %w", err)
	}

	s.logger.Info("event recorded",
		zap.Int64("event_id", event.ID),
		zap.Int64("animal_id", event.AnimalID),
		zap.String("kind", string(event.Kind)),
	)
	return event, nil
}

// inheritLocation fills the divisions and missing coordinates of an event
// from its animal. A country set on the event is kept.
func inheritLocation(event, animal models.Location) models.Location {
	out := animal
	if event.CountryID != 0 {
		out.CountryID = event.CountryID
	}
	if event.Latitude != nil && event.Longitude != nil {
		out.Latitude = event.Latitude
		out.Longitude = event.Longitude
	}
	return out
}
