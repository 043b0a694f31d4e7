// Package memory implements the event store in process memory. It backs local
// runs without a database and serves as the fake store in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
)

var _ repository.EventStore = (*Store)(nil)

// Store is a mutex-guarded in-memory event store.
type Store struct {
	mu      sync.RWMutex
	animals map[int64]models.Animal
	events  map[int64]models.AnimalEvent
	reports []models.RunReport
	nextID  int64

	// Fault hooks let tests simulate store outages; nil means healthy.
	FailFetch  func(offset int) error
	FailCommit func(assignments []models.LactationAssignment) error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		animals: map[int64]models.Animal{},
		events:  map[int64]models.AnimalEvent{},
	}
}

// SaveAnimal upserts an animal, assigning an id when none is set.
func (s *Store) SaveAnimal(_ context.Context, animal *models.Animal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if animal.ID == 0 {
		animal.ID = s.allocateID()
	} else if animal.ID > s.nextID {
		s.nextID = animal.ID
	}
	s.animals[animal.ID] = *animal
	return nil
}

// FindAnimal returns the animal with the given id.
func (s *Store) FindAnimal(_ context.Context, id int64) (models.Animal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	animal, ok := s.animals[id]
	if !ok {
		return models.Animal{}, fmt.Errorf("animal %d: %w", id, repository.ErrNotFound)
	}
	return animal, nil
}

// InsertEvent stores a new event, assigning an id when none is set.
func (s *Store) InsertEvent(_ context.Context, event *models.AnimalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.animals[event.AnimalID]; !ok {
		return fmt.Errorf("animal %d: %w", event.AnimalID, repository.ErrNotFound)
	}
	if event.ID == 0 {
		event.ID = s.allocateID()
	} else if event.ID > s.nextID {
		s.nextID = event.ID
	}
	s.events[event.ID] = cloneEvent(*event)
	return nil
}

// FindEvent returns the event with the given id.
func (s *Store) FindEvent(_ context.Context, id int64) (models.AnimalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return models.AnimalEvent{}, fmt.Errorf("event %d: %w", id, repository.ErrNotFound)
	}
	return cloneEvent(event), nil
}

// FindAnimalEvents returns the animal's events of one kind in insertion order.
func (s *Store) FindAnimalEvents(_ context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AnimalEvent
	for _, event := range s.events {
		if event.AnimalID == animalID && event.Kind == kind {
			out = append(out, cloneEvent(event))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindMilkingEvents pages through all milking events, most recent first.
func (s *Store) FindMilkingEvents(_ context.Context, offset, limit int) ([]models.AnimalEvent, error) {
	if err := repository.CheckPage(offset, limit); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return page(s.milkings(false), offset, limit), nil
}

// CountUnassignedMilkings counts milking events without a lactation.
func (s *Store) CountUnassignedMilkings(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.milkings(true)), nil
}

// FindUnassignedMilkings pages through unassigned milking events, most recent first.
func (s *Store) FindUnassignedMilkings(_ context.Context, offset, limit int) ([]models.AnimalEvent, error) {
	if err := repository.CheckPage(offset, limit); err != nil {
		return nil, err
	}
	if s.FailFetch != nil {
		if err := s.FailFetch(offset); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return page(s.milkings(true), offset, limit), nil
}

// CommitAssignments applies all assignments atomically. Events that are
// already assigned keep their lactation.
func (s *Store) CommitAssignments(_ context.Context, assignments []models.LactationAssignment) error {
	if s.FailCommit != nil {
		if err := s.FailCommit(assignments); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range assignments {
		event, ok := s.events[a.MilkingEventID]
		if !ok || !event.IsMilking() || event.Assigned() {
			continue
		}
		lactation := a.CalvingEventID
		event.Milking.LactationID = &lactation
		s.events[a.MilkingEventID] = event
	}
	return nil
}

// SaveRunReport records a finished run.
func (s *Store) SaveRunReport(_ context.Context, report models.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, report)
	return nil
}

// RunReports returns the recorded run reports in save order.
func (s *Store) RunReports() []models.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.RunReport(nil), s.reports...)
}

// Close is a no-op.
func (s *Store) Close(context.Context) error {
	return nil
}

func (s *Store) allocateID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) milkings(unassignedOnly bool) []models.AnimalEvent {
	var out []models.AnimalEvent
	for _, event := range s.events {
		if !event.IsMilking() {
			continue
		}
		if unassignedOnly && event.Assigned() {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func page(events []models.AnimalEvent, offset, limit int) []models.AnimalEvent {
	if offset >= len(events) {
		return nil
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	out := make([]models.AnimalEvent, 0, end-offset)
	for _, event := range events[offset:end] {
		out = append(out, cloneEvent(event))
	}
	return out
}

// cloneEvent copies the payload pointers so callers cannot mutate stored state.
func cloneEvent(event models.AnimalEvent) models.AnimalEvent {
	if event.Milking != nil {
		m := *event.Milking
		if m.LactationID != nil {
			id := *m.LactationID
			m.LactationID = &id
		}
		event.Milking = &m
	}
	if event.Exit != nil {
		e := *event.Exit
		event.Exit = &e
	}
	return event
}
