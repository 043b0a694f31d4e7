// Package repository declares the event store surface shared by the storage
// backends.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

var (
	// ErrNotFound indicates the requested animal or event does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPage indicates a negative offset or a non-positive page size.
	ErrInvalidPage = errors.New("invalid page bounds")
)

// EventStore is the full query and persistence surface used by the services.
type EventStore interface {
	SaveAnimal(ctx context.Context, animal *models.Animal) error
	FindAnimal(ctx context.Context, id int64) (models.Animal, error)

	InsertEvent(ctx context.Context, event *models.AnimalEvent) error
	FindEvent(ctx context.Context, id int64) (models.AnimalEvent, error)
	FindAnimalEvents(ctx context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error)
	FindMilkingEvents(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error)

	CountUnassignedMilkings(ctx context.Context) (int, error)
	FindUnassignedMilkings(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error)
	CommitAssignments(ctx context.Context, assignments []models.LactationAssignment) error

	SaveRunReport(ctx context.Context, report models.RunReport) error
	Close(ctx context.Context) error
}

// AuditLog receives the audit rows of one reconciliation run.
type AuditLog interface {
	Append(ctx context.Context, row models.AuditRow) error
	Close() error
}

// AuditSink opens one audit log per run. The header row is written on open.
type AuditSink interface {
	Open(ctx context.Context, startedAt time.Time) (AuditLog, error)
}

// CheckPage validates paging arguments.
func CheckPage(offset, limit int) error {
	if offset < 0 || limit <= 0 {
		return ErrInvalidPage
	}
	return nil
}
