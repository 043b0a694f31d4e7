// Package postgres implements the event store on PostgreSQL through bun.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
)

var _ repository.EventStore = (*Store)(nil)

// Store implements repository.EventStore on PostgreSQL.
type Store struct {
	db     *bun.DB
	logger *zap.Logger
}

// Open connects to PostgreSQL and creates the tables when missing. With debug
// set every query is logged.
func Open(ctx context.Context, dsn string, debug bool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tables := []interface{}{
		(*animalRow)(nil),
		(*eventRow)(nil),
		(*runRow)(nil),
	}
	for _, model := range tables {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name    string
		columns []string
	}{
		{"animal_events_animal_kind_idx", []string{"animal_id", "kind"}},
		{"animal_events_unassigned_idx", []string{"kind", "lactation_id", "event_date"}},
	}
	for _, idx := range indexes {
		_, err := s.db.NewCreateIndex().
			Model((*eventRow)(nil)).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}
	return nil
}

// SaveAnimal upserts an animal, letting the database allocate the id when none is set.
func (s *Store) SaveAnimal(ctx context.Context, animal *models.Animal) error {
	row := toAnimalRow(animal)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("birth_date = EXCLUDED.birth_date").
		Set("farm_id = EXCLUDED.farm_id").
		Set("country_id = EXCLUDED.country_id").
		Set("region_id = EXCLUDED.region_id").
		Set("district_id = EXCLUDED.district_id").
		Set("ward_id = EXCLUDED.ward_id").
		Set("village_id = EXCLUDED.village_id").
		Set("latitude = EXCLUDED.latitude").
		Set("longitude = EXCLUDED.longitude").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save animal: %w", err)
	}
	animal.ID = row.ID
	return nil
}

// FindAnimal returns the animal with the given id.
func (s *Store) FindAnimal(ctx context.Context, id int64) (models.Animal, error) {
	var row animalRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return models.Animal{}, notFound(err, "animal %d", id)
	}
	return row.toModel(), nil
}

// InsertEvent stores a new event for an existing animal.
func (s *Store) InsertEvent(ctx context.Context, event *models.AnimalEvent) error {
	if _, err := s.FindAnimal(ctx, event.AnimalID); err != nil {
		return err
	}

	row := toEventRow(event)
	if _, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	event.ID = row.ID
	return nil
}

// FindEvent returns the event with the given id.
func (s *Store) FindEvent(ctx context.Context, id int64) (models.AnimalEvent, error) {
	var row eventRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return models.AnimalEvent{}, notFound(err, "event %d", id)
	}
	return row.toModel(), nil
}

// FindAnimalEvents returns the animal's events of one kind in insertion order.
func (s *Store) FindAnimalEvents(ctx context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error) {
	var rows []eventRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("animal_id = ?", animalID).
		Where("kind = ?", string(kind)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query events of animal %d: %w", animalID, err)
	}
	return toEvents(rows), nil
}

// FindMilkingEvents pages through all milking events, most recent first.
func (s *Store) FindMilkingEvents(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error) {
	if err := repository.CheckPage(offset, limit); err != nil {
		return nil, err
	}
	var rows []eventRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("kind = ?", string(models.EventMilking)).
		OrderExpr("event_date DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query milking events: %w", err)
	}
	return toEvents(rows), nil
}

// CountUnassignedMilkings counts milking events without a lactation.
func (s *Store) CountUnassignedMilkings(ctx context.Context) (int, error) {
	count, err := s.unassigned(s.db.NewSelect().Model((*eventRow)(nil))).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count unassigned milking events: %w", err)
	}
	return count, nil
}

// FindUnassignedMilkings pages through unassigned milking events, most recent first.
func (s *Store) FindUnassignedMilkings(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error) {
	if err := repository.CheckPage(offset, limit); err != nil {
		return nil, err
	}
	var rows []eventRow
	err := s.unassigned(s.db.NewSelect().Model(&rows)).
		OrderExpr("event_date DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query unassigned milking events: %w", err)
	}
	return toEvents(rows), nil
}

// CommitAssignments applies a page of assignments in one transaction. Events
// that already carry a lactation are left untouched.
func (s *Store) CommitAssignments(ctx context.Context, assignments []models.LactationAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	var updated int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, a := range assignments {
			res, err := tx.NewUpdate().
				Model((*eventRow)(nil)).
				Set("lactation_id = ?", a.CalvingEventID).
				Where("id = ?", a.MilkingEventID).
				Where("kind = ?", string(models.EventMilking)).
				Where("lactation_id IS NULL").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("assign milking event %d: %w", a.MilkingEventID, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				updated += n
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit %d assignments: %w", len(assignments), err)
	}

	if updated != int64(len(assignments)) {
		s.logger.Warn("some assignments were already applied",
			zap.Int("staged", len(assignments)),
			zap.Int64("updated", updated),
		)
	}
	return nil
}

// SaveRunReport stores the outcome of a reconciliation run.
func (s *Store) SaveRunReport(ctx context.Context, report models.RunReport) error {
	if _, err := s.db.NewInsert().Model(toRunRow(report)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert run report: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func (s *Store) unassigned(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Where("kind = ?", string(models.EventMilking)).
		Where("lactation_id IS NULL")
}

func toEvents(rows []eventRow) []models.AnimalEvent {
	events := make([]models.AnimalEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events
}

func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
