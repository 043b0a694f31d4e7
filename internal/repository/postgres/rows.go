package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

type LocationColumns struct {
	CountryID  int64    `bun:"country_id,nullzero"`
	RegionID   int64    `bun:"region_id,nullzero"`
	DistrictID int64    `bun:"district_id,nullzero"`
	WardID     int64    `bun:"ward_id,nullzero"`
	VillageID  int64    `bun:"village_id,nullzero"`
	Latitude   *float64 `bun:"latitude"`
	Longitude  *float64 `bun:"longitude"`
}

type animalRow struct {
	bun.BaseModel `bun:"table:animals,alias:a"`

	ID        int64     `bun:"id,pk,autoincrement"`
	BirthDate time.Time `bun:"birth_date,notnull"`
	FarmID    *int64    `bun:"farm_id"`
	LocationColumns
}

// eventRow flattens the tagged event payload into nullable columns.
type eventRow struct {
	bun.BaseModel `bun:"table:animal_events,alias:e"`

	ID             int64     `bun:"id,pk,autoincrement"`
	AnimalID       int64     `bun:"animal_id,notnull"`
	Kind           string    `bun:"kind,notnull"`
	EventDate      time.Time `bun:"event_date,notnull"`
	LactationID    *int64    `bun:"lactation_id"`
	MilkMorning    *float64  `bun:"milk_morning"`
	MilkEvening    *float64  `bun:"milk_evening"`
	MilkMidday     *float64  `bun:"milk_midday"`
	DisposalReason *int      `bun:"disposal_reason"`
	LocationColumns
}

type runRow struct {
	bun.BaseModel `bun:"table:reconciliation_runs,alias:r"`

	RunID       string    `bun:"run_id,pk"`
	State       string    `bun:"state,notnull"`
	StartedAt   time.Time `bun:"started_at,notnull"`
	FinishedAt  time.Time `bun:"finished_at"`
	Candidates  int       `bun:"candidates"`
	Limit       int       `bun:"run_limit"`
	Pages       int       `bun:"pages"`
	Processed   int       `bun:"processed"`
	Assigned    int       `bun:"assigned"`
	NotFound    int       `bun:"not_found"`
	Failed      int       `bun:"failed"`
	WriteFailed int       `bun:"write_failed"`
	Error       string    `bun:"error,nullzero"`
}

func toLocationCols(l models.Location) LocationColumns {
	return LocationColumns(l)
}

func (c LocationColumns) toModel() models.Location {
	return models.Location(c)
}

func toAnimalRow(a *models.Animal) *animalRow {
	return &animalRow{
		ID:              a.ID,
		BirthDate:       a.BirthDate,
		FarmID:          a.FarmID,
		LocationColumns: toLocationCols(a.Location),
	}
}

func (r animalRow) toModel() models.Animal {
	return models.Animal{
		ID:        r.ID,
		BirthDate: r.BirthDate,
		FarmID:    r.FarmID,
		Location:  r.LocationColumns.toModel(),
	}
}

func toEventRow(e *models.AnimalEvent) *eventRow {
	row := &eventRow{
		ID:              e.ID,
		AnimalID:        e.AnimalID,
		Kind:            string(e.Kind),
		EventDate:       e.Date,
		LocationColumns: toLocationCols(e.Location),
	}
	switch e.Kind {
	case models.EventMilking:
		if e.Milking != nil {
			row.LactationID = e.Milking.LactationID
			row.MilkMorning = e.Milking.Morning
			row.MilkEvening = e.Milking.Evening
			row.MilkMidday = e.Milking.Midday
		}
	case models.EventExit:
		if e.Exit != nil {
			row.DisposalReason = e.Exit.DisposalReason
		}
	}
	return row
}

func (r eventRow) toModel() models.AnimalEvent {
	event := models.AnimalEvent{
		ID:       r.ID,
		AnimalID: r.AnimalID,
		Kind:     models.EventKind(r.Kind),
		Date:     r.EventDate,
		Location: r.LocationColumns.toModel(),
	}
	switch event.Kind {
	case models.EventMilking:
		event.Milking = &models.Milking{
			LactationID: r.LactationID,
			Morning:     r.MilkMorning,
			Evening:     r.MilkEvening,
			Midday:      r.MilkMidday,
		}
	case models.EventExit:
		event.Exit = &models.Exit{DisposalReason: r.DisposalReason}
	}
	return event
}

func toRunRow(r models.RunReport) *runRow {
	return &runRow{
		RunID:       r.RunID,
		State:       string(r.State),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Candidates:  r.Candidates,
		Limit:       r.Limit,
		Pages:       r.Pages,
		Processed:   r.Processed,
		Assigned:    r.Assigned,
		NotFound:    r.NotFound,
		Failed:      r.Failed,
		WriteFailed: r.WriteFailed,
		Error:       r.Error,
	}
}
