package models

import (
	"strconv"
	"time"
)

// RunState tracks the progress of a reconciliation run.
type RunState string

const (
	RunInitializing RunState = "initializing"
	RunPaging       RunState = "paging"
	RunFinished     RunState = "finished"
	RunAborted      RunState = "aborted"
)

// RecordOutcome is the per-record result of a reconciliation run.
type RecordOutcome string

const (
	OutcomeAssigned    RecordOutcome = "assigned"
	OutcomeNotFound    RecordOutcome = "not_found"
	OutcomeWriteFailed RecordOutcome = "write_failed"
	OutcomeFailed      RecordOutcome = "failed"
)

// AuditNotFound is written in place of a calving event id when no lactation matched.
const AuditNotFound = "Not found"

// AuditHeader is the fixed header row of a lactation audit log.
var AuditHeader = []string{"milking_event_id", "last_calving_event_id", "assigned"}

// AuditRow is one line of the lactation audit log.
type AuditRow struct {
	MilkingEventID int64
	CalvingEventID *int64
	Assigned       bool
}

// Values renders the row in header order.
func (r AuditRow) Values() []string {
	calving := AuditNotFound
	if r.CalvingEventID != nil {
		calving = formatID(*r.CalvingEventID)
	}
	assigned := "N"
	if r.Assigned {
		assigned = "Y"
	}
	return []string{formatID(r.MilkingEventID), calving, assigned}
}

// RunReport summarises a reconciliation run. It is stored once the run ends.
type RunReport struct {
	RunID       string    `bson:"_id" json:"run_id"`
	State       RunState  `bson:"state" json:"state"`
	StartedAt   time.Time `bson:"started_at" json:"started_at"`
	FinishedAt  time.Time `bson:"finished_at" json:"finished_at"`
	Candidates  int       `bson:"candidates" json:"candidates"`
	Limit       int       `bson:"limit" json:"limit"`
	Pages       int       `bson:"pages" json:"pages"`
	Processed   int       `bson:"processed" json:"processed"`
	Assigned    int       `bson:"assigned" json:"assigned"`
	NotFound    int       `bson:"not_found" json:"not_found"`
	Failed      int       `bson:"failed" json:"failed"`
	WriteFailed int       `bson:"write_failed" json:"write_failed"`
	Error       string    `bson:"error,omitempty" json:"error,omitempty"`
}

// CalvingInterval describes the time elapsed since an animal last calved.
type CalvingInterval struct {
	DaysSinceLastCalving int  `json:"days_since_last_calving"`
	Alarm                bool `json:"alarm"`
}

// AnimalSummary aggregates the lactation history of one animal.
type AnimalSummary struct {
	AnimalID         int64            `json:"animal_id"`
	AgeYears         int              `json:"age_years"`
	LastCalving      *AnimalEvent     `json:"last_calving,omitempty"`
	CalvingInterval  *CalvingInterval `json:"calving_interval,omitempty"`
	MilkingEvents    int              `json:"milking_events"`
	LastMilking      *AnimalEvent     `json:"last_milking,omitempty"`
	AverageMilkYield *float64         `json:"average_milk_yield,omitempty"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
