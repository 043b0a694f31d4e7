package models

import "time"

// EventKind enumerates the lifecycle event categories recorded for an animal.
type EventKind string

const (
	EventCalving EventKind = "calving"
	EventMilking EventKind = "milking"
	EventExit    EventKind = "exit"
	EventOther   EventKind = "other"
)

// Valid reports whether the kind is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventCalving, EventMilking, EventExit, EventOther:
		return true
	default:
		return false
	}
}

// AnimalEvent is a single lifecycle event. Only the payload matching Kind is
// populated: Milking for milking events, Exit for exit events.
type AnimalEvent struct {
	ID       int64     `bson:"_id" json:"id"`
	AnimalID int64     `bson:"animal_id" json:"animal_id"`
	Kind     EventKind `bson:"kind" json:"kind"`
	Date     time.Time `bson:"event_date" json:"event_date"`
	Location Location  `bson:"location" json:"location"`

	Milking *Milking `bson:"milking,omitempty" json:"milking,omitempty"`
	Exit    *Exit    `bson:"exit,omitempty" json:"exit,omitempty"`
}

// Milking carries the milk volumes observed in one milking session set.
type Milking struct {
	LactationID *int64   `bson:"lactation_id" json:"lactation_id"`
	Morning     *float64 `bson:"morning,omitempty" json:"morning,omitempty"`
	Evening     *float64 `bson:"evening,omitempty" json:"evening,omitempty"`
	Midday      *float64 `bson:"midday,omitempty" json:"midday,omitempty"`
}

// Exit carries the disposal reason of an animal leaving the herd.
type Exit struct {
	DisposalReason *int `bson:"disposal_reason,omitempty" json:"disposal_reason,omitempty"`
}

// IsMilking reports whether the event is a milking event with a payload.
func (e AnimalEvent) IsMilking() bool {
	return e.Kind == EventMilking && e.Milking != nil
}

// LactationID returns the assigned lactation of a milking event.
func (e AnimalEvent) LactationID() (int64, bool) {
	if !e.IsMilking() || e.Milking.LactationID == nil {
		return 0, false
	}
	return *e.Milking.LactationID, true
}

// Assigned reports whether a milking event already references a lactation.
func (e AnimalEvent) Assigned() bool {
	_, ok := e.LactationID()
	return ok
}

// DisposalReason returns the disposal reason of an exit event.
func (e AnimalEvent) DisposalReason() (int, bool) {
	if e.Kind != EventExit || e.Exit == nil || e.Exit.DisposalReason == nil {
		return 0, false
	}
	return *e.Exit.DisposalReason, true
}

// LactationAssignment links an unassigned milking event to a calving event.
type LactationAssignment struct {
	MilkingEventID int64
	CalvingEventID int64
}
