// Package eligibility decides whether a milking event qualifies for a milk
// yield evaluation and infers whether its animal is still in production.
package eligibility

import (
	"time"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

// MaxAgeYears is the age from which animals are excluded from yield evaluation.
const MaxAgeYears = 8

// Reason explains why an event was not eligible.
type Reason string

const (
	ReasonEligible      Reason = ""
	ReasonNotMilking    Reason = "not_milking_event"
	ReasonUnassigned    Reason = "no_lactation"
	ReasonTooOld        Reason = "animal_too_old"
	ReasonPresumedDead  Reason = "animal_presumed_dead"
	ReasonAnimalUnknown Reason = "animal_mismatch"
)

var relocationReasons = map[int]struct{}{
	2:  {},
	4:  {},
	11: {},
	12: {},
	13: {},
}

// IsRelocationReason reports whether a disposal reason code means the animal
// moved to another farm rather than died.
func IsRelocationReason(code int) bool {
	_, ok := relocationReasons[code]
	return ok
}

// Result is the outcome of an eligibility check. PresumedAlive and
// FarmRelocated describe the animal independently of Eligible; they are left
// false when the event could not be tied to the animal (ReasonNotMilking,
// ReasonUnassigned and ReasonAnimalUnknown).
type Result struct {
	Eligible      bool
	PresumedAlive bool
	FarmRelocated bool
	Reason        Reason
}

// Evaluate checks a milking event against its owning animal and the animal's
// exit events, as of now.
func Evaluate(milking models.AnimalEvent, animal models.Animal, exits []models.AnimalEvent, now time.Time) Result {
	if !milking.IsMilking() {
		return Result{Reason: ReasonNotMilking}
	}
	if !milking.Assigned() {
		return Result{Reason: ReasonUnassigned}
	}
	if milking.AnimalID != animal.ID {
		return Result{Reason: ReasonAnimalUnknown}
	}

	alive, relocated := Survival(exits)
	if animal.AgeYears(now) >= MaxAgeYears {
		return Result{PresumedAlive: alive, FarmRelocated: relocated, Reason: ReasonTooOld}
	}
	if !alive {
		return Result{Reason: ReasonPresumedDead}
	}

	return Result{
		Eligible:      true,
		PresumedAlive: true,
		FarmRelocated: relocated,
	}
}

// Survival infers from exit events whether an animal is presumed alive and
// whether it moved farm. Events that are not exits are ignored. An exit
// without a disposal reason counts as a death.
func Survival(exits []models.AnimalEvent) (alive bool, relocated bool) {
	seen := 0
	for _, event := range exits {
		if event.Kind != models.EventExit {
			continue
		}
		seen++
		reason, ok := event.DisposalReason()
		if !ok || !IsRelocationReason(reason) {
			return false, false
		}
	}
	if seen == 0 {
		return true, false
	}
	return true, true
}
