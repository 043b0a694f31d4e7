// Package lactation matches milking observations to the calving event that
// started their lactation.
package lactation

import (
	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

// MaxLactationDays is the largest calving-to-milking gap, in whole days, that
// still counts as the same lactation.
const MaxLactationDays = 1000

// Match returns the id of the most recent calving event dated on or before the
// milking event, provided it lies within MaxLactationDays. Calving events of
// other animals or of another kind are ignored. When several calvings share the
// most recent date the lowest id wins.
func Match(milking models.AnimalEvent, calvings []models.AnimalEvent) (int64, bool) {
	last, ok := LastCalvingBefore(milking, calvings)
	if !ok {
		return 0, false
	}

	if models.DaysBetween(last.Date, milking.Date) > MaxLactationDays {
		return 0, false
	}
	return last.ID, true
}

// LastCalvingBefore selects the most recent calving on or before the milking
// date, compared at day granularity.
func LastCalvingBefore(milking models.AnimalEvent, calvings []models.AnimalEvent) (models.AnimalEvent, bool) {
	milkingDay := models.Day(milking.Date)

	var (
		best  models.AnimalEvent
		found bool
	)
	for _, calving := range calvings {
		if calving.Kind != models.EventCalving || calving.AnimalID != milking.AnimalID {
			continue
		}
		day := models.Day(calving.Date)
		if day.After(milkingDay) {
			continue
		}
		if !found {
			best, found = calving, true
			continue
		}
		bestDay := models.Day(best.Date)
		if day.After(bestDay) || (day.Equal(bestDay) && calving.ID < best.ID) {
			best = calving
		}
	}
	return best, found
}
