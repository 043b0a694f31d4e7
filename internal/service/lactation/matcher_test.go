package lactation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func calving(id, animal int64, at time.Time) models.AnimalEvent {
	return models.AnimalEvent{ID: id, AnimalID: animal, Kind: models.EventCalving, Date: at}
}

func milking(id, animal int64, at time.Time) models.AnimalEvent {
	return models.AnimalEvent{ID: id, AnimalID: animal, Kind: models.EventMilking, Date: at, Milking: &models.Milking{}}
}

func TestMatch_SelectsMostRecentPriorCalving(t *testing.T) {
	m := milking(100, 1, day(2021, 6, 1))
	calvings := []models.AnimalEvent{
		calving(1, 1, day(2020, 1, 1)),
		calving(2, 1, day(2021, 1, 1)),
	}

	id, ok := Match(m, calvings)
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestMatch(t *testing.T) {
	milkingDate := day(2021, 6, 1)

	tests := []struct {
		name     string
		calvings []models.AnimalEvent
		wantID   int64
		wantOK   bool
	}{
		{
			name:   "no candidates",
			wantOK: false,
		},
		{
			name:     "only future calvings",
			calvings: []models.AnimalEvent{calving(1, 1, day(2021, 6, 2))},
			wantOK:   false,
		},
		{
			name:     "same day calving",
			calvings: []models.AnimalEvent{calving(3, 1, milkingDate.Add(18*time.Hour))},
			wantID:   3,
			wantOK:   true,
		},
		{
			name:     "exactly 1000 days",
			calvings: []models.AnimalEvent{calving(4, 1, milkingDate.AddDate(0, 0, -1000))},
			wantID:   4,
			wantOK:   true,
		},
		{
			name:     "1001 days is too old",
			calvings: []models.AnimalEvent{calving(5, 1, milkingDate.AddDate(0, 0, -1001))},
			wantOK:   false,
		},
		{
			name: "recent calving too old even though older ones exist",
			calvings: []models.AnimalEvent{
				calving(6, 1, milkingDate.AddDate(0, 0, -1500)),
				calving(7, 1, milkingDate.AddDate(0, 0, -1200)),
			},
			wantOK: false,
		},
		{
			name: "tie on date picks lowest id",
			calvings: []models.AnimalEvent{
				calving(9, 1, day(2021, 2, 1)),
				calving(8, 1, day(2021, 2, 1).Add(5*time.Hour)),
			},
			wantID: 8,
			wantOK: true,
		},
		{
			name: "ignores other animals and kinds",
			calvings: []models.AnimalEvent{
				calving(10, 2, day(2021, 5, 1)),
				{ID: 11, AnimalID: 1, Kind: models.EventOther, Date: day(2021, 5, 1)},
				calving(12, 1, day(2020, 12, 1)),
			},
			wantID: 12,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Match(milking(100, 1, milkingDate), tt.calvings)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}

func TestMatch_IsIdempotent(t *testing.T) {
	m := milking(100, 1, day(2021, 6, 1))
	calvings := []models.AnimalEvent{calving(2, 1, day(2021, 1, 1)), calving(1, 1, day(2020, 1, 1))}

	first, ok1 := Match(m, calvings)
	second, ok2 := Match(m, calvings)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), calvings[0].ID, "input must not be reordered")
}

func TestMatch_PropertyOverGaps(t *testing.T) {
	m := milking(100, 1, day(2022, 3, 15))
	for gap := 0; gap <= 1100; gap += 7 {
		c := calving(1, 1, m.Date.AddDate(0, 0, -gap))
		_, ok := Match(m, []models.AnimalEvent{c})
		assert.Equal(t, gap <= MaxLactationDays, ok, "gap %d", gap)
	}
}
