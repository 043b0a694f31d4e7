package milkyield

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

func litres(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExpectedYield(t *testing.T) {
	assert.InDelta(t, 9.47, ExpectedYield(100), 0.1)
	assert.Zero(t, ExpectedYield(0))

	for _, dim := range []int{10, 50, 100, 200} {
		emy := ExpectedYield(dim)
		assert.False(t, math.IsNaN(emy) || math.IsInf(emy, 0), "dim %d", dim)
		assert.Positive(t, emy, "dim %d", dim)
	}
	assert.Greater(t, ExpectedYield(50), ExpectedYield(200))
}

func TestClassify(t *testing.T) {
	emy := ExpectedYield(100)
	upper, lower := emy+Tolerance, emy-Tolerance

	tests := []struct {
		name     string
		observed float64
		want     models.Feedback
	}{
		{"on upper limit", upper, models.FeedbackNone},
		{"on lower limit", lower, models.FeedbackNone},
		{"above upper", upper + 0.01, models.FeedbackNote},
		{"below lower", lower - 0.01, models.FeedbackAlarm},
		{"expected", emy, models.FeedbackNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.observed, lower, upper))
		})
	}
}

func TestEvaluate(t *testing.T) {
	farm := int64(3)
	calving := models.AnimalEvent{ID: 1, AnimalID: 7, Kind: models.EventCalving, Date: day("2021-01-01")}
	milking := models.AnimalEvent{
		ID: 2, AnimalID: 7, Kind: models.EventMilking,
		Date:    day("2021-04-11").Add(17 * time.Hour),
		Milking: &models.Milking{Morning: litres(1), Evening: litres(1.5)},
	}

	record, err := Evaluate(milking, calving, Options{FarmID: &farm, FarmRelocation: true})
	require.NoError(t, err)

	assert.Equal(t, int64(2), record.ID)
	assert.Equal(t, 100, record.DaysInMilk)
	assert.Equal(t, calving.Date, record.CalvingDate)
	assert.InDelta(t, 2.5, record.TotalMilkRecord, 1e-9)
	assert.InDelta(t, record.ExpectedMilkYield+Tolerance, record.UpperLimit, 1e-9)
	assert.InDelta(t, record.ExpectedMilkYield-Tolerance, record.LowerLimit, 1e-9)
	assert.Equal(t, models.FeedbackAlarm, record.Feedback)
	assert.Equal(t, &farm, record.FarmID)
	assert.True(t, record.FarmRelocation)
}

func TestEvaluate_SameDayCalving(t *testing.T) {
	calving := models.AnimalEvent{ID: 1, Kind: models.EventCalving, Date: day("2021-01-01")}
	milking := models.AnimalEvent{
		ID: 2, Kind: models.EventMilking, Date: day("2021-01-01"),
		Milking: &models.Milking{Morning: litres(1), Evening: litres(1), Midday: litres(0.5)},
	}

	record, err := Evaluate(milking, calving, Options{})
	require.NoError(t, err)
	assert.Zero(t, record.DaysInMilk)
	assert.Zero(t, record.ExpectedMilkYield)
	assert.InDelta(t, 2.5, record.TotalMilkRecord, 1e-9)
	assert.Equal(t, models.FeedbackNote, record.Feedback)
}

func TestEvaluate_Errors(t *testing.T) {
	calving := models.AnimalEvent{ID: 1, Kind: models.EventCalving, Date: day("2021-01-01")}
	valid := &models.Milking{Morning: litres(4), Evening: litres(4)}

	tests := []struct {
		name    string
		milking models.AnimalEvent
		calving models.AnimalEvent
		want    error
	}{
		{
			name:    "not a milking event",
			milking: models.AnimalEvent{ID: 2, Kind: models.EventOther, Date: day("2021-02-01")},
			calving: calving,
			want:    ErrNotMilkingEvent,
		},
		{
			name:    "lactation is not a calving",
			milking: models.AnimalEvent{ID: 2, Kind: models.EventMilking, Date: day("2021-02-01"), Milking: valid},
			calving: models.AnimalEvent{ID: 1, Kind: models.EventExit, Date: day("2021-01-01")},
			want:    ErrNotCalvingEvent,
		},
		{
			name:    "calving after milking",
			milking: models.AnimalEvent{ID: 2, Kind: models.EventMilking, Date: day("2020-12-31"), Milking: valid},
			calving: calving,
			want:    ErrCalvingAfterMilking,
		},
		{
			name:    "missing morning",
			milking: models.AnimalEvent{ID: 2, Kind: models.EventMilking, Date: day("2021-02-01"), Milking: &models.Milking{Evening: litres(3)}},
			calving: calving,
			want:    ErrMissingMilkVolume,
		},
		{
			name:    "missing evening",
			milking: models.AnimalEvent{ID: 2, Kind: models.EventMilking, Date: day("2021-02-01"), Milking: &models.Milking{Morning: litres(3)}},
			calving: calving,
			want:    ErrMissingMilkVolume,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.milking, tt.calving, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsRecordError(err))
		})
	}
}
