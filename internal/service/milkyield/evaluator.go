// Package milkyield evaluates observed milk yields against the expected
// lactation curve.
package milkyield

import (
	"errors"
	"fmt"
	"math"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

// Lactation curve coefficients: EMY = scale * DIM^power * e^(decay * DIM).
const (
	curveScale = 8.11
	curvePower = 0.068
	curveDecay = -0.0017

	// Tolerance is the fixed band, in litres, around the expected yield.
	Tolerance = 2.3
)

var (
	// ErrNotMilkingEvent indicates the evaluated event is not a milking event.
	ErrNotMilkingEvent = errors.New("event is not a milking event")
	// ErrNotCalvingEvent indicates the referenced lactation is not a calving event.
	ErrNotCalvingEvent = errors.New("lactation does not reference a calving event")
	// ErrCalvingAfterMilking indicates a calving dated after the milking it should precede.
	ErrCalvingAfterMilking = errors.New("calving event is dated after milking event")
	// ErrMissingMilkVolume indicates a required morning or evening volume is absent.
	ErrMissingMilkVolume = errors.New("missing required milk volume")
)

// Options carries presentation data copied onto the record.
type Options struct {
	FarmID         *int64
	FarmRelocation bool
}

// ExpectedYield returns the modelled daily yield at the given days in milk.
func ExpectedYield(daysInMilk int) float64 {
	dim := float64(daysInMilk)
	return curveScale * math.Pow(dim, curvePower) * math.Exp(curveDecay*dim)
}

// Classify compares an observed yield to the tolerance band. Values on a
// limit are within range.
func Classify(observed, lower, upper float64) models.Feedback {
	switch {
	case observed > upper:
		return models.FeedbackNote
	case observed < lower:
		return models.FeedbackAlarm
	default:
		return models.FeedbackNone
	}
}

// ObservedTotal sums the morning, evening and midday volumes. Midday is
// optional; morning and evening are required.
func ObservedTotal(milking *models.Milking) (float64, error) {
	if milking == nil {
		return 0, ErrMissingMilkVolume
	}
	if milking.Morning == nil {
		return 0, fmt.Errorf("%w: morning (attribute %d)", ErrMissingMilkVolume, models.AttrMilkMorning)
	}
	if milking.Evening == nil {
		return 0, fmt.Errorf("%w: evening (attribute %d)", ErrMissingMilkVolume, models.AttrMilkEvening)
	}
	total := *milking.Morning + *milking.Evening
	if milking.Midday != nil {
		total += *milking.Midday
	}
	return total, nil
}

// Evaluate computes the yield record of a milking event against the calving
// event that started its lactation.
func Evaluate(milking, calving models.AnimalEvent, opts Options) (models.MilkYieldRecord, error) {
	if milking.Kind != models.EventMilking {
		return models.MilkYieldRecord{}, fmt.Errorf("%w: event %d is %s", ErrNotMilkingEvent, milking.ID, milking.Kind)
	}
	if calving.Kind != models.EventCalving {
		return models.MilkYieldRecord{}, fmt.Errorf("%w: event %d is %s", ErrNotCalvingEvent, calving.ID, calving.Kind)
	}

	dim := models.DaysBetween(calving.Date, milking.Date)
	if dim < 0 {
		return models.MilkYieldRecord{}, fmt.Errorf("%w: calving %d, milking %d", ErrCalvingAfterMilking, calving.ID, milking.ID)
	}

	observed, err := ObservedTotal(milking.Milking)
	if err != nil {
		return models.MilkYieldRecord{}, fmt.Errorf("milking event %d: %w", milking.ID, err)
	}

	emy := ExpectedYield(dim)
	upper := emy + Tolerance
	lower := emy - Tolerance

	return models.MilkYieldRecord{
		ID:                milking.ID,
		CalvingDate:       calving.Date,
		DaysInMilk:        dim,
		TotalMilkRecord:   observed,
		ExpectedMilkYield: emy,
		UpperLimit:        upper,
		LowerLimit:        lower,
		Feedback:          Classify(observed, lower, upper),
		FarmID:            opts.FarmID,
		FarmRelocation:    opts.FarmRelocation,
	}, nil
}
