package models

import "time"

// Feedback classifies an observed milk yield against its tolerance band.
type Feedback string

const (
	FeedbackNone  Feedback = ""
	FeedbackNote  Feedback = "NOTE"
	FeedbackAlarm Feedback = "ALARM"
)

// MilkYieldRecord is the derived yield evaluation of one milking event. It is
// recomputed on every read and never persisted.
type MilkYieldRecord struct {
	ID                int64     `json:"id"`
	CalvingDate       time.Time `json:"calving_date"`
	DaysInMilk        int       `json:"days_in_milk"`
	TotalMilkRecord   float64   `json:"total_milk_record"`
	ExpectedMilkYield float64   `json:"expected_milk_yield"`
	UpperLimit        float64   `json:"upper_limit"`
	LowerLimit        float64   `json:"lower_limit"`
	Feedback          Feedback  `json:"feedback"`
	FarmID            *int64    `json:"farm_id,omitempty"`
	FarmRelocation    bool      `json:"farm_relocation"`
}

// MilkingView is a milking event as presented to readers, with its yield
// record attached when one could be computed.
type MilkingView struct {
	Event           AnimalEvent      `json:"event"`
	MilkYieldRecord *MilkYieldRecord `json:"milk_yield_record"`
}
