package models

import "time"

// Animal is a registered head of livestock. Its events are looked up through
// the event store by animal id.
type Animal struct {
	ID        int64     `bson:"_id" json:"id"`
	BirthDate time.Time `bson:"birth_date" json:"birth_date"`
	FarmID    *int64    `bson:"farm_id,omitempty" json:"farm_id,omitempty"`
	Location  Location  `bson:"location" json:"location"`
}

// AgeYears returns the completed years of age at the given instant.
func (a Animal) AgeYears(at time.Time) int {
	return CompletedYears(a.BirthDate, at)
}

// Location holds the country and administrative divisions of an animal or
// event. Zero values mean "not provided".
type Location struct {
	CountryID  int64    `bson:"country_id,omitempty" json:"country_id,omitempty"`
	RegionID   int64    `bson:"region_id,omitempty" json:"region_id,omitempty"`
	DistrictID int64    `bson:"district_id,omitempty" json:"district_id,omitempty"`
	WardID     int64    `bson:"ward_id,omitempty" json:"ward_id,omitempty"`
	VillageID  int64    `bson:"village_id,omitempty" json:"village_id,omitempty"`
	Latitude   *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude  *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
}

// HasDivisions reports whether any administrative division is set.
func (l Location) HasDivisions() bool {
	return l.RegionID != 0 || l.DistrictID != 0 || l.WardID != 0 || l.VillageID != 0
}
