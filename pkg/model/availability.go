package model

import "time"

// ShortletAvailability is a landlord-declared open date range, both ends inclusive.
type ShortletAvailability struct {
	ID         string    `json:"id" bson:"_id" validate:"omitempty,uuid"`
	LandlordID string    `json:"landlord_id" bson:"landlord_id" validate:"required,max=64"`
	PropertyID string    `json:"property_id" bson:"property_id" validate:"required,max=64"`
	StartDate  time.Time `json:"start_date" bson:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" bson:"end_date" validate:"required"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Contains reports whether [start, end] lies entirely inside this single range.
func (a *ShortletAvailability) Contains(start, end time.Time) bool {
	return !a.StartDate.After(DateOf(start)) && !a.EndDate.Before(DateOf(end))
}

// Touches is the closed-interval overlap test used when declaring new ranges.
func (a *ShortletAvailability) Touches(start, end time.Time) bool {
	return !a.StartDate.After(DateOf(end)) && !a.EndDate.Before(DateOf(start))
}
