package model

import "time"

// AvailabilitySlot is a viewing window on a property that at most one visit can hold.
type AvailabilitySlot struct {
	ID         string    `json:"id" bson:"_id" validate:"omitempty,uuid"`
	PropertyID string    `json:"property_id" bson:"property_id" validate:"required,max=64"`
	LandlordID string    `json:"landlord_id" bson:"landlord_id" validate:"required,max=64"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Booked     bool      `json:"booked" bson:"booked"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// Covers reports whether the slot fully spans [start, end].
func (s *AvailabilitySlot) Covers(start, end time.Time) bool {
	return !s.StartTime.After(start) && !s.EndTime.Before(end)
}

func (s *AvailabilitySlot) DurationMinutes() int {
	return int(s.EndTime.Sub(s.StartTime) / time.Minute)
}
