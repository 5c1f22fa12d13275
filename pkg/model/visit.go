package model

import "time"

// Visit is a viewing appointment bound to exactly one availability slot.
type Visit struct {
	ID                  string      `json:"id" bson:"_id" validate:"omitempty,uuid"`
	PropertyID          string      `json:"property_id" bson:"property_id" validate:"required,max=64"`
	VisitorID           string      `json:"visitor_id" bson:"visitor_id" validate:"required,max=64"`
	LandlordID          string      `json:"landlord_id" bson:"landlord_id" validate:"required,max=64"`
	SlotID              string      `json:"slot_id" bson:"slot_id" validate:"required"`
	ScheduledAt         time.Time   `json:"scheduled_at" bson:"scheduled_at" validate:"required"`
	DurationMinutes     int         `json:"duration_minutes" bson:"duration_minutes" validate:"min=1,max=1440"`
	Status              VisitStatus `json:"status" bson:"status" validate:"required,oneof=PENDING APPROVED REJECTED CANCELLED RESCHEDULED COMPLETED"`
	Notes               string      `json:"notes,omitempty" bson:"notes,omitempty" validate:"max=500"`
	Reason              string      `json:"reason,omitempty" bson:"reason,omitempty"`
	PreviousScheduledAt *time.Time  `json:"previous_scheduled_at,omitempty" bson:"previous_scheduled_at,omitempty"`
	FeedbackNotified    bool        `json:"feedback_notified" bson:"feedback_notified"`
	ReminderSent        bool        `json:"reminder_sent" bson:"reminder_sent"`
	CreatedAt           time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" bson:"updated_at"`
}

func (v *Visit) EndsAt() time.Time {
	return v.ScheduledAt.Add(time.Duration(v.DurationMinutes) * time.Minute)
}
