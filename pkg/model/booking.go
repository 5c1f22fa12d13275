package model

import "time"

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type Contact struct {
	Name  string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" bson:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
}

type Payment struct {
	Status    PaymentStatus `json:"status" bson:"status" validate:"omitempty,oneof=UNPAID PENDING PAID REFUNDED"`
	Amount    int64         `json:"amount" bson:"amount" validate:"min=0"`
	Currency  string        `json:"currency,omitempty" bson:"currency,omitempty" validate:"omitempty,len=3"`
	Reference string        `json:"reference,omitempty" bson:"reference,omitempty"`
}

// ShortletBooking is a rental reservation over calendar days.
type ShortletBooking struct {
	ID                string        `json:"id" bson:"_id" validate:"omitempty,uuid"`
	TenantID          string        `json:"tenant_id" bson:"tenant_id" validate:"required,max=64"`
	LandlordID        string        `json:"landlord_id" bson:"landlord_id" validate:"required,max=64"`
	PropertyID        string        `json:"property_id" bson:"property_id" validate:"required,max=64"`
	StartDate         time.Time     `json:"start_date" bson:"start_date" validate:"required"`
	EndDate           time.Time     `json:"end_date" bson:"end_date" validate:"required,gtfield=StartDate"`
	Status            BookingStatus `json:"status" bson:"status" validate:"required,oneof=PENDING ACCEPTED REJECTED CANCELLED RESCHEDULED"`
	GuestCount        int           `json:"guest_count" bson:"guest_count" validate:"min=1,max=50"`
	Contact           Contact       `json:"contact" bson:"contact"`
	Payment           Payment       `json:"payment" bson:"payment"`
	Reason            string        `json:"reason,omitempty" bson:"reason,omitempty"`
	PreviousStartDate *time.Time    `json:"previous_start_date,omitempty" bson:"previous_start_date,omitempty"`
	PreviousEndDate   *time.Time    `json:"previous_end_date,omitempty" bson:"previous_end_date,omitempty"`
	ReminderSent      bool          `json:"reminder_sent" bson:"reminder_sent"`
	CreatedAt         time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" bson:"updated_at"`
}

// SameRequest reports whether b is the same reservation request as other.
func (b *ShortletBooking) SameRequest(tenantID, propertyID string, start, end time.Time) bool {
	return b.TenantID == tenantID &&
		b.PropertyID == propertyID &&
		DateOf(b.StartDate).Equal(DateOf(start)) &&
		DateOf(b.EndDate).Equal(DateOf(end))
}

// Nights is the number of nights in the half-open stay.
func (b *ShortletBooking) Nights() int {
	return int(DateOf(b.EndDate).Sub(DateOf(b.StartDate)).Hours() / 24)
}
