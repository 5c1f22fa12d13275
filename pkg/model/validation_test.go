package model

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestShortletBooking_Validation(t *testing.T) {
	v := validator.New()
	start := MustDate("2025-10-12")

	valid := func() *ShortletBooking {
		return &ShortletBooking{
			TenantID:   "tenant-1",
			LandlordID: "landlord-1",
			PropertyID: "property-1",
			StartDate:  start,
			EndDate:    AddDays(start, 3),
			Status:     BookingPending,
			GuestCount: 2,
			Contact:    Contact{Name: "Ada Obi", Email: "ada@example.com", Phone: "+2348012345678"},
			Payment:    Payment{Status: PaymentUnpaid, Amount: 45000, Currency: "NGN"},
		}
	}

	tests := []struct {
		name        string
		mutate      func(b *ShortletBooking)
		expectValid bool
	}{
		{name: "valid booking", mutate: func(*ShortletBooking) {}, expectValid: true},
		{name: "missing tenant", mutate: func(b *ShortletBooking) { b.TenantID = "" }},
		{name: "end equals start", mutate: func(b *ShortletBooking) { b.EndDate = b.StartDate }},
		{name: "unknown status", mutate: func(b *ShortletBooking) { b.Status = "ARCHIVED" }},
		{name: "zero guests", mutate: func(b *ShortletBooking) { b.GuestCount = 0 }},
		{name: "bad contact email", mutate: func(b *ShortletBooking) { b.Contact.Email = "not-an-email" }},
		{name: "bad phone format", mutate: func(b *ShortletBooking) { b.Contact.Phone = "0801" }},
		{name: "negative amount", mutate: func(b *ShortletBooking) { b.Payment.Amount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(b)
			err := v.Struct(b)
			if tt.expectValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestVisit_Validation(t *testing.T) {
	v := validator.New()
	at := time.Date(2025, 10, 12, 14, 0, 0, 0, time.UTC)

	visit := &Visit{
		PropertyID:      "property-1",
		VisitorID:       "visitor-1",
		LandlordID:      "landlord-1",
		SlotID:          "slot-1",
		ScheduledAt:     at,
		DurationMinutes: 30,
		Status:          VisitPending,
	}
	assert.NoError(t, v.Struct(visit))
	assert.Equal(t, at.Add(30*time.Minute), visit.EndsAt())

	visit.SlotID = ""
	assert.Error(t, v.Struct(visit))
}

func TestAvailabilitySlot_Validation(t *testing.T) {
	v := validator.New()
	start := time.Date(2025, 10, 12, 9, 0, 0, 0, time.UTC)

	slot := &AvailabilitySlot{PropertyID: "p", LandlordID: "l", StartTime: start, EndTime: start.Add(time.Hour)}
	assert.NoError(t, v.Struct(slot))
	assert.Equal(t, 60, slot.DurationMinutes())
	assert.True(t, slot.Covers(start, start.Add(30*time.Minute)))
	assert.False(t, slot.Covers(start, start.Add(2*time.Hour)))

	slot.EndTime = start
	assert.Error(t, v.Struct(slot))
}
