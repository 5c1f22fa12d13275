package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allBookingStatuses = []BookingStatus{
	BookingPending, BookingAccepted, BookingRejected, BookingCancelled, BookingRescheduled,
}

var allVisitStatuses = []VisitStatus{
	VisitPending, VisitApproved, VisitRejected, VisitCancelled, VisitRescheduled, VisitCompleted,
}

func TestCanTransitionBooking(t *testing.T) {
	allowed := map[[2]BookingStatus]bool{
		{BookingPending, BookingAccepted}:      true,
		{BookingPending, BookingRejected}:      true,
		{BookingPending, BookingCancelled}:     true,
		{BookingPending, BookingRescheduled}:   true,
		{BookingAccepted, BookingCancelled}:    true,
		{BookingAccepted, BookingRescheduled}:  true,
		{BookingRescheduled, BookingAccepted}:  true,
		{BookingRescheduled, BookingRejected}:  true,
		{BookingRescheduled, BookingCancelled}: true,
	}

	for _, from := range allBookingStatuses {
		for _, to := range allBookingStatuses {
			assert.Equal(t, allowed[[2]BookingStatus{from, to}], CanTransitionBooking(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransitionVisit(t *testing.T) {
	allowed := map[[2]VisitStatus]bool{
		{VisitPending, VisitApproved}:      true,
		{VisitPending, VisitRejected}:      true,
		{VisitPending, VisitCancelled}:     true,
		{VisitPending, VisitRescheduled}:   true,
		{VisitApproved, VisitCompleted}:    true,
		{VisitApproved, VisitCancelled}:    true,
		{VisitApproved, VisitRescheduled}:  true,
		{VisitRescheduled, VisitApproved}:  true,
		{VisitRescheduled, VisitRejected}:  true,
		{VisitRescheduled, VisitCancelled}: true,
	}

	for _, from := range allVisitStatuses {
		for _, to := range allVisitStatuses {
			assert.Equal(t, allowed[[2]VisitStatus{from, to}], CanTransitionVisit(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range allBookingStatuses {
		if !s.IsTerminal() {
			continue
		}
		for _, to := range allBookingStatuses {
			assert.False(t, CanTransitionBooking(s, to))
		}
	}
	for _, s := range allVisitStatuses {
		if !s.IsTerminal() {
			continue
		}
		for _, to := range allVisitStatuses {
			assert.False(t, CanTransitionVisit(s, to))
		}
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, BookingRescheduled.Valid())
	assert.False(t, BookingStatus("COMPLETED").Valid())
	assert.True(t, VisitCompleted.Valid())
	assert.False(t, VisitStatus("").Valid())
}
