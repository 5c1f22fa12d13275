package model

type BookingStatus string

const (
	BookingPending     BookingStatus = "PENDING"
	BookingAccepted    BookingStatus = "ACCEPTED"
	BookingRejected    BookingStatus = "REJECTED"
	BookingCancelled   BookingStatus = "CANCELLED"
	BookingRescheduled BookingStatus = "RESCHEDULED"
)

type VisitStatus string

const (
	VisitPending     VisitStatus = "PENDING"
	VisitApproved    VisitStatus = "APPROVED"
	VisitRejected    VisitStatus = "REJECTED"
	VisitCancelled   VisitStatus = "CANCELLED"
	VisitRescheduled VisitStatus = "RESCHEDULED"
	VisitCompleted   VisitStatus = "COMPLETED"
)

var bookingTransitions = map[BookingStatus]map[BookingStatus]bool{
	BookingPending: {
		BookingAccepted:    true,
		BookingRejected:    true,
		BookingCancelled:   true,
		BookingRescheduled: true,
	},
	BookingAccepted: {
		BookingCancelled:   true,
		BookingRescheduled: true,
	},
	BookingRescheduled: {
		BookingAccepted:  true,
		BookingRejected:  true,
		BookingCancelled: true,
	},
}

var visitTransitions = map[VisitStatus]map[VisitStatus]bool{
	VisitPending: {
		VisitApproved:    true,
		VisitRejected:    true,
		VisitCancelled:   true,
		VisitRescheduled: true,
	},
	VisitApproved: {
		VisitCompleted:   true,
		VisitCancelled:   true,
		VisitRescheduled: true,
	},
	VisitRescheduled: {
		VisitApproved:  true,
		VisitRejected:  true,
		VisitCancelled: true,
	},
}

// CanTransitionBooking reports whether (from, to) is in the booking lifecycle table.
func CanTransitionBooking(from, to BookingStatus) bool {
	return bookingTransitions[from][to]
}

// CanTransitionVisit reports whether (from, to) is in the visit lifecycle table.
func CanTransitionVisit(from, to VisitStatus) bool {
	return visitTransitions[from][to]
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingAccepted, BookingRejected, BookingCancelled, BookingRescheduled:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingRejected || s == BookingCancelled
}

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitPending, VisitApproved, VisitRejected, VisitCancelled, VisitRescheduled, VisitCompleted:
		return true
	}
	return false
}

func (s VisitStatus) IsTerminal() bool {
	return s == VisitRejected || s == VisitCancelled || s == VisitCompleted
}
