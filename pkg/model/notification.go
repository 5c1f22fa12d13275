package model

type NotificationKind string

const (
	NotifyBookingCreated     NotificationKind = "booking_created"
	NotifyBookingAccepted    NotificationKind = "booking_accepted"
	NotifyBookingRejected    NotificationKind = "booking_rejected"
	NotifyBookingCancelled   NotificationKind = "booking_cancelled"
	NotifyBookingRescheduled NotificationKind = "booking_rescheduled"
	NotifyBookingReminder    NotificationKind = "booking_reminder"

	NotifyVisitRequested   NotificationKind = "visit_requested"
	NotifyVisitApproved    NotificationKind = "visit_approved"
	NotifyVisitRejected    NotificationKind = "visit_rejected"
	NotifyVisitCancelled   NotificationKind = "visit_cancelled"
	NotifyVisitRescheduled NotificationKind = "visit_rescheduled"
	NotifyVisitReminder    NotificationKind = "visit_reminder"
	NotifyVisitFeedback    NotificationKind = "visit_feedback"
)

// Notification is handed to the dispatch service; rendering happens there.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	RecipientID string           `json:"recipient_id"`
	EntityID    string           `json:"entity_id"`
	Data        map[string]any   `json:"data,omitempty"`
}
