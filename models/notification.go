package models

import (
	"time"
)

// Lifecycle event types. They double as notification types.
const (
	EventBookingRequested   = "booking.requested"
	EventBookingAccepted    = "booking.accepted"
	EventBookingRejected    = "booking.rejected"
	EventDiagnosisSubmitted = "diagnosis.submitted"
	EventDiagnosisApproved  = "diagnosis.approved"
	EventProgressAdded      = "progress.added"
	EventBookingCompleted   = "booking.completed"
	EventPaymentReceived    = "payment.received"
	EventFeedbackSubmitted  = "feedback.submitted"
	EventPaymentReminder    = "payment.reminder"
)

type Notification struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	BookingID *uint     `json:"booking_id" gorm:"index"`
	Title     string    `json:"title" gorm:"not null"`
	Body      string    `json:"body" gorm:"not null"`
	Type      string    `json:"type" gorm:"not null;index"`
	Read      bool      `json:"read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// LifecycleEvent is what gets fanned out to connected clients after a
// transition commits. Recipients are user account ids.
type LifecycleEvent struct {
	Type       string        `json:"type"`
	BookingID  uint          `json:"booking_id"`
	Status     BookingStatus `json:"status"`
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	Recipients []uint        `json:"recipients"`
	OccurredAt time.Time     `json:"occurred_at"`
}
