package models

import (
	"time"
)

type BookingStatus string

const (
	BookingRequested BookingStatus = "Requested"
	BookingPending   BookingStatus = "Pending"
	BookingOngoing   BookingStatus = "Ongoing"
	BookingCompleted BookingStatus = "Completed"
	BookingRejected  BookingStatus = "Rejected"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingRequested, BookingPending, BookingOngoing, BookingCompleted, BookingRejected:
		return true
	default:
		return false
	}
}

type PickupChoice string

const (
	PickupByServicer PickupChoice = "pickup"
	PickupUserBrings PickupChoice = "self_drop"
)

func (p PickupChoice) Valid() bool {
	return p == PickupByServicer || p == PickupUserBrings
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// Booking is one vehicle service request. Status is the single source of
// truth for its lifecycle position and only changes through the booking
// service.
type Booking struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	UserID     uint `json:"user_id" gorm:"not null;index"`
	ServicerID uint `json:"servicer_id" gorm:"not null;index"`

	VehicleMake   string     `json:"vehicle_make" gorm:"size:100;not null"`
	VehicleModel  string     `json:"vehicle_model" gorm:"size:100;not null"`
	OwnerName     string     `json:"owner_name" gorm:"size:100;not null"`
	FuelType      string     `json:"fuel_type" gorm:"size:50;not null"`
	Year          int        `json:"year" gorm:"not null"`
	VehicleNumber string     `json:"vehicle_number" gorm:"size:20;not null"`
	VehiclePhoto  *string    `json:"vehicle_photo" gorm:"size:500"`
	WorkType      string     `json:"work_type" gorm:"size:100;not null"`
	PreferredDate *time.Time `json:"preferred_date" gorm:"type:date"`
	Complaints    string     `json:"complaints" gorm:"type:text"`

	Status          BookingStatus `json:"status" gorm:"type:varchar(20);not null;default:'Requested';index;check:status IN ('Requested','Pending','Ongoing','Completed','Rejected')"`
	PickupChoice    *PickupChoice `json:"pickup_choice" gorm:"type:varchar(20)"`
	RejectionReason *string       `json:"rejection_reason" gorm:"type:text"`

	PaymentRequested bool           `json:"payment_requested" gorm:"default:false"`
	PaymentStatus    *PaymentStatus `json:"payment_status" gorm:"type:varchar(20);index"`
	FinalAmount      *float64       `json:"final_amount" gorm:"type:decimal(10,2)"`
	PaymentDate      *time.Time     `json:"payment_date"`
	CompletionNotes  *string        `json:"completion_notes" gorm:"type:text"`
	CompletedAt      *time.Time     `json:"completed_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Booking model
func (Booking) TableName() string {
	return "bookings"
}

// IsPaid reports whether the settlement tail reached Paid.
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus != nil && *b.PaymentStatus == PaymentPaid
}

// AwaitingPayment reports whether the booking is completed and still owes.
func (b *Booking) AwaitingPayment() bool {
	return b.Status == BookingCompleted && b.PaymentStatus != nil && *b.PaymentStatus == PaymentPending
}

// BookingCreate is the user's service request payload.
type BookingCreate struct {
	ServicerID    uint       `json:"servicer_id" form:"servicer_id" validate:"required"`
	VehicleMake   string     `json:"vehicle_make" form:"vehicle_make" validate:"required,max=100"`
	VehicleModel  string     `json:"vehicle_model" form:"vehicle_model" validate:"required,max=100"`
	OwnerName     string     `json:"owner_name" form:"owner_name" validate:"required,max=100"`
	FuelType      string     `json:"fuel_type" form:"fuel_type" validate:"required,max=50"`
	Year          int        `json:"year" form:"year" validate:"required,min=1900,max=2100"`
	VehicleNumber string     `json:"vehicle_number" form:"vehicle_number" validate:"required,max=20"`
	WorkType      string     `json:"work_type" form:"work_type" validate:"required,max=100"`
	PreferredDate *time.Time `json:"preferred_date" form:"preferred_date" time_format:"2006-01-02"`
	Complaints    string     `json:"complaints" form:"complaints" validate:"max=5000"`
	VehiclePhoto  *string    `json:"-" form:"-"`
}

type AcceptRequest struct {
	PickupChoice PickupChoice `json:"pickup_choice" validate:"required,oneof=pickup self_drop"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type CompleteRequest struct {
	FinalAmount     float64 `json:"final_amount" validate:"gt=0"`
	CompletionNotes string  `json:"completion_notes" validate:"max=5000"`
}

// BookingStatusEvent records every status change of a booking.
type BookingStatusEvent struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	BookingID  uint          `json:"booking_id" gorm:"not null;index"`
	FromStatus BookingStatus `json:"from_status" gorm:"type:varchar(20)"`
	ToStatus   BookingStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	ActorID    uint          `json:"actor_id" gorm:"not null"`
	CreatedAt  time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

func (BookingStatusEvent) TableName() string {
	return "booking_status_events"
}
