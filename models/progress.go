package models

import "time"

// Progress labels shown on the timeline.
const (
	ProgressPending    = "Pending"
	ProgressInProgress = "In Progress"
	ProgressCompleted  = "Completed"
)

type ProgressSource string

const (
	// ProgressSystem marks audit entries written by lifecycle transitions.
	ProgressSystem ProgressSource = "system"
	// ProgressServicer marks manual updates posted by the servicer.
	ProgressServicer ProgressSource = "servicer"
)

// WorkProgress is an entry in a booking's append-only timeline. There is no
// update or delete path for it anywhere in the code base.
type WorkProgress struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	BookingID   uint           `json:"booking_id" gorm:"not null;index:idx_progress_booking_time"`
	Title       string         `json:"title" gorm:"size:100;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Status      string         `json:"status" gorm:"size:20;not null"`
	Source      ProgressSource `json:"source" gorm:"type:varchar(20);not null;default:'system'"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null;index:idx_progress_booking_time"`
}

func (WorkProgress) TableName() string {
	return "work_progress"
}

type ProgressCreate struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
}
