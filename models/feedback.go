package models

import (
	"time"
)

// Feedback is the user's rating of a paid booking. One per booking, never
// edited.
type Feedback struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	BookingID  uint      `json:"booking_id" gorm:"uniqueIndex;not null"`
	UserID     uint      `json:"user_id" gorm:"not null;index"`
	ServicerID uint      `json:"servicer_id" gorm:"not null;index"`
	Rating     int       `json:"rating" gorm:"type:int;not null;check:rating >= 1 AND rating <= 5"`
	Message    string    `json:"message" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets custom table name
func (Feedback) TableName() string { return "feedback" }

type FeedbackCreate struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Message string `json:"message" validate:"required,max=5000"`
}
