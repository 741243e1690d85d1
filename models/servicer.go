package models

import (
	"time"

	"github.com/lib/pq"
)

type ServicerStatus string

const (
	ServicerAvailable   ServicerStatus = "Available"
	ServicerBusy        ServicerStatus = "Busy"
	ServicerUnavailable ServicerStatus = "Unavailable"
)

func (s ServicerStatus) Valid() bool {
	switch s {
	case ServicerAvailable, ServicerBusy, ServicerUnavailable:
		return true
	default:
		return false
	}
}

// DefaultServicerRating is the rating a service center starts with before
// any feedback arrives.
const DefaultServicerRating = 4.5

// Servicer is a service center's directory entry, owned by exactly one
// servicer account.
type Servicer struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	UserID        uint           `json:"user_id" gorm:"uniqueIndex;not null"`
	Name          string         `json:"name" gorm:"size:100;not null"`
	WorkTypes     pq.StringArray `json:"work_types" gorm:"type:text[]"`
	Location      string         `json:"location" gorm:"size:100;not null"`
	Phone         string         `json:"phone" gorm:"size:15"`
	Email         string         `json:"email" gorm:"size:255"`
	AvailableTime string         `json:"available_time" gorm:"size:100;default:'9:00 AM - 6:00 PM'"`
	Status        ServicerStatus `json:"status" gorm:"type:varchar(20);not null;default:'Available'"`
	Rating        float64        `json:"rating" gorm:"type:decimal(2,1);default:4.5"`
	FeedbackCount int            `json:"feedback_count" gorm:"default:0"`
	ProfileImage  string         `json:"profile_image" gorm:"size:500"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Servicer) TableName() string {
	return "servicers"
}

// HandlesWorkType reports whether the servicer lists the given work type.
// An empty work type matches every servicer.
func (s *Servicer) HandlesWorkType(workType string) bool {
	if workType == "" {
		return true
	}
	for _, wt := range s.WorkTypes {
		if wt == workType {
			return true
		}
	}
	return false
}

// ServicerCreate is the admin payload creating a servicer account and its
// directory entry together.
type ServicerCreate struct {
	FullName      string   `json:"full_name" binding:"required"`
	Email         string   `json:"email" binding:"required,email"`
	Phone         string   `json:"phone" binding:"required"`
	Password      string   `json:"password" binding:"required"`
	Name          string   `json:"name" binding:"required,max=100"`
	WorkTypes     []string `json:"work_types" binding:"required,min=1"`
	Location      string   `json:"location" binding:"required,max=100"`
	AvailableTime string   `json:"available_time"`
}

type ServicerStatusUpdate struct {
	Status ServicerStatus `json:"status" binding:"required"`
}
