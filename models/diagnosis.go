package models

import (
	"time"

	"github.com/lib/pq"
)

// Diagnosis is the servicer's report and estimate for a booking. At most one
// exists per booking and only UserApproved ever changes after creation.
type Diagnosis struct {
	ID                      uint           `json:"id" gorm:"primaryKey"`
	BookingID               uint           `json:"booking_id" gorm:"uniqueIndex;not null"`
	Report                  string         `json:"report" gorm:"type:text;not null"`
	WorkItems               pq.StringArray `json:"work_items" gorm:"type:text[]"`
	EstimatedCost           *float64       `json:"estimated_cost" gorm:"type:decimal(10,2)"`
	EstimatedCompletionTime *string        `json:"estimated_completion_time" gorm:"size:100"`
	UserApproved            bool           `json:"user_approved" gorm:"default:false"`
	// UserRejected exists in the schema but no operation sets it.
	UserRejected bool       `json:"user_rejected" gorm:"default:false"`
	ApprovedAt   *time.Time `json:"approved_at"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Diagnosis) TableName() string {
	return "diagnoses"
}

type DiagnosisCreate struct {
	Report                  string   `json:"report" validate:"required,max=10000"`
	WorkItems               []string `json:"work_items" validate:"dive,required,max=200"`
	EstimatedCost           *float64 `json:"estimated_cost" validate:"omitempty,gte=0"`
	EstimatedCompletionTime *string  `json:"estimated_completion_time" validate:"omitempty,max=100"`
}
