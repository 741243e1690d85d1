package services

import "vehicle-service-server/models"

type Action string

const (
	ActionAccept          Action = "accept"
	ActionReject          Action = "reject"
	ActionSubmitDiagnosis Action = "submit_diagnosis"
	ActionApprove         Action = "approve_diagnosis"
	ActionAddProgress     Action = "add_progress"
	ActionComplete        Action = "complete"
	ActionPay             Action = "pay"
	ActionFeedback        Action = "feedback"
)

// transitionMap lists the booking statuses each action may start from.
var transitionMap = map[Action][]models.BookingStatus{
	ActionAccept:          {models.BookingRequested},
	ActionReject:          {models.BookingRequested},
	ActionSubmitDiagnosis: {models.BookingPending},
	ActionApprove:         {models.BookingPending},
	ActionAddProgress:     {models.BookingOngoing},
	ActionComplete:        {models.BookingOngoing},
	ActionPay:             {models.BookingCompleted},
	ActionFeedback:        {models.BookingCompleted},
}

// targetStatus is set only for actions that move the booking.
var targetStatus = map[Action]models.BookingStatus{
	ActionAccept:   models.BookingPending,
	ActionReject:   models.BookingRejected,
	ActionApprove:  models.BookingOngoing,
	ActionComplete: models.BookingCompleted,
}

var actionRole = map[Action]models.UserRole{
	ActionAccept:          models.RoleServicer,
	ActionReject:          models.RoleServicer,
	ActionSubmitDiagnosis: models.RoleServicer,
	ActionApprove:         models.RoleUser,
	ActionAddProgress:     models.RoleServicer,
	ActionComplete:        models.RoleServicer,
	ActionPay:             models.RoleUser,
	ActionFeedback:        models.RoleUser,
}

func ValidTransition(action Action, from models.BookingStatus) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// TargetStatus returns the status an action moves a booking to. ok is false
// for actions that leave the status unchanged.
func TargetStatus(action Action) (models.BookingStatus, bool) {
	s, ok := targetStatus[action]
	return s, ok
}

func RequiredRole(action Action) models.UserRole {
	return actionRole[action]
}
