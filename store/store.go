// Package store is the persistence boundary of the booking core. Every read
// and write goes through a Repository obtained from Store.Transaction, so a
// lifecycle transition is a single atomic unit.
package store

import (
	"context"
	"time"

	"vehicle-service-server/models"
)

// BookingScope restricts booking lookups to what an actor may see: users see
// their own bookings, servicers see bookings assigned to their service
// center, admins see everything.
type BookingScope struct {
	ActorID uint
	Role    models.UserRole
}

type BookingFilter struct {
	UserID          *uint
	ServicerID      *uint
	Statuses        []models.BookingStatus
	PaymentStatus   *models.PaymentStatus
	CompletedBefore *time.Time
}

type ServicerFilter struct {
	WorkType      string
	Location      string
	AvailableOnly bool
}

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id uint) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error)
	RoleOf(ctx context.Context, actorID uint) (models.UserRole, error)

	CreateServicer(ctx context.Context, servicer *models.Servicer) error
	ServicerByID(ctx context.Context, id uint) (models.Servicer, error)
	// LockServicer reads the servicer row FOR UPDATE so rating recomputes
	// for the same servicer run one at a time.
	LockServicer(ctx context.Context, id uint) (models.Servicer, error)
	ServicerForUser(ctx context.Context, userID uint) (models.Servicer, error)
	SaveServicer(ctx context.Context, servicer *models.Servicer) error
	UpdateServicerRating(ctx context.Context, servicerID uint, rating float64, count int) error
	SearchServicers(ctx context.Context, filter ServicerFilter) ([]models.Servicer, error)

	CreateBooking(ctx context.Context, booking *models.Booking) error
	// FindBookingForActor returns ErrNotFound both when the booking does not
	// exist and when it is outside the actor's scope. forUpdate locks the row
	// until the surrounding transaction ends.
	FindBookingForActor(ctx context.Context, scope BookingScope, bookingID uint, forUpdate bool) (models.Booking, error)
	SaveBooking(ctx context.Context, booking *models.Booking) error
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	RecordStatusEvent(ctx context.Context, event *models.BookingStatusEvent) error
	ListStatusEvents(ctx context.Context, bookingID uint) ([]models.BookingStatusEvent, error)

	CreateDiagnosis(ctx context.Context, diagnosis *models.Diagnosis) error
	DiagnosisForBooking(ctx context.Context, bookingID uint) (models.Diagnosis, error)
	SaveDiagnosis(ctx context.Context, diagnosis *models.Diagnosis) error

	AppendProgress(ctx context.Context, entry *models.WorkProgress) error
	// ListProgress orders by updated_at ascending, id breaking ties.
	ListProgress(ctx context.Context, bookingID uint) ([]models.WorkProgress, error)
	// CountProgress counts entries from one source, or all when source is "".
	CountProgress(ctx context.Context, bookingID uint, source models.ProgressSource) (int64, error)

	CreateFeedback(ctx context.Context, feedback *models.Feedback) error
	FeedbackForBooking(ctx context.Context, bookingID uint) (models.Feedback, error)
	FeedbackRatings(ctx context.Context, servicerID uint) ([]int, error)
	// ListFeedback lists feedback newest first; servicerID 0 lists all.
	ListFeedback(ctx context.Context, servicerID uint) ([]models.Feedback, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uint) error
	NotificationExists(ctx context.Context, userID, bookingID uint, typ string, since time.Time) (bool, error)

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	RefreshTokenByValue(ctx context.Context, token string) (models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// Store runs fn inside one transaction. If fn returns an error nothing it
// wrote is kept.
type Store interface {
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}
