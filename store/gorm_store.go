package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vehicle-service-server/models"
)

// GormStore is the relational Store. Outside a transaction it holds the
// pooled *gorm.DB; inside one it holds the transaction handle.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.conn(ctx).Create(user).Error)
}

func (s *GormStore) UserByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := s.conn(ctx).First(&user, id).Error
	return user, translate(err)
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.conn(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	return user, translate(err)
}

func (s *GormStore) SaveUser(ctx context.Context, user *models.User) error {
	return translate(s.conn(ctx).Save(user).Error)
}

func (s *GormStore) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var users []models.User
	q := s.conn(ctx).Order("id ASC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	err := q.Find(&users).Error
	return users, translate(err)
}

func (s *GormStore) RoleOf(ctx context.Context, actorID uint) (models.UserRole, error) {
	var user models.User
	err := s.conn(ctx).Select("id", "role", "is_active").First(&user, actorID).Error
	if err != nil {
		return "", translate(err)
	}
	if !user.IsActive {
		return "", ErrNotFound
	}
	return user.Role, nil
}

func (s *GormStore) CreateServicer(ctx context.Context, servicer *models.Servicer) error {
	return translate(s.conn(ctx).Create(servicer).Error)
}

func (s *GormStore) ServicerByID(ctx context.Context, id uint) (models.Servicer, error) {
	var servicer models.Servicer
	err := s.conn(ctx).First(&servicer, id).Error
	return servicer, translate(err)
}

func (s *GormStore) LockServicer(ctx context.Context, id uint) (models.Servicer, error) {
	var servicer models.Servicer
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&servicer, id).Error
	return servicer, translate(err)
}

func (s *GormStore) ServicerForUser(ctx context.Context, userID uint) (models.Servicer, error) {
	var servicer models.Servicer
	err := s.conn(ctx).Where("user_id = ?", userID).First(&servicer).Error
	return servicer, translate(err)
}

func (s *GormStore) SaveServicer(ctx context.Context, servicer *models.Servicer) error {
	return translate(s.conn(ctx).Save(servicer).Error)
}

func (s *GormStore) UpdateServicerRating(ctx context.Context, servicerID uint, rating float64, count int) error {
	res := s.conn(ctx).Model(&models.Servicer{}).Where("id = ?", servicerID).Updates(map[string]interface{}{
		"rating":         rating,
		"feedback_count": count,
		"updated_at":     time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SearchServicers(ctx context.Context, filter ServicerFilter) ([]models.Servicer, error) {
	var servicers []models.Servicer
	q := s.conn(ctx).Order("rating DESC, id ASC")
	if filter.WorkType != "" {
		q = q.Where("? = ANY(work_types)", filter.WorkType)
	}
	if filter.Location != "" {
		q = q.Where("location ILIKE ?", "%"+filter.Location+"%")
	}
	if filter.AvailableOnly {
		q = q.Where("status = ?", models.ServicerAvailable)
	}
	err := q.Find(&servicers).Error
	return servicers, translate(err)
}

func (s *GormStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return translate(s.conn(ctx).Create(booking).Error)
}

func (s *GormStore) FindBookingForActor(ctx context.Context, scope BookingScope, bookingID uint, forUpdate bool) (models.Booking, error) {
	var booking models.Booking
	q := s.conn(ctx).Where("id = ?", bookingID)
	switch scope.Role {
	case models.RoleUser:
		q = q.Where("user_id = ?", scope.ActorID)
	case models.RoleServicer:
		q = q.Where("servicer_id IN (?)", s.conn(ctx).Model(&models.Servicer{}).Select("id").Where("user_id = ?", scope.ActorID))
	case models.RoleAdmin:
	default:
		return booking, ErrNotFound
	}
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&booking).Error
	return booking, translate(err)
}

func (s *GormStore) SaveBooking(ctx context.Context, booking *models.Booking) error {
	return translate(s.conn(ctx).Save(booking).Error)
}

func (s *GormStore) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	var bookings []models.Booking
	q := s.conn(ctx).Order("created_at DESC, id DESC")
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.ServicerID != nil {
		q = q.Where("servicer_id = ?", *filter.ServicerID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.PaymentStatus != nil {
		q = q.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.CompletedBefore != nil {
		q = q.Where("completed_at IS NOT NULL AND completed_at < ?", *filter.CompletedBefore)
	}
	err := q.Find(&bookings).Error
	return bookings, translate(err)
}

func (s *GormStore) RecordStatusEvent(ctx context.Context, event *models.BookingStatusEvent) error {
	return translate(s.conn(ctx).Create(event).Error)
}

func (s *GormStore) ListStatusEvents(ctx context.Context, bookingID uint) ([]models.BookingStatusEvent, error) {
	var events []models.BookingStatusEvent
	err := s.conn(ctx).Where("booking_id = ?", bookingID).Order("created_at ASC, id ASC").Find(&events).Error
	return events, translate(err)
}

func (s *GormStore) CreateDiagnosis(ctx context.Context, diagnosis *models.Diagnosis) error {
	return translate(s.conn(ctx).Create(diagnosis).Error)
}

func (s *GormStore) DiagnosisForBooking(ctx context.Context, bookingID uint) (models.Diagnosis, error) {
	var diagnosis models.Diagnosis
	err := s.conn(ctx).Where("booking_id = ?", bookingID).First(&diagnosis).Error
	return diagnosis, translate(err)
}

func (s *GormStore) SaveDiagnosis(ctx context.Context, diagnosis *models.Diagnosis) error {
	return translate(s.conn(ctx).Save(diagnosis).Error)
}

func (s *GormStore) AppendProgress(ctx context.Context, entry *models.WorkProgress) error {
	return translate(s.conn(ctx).Create(entry).Error)
}

func (s *GormStore) ListProgress(ctx context.Context, bookingID uint) ([]models.WorkProgress, error) {
	var entries []models.WorkProgress
	err := s.conn(ctx).Where("booking_id = ?", bookingID).Order("updated_at ASC, id ASC").Find(&entries).Error
	return entries, translate(err)
}

func (s *GormStore) CountProgress(ctx context.Context, bookingID uint, source models.ProgressSource) (int64, error) {
	var count int64
	q := s.conn(ctx).Model(&models.WorkProgress{}).Where("booking_id = ?", bookingID)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	err := q.Count(&count).Error
	return count, translate(err)
}

func (s *GormStore) CreateFeedback(ctx context.Context, feedback *models.Feedback) error {
	return translate(s.conn(ctx).Create(feedback).Error)
}

func (s *GormStore) FeedbackForBooking(ctx context.Context, bookingID uint) (models.Feedback, error) {
	var feedback models.Feedback
	err := s.conn(ctx).Where("booking_id = ?", bookingID).First(&feedback).Error
	return feedback, translate(err)
}

func (s *GormStore) FeedbackRatings(ctx context.Context, servicerID uint) ([]int, error) {
	var ratings []int
	err := s.conn(ctx).Model(&models.Feedback{}).Where("servicer_id = ?", servicerID).Order("id ASC").Pluck("rating", &ratings).Error
	return ratings, translate(err)
}

func (s *GormStore) ListFeedback(ctx context.Context, servicerID uint) ([]models.Feedback, error) {
	var feedback []models.Feedback
	q := s.conn(ctx).Order("created_at DESC, id DESC")
	if servicerID != 0 {
		q = q.Where("servicer_id = ?", servicerID)
	}
	err := q.Find(&feedback).Error
	return feedback, translate(err)
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(s.conn(ctx).Create(n).Error)
}

func (s *GormStore) ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	var notifications []models.Notification
	q := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	err := q.Find(&notifications).Error
	return notifications, translate(err)
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, notificationID uint) error {
	res := s.conn(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{"read": true, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) NotificationExists(ctx context.Context, userID, bookingID uint, typ string, since time.Time) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND booking_id = ? AND type = ? AND created_at >= ?", userID, bookingID, typ, since).
		Count(&count).Error
	return count > 0, translate(err)
}

func (s *GormStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return translate(s.conn(ctx).Create(token).Error)
}

func (s *GormStore) RefreshTokenByValue(ctx context.Context, token string) (models.RefreshToken, error) {
	var rt models.RefreshToken
	err := s.conn(ctx).Where("token = ?", token).First(&rt).Error
	return rt, translate(err)
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, token string) error {
	res := s.conn(ctx).Model(&models.RefreshToken{}).Where("token = ?", token).Update("is_revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	res := s.conn(ctx).Where("expires_at < ?", before).Delete(&models.RefreshToken{})
	return res.RowsAffected, translate(res.Error)
}
