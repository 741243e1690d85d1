package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"vehicle-service-server/models"
)

// MemoryStore keeps everything in process memory. Transactions are
// serialized by a mutex and rolled back by restoring a snapshot, which gives
// the same all-or-nothing behavior as the relational store. It backs the
// test suite and STORE_DRIVER=memory.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&memoryRepo{data: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type memoryData struct {
	seq           uint
	users         map[uint]models.User
	servicers     map[uint]models.Servicer
	bookings      map[uint]models.Booking
	statusEvents  []models.BookingStatusEvent
	diagnoses     map[uint]models.Diagnosis // keyed by booking id
	progress      []models.WorkProgress
	feedback      map[uint]models.Feedback // keyed by booking id
	notifications map[uint]models.Notification
	refreshTokens map[string]models.RefreshToken
}

func newMemoryData() *memoryData {
	return &memoryData{
		users:         make(map[uint]models.User),
		servicers:     make(map[uint]models.Servicer),
		bookings:      make(map[uint]models.Booking),
		diagnoses:     make(map[uint]models.Diagnosis),
		feedback:      make(map[uint]models.Feedback),
		notifications: make(map[uint]models.Notification),
		refreshTokens: make(map[string]models.RefreshToken),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	c.seq = d.seq
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.servicers {
		c.servicers[k] = v
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.diagnoses {
		c.diagnoses[k] = v
	}
	for k, v := range d.feedback {
		c.feedback[k] = v
	}
	for k, v := range d.notifications {
		c.notifications[k] = v
	}
	for k, v := range d.refreshTokens {
		c.refreshTokens[k] = v
	}
	c.statusEvents = append([]models.BookingStatusEvent(nil), d.statusEvents...)
	c.progress = append([]models.WorkProgress(nil), d.progress...)
	return c
}

func (d *memoryData) nextID() uint {
	d.seq++
	return d.seq
}

// memoryRepo is only ever used while MemoryStore.mu is held.
type memoryRepo struct {
	data *memoryData
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func (r *memoryRepo) CreateUser(_ context.Context, user *models.User) error {
	for _, u := range r.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrConflict
		}
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.ID = r.data.nextID()
	stamp(&user.CreatedAt)
	user.UpdatedAt = user.CreatedAt
	r.data.users[user.ID] = *user
	return nil
}

func (r *memoryRepo) UserByID(_ context.Context, id uint) (models.User, error) {
	u, ok := r.data.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) UserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range r.data.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (r *memoryRepo) SaveUser(_ context.Context, user *models.User) error {
	if _, ok := r.data.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.data.users[user.ID] = *user
	return nil
}

func (r *memoryRepo) ListUsers(_ context.Context, role models.UserRole) ([]models.User, error) {
	var out []models.User
	for _, u := range r.data.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) RoleOf(_ context.Context, actorID uint) (models.UserRole, error) {
	u, ok := r.data.users[actorID]
	if !ok || !u.IsActive {
		return "", ErrNotFound
	}
	return u.Role, nil
}

func (r *memoryRepo) CreateServicer(_ context.Context, servicer *models.Servicer) error {
	for _, s := range r.data.servicers {
		if s.UserID == servicer.UserID {
			return ErrConflict
		}
	}
	if servicer.Status == "" {
		servicer.Status = models.ServicerAvailable
	}
	if servicer.Rating == 0 && servicer.FeedbackCount == 0 {
		servicer.Rating = models.DefaultServicerRating
	}
	servicer.ID = r.data.nextID()
	stamp(&servicer.CreatedAt)
	servicer.UpdatedAt = servicer.CreatedAt
	r.data.servicers[servicer.ID] = *servicer
	return nil
}

func (r *memoryRepo) ServicerByID(_ context.Context, id uint) (models.Servicer, error) {
	s, ok := r.data.servicers[id]
	if !ok {
		return models.Servicer{}, ErrNotFound
	}
	return s, nil
}

// LockServicer needs no row lock here; transactions already hold the store mutex.
func (r *memoryRepo) LockServicer(ctx context.Context, id uint) (models.Servicer, error) {
	return r.ServicerByID(ctx, id)
}

func (r *memoryRepo) ServicerForUser(_ context.Context, userID uint) (models.Servicer, error) {
	for _, s := range r.data.servicers {
		if s.UserID == userID {
			return s, nil
		}
	}
	return models.Servicer{}, ErrNotFound
}

func (r *memoryRepo) SaveServicer(_ context.Context, servicer *models.Servicer) error {
	if _, ok := r.data.servicers[servicer.ID]; !ok {
		return ErrNotFound
	}
	servicer.UpdatedAt = time.Now()
	r.data.servicers[servicer.ID] = *servicer
	return nil
}

func (r *memoryRepo) UpdateServicerRating(_ context.Context, servicerID uint, rating float64, count int) error {
	s, ok := r.data.servicers[servicerID]
	if !ok {
		return ErrNotFound
	}
	s.Rating = rating
	s.FeedbackCount = count
	s.UpdatedAt = time.Now()
	r.data.servicers[servicerID] = s
	return nil
}

func (r *memoryRepo) SearchServicers(_ context.Context, filter ServicerFilter) ([]models.Servicer, error) {
	var out []models.Servicer
	for _, s := range r.data.servicers {
		if !s.HandlesWorkType(filter.WorkType) {
			continue
		}
		if filter.Location != "" && !strings.Contains(strings.ToLower(s.Location), strings.ToLower(filter.Location)) {
			continue
		}
		if filter.AvailableOnly && s.Status != models.ServicerAvailable {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) CreateBooking(_ context.Context, booking *models.Booking) error {
	if booking.Status == "" {
		booking.Status = models.BookingRequested
	}
	booking.ID = r.data.nextID()
	stamp(&booking.CreatedAt)
	booking.UpdatedAt = booking.CreatedAt
	r.data.bookings[booking.ID] = *booking
	return nil
}

func (r *memoryRepo) FindBookingForActor(_ context.Context, scope BookingScope, bookingID uint, _ bool) (models.Booking, error) {
	b, ok := r.data.bookings[bookingID]
	if !ok {
		return models.Booking{}, ErrNotFound
	}
	switch scope.Role {
	case models.RoleUser:
		if b.UserID != scope.ActorID {
			return models.Booking{}, ErrNotFound
		}
	case models.RoleServicer:
		s, ok := r.data.servicers[b.ServicerID]
		if !ok || s.UserID != scope.ActorID {
			return models.Booking{}, ErrNotFound
		}
	case models.RoleAdmin:
	default:
		return models.Booking{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryRepo) SaveBooking(_ context.Context, booking *models.Booking) error {
	if _, ok := r.data.bookings[booking.ID]; !ok {
		return ErrNotFound
	}
	booking.UpdatedAt = time.Now()
	r.data.bookings[booking.ID] = *booking
	return nil
}

func (r *memoryRepo) ListBookings(_ context.Context, filter BookingFilter) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.data.bookings {
		if filter.UserID != nil && b.UserID != *filter.UserID {
			continue
		}
		if filter.ServicerID != nil && b.ServicerID != *filter.ServicerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, b.Status) {
			continue
		}
		if filter.PaymentStatus != nil && (b.PaymentStatus == nil || *b.PaymentStatus != *filter.PaymentStatus) {
			continue
		}
		if filter.CompletedBefore != nil && (b.CompletedAt == nil || !b.CompletedAt.Before(*filter.CompletedBefore)) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func containsStatus(statuses []models.BookingStatus, s models.BookingStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (r *memoryRepo) RecordStatusEvent(_ context.Context, event *models.BookingStatusEvent) error {
	event.ID = r.data.nextID()
	stamp(&event.CreatedAt)
	r.data.statusEvents = append(r.data.statusEvents, *event)
	return nil
}

func (r *memoryRepo) ListStatusEvents(_ context.Context, bookingID uint) ([]models.BookingStatusEvent, error) {
	var out []models.BookingStatusEvent
	for _, e := range r.data.statusEvents {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateDiagnosis(_ context.Context, diagnosis *models.Diagnosis) error {
	if _, exists := r.data.diagnoses[diagnosis.BookingID]; exists {
		return ErrConflict
	}
	diagnosis.ID = r.data.nextID()
	stamp(&diagnosis.CreatedAt)
	r.data.diagnoses[diagnosis.BookingID] = *diagnosis
	return nil
}

func (r *memoryRepo) DiagnosisForBooking(_ context.Context, bookingID uint) (models.Diagnosis, error) {
	d, ok := r.data.diagnoses[bookingID]
	if !ok {
		return models.Diagnosis{}, ErrNotFound
	}
	return d, nil
}

func (r *memoryRepo) SaveDiagnosis(_ context.Context, diagnosis *models.Diagnosis) error {
	existing, ok := r.data.diagnoses[diagnosis.BookingID]
	if !ok || existing.ID != diagnosis.ID {
		return ErrNotFound
	}
	r.data.diagnoses[diagnosis.BookingID] = *diagnosis
	return nil
}

func (r *memoryRepo) AppendProgress(_ context.Context, entry *models.WorkProgress) error {
	if entry.Source == "" {
		entry.Source = models.ProgressSystem
	}
	entry.ID = r.data.nextID()
	stamp(&entry.UpdatedAt)
	r.data.progress = append(r.data.progress, *entry)
	return nil
}

func (r *memoryRepo) ListProgress(_ context.Context, bookingID uint) ([]models.WorkProgress, error) {
	var out []models.WorkProgress
	for _, p := range r.data.progress {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) CountProgress(_ context.Context, bookingID uint, source models.ProgressSource) (int64, error) {
	var n int64
	for _, p := range r.data.progress {
		if p.BookingID == bookingID && (source == "" || p.Source == source) {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) CreateFeedback(_ context.Context, feedback *models.Feedback) error {
	if _, exists := r.data.feedback[feedback.BookingID]; exists {
		return ErrConflict
	}
	feedback.ID = r.data.nextID()
	stamp(&feedback.CreatedAt)
	r.data.feedback[feedback.BookingID] = *feedback
	return nil
}

func (r *memoryRepo) FeedbackForBooking(_ context.Context, bookingID uint) (models.Feedback, error) {
	f, ok := r.data.feedback[bookingID]
	if !ok {
		return models.Feedback{}, ErrNotFound
	}
	return f, nil
}

func (r *memoryRepo) FeedbackRatings(ctx context.Context, servicerID uint) ([]int, error) {
	list, _ := r.ListFeedback(ctx, servicerID)
	ratings := make([]int, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		ratings = append(ratings, list[i].Rating)
	}
	return ratings, nil
}

func (r *memoryRepo) ListFeedback(_ context.Context, servicerID uint) ([]models.Feedback, error) {
	var out []models.Feedback
	for _, f := range r.data.feedback {
		if servicerID == 0 || f.ServicerID == servicerID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) CreateNotification(_ context.Context, n *models.Notification) error {
	n.ID = r.data.nextID()
	stamp(&n.CreatedAt)
	n.UpdatedAt = n.CreatedAt
	r.data.notifications[n.ID] = *n
	return nil
}

func (r *memoryRepo) ListNotifications(_ context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.data.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) MarkNotificationRead(_ context.Context, userID, notificationID uint) error {
	n, ok := r.data.notifications[notificationID]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	n.UpdatedAt = time.Now()
	r.data.notifications[notificationID] = n
	return nil
}

func (r *memoryRepo) NotificationExists(_ context.Context, userID, bookingID uint, typ string, since time.Time) (bool, error) {
	for _, n := range r.data.notifications {
		if n.UserID == userID && n.Type == typ && n.BookingID != nil && *n.BookingID == bookingID && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if _, exists := r.data.refreshTokens[token.Token]; exists {
		return ErrConflict
	}
	token.ID = r.data.nextID()
	stamp(&token.CreatedAt)
	token.UpdatedAt = token.CreatedAt
	r.data.refreshTokens[token.Token] = *token
	return nil
}

func (r *memoryRepo) RefreshTokenByValue(_ context.Context, token string) (models.RefreshToken, error) {
	rt, ok := r.data.refreshTokens[token]
	if !ok {
		return models.RefreshToken{}, ErrNotFound
	}
	return rt, nil
}

func (r *memoryRepo) RevokeRefreshToken(_ context.Context, token string) error {
	rt, ok := r.data.refreshTokens[token]
	if !ok {
		return ErrNotFound
	}
	rt.IsRevoked = true
	rt.UpdatedAt = time.Now()
	r.data.refreshTokens[token] = rt
	return nil
}

func (r *memoryRepo) DeleteExpiredRefreshTokens(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for k, rt := range r.data.refreshTokens {
		if rt.ExpiresAt.Before(before) {
			delete(r.data.refreshTokens, k)
			n++
		}
	}
	return n, nil
}
