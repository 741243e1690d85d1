package services

import (
	"context"
	"errors"
	"fmt"

	"vehicle-service-server/models"
	"vehicle-service-server/store"
)

// BookingView is what a booking detail page shows. Diagnosis is only set
// while the booking is Pending and a diagnosis exists; after approval it is
// hidden again and must be fetched with DiagnosisFor.
type BookingView struct {
	Booking   models.Booking        `json:"booking"`
	Progress  []models.WorkProgress `json:"progress"`
	Diagnosis *models.Diagnosis     `json:"diagnosis"`
	Feedback  *models.Feedback      `json:"feedback,omitempty"`
}

// lookup resolves the actor's role and returns the booking if the actor may
// see it.
func (s *BookingService) lookup(ctx context.Context, repo store.Repository, actorID, bookingID uint) (models.Booking, error) {
	role, err := s.roleOf(ctx, repo, actorID)
	if err != nil {
		return models.Booking{}, err
	}
	b, err := repo.FindBookingForActor(ctx, store.BookingScope{ActorID: actorID, Role: role}, bookingID, false)
	if err != nil {
		return models.Booking{}, translate(err)
	}
	return b, nil
}

func (s *BookingService) GetBookingView(ctx context.Context, actorID, bookingID uint) (BookingView, error) {
	var view BookingView
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		b, err := s.lookup(ctx, repo, actorID, bookingID)
		if err != nil {
			return err
		}
		view.Booking = b
		if view.Progress, err = repo.ListProgress(ctx, b.ID); err != nil {
			return err
		}

		if b.Status == models.BookingPending {
			d, err := repo.DiagnosisForBooking(ctx, b.ID)
			switch {
			case err == nil:
				view.Diagnosis = &d
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if b.Status == models.BookingCompleted {
			fb, err := repo.FeedbackForBooking(ctx, b.ID)
			switch {
			case err == nil:
				view.Feedback = &fb
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}
		return nil
	})
	return view, err
}

// DiagnosisFor fetches the diagnosis of a booking the actor can see,
// regardless of the booking status.
func (s *BookingService) DiagnosisFor(ctx context.Context, actorID, bookingID uint) (models.Diagnosis, error) {
	var d models.Diagnosis
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		b, err := s.lookup(ctx, repo, actorID, bookingID)
		if err != nil {
			return err
		}
		d, err = repo.DiagnosisForBooking(ctx, b.ID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: diagnosis", ErrNotFound)
		}
		return err
	})
	return d, err
}

func (s *BookingService) ListStatusEvents(ctx context.Context, actorID, bookingID uint) ([]models.BookingStatusEvent, error) {
	var out []models.BookingStatusEvent
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		b, err := s.lookup(ctx, repo, actorID, bookingID)
		if err != nil {
			return err
		}
		out, err = repo.ListStatusEvents(ctx, b.ID)
		return err
	})
	return out, err
}

// listFor runs a booking list query after checking the actor's role. build
// receives the repository to resolve role specific filters.
func (s *BookingService) listFor(ctx context.Context, actorID uint, role models.UserRole, build func(repo store.Repository) (store.BookingFilter, error)) ([]models.Booking, error) {
	var out []models.Booking
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		actual, err := s.roleOf(ctx, repo, actorID)
		if err != nil {
			return err
		}
		if actual != role {
			return fmt.Errorf("%w: %s only", ErrForbidden, role)
		}
		filter, err := build(repo)
		if err != nil {
			return err
		}
		out, err = repo.ListBookings(ctx, filter)
		return err
	})
	return out, err
}

func (s *BookingService) userFilter(actorID uint, statuses []models.BookingStatus) func(store.Repository) (store.BookingFilter, error) {
	return func(store.Repository) (store.BookingFilter, error) {
		return store.BookingFilter{UserID: &actorID, Statuses: statuses}, nil
	}
}

func (s *BookingService) servicerFilter(ctx context.Context, actorID uint, statuses []models.BookingStatus) func(store.Repository) (store.BookingFilter, error) {
	return func(repo store.Repository) (store.BookingFilter, error) {
		sv, err := repo.ServicerForUser(ctx, actorID)
		if errors.Is(err, store.ErrNotFound) {
			return store.BookingFilter{}, fmt.Errorf("%w: servicer profile", ErrNotFound)
		}
		if err != nil {
			return store.BookingFilter{}, err
		}
		return store.BookingFilter{ServicerID: &sv.ID, Statuses: statuses}, nil
	}
}

// ListUserBookings lists the actor's own bookings, optionally narrowed to
// some statuses.
func (s *BookingService) ListUserBookings(ctx context.Context, actorID uint, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return s.listFor(ctx, actorID, models.RoleUser, s.userFilter(actorID, statuses))
}

// ListPendingPayments lists completed bookings still waiting for payment.
func (s *BookingService) ListPendingPayments(ctx context.Context, actorID uint) ([]models.Booking, error) {
	pending := models.PaymentPending
	return s.listFor(ctx, actorID, models.RoleUser, func(store.Repository) (store.BookingFilter, error) {
		return store.BookingFilter{UserID: &actorID, Statuses: []models.BookingStatus{models.BookingCompleted}, PaymentStatus: &pending}, nil
	})
}

// ListWorkHistory lists the actor's paid bookings.
func (s *BookingService) ListWorkHistory(ctx context.Context, actorID uint) ([]models.Booking, error) {
	paid := models.PaymentPaid
	return s.listFor(ctx, actorID, models.RoleUser, func(store.Repository) (store.BookingFilter, error) {
		return store.BookingFilter{UserID: &actorID, Statuses: []models.BookingStatus{models.BookingCompleted}, PaymentStatus: &paid}, nil
	})
}

func (s *BookingService) ListServicerWorklist(ctx context.Context, actorID uint, statuses ...models.BookingStatus) ([]models.Booking, error) {
	if len(statuses) == 0 {
		statuses = []models.BookingStatus{models.BookingRequested, models.BookingPending, models.BookingOngoing}
	}
	return s.listFor(ctx, actorID, models.RoleServicer, s.servicerFilter(ctx, actorID, statuses))
}

func (s *BookingService) ListServicerHistory(ctx context.Context, actorID uint) ([]models.Booking, error) {
	return s.listFor(ctx, actorID, models.RoleServicer, s.servicerFilter(ctx, actorID, []models.BookingStatus{models.BookingCompleted}))
}

// ListAllBookings is the admin overview.
func (s *BookingService) ListAllBookings(ctx context.Context, actorID uint, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return s.listFor(ctx, actorID, models.RoleAdmin, func(store.Repository) (store.BookingFilter, error) {
		return store.BookingFilter{Statuses: statuses}, nil
	})
}

func (s *BookingService) SearchServicers(ctx context.Context, filter store.ServicerFilter) ([]models.Servicer, error) {
	var out []models.Servicer
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		var err error
		out, err = repo.SearchServicers(ctx, filter)
		return err
	})
	return out, err
}
