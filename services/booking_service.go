package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/models"
	"vehicle-service-server/store"
	"vehicle-service-server/telemetry"
)

var transitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Booking lifecycle operations by action and outcome",
	},
	[]string{"action", "outcome"},
)

// Publisher receives lifecycle events after the transaction that produced
// them has committed.
type Publisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.LifecycleEvent) error { return nil }

type Options struct {
	// RequireManualProgress makes CompleteWork ignore system audit entries
	// when checking that work was logged.
	RequireManualProgress bool
	Now                   func() time.Time
}

// BookingService is the booking lifecycle engine. It owns every status
// change of a booking together with the diagnosis, progress and settlement
// steps hanging off it.
type BookingService struct {
	store                 store.Store
	publisher             Publisher
	validate              *validator.Validate
	now                   func() time.Time
	requireManualProgress bool
	tracer                oteltrace.Tracer
}

func NewBookingService(s store.Store, p Publisher, opts Options) *BookingService {
	if p == nil {
		p = nopPublisher{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		store:                 s,
		publisher:             p,
		validate:              newValidator(),
		now:                   now,
		requireManualProgress: opts.RequireManualProgress,
		tracer:                telemetry.Tracer(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Result is what every lifecycle operation returns. On an AlreadyDone error
// it still holds the unchanged state.
type Result struct {
	Booking   models.Booking        `json:"booking"`
	Diagnosis *models.Diagnosis     `json:"diagnosis,omitempty"`
	Progress  []models.WorkProgress `json:"progress"`
	Feedback  *models.Feedback      `json:"feedback,omitempty"`
	Warning   string                `json:"warning,omitempty"`
}

// txContext is the state shared by one transition while its transaction is
// open.
type txContext struct {
	ctx     context.Context
	repo    store.Repository
	actorID uint
	booking *models.Booking
	now     time.Time
	result  Result
	events  []models.LifecycleEvent
}

// require fails with ErrInvalidTransition unless the locked booking is in a
// status the action may start from.
func (tx *txContext) require(action Action) error {
	if !ValidTransition(action, tx.booking.Status) {
		return fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidTransition, strings.ReplaceAll(string(action), "_", " "), tx.booking.Status)
	}
	return nil
}

func (tx *txContext) setStatus(to models.BookingStatus) error {
	from := tx.booking.Status
	tx.booking.Status = to
	if err := tx.repo.SaveBooking(tx.ctx, tx.booking); err != nil {
		return err
	}
	return tx.repo.RecordStatusEvent(tx.ctx, &models.BookingStatusEvent{
		BookingID:  tx.booking.ID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    tx.actorID,
		CreatedAt:  tx.now,
	})
}

// audit appends a system entry to the progress timeline. It bypasses the
// manual-entry gate.
func (tx *txContext) audit(title, description, label string) error {
	return tx.repo.AppendProgress(tx.ctx, &models.WorkProgress{
		BookingID:   tx.booking.ID,
		Title:       title,
		Description: description,
		Status:      label,
		Source:      models.ProgressSystem,
		UpdatedAt:   tx.now,
	})
}

// notify stores a notification for both parties of the booking and queues
// the event for publishing after commit.
func (tx *txContext) notify(eventType, title, body string) error {
	servicer, err := tx.repo.ServicerByID(tx.ctx, tx.booking.ServicerID)
	if err != nil {
		return err
	}
	recipients := []uint{tx.booking.UserID, servicer.UserID}
	bookingID := tx.booking.ID
	for _, userID := range recipients {
		n := &models.Notification{
			UserID:    userID,
			BookingID: &bookingID,
			Title:     title,
			Body:      body,
			Type:      eventType,
			CreatedAt: tx.now,
		}
		if err := tx.repo.CreateNotification(tx.ctx, n); err != nil {
			return err
		}
	}
	tx.events = append(tx.events, models.LifecycleEvent{
		Type:       eventType,
		BookingID:  bookingID,
		Status:     tx.booking.Status,
		Title:      title,
		Body:       body,
		Recipients: recipients,
		OccurredAt: tx.now,
	})
	return nil
}

// run executes one lifecycle operation: role check, ownership-scoped lookup
// with the booking row locked, then fn, all in a single transaction.
func (s *BookingService) run(ctx context.Context, action Action, actorID, bookingID uint, fn func(tx *txContext) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking."+string(action), oteltrace.WithAttributes(
		attribute.Int64("booking.id", int64(bookingID)),
		attribute.Int64("actor.id", int64(actorID)),
	))
	defer span.End()

	var tx *txContext
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		role, err := s.roleOf(ctx, repo, actorID)
		if err != nil {
			return err
		}
		if role != RequiredRole(action) {
			return fmt.Errorf("%w: %s accounts cannot %s", ErrForbidden, role, strings.ReplaceAll(string(action), "_", " "))
		}

		booking, err := repo.FindBookingForActor(ctx, store.BookingScope{ActorID: actorID, Role: role}, bookingID, true)
		if err != nil {
			return translate(err)
		}

		tx = &txContext{ctx: ctx, repo: repo, actorID: actorID, booking: &booking, now: s.now()}
		fnErr := fn(tx)
		if fnErr != nil && !errors.Is(fnErr, ErrAlreadyDone) {
			return fnErr
		}
		tx.result.Booking = booking
		progress, err := repo.ListProgress(ctx, booking.ID)
		if err != nil {
			return err
		}
		tx.result.Progress = progress
		return fnErr
	})

	outcome := outcomeOf(err)
	transitionsTotal.WithLabelValues(string(action), outcome).Inc()

	switch {
	case err == nil:
		s.publish(ctx, tx.events)
		return tx.result, nil
	case errors.Is(err, ErrAlreadyDone):
		logger.Warn("⚠️ Repeated booking operation", zap.String("action", string(action)), zap.Uint("booking_id", bookingID), zap.Uint("actor_id", actorID))
		result := tx.result
		result.Warning = warningText(err)
		return result, err
	default:
		span.RecordError(err)
		if outcome == "error" {
			span.SetStatus(codes.Error, err.Error())
			logger.Error("❌ Booking operation failed", zap.String("action", string(action)), zap.Uint("booking_id", bookingID), zap.Error(err))
		}
		return Result{}, err
	}
}

func (s *BookingService) publish(ctx context.Context, events []models.LifecycleEvent) {
	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			logger.Warn("Failed to publish lifecycle event", zap.String("type", ev.Type), zap.Uint("booking_id", ev.BookingID), zap.Error(err))
		}
	}
}

// roleOf treats unknown or disabled accounts as forbidden.
func (s *BookingService) roleOf(ctx context.Context, repo store.Repository, actorID uint) (models.UserRole, error) {
	role, err := repo.RoleOf(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: unknown actor", ErrForbidden)
	}
	return role, err
}

func (s *BookingService) validateInput(in interface{}) error {
	if err := s.validate.Struct(in); err != nil {
		return validationFrom(err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: booking", ErrNotFound)
	default:
		return err
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyDone):
		return "already_done"
	case errors.Is(err, ErrWrongState):
		return "wrong_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}

func warningText(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, ErrAlreadyDone.Error()+": ")
}

// AcceptBooking moves a Requested booking to Pending with the servicer's
// pickup choice.
func (s *BookingService) AcceptBooking(ctx context.Context, actorID, bookingID uint, in models.AcceptRequest) (Result, error) {
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	return s.run(ctx, ActionAccept, actorID, bookingID, func(tx *txContext) error {
		if err := tx.require(ActionAccept); err != nil {
			return err
		}
		choice := in.PickupChoice
		tx.booking.PickupChoice = &choice
		if err := tx.setStatus(models.BookingPending); err != nil {
			return err
		}
		desc := "The service center will pick up the vehicle."
		if choice == models.PickupUserBrings {
			desc = "Please bring the vehicle to the service center."
		}
		if err := tx.audit("Request Accepted", desc, models.ProgressCompleted); err != nil {
			return err
		}
		return tx.notify(models.EventBookingAccepted, "Booking accepted", fmt.Sprintf("Your request for %s was accepted.", tx.booking.VehicleNumber))
	})
}

// RejectBooking closes a Requested booking with a reason.
func (s *BookingService) RejectBooking(ctx context.Context, actorID, bookingID uint, in models.RejectRequest) (Result, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	return s.run(ctx, ActionReject, actorID, bookingID, func(tx *txContext) error {
		if err := tx.require(ActionReject); err != nil {
			return err
		}
		reason := in.Reason
		tx.booking.RejectionReason = &reason
		if err := tx.setStatus(models.BookingRejected); err != nil {
			return err
		}
		if err := tx.audit("Request Rejected", reason, models.ProgressCompleted); err != nil {
			return err
		}
		return tx.notify(models.EventBookingRejected, "Booking rejected", fmt.Sprintf("Your request for %s was rejected: %s", tx.booking.VehicleNumber, reason))
	})
}

// ValidateBookingRequest runs every CreateBooking check without writing
// anything, so callers can reject a request before storing its photo.
func (s *BookingService) ValidateBookingRequest(ctx context.Context, actorID uint, in models.BookingCreate) error {
	if err := s.validateInput(in); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(repo store.Repository) error {
		_, err := s.checkBookingRequest(ctx, repo, actorID, in)
		return err
	})
}

func (s *BookingService) checkBookingRequest(ctx context.Context, repo store.Repository, actorID uint, in models.BookingCreate) (models.Servicer, error) {
	role, err := s.roleOf(ctx, repo, actorID)
	if err != nil {
		return models.Servicer{}, err
	}
	if role != models.RoleUser {
		return models.Servicer{}, fmt.Errorf("%w: only users can request a service", ErrForbidden)
	}
	servicer, err := repo.ServicerByID(ctx, in.ServicerID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Servicer{}, fmt.Errorf("%w: servicer", ErrNotFound)
	}
	if err != nil {
		return models.Servicer{}, err
	}
	if servicer.Status == models.ServicerUnavailable {
		return models.Servicer{}, invalidField("servicer_id", "servicer is not accepting requests")
	}
	if !servicer.HandlesWorkType(in.WorkType) {
		return models.Servicer{}, invalidField("work_type", "servicer does not offer this work type")
	}
	return servicer, nil
}

// CreateBooking files a new service request with a servicer.
func (s *BookingService) CreateBooking(ctx context.Context, actorID uint, in models.BookingCreate) (models.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create")
	defer span.End()

	if err := s.validateInput(in); err != nil {
		return models.Booking{}, err
	}

	var booking models.Booking
	var events []models.LifecycleEvent
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		servicer, err := s.checkBookingRequest(ctx, repo, actorID, in)
		if err != nil {
			return err
		}

		booking = models.Booking{
			UserID:        actorID,
			ServicerID:    servicer.ID,
			VehicleMake:   strings.TrimSpace(in.VehicleMake),
			VehicleModel:  strings.TrimSpace(in.VehicleModel),
			OwnerName:     strings.TrimSpace(in.OwnerName),
			FuelType:      in.FuelType,
			Year:          in.Year,
			VehicleNumber: strings.ToUpper(strings.TrimSpace(in.VehicleNumber)),
			VehiclePhoto:  in.VehiclePhoto,
			WorkType:      in.WorkType,
			PreferredDate: in.PreferredDate,
			Complaints:    in.Complaints,
			Status:        models.BookingRequested,
		}
		if err := repo.CreateBooking(ctx, &booking); err != nil {
			return err
		}
		now := s.now()
		if err := repo.RecordStatusEvent(ctx, &models.BookingStatusEvent{BookingID: booking.ID, ToStatus: models.BookingRequested, ActorID: actorID, CreatedAt: now}); err != nil {
			return err
		}
		tx := &txContext{ctx: ctx, repo: repo, actorID: actorID, booking: &booking, now: now}
		if err := tx.notify(models.EventBookingRequested, "New service request", fmt.Sprintf("%s %s (%s) requested %s.", booking.VehicleMake, booking.VehicleModel, booking.VehicleNumber, booking.WorkType)); err != nil {
			return err
		}
		events = tx.events
		return nil
	})
	transitionsTotal.WithLabelValues("create", outcomeOf(err)).Inc()
	if err != nil {
		span.RecordError(err)
		return models.Booking{}, err
	}

	logger.Info("✅ Booking created", zap.Uint("booking_id", booking.ID), zap.Uint("user_id", actorID), zap.Uint("servicer_id", booking.ServicerID))
	s.publish(ctx, events)
	return booking, nil
}
