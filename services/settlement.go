package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vehicle-service-server/models"
	"vehicle-service-server/store"
)

// CompleteWork closes an Ongoing booking and opens its payment. At least one
// progress entry must exist; with RequireManualProgress only servicer
// entries count.
func (s *BookingService) CompleteWork(ctx context.Context, actorID, bookingID uint, in models.CompleteRequest) (Result, error) {
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	return s.run(ctx, ActionComplete, actorID, bookingID, func(tx *txContext) error {
		if err := tx.require(ActionComplete); err != nil {
			return err
		}
		var source models.ProgressSource
		if s.requireManualProgress {
			source = models.ProgressServicer
		}
		n, err := tx.repo.CountProgress(tx.ctx, tx.booking.ID, source)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no work progress recorded", ErrWrongState)
		}

		amount := in.FinalAmount
		pending := models.PaymentPending
		completedAt := tx.now
		tx.booking.PaymentRequested = true
		tx.booking.PaymentStatus = &pending
		tx.booking.FinalAmount = &amount
		tx.booking.CompletedAt = &completedAt
		if notes := strings.TrimSpace(in.CompletionNotes); notes != "" {
			tx.booking.CompletionNotes = &notes
		}
		if err := tx.setStatus(models.BookingCompleted); err != nil {
			return err
		}
		desc := fmt.Sprintf("Final amount %.2f", amount)
		if tx.booking.CompletionNotes != nil {
			desc += ". " + *tx.booking.CompletionNotes
		}
		if err := tx.audit("Service Completed", desc, models.ProgressCompleted); err != nil {
			return err
		}
		return tx.notify(models.EventBookingCompleted, "Service completed", fmt.Sprintf("%s is ready. Amount due: %.2f", tx.booking.VehicleNumber, amount))
	})
}

// ProcessPayment settles a completed booking. A repeated call reports
// ErrAlreadyPaid and keeps the first payment date.
func (s *BookingService) ProcessPayment(ctx context.Context, actorID, bookingID uint) (Result, error) {
	return s.run(ctx, ActionPay, actorID, bookingID, func(tx *txContext) error {
		if tx.booking.IsPaid() {
			return ErrAlreadyPaid
		}
		if err := tx.require(ActionPay); err != nil {
			return err
		}
		if !tx.booking.AwaitingPayment() {
			return fmt.Errorf("%w: no payment requested", ErrWrongState)
		}

		paid := models.PaymentPaid
		paidAt := tx.now
		tx.booking.PaymentStatus = &paid
		tx.booking.PaymentDate = &paidAt
		if err := tx.repo.SaveBooking(tx.ctx, tx.booking); err != nil {
			return err
		}
		return tx.notify(models.EventPaymentReceived, "Payment received", fmt.Sprintf("Payment of %.2f for %s received.", derefAmount(tx.booking.FinalAmount), tx.booking.VehicleNumber))
	})
}

// SubmitFeedback rates a paid booking and recomputes the servicer's rating.
func (s *BookingService) SubmitFeedback(ctx context.Context, actorID, bookingID uint, in models.FeedbackCreate) (Result, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	return s.run(ctx, ActionFeedback, actorID, bookingID, func(tx *txContext) error {
		existing, err := tx.repo.FeedbackForBooking(tx.ctx, tx.booking.ID)
		switch {
		case err == nil:
			tx.result.Feedback = &existing
			return ErrFeedbackExists
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := tx.require(ActionFeedback); err != nil {
			return err
		}
		if !tx.booking.IsPaid() {
			return fmt.Errorf("%w: feedback opens after payment", ErrWrongState)
		}

		// Lock the servicer before inserting so the average below sees every
		// committed feedback for it.
		if _, err := tx.repo.LockServicer(tx.ctx, tx.booking.ServicerID); err != nil {
			return err
		}

		fb := &models.Feedback{
			BookingID:  tx.booking.ID,
			UserID:     tx.booking.UserID,
			ServicerID: tx.booking.ServicerID,
			Rating:     in.Rating,
			Message:    in.Message,
			CreatedAt:  tx.now,
		}
		if err := tx.repo.CreateFeedback(tx.ctx, fb); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrFeedbackExists
			}
			return err
		}
		tx.result.Feedback = fb

		ratings, err := tx.repo.FeedbackRatings(tx.ctx, fb.ServicerID)
		if err != nil {
			return err
		}
		if err := tx.repo.UpdateServicerRating(tx.ctx, fb.ServicerID, AverageRating(ratings), len(ratings)); err != nil {
			return err
		}
		return tx.notify(models.EventFeedbackSubmitted, "New feedback", fmt.Sprintf("%d/5 for %s", fb.Rating, tx.booking.VehicleNumber))
	})
}

// AverageRating is the mean of ratings rounded half-up to one decimal place.
// Integer arithmetic keeps 4.25 from becoming 4.2. No ratings gives the
// default rating.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return models.DefaultServicerRating
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	count := len(ratings)
	tenths := (sum*20 + count) / (2 * count)
	return float64(tenths) / 10
}

func derefAmount(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
