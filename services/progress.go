package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vehicle-service-server/models"
	"vehicle-service-server/store"
)

// AddProgress appends a servicer update to the timeline of an Ongoing
// booking whose diagnosis the owner approved. Status is left alone.
func (s *BookingService) AddProgress(ctx context.Context, actorID, bookingID uint, in models.ProgressCreate) (Result, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	return s.run(ctx, ActionAddProgress, actorID, bookingID, func(tx *txContext) error {
		if err := tx.require(ActionAddProgress); err != nil {
			return err
		}
		d, err := tx.repo.DiagnosisForBooking(tx.ctx, tx.booking.ID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !d.UserApproved) {
			return fmt.Errorf("%w: diagnosis has not been approved", ErrWrongState)
		}
		if err != nil {
			return err
		}

		entry := &models.WorkProgress{
			BookingID:   tx.booking.ID,
			Title:       in.Title,
			Description: in.Description,
			Status:      models.ProgressInProgress,
			Source:      models.ProgressServicer,
			UpdatedAt:   tx.now,
		}
		if err := tx.repo.AppendProgress(tx.ctx, entry); err != nil {
			return err
		}
		return tx.notify(models.EventProgressAdded, in.Title, in.Description)
	})
}

// ListProgress returns the booking timeline oldest first.
func (s *BookingService) ListProgress(ctx context.Context, actorID, bookingID uint) ([]models.WorkProgress, error) {
	var out []models.WorkProgress
	err := s.store.Transaction(ctx, func(repo store.Repository) error {
		booking, err := s.lookup(ctx, repo, actorID, bookingID)
		if err != nil {
			return err
		}
		out, err = repo.ListProgress(ctx, booking.ID)
		return err
	})
	return out, err
}
