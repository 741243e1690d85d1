package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vehicle-service-server/models"
	"vehicle-service-server/store"
)

// SubmitDiagnosis attaches the servicer's report to a Pending booking. The
// booking status does not change. A second submission returns the existing
// diagnosis with ErrDiagnosisExists and never overwrites it.
func (s *BookingService) SubmitDiagnosis(ctx context.Context, actorID, bookingID uint, in models.DiagnosisCreate) (Result, error) {
	in.Report = strings.TrimSpace(in.Report)
	if err := s.validateInput(in); err != nil {
		return Result{}, err
	}
	return s.run(ctx, ActionSubmitDiagnosis, actorID, bookingID, func(tx *txContext) error {
		existing, err := tx.repo.DiagnosisForBooking(tx.ctx, tx.booking.ID)
		switch {
		case err == nil:
			tx.result.Diagnosis = &existing
			return ErrDiagnosisExists
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := tx.require(ActionSubmitDiagnosis); err != nil {
			return err
		}

		d := &models.Diagnosis{
			BookingID:               tx.booking.ID,
			Report:                  in.Report,
			WorkItems:               in.WorkItems,
			EstimatedCost:           in.EstimatedCost,
			EstimatedCompletionTime: in.EstimatedCompletionTime,
			CreatedAt:               tx.now,
		}
		if err := tx.repo.CreateDiagnosis(tx.ctx, d); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrDiagnosisExists
			}
			return err
		}
		tx.result.Diagnosis = d

		desc := "The service center sent a diagnosis report for your approval."
		if d.EstimatedCost != nil {
			desc = fmt.Sprintf("Estimated cost %.2f. Awaiting your approval.", *d.EstimatedCost)
		}
		if err := tx.audit("Diagnosis Submitted", desc, models.ProgressPending); err != nil {
			return err
		}
		return tx.notify(models.EventDiagnosisSubmitted, "Diagnosis ready", fmt.Sprintf("A diagnosis for %s is waiting for your approval.", tx.booking.VehicleNumber))
	})
}

// ApproveDiagnosis records the owner's consent and starts the work. Calling
// it again after approval reports ErrAlreadyApproved and changes nothing.
func (s *BookingService) ApproveDiagnosis(ctx context.Context, actorID, bookingID uint) (Result, error) {
	return s.run(ctx, ActionApprove, actorID, bookingID, func(tx *txContext) error {
		d, err := tx.repo.DiagnosisForBooking(tx.ctx, tx.booking.ID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no diagnosis submitted for this booking", ErrNotFound)
		}
		if err != nil {
			return err
		}
		tx.result.Diagnosis = &d
		if d.UserApproved {
			return ErrAlreadyApproved
		}
		if err := tx.require(ActionApprove); err != nil {
			return err
		}

		approvedAt := tx.now
		d.UserApproved = true
		d.ApprovedAt = &approvedAt
		if err := tx.repo.SaveDiagnosis(tx.ctx, &d); err != nil {
			return err
		}
		if err := tx.setStatus(models.BookingOngoing); err != nil {
			return err
		}
		return tx.notify(models.EventDiagnosisApproved, "Diagnosis approved", fmt.Sprintf("Work on %s can start.", tx.booking.VehicleNumber))
	})
}
