package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/models"
	"vehicle-service-server/services"
	"vehicle-service-server/store"
)

// PaymentReminderJob reminds users of completed bookings that are still
// unpaid. At most one reminder per booking is sent per calendar day.
type PaymentReminderJob struct {
	store     store.Store
	publisher services.Publisher
	after     time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	done      chan struct{}
}

// NewPaymentReminderJob creates a reminder job. Bookings completed more than
// `after` ago are reminded, checked every `interval`.
func NewPaymentReminderJob(s store.Store, p services.Publisher, after, interval time.Duration) *PaymentReminderJob {
	return &PaymentReminderJob{
		store:     s,
		publisher: p,
		after:     after,
		interval:  interval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the reminder loop
func (j *PaymentReminderJob) Start() {
	go j.run()
	logger.Info("🚀 Payment reminder job started", zap.Duration("interval", j.interval))
}

// Stop stops the loop and waits for the current pass to finish
func (j *PaymentReminderJob) Stop() {
	close(j.stopChan)
	<-j.done
	logger.Info("🛑 Payment reminder job stopped")
}

func (j *PaymentReminderJob) run() {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.RunOnce(context.Background()); err != nil {
				logger.Error("❌ Payment reminder pass failed", zap.Error(err))
			}
		case <-j.stopChan:
			return
		}
	}
}

// RunOnce performs one pass and returns how many reminders were sent.
func (j *PaymentReminderJob) RunOnce(ctx context.Context) (int, error) {
	current := j.now()
	cutoff := current.Add(-j.after)
	dayStart := now.With(current).BeginningOfDay()
	pending := models.PaymentPending

	var events []models.LifecycleEvent
	err := j.store.Transaction(ctx, func(repo store.Repository) error {
		bookings, err := repo.ListBookings(ctx, store.BookingFilter{
			Statuses:        []models.BookingStatus{models.BookingCompleted},
			PaymentStatus:   &pending,
			CompletedBefore: &cutoff,
		})
		if err != nil {
			return err
		}
		for _, b := range bookings {
			sent, err := repo.NotificationExists(ctx, b.UserID, b.ID, models.EventPaymentReminder, dayStart)
			if err != nil {
				return err
			}
			if sent {
				continue
			}
			bookingID := b.ID
			body := fmt.Sprintf("Your %s %s service is complete and awaiting payment", b.VehicleMake, b.VehicleModel)
			if b.FinalAmount != nil {
				body = fmt.Sprintf("%s of %.2f", body, *b.FinalAmount)
			}
			n := models.Notification{
				UserID:    b.UserID,
				BookingID: &bookingID,
				Title:     "Payment reminder",
				Body:      body,
				Type:      models.EventPaymentReminder,
				CreatedAt: current,
			}
			if err := repo.CreateNotification(ctx, &n); err != nil {
				return err
			}
			events = append(events, models.LifecycleEvent{
				Type:       models.EventPaymentReminder,
				BookingID:  b.ID,
				Status:     b.Status,
				Title:      n.Title,
				Body:       n.Body,
				Recipients: []uint{b.UserID},
				OccurredAt: current,
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, ev := range events {
		if err := j.publisher.Publish(ctx, ev); err != nil {
			logger.Warn("⚠️ Failed to publish payment reminder", zap.Uint("booking_id", ev.BookingID), zap.Error(err))
		}
	}
	if len(events) > 0 {
		logger.Info("⏰ Payment reminders sent", zap.Int("count", len(events)))
	}
	return len(events), nil
}
