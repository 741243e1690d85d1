// Package notify fans lifecycle events out to connected clients, either
// directly to the local websocket hub or through Redis pub/sub so every
// server instance sees them.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/models"
)

// Sink is anything that accepts lifecycle events. services.Publisher has the
// same shape.
type Sink interface {
	Publish(ctx context.Context, event models.LifecycleEvent) error
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, event models.LifecycleEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes each event to the structured log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event models.LifecycleEvent) error {
	logger.Info("📣 Lifecycle event",
		zap.String("type", event.Type),
		zap.Uint("booking_id", event.BookingID),
		zap.String("status", string(event.Status)),
		zap.Uints("recipients", event.Recipients),
	)
	return nil
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event models.LifecycleEvent) error

func (f SinkFunc) Publish(ctx context.Context, event models.LifecycleEvent) error {
	return f(ctx, event)
}
