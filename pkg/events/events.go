package events

import (
	"context"
	"time"

	"reserva/pkg/kafka"
	"reserva/pkg/logger"
	"reserva/pkg/model"
)

// Event types emitted on booking lifecycle transitions.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingRejected  = "booking.rejected"
	TypeBookingCheckedIn = "booking.checked_in"
	TypeBookingCompleted = "booking.completed"
	TypeBookingCancelled = "booking.cancelled"

	schemaVersion = "1"
)

// BookingEvent is the payload published for every lifecycle transition.
// Consumers (notification dispatch, payment capture) key off Type and the
// status pair.
type BookingEvent struct {
	Type          string              `json:"type"`
	BookingID     string              `json:"booking_id"`
	AmenityID     string              `json:"amenity_id"`
	SlotKey       string              `json:"slot_key"`
	RequesterID   string              `json:"requester_id"`
	FromStatus    model.Status        `json:"from_status,omitempty"`
	ToStatus      model.Status        `json:"to_status"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Publisher delivers booking events to downstream collaborators. Publishing
// is fire-and-forget relative to the ledger: a failed publish is logged, the
// storage write stands.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

// NewKafkaPublisher wraps the shared kafka producer for booking events.
func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event BookingEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventType(event.Type).
		WithSchemaVersion(schemaVersion).
		WithSource(p.source).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
		return err
	}

	p.log.Debug("Booking event published",
		"type", event.Type,
		"booking_id", event.BookingID,
		"to_status", event.ToStatus,
	)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

type noopPublisher struct{}

// NewNoopPublisher is used when events are disabled (local development,
// tests).
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, BookingEvent) error { return nil }
func (noopPublisher) Close() error                                { return nil }
