package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"reserva/pkg/config"
	"reserva/pkg/events"
	"reserva/pkg/kafka"
	kafka_config "reserva/pkg/kafka/config"
	kafka_middleware "reserva/pkg/kafka/middleware"
)

const (
	ServiceName     = "notifier"
	ConsumerGroupID = "reserva-notifier"
)

// The notifier turns booking lifecycle events into notification intents for
// residents and facility managers. Actual delivery channels (push, email)
// hang off these intents.
func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg := kafka_config.Load()
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.BookingEventsTopic,
		ConsumerGroupID,
		cfg.BookingEventsDLQTopic,
		handleEvent(cfg),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware())
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdown
		cfg.Log.Info("Shutdown signal received")
		cancel()
	}()

	cfg.Log.Info("Notifier started", "topic", cfg.BookingEventsTopic, "group_id", ConsumerGroupID)
	if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Warn("Failed to close consumer", "error", err)
	}
}

func handleEvent(cfg *config.Config) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event events.BookingEvent
		if err := msg.DecodeValue(&event); err != nil {
			return err
		}

		cfg.Log.Info("Notification intent",
			"type", event.Type,
			"booking_id", event.BookingID,
			"amenity_id", event.AmenityID,
			"slot_key", event.SlotKey,
			"recipient", event.RequesterID,
			"to_status", event.ToStatus,
			"payment_status", event.PaymentStatus,
		)
		return nil
	}
}
