package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	amenityrepository "reserva/internal/amenities/repository"
	amenityservice "reserva/internal/amenities/service"
	amenityvalidator "reserva/internal/amenities/validator"
	"reserva/internal/reservations/repository"
	"reserva/internal/reservations/service"
	"reserva/internal/sweeper"
	"reserva/pkg/config"
	"reserva/pkg/events"
	"reserva/pkg/kafka"
	kafka_config "reserva/pkg/kafka/config"
)

const ServiceName = "sweeper"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	publisher := initPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Warn("Failed to close event publisher", "error", err)
		}
	}()

	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)
	amenityRepo := amenityrepository.NewMongoAmenityRepository(cfg)
	catalog := amenityservice.NewCatalogService(
		amenityRepo,
		bookingRepo,
		amenityvalidator.NewAmenityValidator(cfg.Log),
		cfg,
	)
	lifecycle := service.NewLifecycleManager(bookingRepo, lockRepo, catalog, publisher, cfg)

	s := sweeper.New(bookingRepo, lifecycle, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdown
		cfg.Log.Info("Shutdown signal received")
		s.Stop()
		cancel()
	}()

	s.Run(ctx)
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled {
		return events.NewNoopPublisher()
	}

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka producer", "error", err)
	}

	return events.NewKafkaPublisher(producer, ServiceName, cfg.Log)
}
