package main

import (
	amenityrepository "reserva/internal/amenities/repository"
	amenityservice "reserva/internal/amenities/service"
	amenityvalidator "reserva/internal/amenities/validator"
	"reserva/internal/reservations/handler"
	"reserva/internal/reservations/repository"
	"reserva/internal/reservations/service"
	"reserva/internal/reservations/validator"
	"reserva/pkg/app"
	"reserva/pkg/config"
	"reserva/pkg/events"
	"reserva/pkg/kafka"
	kafka_config "reserva/pkg/kafka/config"
	kafka_middleware "reserva/pkg/kafka/middleware"
)

const ServiceName = "reservations"

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

	cfg.Log.Info("Starting Reservations service")
	bookingHandler := initHandler(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(bookingHandler)
	serverApp.Run()
}

func initHandler(cfg *config.Config, publisher events.Publisher) *handler.BookingHandler {
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)

	amenityRepo := amenityrepository.NewMongoAmenityRepository(cfg)
	catalog := amenityservice.NewCatalogService(
		amenityRepo,
		bookingRepo,
		amenityvalidator.NewAmenityValidator(cfg.Log),
		cfg,
	)

	guard := service.NewReservationGuard(
		bookingRepo,
		lockRepo,
		catalog,
		validator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)
	lifecycle := service.NewLifecycleManager(bookingRepo, lockRepo, catalog, publisher, cfg)
	query := service.NewQueryService(bookingRepo, cfg)

	cfg.Log.Info("Reservation services initialized", "database", cfg.MongoDatabaseName)
	return handler.NewBookingHandler(guard, lifecycle, query, cfg.Log)
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Booking events disabled, using noop publisher")
		return events.NewNoopPublisher()
	}

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware())
	producer.Use(kafka_middleware.MetricsProducerMiddleware())

	return events.NewKafkaPublisher(producer, ServiceName, cfg.Log)
}
