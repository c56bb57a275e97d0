package main

import (
	"reserva/internal/amenities/handler"
	"reserva/internal/amenities/repository"
	"reserva/internal/amenities/service"
	"reserva/internal/amenities/validator"
	bookingrepository "reserva/internal/reservations/repository"
	"reserva/pkg/app"
	"reserva/pkg/config"
)

const ServiceName = "amenities"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Amenities service")
	catalog := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewAmenityHandler(catalog, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.CatalogService {
	amenityRepo := repository.NewMongoAmenityRepository(cfg)
	// availability listings count active bookings straight off the ledger
	bookingRepo := bookingrepository.NewMongoBookingRepository(cfg)

	catalog := service.NewCatalogService(
		amenityRepo,
		bookingRepo,
		validator.NewAmenityValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Catalog service initialized", "database", cfg.MongoDatabaseName)
	return catalog
}
