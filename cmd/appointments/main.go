package main

import (
	"medsched/internal/appointments/handler"
	"medsched/internal/appointments/repository"
	"medsched/internal/appointments/service"
	timetablerepository "medsched/internal/timetables/repository"
	"medsched/pkg/app"
	"medsched/pkg/config"
	"medsched/pkg/events"
)

const ServiceName = "appointments"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Appointments service")

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.AppointmentsTopic, ServiceName, cfg.Log)
	defer publisher.Close()

	appointmentService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewAppointmentHandler(appointmentService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.AppointmentService {
	appointmentRepo := repository.NewMongoAppointmentRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)
	windowRepo := timetablerepository.NewMongoWindowRepository(cfg)

	appointmentService := service.NewAppointmentService(
		appointmentRepo,
		lockRepo,
		windowRepo,
		publisher,
		cfg,
	)

	cfg.Log.Info("Appointment service initialized", "database", cfg.MongoDatabaseName)
	return appointmentService
}
