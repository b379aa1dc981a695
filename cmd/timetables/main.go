package main

import (
	appointmentrepository "medsched/internal/appointments/repository"
	"medsched/internal/timetables/handler"
	"medsched/internal/timetables/repository"
	"medsched/internal/timetables/service"
	"medsched/internal/timetables/validator"
	"medsched/pkg/app"
	"medsched/pkg/config"
	"medsched/pkg/events"
)

const ServiceName = "timetables"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Timetables service")

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.TimetablesTopic, ServiceName, cfg.Log)
	defer publisher.Close()

	timetableService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewTimetableHandler(timetableService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.TimetableService {
	windowValidator := validator.NewWindowValidator(cfg.Log, cfg.SlotDuration, cfg.MaxWindowDuration)
	windowRepo := repository.NewMongoWindowRepository(cfg)
	lockRepo := repository.NewWindowLockRepository(cfg)
	appointmentRepo := appointmentrepository.NewMongoAppointmentRepository(cfg)

	timetableService := service.NewTimetableService(
		windowRepo,
		lockRepo,
		appointmentRepo,
		windowValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Timetable service initialized", "database", cfg.MongoDatabaseName)
	return timetableService
}
