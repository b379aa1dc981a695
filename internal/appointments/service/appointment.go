package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmenterrors "medsched/internal/appointments/errors"
	"medsched/internal/appointments/repository"
	timetableerrors "medsched/internal/timetables/errors"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/events"
	"medsched/pkg/model"
	"medsched/pkg/sanitizer"
	"medsched/pkg/slots"

	"go.mongodb.org/mongo-driver/mongo"
)

// WindowStore is the slice of the timetable repository the appointment
// service needs to resolve the window a booking targets.
type WindowStore interface {
	FindByID(ctx context.Context, id string) (*model.Window, error)
}

type AppointmentService interface {
	FreeSlots(ctx context.Context, timetableID string) ([]time.Time, error)
	Book(ctx context.Context, principal *model.Principal, timetableID string, slotTime time.Time, patientID string) (*model.Appointment, error)
	Cancel(ctx context.Context, principal *model.Principal, id string) error
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	lockRepo  repository.SlotLockRepository
	windows   WindowStore
	publisher events.Publisher
	cfg       *config.Config
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	lockRepo repository.SlotLockRepository,
	windows WindowStore,
	publisher events.Publisher,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:      repo,
		lockRepo:  lockRepo,
		windows:   windows,
		publisher: publisher,
		cfg:       cfg,
	}
}

// FreeSlots enumerates the window's slot starts and removes the booked ones.
func (s *appointmentService) FreeSlots(ctx context.Context, timetableID string) ([]time.Time, error) {
	if timetableID == "" {
		return nil, apperrors.InvalidInput("Timetable entry ID cannot be empty")
	}

	window, err := s.windows.FindByID(ctx, timetableID)
	if err != nil {
		return nil, s.translateWindowError(err, timetableID)
	}

	booked, err := s.repo.FindByTimetable(ctx, timetableID)
	if err != nil {
		s.cfg.Log.Error("Failed to load appointments", "timetable_id", timetableID, "error", err)
		return nil, apperrors.Internal("Failed to load appointments", err)
	}

	taken := make(map[time.Time]struct{}, len(booked))
	for _, appt := range booked {
		taken[appt.SlotTime.UTC()] = struct{}{}
	}

	free := make([]time.Time, 0, slots.Count(window.Start, window.End, s.cfg.SlotDuration))
	for _, slot := range slots.Starts(window.Start, window.End, s.cfg.SlotDuration) {
		if _, ok := taken[slot]; !ok {
			free = append(free, slot)
		}
	}

	return free, nil
}

func (s *appointmentService) Book(ctx context.Context, principal *model.Principal, timetableID string, slotTime time.Time, patientID string) (*model.Appointment, error) {
	if timetableID == "" {
		return nil, apperrors.InvalidInput("Timetable entry ID cannot be empty")
	}
	if slotTime.IsZero() {
		return nil, apperrors.InvalidInput("Appointment time must be provided")
	}

	patientID = sanitizer.NormalizeID(patientID)
	if patientID == "" {
		patientID = principal.ID
	}
	if !principal.CanBookFor(patientID) {
		return nil, apperrors.Forbidden("Patients may only book appointments for themselves")
	}

	slotTime = slotTime.UTC()

	lockID, err := s.acquireSlotLock(ctx, timetableID, slotTime)
	if err != nil {
		return nil, err
	}
	defer s.releaseSlotLock(ctx, lockID)

	appointment := &model.Appointment{
		TimetableID: timetableID,
		PatientID:   patientID,
		SlotTime:    slotTime,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		window, err := s.windows.FindByID(sessCtx, timetableID)
		if err != nil {
			return s.translateWindowError(err, timetableID)
		}

		if !slots.Contains(window.Start, window.End, s.cfg.SlotDuration, slotTime) {
			return apperrors.InvalidInput(fmt.Sprintf(
				"Time %s is not a valid slot of this window",
				slotTime.Format(time.RFC3339),
			))
		}

		occupied, err := s.repo.ExistsByTimetableAndSlot(sessCtx, timetableID, slotTime)
		if err != nil {
			return apperrors.Internal("Failed to check slot occupancy", err)
		}
		if occupied {
			return apperrors.Conflict("This appointment slot is already booked")
		}

		if err := s.repo.Create(sessCtx, appointment); err != nil {
			// The unique (timetable_id, slot_time) index is the final
			// arbiter when two writers slip past the advisory lock.
			if mongo.IsDuplicateKeyError(err) {
				return apperrors.Conflict("This appointment slot is already booked")
			}
			return apperrors.Internal("Failed to create appointment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(context.Background(), events.Event{
		Type: events.TypeAppointmentBooked,
		Key:  appointment.TimetableID,
		Payload: events.AppointmentPayload{
			AppointmentID: appointment.ID,
			TimetableID:   appointment.TimetableID,
			PatientID:     appointment.PatientID,
			SlotTime:      appointment.SlotTime,
		},
	})

	s.cfg.Log.Info("Appointment booked successfully",
		"id", appointment.ID,
		"timetable_id", timetableID,
		"patient_id", patientID,
		"slot_time", slotTime,
	)
	return appointment, nil
}

func (s *appointmentService) Cancel(ctx context.Context, principal *model.Principal, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	var cancelled *model.Appointment

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		appointment, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			if errors.Is(err, appointmenterrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Appointment", id)
			}
			if errors.Is(err, appointmenterrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid appointment ID format")
			}
			return apperrors.Internal("Failed to retrieve appointment", err)
		}

		if !principal.CanCancel(appointment.PatientID) {
			return apperrors.Forbidden("Patients may only cancel their own appointments")
		}
		cancelled = appointment

		if err := s.repo.Delete(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to cancel appointment", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(context.Background(), events.Event{
		Type: events.TypeAppointmentCancelled,
		Key:  cancelled.TimetableID,
		Payload: events.AppointmentPayload{
			AppointmentID: cancelled.ID,
			TimetableID:   cancelled.TimetableID,
			PatientID:     cancelled.PatientID,
			SlotTime:      cancelled.SlotTime,
		},
	})

	s.cfg.Log.Info("Appointment cancelled successfully",
		"id", id,
		"timetable_id", cancelled.TimetableID,
		"patient_id", cancelled.PatientID,
	)
	return nil
}

// --- Helpers ---

func (s *appointmentService) translateWindowError(err error, id string) error {
	if errors.Is(err, timetableerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Timetable entry", id)
	}
	if errors.Is(err, timetableerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid timetable entry ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to retrieve timetable entry", err)
}

func (s *appointmentService) acquireSlotLock(ctx context.Context, timetableID string, slotTime time.Time) (string, error) {
	lockID := fmt.Sprintf("slot_lock_%s_%d", timetableID, slotTime.Unix())

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This appointment slot is being booked by someone else. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

func (s *appointmentService) releaseSlotLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Delete(ctx, lockID); err != nil {
		s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", err)
	}
}
