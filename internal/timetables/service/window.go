package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	timetableerrors "medsched/internal/timetables/errors"
	"medsched/internal/timetables/repository"
	"medsched/internal/timetables/validator"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/events"
	"medsched/pkg/model"
	"medsched/pkg/sanitizer"
	"medsched/pkg/slots"

	"go.mongodb.org/mongo-driver/mongo"
)

// AppointmentStore is the slice of the appointment repository the timetable
// service needs for cascade deletes and live-appointment conflict checks.
type AppointmentStore interface {
	FindByTimetables(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error)
	DeleteByTimetables(ctx context.Context, timetableIDs []string) (int64, error)
}

type TimetableService interface {
	Create(ctx context.Context, principal *model.Principal, w *model.Window) error
	Update(ctx context.Context, principal *model.Principal, id string, w *model.Window) error
	Delete(ctx context.Context, principal *model.Principal, id string) error
	DeleteByDoctor(ctx context.Context, principal *model.Principal, doctorID string) error
	DeleteByHospital(ctx context.Context, principal *model.Principal, hospitalID string) error
	ListByDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]*model.Window, error)
	ListByHospital(ctx context.Context, hospitalID string, from, to time.Time) ([]*model.Window, error)
	ListByHospitalRoom(ctx context.Context, hospitalID, room string, from, to time.Time) ([]*model.Window, error)
}

type timetableService struct {
	repo         repository.WindowRepository
	lockRepo     repository.WindowLockRepository
	appointments AppointmentStore
	validator    *validator.WindowValidator
	publisher    events.Publisher
	cfg          *config.Config
}

func NewTimetableService(
	repo repository.WindowRepository,
	lockRepo repository.WindowLockRepository,
	appointments AppointmentStore,
	validator *validator.WindowValidator,
	publisher events.Publisher,
	cfg *config.Config,
) TimetableService {
	return &timetableService{
		repo:         repo,
		lockRepo:     lockRepo,
		appointments: appointments,
		validator:    validator,
		publisher:    publisher,
		cfg:          cfg,
	}
}

func (s *timetableService) Create(ctx context.Context, principal *model.Principal, w *model.Window) error {
	if !principal.CanSchedule() {
		return apperrors.Forbidden("Only admins and managers may manage timetables")
	}

	s.sanitize(w)
	if err := s.validate(w); err != nil {
		return err
	}

	lockID, err := s.acquirePairLock(ctx, w.DoctorID, w.HospitalID)
	if err != nil {
		return err
	}
	defer s.releasePairLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.rejectOverlap(sessCtx, w, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, w); err != nil {
			return apperrors.Internal("Failed to create timetable entry", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create timetable entry",
			"doctor_id", w.DoctorID,
			"hospital_id", w.HospitalID,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Timetable entry created successfully",
		"id", w.ID,
		"doctor_id", w.DoctorID,
		"hospital_id", w.HospitalID,
		"room", w.Room,
		"start", w.Start,
		"end", w.End,
	)
	return nil
}

func (s *timetableService) Update(ctx context.Context, principal *model.Principal, id string, w *model.Window) error {
	if !principal.CanSchedule() {
		return apperrors.Forbidden("Only admins and managers may manage timetables")
	}
	if id == "" {
		return apperrors.InvalidInput("Timetable entry ID cannot be empty")
	}

	s.sanitize(w)
	if err := s.validate(w); err != nil {
		return err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.translateLookupError(err, id)
	}

	lockID, err := s.acquirePairLock(ctx, w.DoctorID, w.HospitalID)
	if err != nil {
		return err
	}
	defer s.releasePairLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.rejectOverlap(sessCtx, w, existing.ID); err != nil {
			return err
		}

		// A shrink or move must not orphan booked slots.
		booked, err := s.appointments.FindByTimetables(sessCtx, []string{id})
		if err != nil {
			return apperrors.Internal("Failed to check existing appointments", err)
		}
		for _, appt := range booked {
			if !slots.Contains(w.Start, w.End, s.cfg.SlotDuration, appt.SlotTime) {
				return apperrors.ConflictingInterval("Cannot update: there are existing appointments during this time")
			}
		}

		if err := s.repo.Replace(sessCtx, id, w); err != nil {
			return apperrors.Internal("Failed to update timetable entry", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update timetable entry", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Timetable entry updated successfully", "id", id)
	return nil
}

func (s *timetableService) Delete(ctx context.Context, principal *model.Principal, id string) error {
	if !principal.CanSchedule() {
		return apperrors.Forbidden("Only admins and managers may manage timetables")
	}
	if id == "" {
		return apperrors.InvalidInput("Timetable entry ID cannot be empty")
	}

	var removed *model.Window
	var cancelled []*model.Appointment

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		w, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return s.translateLookupError(err, id)
		}
		removed = w

		cancelled, err = s.appointments.FindByTimetables(sessCtx, []string{id})
		if err != nil {
			return apperrors.Internal("Failed to load dependent appointments", err)
		}
		if _, err := s.appointments.DeleteByTimetables(sessCtx, []string{id}); err != nil {
			return apperrors.Internal("Failed to delete dependent appointments", err)
		}
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to delete timetable entry", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishDeleted([]*model.Window{removed}, cancelled)
	s.cfg.Log.Info("Timetable entry deleted successfully",
		"id", id,
		"cancelled_appointments", len(cancelled),
	)
	return nil
}

func (s *timetableService) DeleteByDoctor(ctx context.Context, principal *model.Principal, doctorID string) error {
	if !principal.CanSchedule() {
		return apperrors.Forbidden("Only admins and managers may manage timetables")
	}
	if doctorID == "" {
		return apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	return s.deleteAllMatching(ctx, "doctor", doctorID, func(sessCtx mongo.SessionContext) ([]*model.Window, error) {
		return s.repo.FindByDoctor(sessCtx, doctorID)
	})
}

func (s *timetableService) DeleteByHospital(ctx context.Context, principal *model.Principal, hospitalID string) error {
	if !principal.CanSchedule() {
		return apperrors.Forbidden("Only admins and managers may manage timetables")
	}
	if hospitalID == "" {
		return apperrors.InvalidInput("Hospital ID cannot be empty")
	}

	return s.deleteAllMatching(ctx, "hospital", hospitalID, func(sessCtx mongo.SessionContext) ([]*model.Window, error) {
		return s.repo.FindByHospital(sessCtx, hospitalID)
	})
}

// deleteAllMatching cascade-deletes every window produced by find, together
// with all dependent appointments, inside one transaction.
func (s *timetableService) deleteAllMatching(ctx context.Context, scope, scopeID string, find func(mongo.SessionContext) ([]*model.Window, error)) error {
	var removed []*model.Window
	var cancelled []*model.Appointment

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		windows, err := find(sessCtx)
		if err != nil {
			return apperrors.Internal("Failed to load timetable entries", err)
		}
		if len(windows) == 0 {
			return apperrors.NotFoundWithID("Timetable entries", scopeID)
		}
		removed = windows

		ids := make([]string, 0, len(windows))
		for _, w := range windows {
			ids = append(ids, w.ID)
		}

		cancelled, err = s.appointments.FindByTimetables(sessCtx, ids)
		if err != nil {
			return apperrors.Internal("Failed to load dependent appointments", err)
		}
		if _, err := s.appointments.DeleteByTimetables(sessCtx, ids); err != nil {
			return apperrors.Internal("Failed to delete dependent appointments", err)
		}
		if _, err := s.repo.DeleteByIDs(sessCtx, ids); err != nil {
			return apperrors.Internal("Failed to delete timetable entries", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishDeleted(removed, cancelled)
	s.cfg.Log.Info("Timetable entries deleted successfully",
		"scope", scope,
		"scope_id", scopeID,
		"windows", len(removed),
		"cancelled_appointments", len(cancelled),
	)
	return nil
}

func (s *timetableService) ListByDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]*model.Window, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	windows, err := s.repo.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to list timetable entries by doctor", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to list timetable entries", err)
	}
	return windows, nil
}

func (s *timetableService) ListByHospital(ctx context.Context, hospitalID string, from, to time.Time) ([]*model.Window, error) {
	if hospitalID == "" {
		return nil, apperrors.InvalidInput("Hospital ID cannot be empty")
	}

	windows, err := s.repo.ListByHospital(ctx, hospitalID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to list timetable entries by hospital", "hospital_id", hospitalID, "error", err)
		return nil, apperrors.Internal("Failed to list timetable entries", err)
	}
	return windows, nil
}

func (s *timetableService) ListByHospitalRoom(ctx context.Context, hospitalID, room string, from, to time.Time) ([]*model.Window, error) {
	if hospitalID == "" || room == "" {
		return nil, apperrors.InvalidInput("Hospital ID and room must be provided")
	}

	windows, err := s.repo.ListByHospitalRoom(ctx, hospitalID, sanitizer.NormalizeRoom(room), from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to list timetable entries by room",
			"hospital_id", hospitalID,
			"room", room,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to list timetable entries", err)
	}
	return windows, nil
}

// --- Helpers ---

func (s *timetableService) sanitize(w *model.Window) {
	w.HospitalID = sanitizer.NormalizeID(w.HospitalID)
	w.DoctorID = sanitizer.NormalizeID(w.DoctorID)
	w.Room = sanitizer.NormalizeRoom(w.Room)
	w.Start = w.Start.UTC()
	w.End = w.End.UTC()
}

func (s *timetableService) validate(w *model.Window) error {
	if err := s.validator.Validate(w); err != nil {
		s.cfg.Log.Warn("Timetable entry validation failed",
			"doctor_id", w.DoctorID,
			"hospital_id", w.HospitalID,
			"error", err,
		)
		return apperrors.Validation("Timetable entry validation failed", map[string]any{
			"error": err.Error(),
		})
	}
	return nil
}

func (s *timetableService) rejectOverlap(ctx context.Context, w *model.Window, excludeID string) error {
	overlapping, err := s.repo.FindOverlapping(ctx, w.DoctorID, w.HospitalID, w.Start, w.End, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check for overlapping windows", err)
	}
	if len(overlapping) > 0 {
		o := overlapping[0]
		return apperrors.ConflictingInterval(fmt.Sprintf(
			"Window overlaps an existing window (%s - %s) for this doctor and hospital",
			o.Start.Format(time.RFC3339),
			o.End.Format(time.RFC3339),
		))
	}
	return nil
}

func (s *timetableService) translateLookupError(err error, id string) error {
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

func (s *timetableService) acquirePairLock(ctx context.Context, doctorID, hospitalID string) (string, error) {
	lockID := fmt.Sprintf("window_lock_%s_%s", doctorID, hospitalID)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("Another timetable change for this doctor and hospital is in flight. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire timetable lock", err)
	}

	return lockID, nil
}

func (s *timetableService) releasePairLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Delete(ctx, lockID); err != nil {
		s.cfg.Log.Warn("Failed to release timetable lock", "lock_id", lockID, "error", err)
	}
}

func (s *timetableService) publishDeleted(windows []*model.Window, cancelled []*model.Appointment) {
	byWindow := make(map[string][]events.AppointmentPayload, len(windows))
	for _, appt := range cancelled {
		byWindow[appt.TimetableID] = append(byWindow[appt.TimetableID], events.AppointmentPayload{
			AppointmentID: appt.ID,
			TimetableID:   appt.TimetableID,
			PatientID:     appt.PatientID,
			SlotTime:      appt.SlotTime,
		})
	}

	for _, w := range windows {
		s.publisher.Publish(context.Background(), events.Event{
			Type: events.TypeTimetableDeleted,
			Key:  w.ID,
			Payload: events.TimetablePayload{
				TimetableID:           w.ID,
				HospitalID:            w.HospitalID,
				DoctorID:              w.DoctorID,
				Start:                 w.Start,
				End:                   w.End,
				CancelledAppointments: byWindow[w.ID],
			},
		})
	}
}
