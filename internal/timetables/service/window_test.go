package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"medsched/internal/timetables/validator"
	"medsched/pkg/config"
	mongotx "medsched/pkg/db/mongo"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/events"
	"medsched/pkg/logger"
	"medsched/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// Mock repositories for testing

type mockWindowRepository struct {
	createFunc          func(ctx context.Context, w *model.Window) error
	findByIDFunc        func(ctx context.Context, id string) (*model.Window, error)
	replaceFunc         func(ctx context.Context, id string, w *model.Window) error
	deleteFunc          func(ctx context.Context, id string) error
	deleteByIDsFunc     func(ctx context.Context, ids []string) (int64, error)
	findOverlappingFunc func(ctx context.Context, doctorID, hospitalID string, start, end time.Time, excludeID string) ([]*model.Window, error)
	findByDoctorFunc    func(ctx context.Context, doctorID string) ([]*model.Window, error)
	findByHospitalFunc  func(ctx context.Context, hospitalID string) ([]*model.Window, error)
}

func (m *mockWindowRepository) Create(ctx context.Context, w *model.Window) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, w)
	}
	return nil
}

func (m *mockWindowRepository) FindByID(ctx context.Context, id string) (*model.Window, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Window{ID: id}, nil
}

func (m *mockWindowRepository) Replace(ctx context.Context, id string, w *model.Window) error {
	if m.replaceFunc != nil {
		return m.replaceFunc(ctx, id, w)
	}
	return nil
}

func (m *mockWindowRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockWindowRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if m.deleteByIDsFunc != nil {
		return m.deleteByIDsFunc(ctx, ids)
	}
	return int64(len(ids)), nil
}

func (m *mockWindowRepository) FindOverlapping(ctx context.Context, doctorID, hospitalID string, start, end time.Time, excludeID string) ([]*model.Window, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, doctorID, hospitalID, start, end, excludeID)
	}
	return nil, nil
}

func (m *mockWindowRepository) FindByDoctor(ctx context.Context, doctorID string) ([]*model.Window, error) {
	if m.findByDoctorFunc != nil {
		return m.findByDoctorFunc(ctx, doctorID)
	}
	return nil, nil
}

func (m *mockWindowRepository) FindByHospital(ctx context.Context, hospitalID string) ([]*model.Window, error) {
	if m.findByHospitalFunc != nil {
		return m.findByHospitalFunc(ctx, hospitalID)
	}
	return nil, nil
}

func (m *mockWindowRepository) ListByDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]*model.Window, error) {
	return nil, nil
}

func (m *mockWindowRepository) ListByHospital(ctx context.Context, hospitalID string, from, to time.Time) ([]*model.Window, error) {
	return nil, nil
}

func (m *mockWindowRepository) ListByHospitalRoom(ctx context.Context, hospitalID, room string, from, to time.Time) ([]*model.Window, error) {
	return nil, nil
}

func (m *mockWindowRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockLockRepository struct {
	mu      sync.Mutex
	held    map[string]bool
	creates int
	deletes int
	failAll bool
}

func newMockLockRepository() *mockLockRepository {
	return &mockLockRepository{held: map[string]bool{}}
}

func (m *mockLockRepository) Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.held[lock.ID] {
		return nil, duplicateKeyError()
	}
	m.held[lock.ID] = true
	m.creates++
	return lock, nil
}

func (m *mockLockRepository) Delete(ctx context.Context, lockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lockID)
	m.deletes++
	return nil
}

type mockAppointmentStore struct {
	findByTimetablesFunc   func(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error)
	deleteByTimetablesFunc func(ctx context.Context, timetableIDs []string) (int64, error)
}

func (m *mockAppointmentStore) FindByTimetables(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error) {
	if m.findByTimetablesFunc != nil {
		return m.findByTimetablesFunc(ctx, timetableIDs)
	}
	return nil, nil
}

func (m *mockAppointmentStore) DeleteByTimetables(ctx context.Context, timetableIDs []string) (int64, error) {
	if m.deleteByTimetablesFunc != nil {
		return m.deleteByTimetablesFunc(ctx, timetableIDs)
	}
	return 0, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) Close() error { return nil }

func duplicateKeyError() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000}},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
		SlotDuration:      30 * time.Minute,
		MaxWindowDuration: 12 * time.Hour,
		SlotLockTTL:       10 * time.Second,
	}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func validWindow(t *testing.T) *model.Window {
	return &model.Window{
		HospitalID: "hosp-1",
		DoctorID:   "doc-1",
		Room:       "205",
		Start:      mustTime(t, "2026-03-02T09:00:00Z"),
		End:        mustTime(t, "2026-03-02T12:00:00Z"),
	}
}

func newTestService(repo *mockWindowRepository, locks *mockLockRepository, appts *mockAppointmentStore, pub *capturingPublisher) TimetableService {
	cfg := testConfig()
	v := validator.NewWindowValidator(cfg.Log, cfg.SlotDuration, cfg.MaxWindowDuration)
	return NewTimetableService(repo, locks, appts, v, pub, cfg)
}

func scheduler() *model.Principal {
	return model.NewPrincipal("admin-1", model.RoleAdmin)
}

func TestCreate_RequiresSchedulerRole(t *testing.T) {
	svc := newTestService(&mockWindowRepository{}, newMockLockRepository(), &mockAppointmentStore{}, &capturingPublisher{})

	patient := model.NewPrincipal("pat-1", model.RolePatient)
	err := svc.Create(context.Background(), patient, validWindow(t))

	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != http.StatusForbidden {
		t.Fatalf("expected 403 for patient, got %d", appErr.StatusCode())
	}
}

func TestCreate_Success(t *testing.T) {
	created := false
	repo := &mockWindowRepository{
		createFunc: func(ctx context.Context, w *model.Window) error {
			created = true
			w.ID = "651234567890123456789012"
			return nil
		},
	}
	locks := newMockLockRepository()
	svc := newTestService(repo, locks, &mockAppointmentStore{}, &capturingPublisher{})

	w := validWindow(t)
	w.Room = "  ward 3 "
	if err := svc.Create(context.Background(), scheduler(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !created {
		t.Error("expected repository Create to be called")
	}
	if w.Room != "WARD 3" {
		t.Errorf("expected room to be normalized, got %q", w.Room)
	}
	if locks.creates != 1 || locks.deletes != 1 {
		t.Errorf("expected lock to be acquired and released once, got %d/%d", locks.creates, locks.deletes)
	}
}

func TestCreate_RejectsOverlap(t *testing.T) {
	created := false
	repo := &mockWindowRepository{
		findOverlappingFunc: func(ctx context.Context, doctorID, hospitalID string, start, end time.Time, excludeID string) ([]*model.Window, error) {
			return []*model.Window{{
				ID:    "651234567890123456789012",
				Start: start.Add(-time.Hour),
				End:   start.Add(time.Hour),
			}}, nil
		},
		createFunc: func(ctx context.Context, w *model.Window) error {
			created = true
			return nil
		},
	}
	locks := newMockLockRepository()
	svc := newTestService(repo, locks, &mockAppointmentStore{}, &capturingPublisher{})

	err := svc.Create(context.Background(), scheduler(), validWindow(t))

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict code, got %s", appErr.Code)
	}
	if appErr.StatusCode() != http.StatusBadRequest {
		t.Errorf("expected overlap to surface as 400, got %d", appErr.StatusCode())
	}
	if created {
		t.Error("repository Create must not run after an overlap")
	}
	if locks.deletes != 1 {
		t.Error("lock must be released even on rejection")
	}
}

func TestCreate_InvalidIntervalRejected(t *testing.T) {
	svc := newTestService(&mockWindowRepository{}, newMockLockRepository(), &mockAppointmentStore{}, &capturingPublisher{})

	w := validWindow(t)
	w.Start = mustTime(t, "2026-03-02T08:00:00Z")
	w.End = mustTime(t, "2026-03-02T21:30:00Z")

	err := svc.Create(context.Background(), scheduler(), w)
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected 400 for over-long window, got %d", appErr.StatusCode())
	}
}

func TestCreate_LockContention(t *testing.T) {
	locks := newMockLockRepository()
	locks.failAll = true
	svc := newTestService(&mockWindowRepository{}, locks, &mockAppointmentStore{}, &capturingPublisher{})

	err := svc.Create(context.Background(), scheduler(), validWindow(t))
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != http.StatusConflict {
		t.Fatalf("expected 409 when lock is held, got %d", appErr.StatusCode())
	}
}

func TestUpdate_RejectsOrphanedAppointments(t *testing.T) {
	const id = "651234567890123456789012"
	repo := &mockWindowRepository{
		findByIDFunc: func(ctx context.Context, findID string) (*model.Window, error) {
			w := validWindow(t)
			w.ID = id
			return w, nil
		},
	}
	appts := &mockAppointmentStore{
		findByTimetablesFunc: func(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error) {
			return []*model.Appointment{{
				ID:          "aaaaaaaaaaaaaaaaaaaaaaaa",
				TimetableID: id,
				PatientID:   "pat-1",
				SlotTime:    mustTime(t, "2026-03-02T11:30:00Z"),
			}}, nil
		},
	}
	svc := newTestService(repo, newMockLockRepository(), appts, &capturingPublisher{})

	// Shrinks the window to 09:00-11:00 while a booking holds 11:30.
	updated := validWindow(t)
	updated.End = mustTime(t, "2026-03-02T11:00:00Z")

	err := svc.Update(context.Background(), scheduler(), id, updated)
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict || appErr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected conflict as 400, got %s/%d", appErr.Code, appErr.StatusCode())
	}
}

func TestUpdate_KeepsContainedAppointments(t *testing.T) {
	const id = "651234567890123456789012"
	replaced := false
	repo := &mockWindowRepository{
		findByIDFunc: func(ctx context.Context, findID string) (*model.Window, error) {
			w := validWindow(t)
			w.ID = id
			return w, nil
		},
		replaceFunc: func(ctx context.Context, replaceID string, w *model.Window) error {
			replaced = true
			return nil
		},
	}
	appts := &mockAppointmentStore{
		findByTimetablesFunc: func(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error) {
			return []*model.Appointment{{
				ID:          "aaaaaaaaaaaaaaaaaaaaaaaa",
				TimetableID: id,
				PatientID:   "pat-1",
				SlotTime:    mustTime(t, "2026-03-02T09:30:00Z"),
			}}, nil
		},
	}
	svc := newTestService(repo, newMockLockRepository(), appts, &capturingPublisher{})

	updated := validWindow(t)
	updated.End = mustTime(t, "2026-03-02T11:00:00Z")

	if err := svc.Update(context.Background(), scheduler(), id, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !replaced {
		t.Error("expected repository Replace to be called")
	}
}

func TestDelete_CascadesAppointmentsAndPublishes(t *testing.T) {
	const id = "651234567890123456789012"
	var deletedTimetables []string
	repo := &mockWindowRepository{
		findByIDFunc: func(ctx context.Context, findID string) (*model.Window, error) {
			w := validWindow(t)
			w.ID = id
			return w, nil
		},
	}
	appts := &mockAppointmentStore{
		findByTimetablesFunc: func(ctx context.Context, timetableIDs []string) ([]*model.Appointment, error) {
			return []*model.Appointment{{
				ID:          "aaaaaaaaaaaaaaaaaaaaaaaa",
				TimetableID: id,
				PatientID:   "pat-1",
				SlotTime:    mustTime(t, "2026-03-02T10:00:00Z"),
			}}, nil
		},
		deleteByTimetablesFunc: func(ctx context.Context, timetableIDs []string) (int64, error) {
			deletedTimetables = timetableIDs
			return 1, nil
		},
	}
	pub := &capturingPublisher{}
	svc := newTestService(repo, newMockLockRepository(), appts, pub)

	if err := svc.Delete(context.Background(), scheduler(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(deletedTimetables) != 1 || deletedTimetables[0] != id {
		t.Errorf("expected appointments of %s to be deleted, got %v", id, deletedTimetables)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one deletion event, got %d", len(pub.events))
	}
	payload, ok := pub.events[0].Payload.(events.TimetablePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", pub.events[0].Payload)
	}
	if len(payload.CancelledAppointments) != 1 {
		t.Errorf("expected one cancelled appointment in payload, got %d", len(payload.CancelledAppointments))
	}
}

func TestDeleteByDoctor_NoWindowsIsNotFound(t *testing.T) {
	repo := &mockWindowRepository{
		findByDoctorFunc: func(ctx context.Context, doctorID string) ([]*model.Window, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo, newMockLockRepository(), &mockAppointmentStore{}, &capturingPublisher{})

	err := svc.DeleteByDoctor(context.Background(), scheduler(), "doc-1")
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != http.StatusNotFound {
		t.Fatalf("expected 404 when doctor has no windows, got %d", appErr.StatusCode())
	}
}

func TestDeleteByHospital_CascadesAllWindows(t *testing.T) {
	ids := []string{"651234567890123456789012", "651234567890123456789013"}
	var cascaded []string
	repo := &mockWindowRepository{
		findByHospitalFunc: func(ctx context.Context, hospitalID string) ([]*model.Window, error) {
			out := make([]*model.Window, 0, len(ids))
			for _, id := range ids {
				w := validWindow(t)
				w.ID = id
				out = append(out, w)
			}
			return out, nil
		},
	}
	appts := &mockAppointmentStore{
		deleteByTimetablesFunc: func(ctx context.Context, timetableIDs []string) (int64, error) {
			cascaded = timetableIDs
			return 0, nil
		},
	}
	pub := &capturingPublisher{}
	svc := newTestService(repo, newMockLockRepository(), appts, pub)

	if err := svc.DeleteByHospital(context.Background(), scheduler(), "hosp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cascaded) != 2 {
		t.Errorf("expected both windows' appointments deleted, got %v", cascaded)
	}
	if len(pub.events) != 2 {
		t.Errorf("expected one event per deleted window, got %d", len(pub.events))
	}
}
