package validator

import (
	"errors"
	"testing"
	"time"

	"medsched/pkg/logger"
	"medsched/pkg/model"
)

func newTestValidator() *WindowValidator {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewWindowValidator(log, 30*time.Minute, 12*time.Hour)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func TestValidateInterval(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		start   string
		end     string
		wantErr error
	}{
		{
			name:  "valid three hour window",
			start: "2026-03-02T09:00:00Z",
			end:   "2026-03-02T12:00:00Z",
		},
		{
			name:  "valid maximal window",
			start: "2026-03-02T08:00:00Z",
			end:   "2026-03-02T20:00:00Z",
		},
		{
			name:    "end equals start",
			start:   "2026-03-02T09:00:00Z",
			end:     "2026-03-02T09:00:00Z",
			wantErr: ErrInvalidOrder,
		},
		{
			name:    "end before start",
			start:   "2026-03-02T12:00:00Z",
			end:     "2026-03-02T09:00:00Z",
			wantErr: ErrInvalidOrder,
		},
		{
			name:    "thirteen and a half hours",
			start:   "2026-03-02T08:00:00Z",
			end:     "2026-03-02T21:30:00Z",
			wantErr: ErrDurationExceeded,
		},
		{
			name:    "start at quarter past",
			start:   "2026-03-02T08:15:00Z",
			end:     "2026-03-02T12:00:00Z",
			wantErr: ErrNotSlotAligned,
		},
		{
			name:    "end at quarter to",
			start:   "2026-03-02T08:00:00Z",
			end:     "2026-03-02T11:45:00Z",
			wantErr: ErrNotSlotAligned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInterval(mustTime(t, tt.start), mustTime(t, tt.end))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_StructRules(t *testing.T) {
	v := newTestValidator()

	valid := func() *model.Window {
		return &model.Window{
			HospitalID: "hosp-1",
			DoctorID:   "doc-1",
			Room:       "205",
			Start:      mustTime(t, "2026-03-02T09:00:00Z"),
			End:        mustTime(t, "2026-03-02T12:00:00Z"),
		}
	}

	if err := v.Validate(valid()); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}

	missingRoom := valid()
	missingRoom.Room = ""
	if err := v.Validate(missingRoom); err == nil {
		t.Error("expected missing room to be rejected")
	}

	missingDoctor := valid()
	missingDoctor.DoctorID = ""
	if err := v.Validate(missingDoctor); err == nil {
		t.Error("expected missing doctor to be rejected")
	}

	misaligned := valid()
	misaligned.Start = mustTime(t, "2026-03-02T09:10:00Z")
	if err := v.Validate(misaligned); !errors.Is(err, ErrNotSlotAligned) {
		t.Errorf("expected alignment error, got %v", err)
	}
}
