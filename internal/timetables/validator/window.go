package validator

import (
	"errors"
	"fmt"
	"time"

	"medsched/pkg/logger"
	"medsched/pkg/model"
	"medsched/pkg/slots"

	"github.com/go-playground/validator/v10"
)

// Interval rule violations. ValidateInterval returns exactly one of these
// (wrapped), so callers and tests can branch on the kind.
var (
	ErrInvalidOrder     = errors.New("window end must be after its start")
	ErrDurationExceeded = errors.New("window duration exceeds the allowed maximum")
	ErrNotSlotAligned   = errors.New("window boundaries must sit on slot boundaries")
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// WindowValidator checks availability windows for structural and temporal
// well-formedness. It performs no I/O; conflict detection against other
// windows lives in the service layer.
type WindowValidator struct {
	validate *validator.Validate
	slot     time.Duration
	maxSpan  time.Duration
}

func NewWindowValidator(log *logger.Logger, slot, maxSpan time.Duration) *WindowValidator {
	v := validator.New()

	log.Info("Window validator initialized",
		"slot_duration", slot,
		"max_window_duration", maxSpan,
	)

	return &WindowValidator{
		validate: v,
		slot:     slot,
		maxSpan:  maxSpan,
	}
}

// ValidateInterval applies the temporal rules to a candidate [start, end)
// interval: ordering, the duration cap, and slot alignment of both bounds.
func (v *WindowValidator) ValidateInterval(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidOrder,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if end.Sub(start) > v.maxSpan {
		return fmt.Errorf("%w: %s > %s", ErrDurationExceeded, end.Sub(start), v.maxSpan)
	}
	if !slots.Aligned(start, v.slot) || !slots.Aligned(end, v.slot) {
		return fmt.Errorf("%w: boundaries must be multiples of %s", ErrNotSlotAligned, v.slot)
	}
	return nil
}

func (v *WindowValidator) Validate(w *model.Window) error {
	if err := v.validate.Struct(w); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return v.ValidateInterval(w.Start, w.End)
}

func translateValidationErrors(errs validator.ValidationErrors) error {
	first := errs[0]

	message := first.Error()
	switch first.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", first.Field())
	case "min":
		message = fmt.Sprintf("%s must be at least %s characters", first.Field(), first.Param())
	case "max":
		message = fmt.Sprintf("%s must be at most %s characters", first.Field(), first.Param())
	}

	return ValidationError{
		Field:   first.Field(),
		Message: message,
	}
}
