package errors

import "errors"

var (
	ErrNotFound = errors.New("timetable entry not found")

	ErrInvalidID = errors.New("invalid timetable entry ID format")
)
