package model

import "time"

// Appointment reserves exactly one slot of one window for one patient.
// Appointments are never mutated in place; a change is cancel + rebook.
type Appointment struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	TimetableID string    `json:"timetable_id" bson:"timetable_id" validate:"required,mongodb"`
	PatientID   string    `json:"patient_id" bson:"patient_id" validate:"required,min=1,max=64"`
	SlotTime    time.Time `json:"time" bson:"slot_time" validate:"required"`
	CreatedAt   time.Time `json:"created_at,omitempty" bson:"created_at" validate:"omitempty"`
}
