package model

import "time"

// Window is a doctor's availability block at a hospital room. Bookable slots
// are derived from its interval; it never embeds its appointments.
type Window struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	HospitalID string    `json:"hospital_id" bson:"hospital_id" validate:"required,min=1,max=64"`
	DoctorID   string    `json:"doctor_id" bson:"doctor_id" validate:"required,min=1,max=64"`
	Room       string    `json:"room" bson:"room" validate:"required,min=1,max=64"`
	Start      time.Time `json:"from" bson:"start_time" validate:"required"`
	End        time.Time `json:"to" bson:"end_time" validate:"required"`
	CreatedAt  time.Time `json:"created_at,omitempty" bson:"created_at" validate:"omitempty"`
}
