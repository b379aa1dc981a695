// Package events publishes scheduling lifecycle events to Kafka so that
// downstream systems (notifications, audit) can react to bookings and
// cancellations. Publishing is best-effort and happens only after the
// guarded store write has committed.
package events

import "time"

const (
	TypeAppointmentBooked    = "appointment.booked"
	TypeAppointmentCancelled = "appointment.cancelled"
	TypeTimetableDeleted     = "timetable.deleted"
)

type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"-"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AppointmentPayload struct {
	AppointmentID string    `json:"appointment_id"`
	TimetableID   string    `json:"timetable_id"`
	PatientID     string    `json:"patient_id"`
	SlotTime      time.Time `json:"slot_time"`
}

type TimetablePayload struct {
	TimetableID string    `json:"timetable_id"`
	HospitalID  string    `json:"hospital_id"`
	DoctorID    string    `json:"doctor_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`

	// Appointments removed as part of the window deletion, so consumers can
	// notify affected patients from the single deletion event.
	CancelledAppointments []AppointmentPayload `json:"cancelled_appointments,omitempty"`
}
