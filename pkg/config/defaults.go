package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "medsched"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	// DefaultSlotDuration is the bookable slot grid; window boundaries and
	// appointment instants must land on it.
	DefaultSlotDuration = 30 * time.Minute

	// DefaultMaxWindowDuration caps a single availability window.
	DefaultMaxWindowDuration = 12 * time.Hour

	// DefaultSlotLockTTL bounds how long an advisory slot lock can outlive a
	// crashed request before the TTL monitor reaps it.
	DefaultSlotLockTTL = 10 * time.Second

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultAppointmentsTopic = "medsched.appointments"
	DefaultTimetablesTopic   = "medsched.timetables"
)
