// Package slots holds the pure temporal arithmetic shared by the timetable
// and appointment services: boundary alignment, slot enumeration within a
// window, and slot membership checks. Nothing here touches storage.
package slots

import "time"

// Aligned reports whether t sits exactly on a slot boundary, i.e. its wall
// clock offset within the hour is a whole multiple of the slot duration.
func Aligned(t time.Time, slot time.Duration) bool {
	return t.Truncate(slot).Equal(t)
}

// Count returns the number of bookable slots in [start, end). The final slot
// may be shorter than the slot duration when the interval is not an exact
// multiple, so this is a ceiling division.
func Count(start, end time.Time, slot time.Duration) int {
	if !end.After(start) {
		return 0
	}
	span := end.Sub(start)
	return int((span + slot - 1) / slot)
}

// Starts enumerates the slot start instants of [start, end) in ascending
// order: start, start+slot, ... strictly less than end. The result depends
// only on the interval, so callers may re-derive it freely.
func Starts(start, end time.Time, slot time.Duration) []time.Time {
	n := Count(start, end, slot)
	out := make([]time.Time, 0, n)
	for t := start; t.Before(end); t = t.Add(slot) {
		out = append(out, t)
	}
	return out
}

// Contains reports whether t is a valid slot start within [start, end):
// inside the interval and on the slot grid anchored at start.
func Contains(start, end time.Time, slot time.Duration, t time.Time) bool {
	if t.Before(start) || !t.Before(end) {
		return false
	}
	return t.Sub(start)%slot == 0
}
