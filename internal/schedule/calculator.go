// Package schedule contains the pure firing-time math the scheduler
// consults every tick: when a P1 or P2 event is due, given the current
// time and (for P1) the lights-on time read from the host. It has no
// I/O and no dependency on db, hostclient, or the clock interface —
// just time.Time arithmetic.
package schedule

import (
	"fmt"
	"time"
)


// ParseClockTime parses "HH:MM" or "HH:MM:SS" into the offset from
// midnight it represents.
func ParseClockTime(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q, want HH:MM or HH:MM:SS", s)
}

// ScheduledTimeForP1 computes lights-on time + delayMinutes, anchored to
// now's calendar day.
func ScheduledTimeForP1(now time.Time, lightsOnTime string, delayMinutes int) (time.Time, error) {
	offset, err := ParseClockTime(lightsOnTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("lights_on_entity: %w", err)
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.Add(offset).Add(time.Duration(delayMinutes) * time.Minute), nil
}

// ScheduledTimeForP2 computes the fixed time_of_day, anchored to now's
// calendar day.
func ScheduledTimeForP2(now time.Time, timeOfDay string) (time.Time, error) {
	offset, err := ParseClockTime(timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("time_of_day: %w", err)
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.Add(offset), nil
}

// IsDue reports whether now has reached scheduledFor but not yet passed
// window beyond it: scheduledFor <= now < scheduledFor + window. window
// is the caller's tick interval, so each firing is due during exactly
// one tick regardless of how that interval is configured.
func IsDue(scheduledFor, now time.Time, window time.Duration) bool {
	return !now.Before(scheduledFor) && now.Before(scheduledFor.Add(window))
}
