package manual

import "fmt"

// ZoneNotFoundError is returned when runZone names a zone absent from
// the current configuration snapshot.
type ZoneNotFoundError struct {
	ZoneID string
}

func (e *ZoneNotFoundError) Error() string {
	return fmt.Sprintf("zone %q not found", e.ZoneID)
}

// PumpNotFoundError is returned when a zone's owning pump, or a
// stopPump target, is absent from the current configuration snapshot.
type PumpNotFoundError struct {
	PumpID string
}

func (e *PumpNotFoundError) Error() string {
	return fmt.Sprintf("pump %q not found", e.PumpID)
}

// DurationInvalidError is returned for a non-positive run duration.
type DurationInvalidError struct {
	DurationSec int
}

func (e *DurationInvalidError) Error() string {
	return fmt.Sprintf("duration %ds is invalid, must be > 0", e.DurationSec)
}

// ExecutorUnavailableError is returned when a pump has no registered
// executor. The executor map is fixed when the Controller is built, so this
// happens for a pump added to the configuration afterwards; a supervisor
// shutdown does not remove executors and does not produce this error.
type ExecutorUnavailableError struct {
	PumpID string
}

func (e *ExecutorUnavailableError) Error() string {
	return fmt.Sprintf("no executor available for pump %q", e.PumpID)
}
