package model

import "time"

type EventKind string

const (
	EventP1 EventKind = "p1"
	EventP2 EventKind = "p2"
)

type JobOrigin string

const (
	OriginScheduled JobOrigin = "scheduled"
	OriginManual    JobOrigin = "manual"
)

type JobState string

const (
	JobPending       JobState = "pending"
	JobAcquiringLock JobState = "acquiring_lock"
	JobPumpStartup   JobState = "pump_startup"
	JobZoneOn        JobState = "zone_on"
	JobRunning       JobState = "running"
	JobZoneOff       JobState = "zone_off"
	JobReleasingLock JobState = "releasing_lock"
	JobCompleted     JobState = "completed"
	JobFailed        JobState = "failed"
	JobCancelled     JobState = "cancelled"
)

// Room is a physical grow space owning pumps, events, and sensors.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Enabled      bool      `json:"enabled"`
	LightsOnRef  string    `json:"lights_on_entity"`
	LightsOffRef string    `json:"lights_off_entity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Pump is the physical pump hardware. LockRef doubles as the actuation
// target and the mutual-exclusion signal shared by all of its zones.
type Pump struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name"`
	LockRef   string    `json:"lock_entity"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Zone is a single irrigation valve, owned by exactly one pump.
type Zone struct {
	ID        string    `json:"id"`
	PumpID    string    `json:"pump_id"`
	Name      string    `json:"name"`
	SwitchRef string    `json:"switch_entity"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WaterEvent is a calendar rule that produces Jobs for its assigned zones
// when due. DelayMinutes applies only to EventP1; TimeOfDay ("HH:MM")
// applies only to EventP2.
type WaterEvent struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"room_id"`
	Kind            EventKind `json:"event_type"`
	Name            string    `json:"name"`
	RunSeconds      int       `json:"run_time_seconds"`
	Enabled         bool      `json:"enabled"`
	AssignedZoneIDs []string  `json:"zone_ids"`
	DelayMinutes    int       `json:"delay_minutes"`
	TimeOfDay       string    `json:"time_of_day"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Sensor is an environmental reference read-only to the core, exposed
// only for status visibility.
type Sensor struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
	Source string `json:"source"`
}

// SystemSettings is the singleton tuning knob set consulted by the
// scheduler and every pump executor.
type SystemSettings struct {
	PumpStartupDelaySec  int `json:"pump_startup_delay_seconds"`
	ZoneSwitchDelaySec   int `json:"zone_switch_delay_seconds"`
	SchedulerIntervalSec int `json:"scheduler_interval_seconds"`
	StuckLockTimeoutSec  int `json:"stuck_lock_timeout_seconds"`
}

func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		PumpStartupDelaySec:  5,
		ZoneSwitchDelaySec:   2,
		SchedulerIntervalSec: 60,
		StuckLockTimeoutSec:  300,
	}
}

// Job is a runtime-only unit of work for one zone on one pump. Jobs are
// never persisted; a restart rebuilds them from the schedule.
type Job struct {
	JobID        string
	PumpID       string
	ZoneID       string
	ZoneName     string
	SwitchRef    string
	LockRef      string
	RunSeconds   int
	Origin       JobOrigin
	EventID      string
	SubmittedAt  time.Time
	ScheduledFor time.Time
}

// Snapshot is the immutable, internally-consistent configuration view
// handed out atomically by ConfigStore.
type Snapshot struct {
	Rooms    []Room
	Pumps    []Pump
	Zones    []Zone
	Events   []WaterEvent
	Sensors  []Sensor
	Settings SystemSettings
}

func (s *Snapshot) RoomByID(id string) (Room, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

func (s *Snapshot) PumpByID(id string) (Pump, bool) {
	for _, p := range s.Pumps {
		if p.ID == id {
			return p, true
		}
	}
	return Pump{}, false
}

func (s *Snapshot) ZoneByID(id string) (Zone, bool) {
	for _, z := range s.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// ZonesForPump returns the zones owned by pumpID in the order the snapshot
// lists them; they are not sorted.
func (s *Snapshot) ZonesForPump(pumpID string) []Zone {
	var zones []Zone
	for _, z := range s.Zones {
		if z.PumpID == pumpID {
			zones = append(zones, z)
		}
	}
	return zones
}

// EventsForRoom returns the water events belonging to roomID.
func (s *Snapshot) EventsForRoom(roomID string) []WaterEvent {
	var events []WaterEvent
	for _, e := range s.Events {
		if e.RoomID == roomID {
			events = append(events, e)
		}
	}
	return events
}

// PumpStatus is the cheap status projection each PumpExecutor publishes
// on every state transition.
type PumpStatus struct {
	PumpID      string    `json:"pump_id"`
	State       string    `json:"status"` // "idle" | "running" | "queued"
	ActiveZone  string    `json:"active_zone,omitempty"`
	QueueLength int       `json:"queue_length"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
