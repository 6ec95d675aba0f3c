package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// GetAllRooms retrieves every room row.
func GetAllRooms(conn *sql.DB) ([]model.Room, error) {
	rows, err := conn.Query(`SELECT id, name, enabled, lights_on_entity, lights_off_entity, created_at, updated_at FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var r model.Room
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.Name, &r.Enabled, &r.LightsOnRef, &r.LightsOffRef, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		r.CreatedAt, r.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// GetAllPumps retrieves every pump row.
func GetAllPumps(conn *sql.DB) ([]model.Pump, error) {
	rows, err := conn.Query(`SELECT id, room_id, name, lock_entity, enabled, created_at, updated_at FROM pumps`)
	if err != nil {
		return nil, fmt.Errorf("query pumps: %w", err)
	}
	defer rows.Close()

	var pumps []model.Pump
	for rows.Next() {
		var p model.Pump
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Name, &p.LockRef, &p.Enabled, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan pump: %w", err)
		}
		p.CreatedAt, p.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
		pumps = append(pumps, p)
	}
	return pumps, rows.Err()
}

// GetAllZones retrieves every zone row.
func GetAllZones(conn *sql.DB) ([]model.Zone, error) {
	rows, err := conn.Query(`SELECT id, pump_id, name, switch_entity, enabled, created_at, updated_at FROM zones`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w", err)
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		var createdAt, updatedAt string
		if err := rows.Scan(&z.ID, &z.PumpID, &z.Name, &z.SwitchRef, &z.Enabled, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		z.CreatedAt, z.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// GetAllWaterEvents retrieves every water event row along with its
// assigned zone IDs.
func GetAllWaterEvents(conn *sql.DB) ([]model.WaterEvent, error) {
	rows, err := conn.Query(`SELECT id, room_id, event_type, name, run_time_seconds, enabled, delay_minutes, time_of_day, created_at, updated_at FROM water_events`)
	if err != nil {
		return nil, fmt.Errorf("query water_events: %w", err)
	}
	defer rows.Close()

	var events []model.WaterEvent
	for rows.Next() {
		var e model.WaterEvent
		var kind, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.RoomID, &kind, &e.Name, &e.RunSeconds, &e.Enabled, &e.DelayMinutes, &e.TimeOfDay, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan water_event: %w", err)
		}
		e.Kind = model.EventKind(kind)
		e.CreatedAt, e.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		zoneIDs, err := getEventZoneIDs(conn, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].AssignedZoneIDs = zoneIDs
	}
	return events, nil
}

func getEventZoneIDs(conn *sql.DB, eventID string) ([]string, error) {
	rows, err := conn.Query(`SELECT zone_id FROM event_zones WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query event_zones for %s: %w", eventID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event_zones row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAllSensors retrieves every sensor row.
func GetAllSensors(conn *sql.DB) ([]model.Sensor, error) {
	rows, err := conn.Query(`SELECT id, room_id, source FROM sensors`)
	if err != nil {
		return nil, fmt.Errorf("query sensors: %w", err)
	}
	defer rows.Close()

	var sensors []model.Sensor
	for rows.Next() {
		var s model.Sensor
		if err := rows.Scan(&s.ID, &s.RoomID, &s.Source); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}
		sensors = append(sensors, s)
	}
	return sensors, rows.Err()
}

// IsSeeded reports whether any room has ever been written, used at boot
// to decide whether the -seed flag's file should be applied.
func IsSeeded(conn *sql.DB) (bool, error) {
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM rooms`).Scan(&n); err != nil {
		return false, fmt.Errorf("check seeded state: %w", err)
	}
	return n > 0, nil
}

// GetSystemSettings retrieves the singleton settings row, falling back to
// defaults if the row has never been seeded.
func GetSystemSettings(conn *sql.DB) (model.SystemSettings, error) {
	var s model.SystemSettings
	err := conn.QueryRow(`SELECT pump_startup_delay_seconds, zone_switch_delay_seconds, scheduler_interval_seconds, stuck_lock_timeout_seconds FROM system_settings WHERE id = 1`).
		Scan(&s.PumpStartupDelaySec, &s.ZoneSwitchDelaySec, &s.SchedulerIntervalSec, &s.StuckLockTimeoutSec)
	if err == sql.ErrNoRows {
		return model.DefaultSystemSettings(), nil
	}
	if err != nil {
		return model.SystemSettings{}, fmt.Errorf("get system settings: %w", err)
	}
	return s, nil
}

// LoadSnapshot assembles a full model.Snapshot in one pass, matching the
// shape ConfigStore hands to the scheduler and pump executors.
func LoadSnapshot(conn *sql.DB) (*model.Snapshot, error) {
	rooms, err := GetAllRooms(conn)
	if err != nil {
		return nil, err
	}
	pumps, err := GetAllPumps(conn)
	if err != nil {
		return nil, err
	}
	zones, err := GetAllZones(conn)
	if err != nil {
		return nil, err
	}
	events, err := GetAllWaterEvents(conn)
	if err != nil {
		return nil, err
	}
	sensors, err := GetAllSensors(conn)
	if err != nil {
		return nil, err
	}
	settings, err := GetSystemSettings(conn)
	if err != nil {
		return nil, err
	}

	return &model.Snapshot{
		Rooms:    rooms,
		Pumps:    pumps,
		Zones:    zones,
		Events:   events,
		Sensors:  sensors,
		Settings: settings,
	}, nil
}
