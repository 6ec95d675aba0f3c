package configstore

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/irrigation-controller/db"
)

func seededDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`
	CREATE TABLE rooms (id TEXT PRIMARY KEY, name TEXT, enabled BOOLEAN, lights_on_entity TEXT, lights_off_entity TEXT, created_at TEXT, updated_at TEXT);
	CREATE TABLE pumps (id TEXT PRIMARY KEY, room_id TEXT, name TEXT, lock_entity TEXT, enabled BOOLEAN, created_at TEXT, updated_at TEXT);
	CREATE TABLE zones (id TEXT PRIMARY KEY, pump_id TEXT, name TEXT, switch_entity TEXT, enabled BOOLEAN, created_at TEXT, updated_at TEXT);
	CREATE TABLE water_events (id TEXT PRIMARY KEY, room_id TEXT, event_type TEXT, name TEXT, run_time_seconds INTEGER, enabled BOOLEAN, delay_minutes INTEGER, time_of_day TEXT, created_at TEXT, updated_at TEXT);
	CREATE TABLE event_zones (event_id TEXT, zone_id TEXT);
	CREATE TABLE sensors (id TEXT PRIMARY KEY, room_id TEXT, source TEXT);
	CREATE TABLE system_settings (id INTEGER PRIMARY KEY, pump_startup_delay_seconds INTEGER, zone_switch_delay_seconds INTEGER, scheduler_interval_seconds INTEGER, stuck_lock_timeout_seconds INTEGER);
	`)
	require.NoError(t, err)
	return conn
}

func seedValid(t *testing.T, conn *sql.DB) {
	t.Helper()
	require.NoError(t, db.SeedDatabase(conn, db.SeedSpec{
		Rooms: []db.SeedRoom{
			{
				ID: "flower", Name: "Flower", Enabled: true,
				LightsOnRef: "switch.lights", LightsOffRef: "switch.lights",
				Pumps: []db.SeedPump{
					{ID: "pump-a", Name: "Pump A", LockRef: "lock.pump_a", Enabled: true,
						Zones: []db.SeedZone{{ID: "zone-1", Name: "Zone 1", SwitchRef: "switch.zone_1", Enabled: true}}},
				},
				Events: []db.SeedWaterEvt{
					{ID: "evt-1", Kind: "p1", Name: "evt", RunSeconds: 60, Enabled: true, ZoneIDs: []string{"zone-1"}, DelayMinutes: 10},
				},
			},
		},
	}))
}

func TestNewLoadsValidSnapshot(t *testing.T) {
	conn := seededDB(t)
	seedValid(t, conn)

	cs, err := New(conn)
	require.NoError(t, err)
	require.Len(t, cs.Snapshot().Rooms, 1)
	require.Len(t, cs.Snapshot().Zones, 1)
}

func TestReloadNotifiesSubscribers(t *testing.T) {
	conn := seededDB(t)
	seedValid(t, conn)

	cs, err := New(conn)
	require.NoError(t, err)

	ch := cs.Subscribe()
	require.NoError(t, cs.Reload())

	select {
	case <-ch:
	default:
		t.Fatal("expected a notification after Reload")
	}
}

func TestValidateRejectsDanglingZoneReference(t *testing.T) {
	conn := seededDB(t)
	seedValid(t, conn)
	_, err := conn.Exec(`INSERT INTO event_zones (event_id, zone_id) VALUES ('evt-1', 'no-such-zone')`)
	require.NoError(t, err)

	_, err = New(conn)
	require.Error(t, err)
}

func TestValidateRejectsZoneOutsideEventRoom(t *testing.T) {
	conn := seededDB(t)
	seedValid(t, conn)

	// A second room with its own pump/zone; evt-1 belongs to "flower" and
	// must not be allowed to reach into "veg".
	require.NoError(t, db.SeedDatabase(conn, db.SeedSpec{
		Rooms: []db.SeedRoom{
			{ID: "veg", Name: "Veg", Enabled: true, LightsOnRef: "switch.veg_lights", LightsOffRef: "switch.veg_lights",
				Pumps: []db.SeedPump{
					{ID: "pump-b", Name: "Pump B", LockRef: "lock.pump_b", Enabled: true,
						Zones: []db.SeedZone{{ID: "zone-2", Name: "Zone 2", SwitchRef: "switch.zone_2", Enabled: true}}},
				},
			},
		},
	}))
	_, err := conn.Exec(`INSERT INTO event_zones (event_id, zone_id) VALUES ('evt-1', 'zone-2')`)
	require.NoError(t, err)

	_, err = New(conn)
	require.Error(t, err)
}
