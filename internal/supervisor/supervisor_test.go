package supervisor

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/irrigation-controller/db"
	"github.com/thatsimonsguy/irrigation-controller/internal/clock"
	"github.com/thatsimonsguy/irrigation-controller/internal/configstore"
	"github.com/thatsimonsguy/irrigation-controller/internal/hostclient"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

func testStore(t *testing.T) *configstore.ConfigStore {
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
	require.NoError(t, db.SeedDatabase(conn, db.SeedSpec{
		Rooms: []db.SeedRoom{
			{ID: "flower", Name: "Flower", Enabled: true, LightsOnRef: "switch.lights", LightsOffRef: "switch.lights",
				Pumps: []db.SeedPump{
					{ID: "pump-a", Name: "Pump A", LockRef: "lock.pump_a", Enabled: true,
						Zones: []db.SeedZone{{ID: "zone-1", Name: "Zone 1", SwitchRef: "switch.zone_1", Enabled: true}}},
				},
			},
		},
		Settings: model.SystemSettings{PumpStartupDelaySec: 0, ZoneSwitchDelaySec: 0, SchedulerIntervalSec: 1, StuckLockTimeoutSec: 1},
	}))

	cs, err := configstore.New(conn)
	require.NoError(t, err)
	return cs
}

func TestSupervisorBuildsOneExecutorPerPump(t *testing.T) {
	store := testStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"entity_id":"x","state":"off","attributes":{}}`))
	}))
	defer srv.Close()

	v := clock.NewVirtual(time.Now())
	host := hostclient.New(srv.URL, "tok", v)

	sup := New(v, host, store, nil)
	require.Len(t, sup.Executors(), 1)
	require.Contains(t, sup.Executors(), "pump-a")
	require.NotNil(t, sup.Scheduler())
}

func TestSupervisorRunAndShutdown(t *testing.T) {
	store := testStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"entity_id":"x","state":"off","attributes":{}}`))
	}))
	defer srv.Close()

	v := clock.NewVirtual(time.Now())
	host := hostclient.New(srv.URL, "tok", v)

	sup := New(v, host, store, nil)
	sup.Run(context.Background())

	done := make(chan struct{})
	go func() {
		sup.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not complete in time")
	}
}
