package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
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

type fakeSubmitter struct {
	jobs []model.Job
}

func (f *fakeSubmitter) Submit(job model.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func newStore(t *testing.T) *configstore.ConfigStore {
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
	require.NoError(t, db.SeedDatabase(conn, seedWithP2Event()))

	cs, err := configstore.New(conn)
	require.NoError(t, err)
	return cs
}

func seedWithP2Event() db.SeedSpec {
	return db.SeedSpec{
		Rooms: []db.SeedRoom{
			{
				ID: "flower", Name: "Flower", Enabled: true,
				LightsOnRef: "switch.lights", LightsOffRef: "switch.lights",
				Pumps: []db.SeedPump{
					{ID: "pump-a", Name: "Pump A", LockRef: "lock.pump_a", Enabled: true,
						Zones: []db.SeedZone{{ID: "zone-1", Name: "Zone 1", SwitchRef: "switch.zone_1", Enabled: true}}},
				},
				Events: []db.SeedWaterEvt{
					{ID: "evt-p2", Kind: "p2", Name: "Midday", RunSeconds: 60, Enabled: true, ZoneIDs: []string{"zone-1"}, TimeOfDay: "13:00"},
				},
			},
		},
		Settings: model.SystemSettings{PumpStartupDelaySec: 5, ZoneSwitchDelaySec: 2, SchedulerIntervalSec: 60, StuckLockTimeoutSec: 300},
	}
}

func writeState(w http.ResponseWriter, state string) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"entity_id": "x", "state": state, "attributes": map[string]any{}})
}

func TestTickSubmitsJobWhenP2EventDue(t *testing.T) {
	store := newStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { writeState(w, "off") }))
	defer srv.Close()

	v := clock.NewVirtual(time.Date(2026, 3, 5, 13, 0, 10, 0, time.UTC))
	host := hostclient.New(srv.URL, "tok", v)
	sub := &fakeSubmitter{}

	s := New(store, host, v, nil, map[string]Submitter{"pump-a": sub})
	s.tick(context.Background())

	require.Len(t, sub.jobs, 1)
	require.Equal(t, "zone-1", sub.jobs[0].ZoneID)
	require.Equal(t, "pump-a", sub.jobs[0].PumpID)
}

func TestTickDoesNotDoubleSubmitSameFiring(t *testing.T) {
	store := newStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { writeState(w, "off") }))
	defer srv.Close()

	v := clock.NewVirtual(time.Date(2026, 3, 5, 13, 0, 10, 0, time.UTC))
	host := hostclient.New(srv.URL, "tok", v)
	sub := &fakeSubmitter{}

	s := New(store, host, v, nil, map[string]Submitter{"pump-a": sub})
	s.tick(context.Background())
	v.Advance(30 * time.Second)
	s.tick(context.Background())

	require.Len(t, sub.jobs, 1, "the same firing must not be submitted twice")
}

func TestTickSkipsWhenOutsideWindow(t *testing.T) {
	store := newStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { writeState(w, "off") }))
	defer srv.Close()

	v := clock.NewVirtual(time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	host := hostclient.New(srv.URL, "tok", v)
	sub := &fakeSubmitter{}

	s := New(store, host, v, nil, map[string]Submitter{"pump-a": sub})
	s.tick(context.Background())

	require.Empty(t, sub.jobs)
}

func TestDayRolloverAllowsResubmission(t *testing.T) {
	store := newStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { writeState(w, "off") }))
	defer srv.Close()

	v := clock.NewVirtual(time.Date(2026, 3, 5, 13, 0, 10, 0, time.UTC))
	host := hostclient.New(srv.URL, "tok", v)
	sub := &fakeSubmitter{}

	s := New(store, host, v, nil, map[string]Submitter{"pump-a": sub})
	s.tick(context.Background())
	require.Len(t, sub.jobs, 1)

	v.SetTime(time.Date(2026, 3, 6, 13, 0, 10, 0, time.UTC))
	s.tick(context.Background())
	require.Len(t, sub.jobs, 2, "the next day's firing of the same event must submit again")
}
