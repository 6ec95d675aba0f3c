package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// schema is the full set of tables backing the ConfigStore. It is applied
// with CREATE TABLE IF NOT EXISTS so opening an already-seeded database is
// always safe.
const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	lights_on_entity TEXT NOT NULL,
	lights_off_entity TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pumps (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL REFERENCES rooms(id),
	name TEXT NOT NULL,
	lock_entity TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (room_id, name)
);

CREATE TABLE IF NOT EXISTS zones (
	id TEXT PRIMARY KEY,
	pump_id TEXT NOT NULL REFERENCES pumps(id),
	name TEXT NOT NULL,
	switch_entity TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (pump_id, name)
);

CREATE TABLE IF NOT EXISTS water_events (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL REFERENCES rooms(id),
	event_type TEXT NOT NULL CHECK (event_type IN ('p1', 'p2')),
	name TEXT NOT NULL,
	run_time_seconds INTEGER NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	delay_minutes INTEGER NOT NULL DEFAULT 0,
	time_of_day TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_zones (
	event_id TEXT NOT NULL REFERENCES water_events(id),
	zone_id TEXT NOT NULL REFERENCES zones(id),
	PRIMARY KEY (event_id, zone_id)
);

CREATE TABLE IF NOT EXISTS sensors (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL REFERENCES rooms(id),
	source TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS system_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	pump_startup_delay_seconds INTEGER NOT NULL,
	zone_switch_delay_seconds INTEGER NOT NULL,
	scheduler_interval_seconds INTEGER NOT NULL,
	stuck_lock_timeout_seconds INTEGER NOT NULL
);
`

// Open opens (and, if necessary, creates) the SQLite database at path and
// applies the schema.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return conn, nil
}

// SeedSpec is the declarative shape decoded from the YAML seed file.
type SeedSpec struct {
	Rooms    []SeedRoom           `yaml:"rooms"`
	Settings model.SystemSettings `yaml:"settings"`
}

type SeedRoom struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Enabled      bool            `yaml:"enabled"`
	LightsOnRef  string          `yaml:"lights_on_entity"`
	LightsOffRef string          `yaml:"lights_off_entity"`
	Pumps        []SeedPump      `yaml:"pumps"`
	Events       []SeedWaterEvt  `yaml:"events"`
	Sensors      []model.Sensor  `yaml:"sensors"`
}

type SeedPump struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	LockRef string     `yaml:"lock_entity"`
	Enabled bool       `yaml:"enabled"`
	Zones   []SeedZone `yaml:"zones"`
}

type SeedZone struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	SwitchRef string `yaml:"switch_entity"`
	Enabled   bool   `yaml:"enabled"`
}

type SeedWaterEvt struct {
	ID           string   `yaml:"id"`
	Kind         string   `yaml:"event_type"`
	Name         string   `yaml:"name"`
	RunSeconds   int      `yaml:"run_time_seconds"`
	Enabled      bool     `yaml:"enabled"`
	ZoneIDs      []string `yaml:"zone_ids"`
	DelayMinutes int      `yaml:"delay_minutes"`
	TimeOfDay    string   `yaml:"time_of_day"`
}

// SeedDatabase populates an empty database from a decoded seed spec,
// using INSERT OR REPLACE so re-applying a seed file is always safe.
func SeedDatabase(conn *sql.DB, spec SeedSpec) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	for _, r := range spec.Rooms {
		_, err = tx.Exec(`INSERT OR REPLACE INTO rooms (id, name, enabled, lights_on_entity, lights_off_entity, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.Enabled, r.LightsOnRef, r.LightsOffRef, now, now)
		if err != nil {
			return fmt.Errorf("seed room %s: %w", r.ID, err)
		}

		for _, s := range r.Sensors {
			_, err = tx.Exec(`INSERT OR REPLACE INTO sensors (id, room_id, source) VALUES (?, ?, ?)`, s.ID, r.ID, s.Source)
			if err != nil {
				return fmt.Errorf("seed sensor %s: %w", s.ID, err)
			}
		}

		for _, p := range r.Pumps {
			_, err = tx.Exec(`INSERT OR REPLACE INTO pumps (id, room_id, name, lock_entity, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, r.ID, p.Name, p.LockRef, p.Enabled, now, now)
			if err != nil {
				return fmt.Errorf("seed pump %s: %w", p.ID, err)
			}

			for _, z := range p.Zones {
				_, err = tx.Exec(`INSERT OR REPLACE INTO zones (id, pump_id, name, switch_entity, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
					z.ID, p.ID, z.Name, z.SwitchRef, z.Enabled, now, now)
				if err != nil {
					return fmt.Errorf("seed zone %s: %w", z.ID, err)
				}
			}
		}

		for _, e := range r.Events {
			_, err = tx.Exec(`INSERT OR REPLACE INTO water_events (id, room_id, event_type, name, run_time_seconds, enabled, delay_minutes, time_of_day, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, r.ID, e.Kind, e.Name, e.RunSeconds, e.Enabled, e.DelayMinutes, e.TimeOfDay, now, now)
			if err != nil {
				return fmt.Errorf("seed water event %s: %w", e.ID, err)
			}
			for _, zid := range e.ZoneIDs {
				_, err = tx.Exec(`INSERT OR REPLACE INTO event_zones (event_id, zone_id) VALUES (?, ?)`, e.ID, zid)
				if err != nil {
					return fmt.Errorf("seed event_zones %s/%s: %w", e.ID, zid, err)
				}
			}
		}
	}

	settings := spec.Settings
	if settings == (model.SystemSettings{}) {
		settings = model.DefaultSystemSettings()
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO system_settings (id, pump_startup_delay_seconds, zone_switch_delay_seconds, scheduler_interval_seconds, stuck_lock_timeout_seconds) VALUES (1, ?, ?, ?, ?)`,
		settings.PumpStartupDelaySec, settings.ZoneSwitchDelaySec, settings.SchedulerIntervalSec, settings.StuckLockTimeoutSec)
	if err != nil {
		return fmt.Errorf("seed system settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	log.Info().Int("rooms", len(spec.Rooms)).Msg("database seeded")
	return nil
}
