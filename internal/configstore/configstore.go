// Package configstore is the read side of the control plane's durable
// configuration: it loads a model.Snapshot from db, validates the
// invariants that span tables, and republishes a fresh snapshot each time
// Reload is called.
package configstore

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/thatsimonsguy/irrigation-controller/db"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// ConfigError reports a configuration invariant violation found while
// assembling a snapshot (e.g. a zone referencing a pump that no longer
// exists).
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// ConfigStore holds the most recently loaded, validated snapshot and
// notifies subscribers when a new one replaces it.
type ConfigStore struct {
	conn *sql.DB
	cur  atomic.Pointer[model.Snapshot]

	subscribers []chan struct{}
}

// New loads an initial snapshot from conn and returns a ready ConfigStore.
func New(conn *sql.DB) (*ConfigStore, error) {
	cs := &ConfigStore{conn: conn}
	if err := cs.Reload(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Snapshot returns the current, immutable configuration view. Safe to
// call from any goroutine without locking.
func (cs *ConfigStore) Snapshot() *model.Snapshot {
	return cs.cur.Load()
}

// Reload re-reads every table from the database, validates the result,
// swaps it in and notifies subscribers. It does so on every successful
// reload, whether or not the rows changed.
func (cs *ConfigStore) Reload() error {
	snap, err := db.LoadSnapshot(cs.conn)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := validate(snap); err != nil {
		return err
	}

	cs.cur.Store(snap)
	for _, ch := range cs.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that receives a notification (best-effort,
// non-blocking) every time Reload installs a new snapshot.
func (cs *ConfigStore) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	cs.subscribers = append(cs.subscribers, ch)
	return ch
}

// validate enforces the invariants that span multiple tables: every zone
// must reference a pump that exists, every pump a room that exists, and
// every event's assigned zones must exist and sit under the event's own
// room (by way of the zone's pump). Name uniqueness within a parent is
// enforced at seed time; this only re-checks referential integrity since
// rows can be disabled (not deleted) out from under a live snapshot.
func validate(snap *model.Snapshot) error {
	rooms := map[string]bool{}
	for _, r := range snap.Rooms {
		rooms[r.ID] = true
	}
	pumpRoom := map[string]string{}
	for _, p := range snap.Pumps {
		if !rooms[p.RoomID] {
			return &ConfigError{Msg: fmt.Sprintf("pump %s references unknown room %s", p.ID, p.RoomID)}
		}
		pumpRoom[p.ID] = p.RoomID
	}
	zoneRoom := map[string]string{}
	for _, z := range snap.Zones {
		roomID, ok := pumpRoom[z.PumpID]
		if !ok {
			return &ConfigError{Msg: fmt.Sprintf("zone %s references unknown pump %s", z.ID, z.PumpID)}
		}
		zoneRoom[z.ID] = roomID
	}
	for _, e := range snap.Events {
		if !rooms[e.RoomID] {
			return &ConfigError{Msg: fmt.Sprintf("event %s references unknown room %s", e.ID, e.RoomID)}
		}
		for _, zid := range e.AssignedZoneIDs {
			roomID, ok := zoneRoom[zid]
			if !ok {
				return &ConfigError{Msg: fmt.Sprintf("event %s references unknown zone %s", e.ID, zid)}
			}
			if roomID != e.RoomID {
				return &ConfigError{Msg: fmt.Sprintf("event %s (room %s) references zone %s in room %s", e.ID, e.RoomID, zid, roomID)}
			}
		}
	}
	return nil
}
