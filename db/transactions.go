package db

import (
	"database/sql"
	"fmt"
	"time"
)

// StartTransaction starts a new database transaction.
func StartTransaction(conn *sql.DB) (*sql.Tx, error) {
	tx, err := conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// SetRoomEnabled flips a room's enabled flag, which cascades (logically,
// not by foreign key) into every pump and zone beneath it being skipped by
// the scheduler on its next tick.
func SetRoomEnabled(conn *sql.DB, roomID string, enabled bool) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE rooms SET enabled = ?, updated_at = ? WHERE id = ?`, enabled, time.Now().UTC().Format(time.RFC3339), roomID); err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("update room enabled: %w", err)
	}
	return CommitTransaction(tx)
}

// SetPumpEnabled flips a pump's enabled flag.
func SetPumpEnabled(conn *sql.DB, pumpID string, enabled bool) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE pumps SET enabled = ?, updated_at = ? WHERE id = ?`, enabled, time.Now().UTC().Format(time.RFC3339), pumpID); err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("update pump enabled: %w", err)
	}
	return CommitTransaction(tx)
}

// SetZoneEnabled flips a zone's enabled flag.
func SetZoneEnabled(conn *sql.DB, zoneID string, enabled bool) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE zones SET enabled = ?, updated_at = ? WHERE id = ?`, enabled, time.Now().UTC().Format(time.RFC3339), zoneID); err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("update zone enabled: %w", err)
	}
	return CommitTransaction(tx)
}

// SetWaterEventEnabled flips a water event's enabled flag.
func SetWaterEventEnabled(conn *sql.DB, eventID string, enabled bool) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE water_events SET enabled = ?, updated_at = ? WHERE id = ?`, enabled, time.Now().UTC().Format(time.RFC3339), eventID); err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("update water event enabled: %w", err)
	}
	return CommitTransaction(tx)
}

// UpdateSystemSettings overwrites the singleton settings row.
func UpdateSystemSettings(conn *sql.DB, pumpStartupDelaySec, zoneSwitchDelaySec, schedulerIntervalSec, stuckLockTimeoutSec int) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE system_settings SET pump_startup_delay_seconds = ?, zone_switch_delay_seconds = ?, scheduler_interval_seconds = ?, stuck_lock_timeout_seconds = ? WHERE id = 1`,
		pumpStartupDelaySec, zoneSwitchDelaySec, schedulerIntervalSec, stuckLockTimeoutSec)
	if err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("update system settings: %w", err)
	}
	return CommitTransaction(tx)
}
