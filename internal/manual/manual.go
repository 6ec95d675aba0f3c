// Package manual implements the synchronous ad-hoc run / emergency stop
// path consumed by the CLI and the status API: requests that share the
// same per-pump queues and invariants as scheduled jobs.
package manual

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/clock"
	"github.com/thatsimonsguy/irrigation-controller/internal/configstore"
	"github.com/thatsimonsguy/irrigation-controller/internal/hostclient"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// Executor is the narrow interface a PumpExecutor exposes to
// ManualController — the same Submit contract the scheduler depends on,
// plus Cancel for emergency stop.
type Executor interface {
	Submit(job model.Job) error
	Cancel()
}

// Controller resolves zone/pump references against the live
// configuration snapshot and forwards to the matching pump's executor.
type Controller struct {
	store     *configstore.ConfigStore
	clk       clock.Clock
	host      *hostclient.Client
	executors map[string]Executor
}

func New(store *configstore.ConfigStore, clk clock.Clock, host *hostclient.Client, executors map[string]Executor) *Controller {
	return &Controller{store: store, clk: clk, host: host, executors: executors}
}

// RunZone submits a manual job for zoneID and returns its job id without
// waiting for completion. Manual jobs share the FIFO queue and
// invariants of scheduled jobs — there is no priority.
func (c *Controller) RunZone(zoneID string, durationSec int) (string, error) {
	if durationSec <= 0 {
		return "", &DurationInvalidError{DurationSec: durationSec}
	}

	snap := c.store.Snapshot()
	zone, ok := snap.ZoneByID(zoneID)
	if !ok {
		return "", &ZoneNotFoundError{ZoneID: zoneID}
	}
	pump, ok := snap.PumpByID(zone.PumpID)
	if !ok {
		return "", &PumpNotFoundError{PumpID: zone.PumpID}
	}
	executor, ok := c.executors[pump.ID]
	if !ok {
		return "", &ExecutorUnavailableError{PumpID: pump.ID}
	}

	job := model.Job{
		JobID:       uuid.NewString(),
		PumpID:      pump.ID,
		ZoneID:      zone.ID,
		ZoneName:    zone.Name,
		SwitchRef:   zone.SwitchRef,
		LockRef:     pump.LockRef,
		RunSeconds:  durationSec,
		Origin:      model.OriginManual,
		SubmittedAt: c.clk.Now(),
	}

	if err := executor.Submit(job); err != nil {
		return "", err
	}

	log.Info().Str("zone", zone.ID).Str("pump", pump.ID).Str("job", job.JobID).Int("duration_s", durationSec).Msg("manual run submitted")
	return job.JobID, nil
}

// StopPump triggers per-pump cancellation: the current job runs its
// safety shutdown and the pending queue is discarded.
func (c *Controller) StopPump(pumpID string) error {
	snap := c.store.Snapshot()
	if _, ok := snap.PumpByID(pumpID); !ok {
		return &PumpNotFoundError{PumpID: pumpID}
	}
	executor, ok := c.executors[pumpID]
	if !ok {
		return &ExecutorUnavailableError{PumpID: pumpID}
	}

	log.Warn().Str("pump", pumpID).Msg("manual stop requested")
	executor.Cancel()
	return nil
}

// ForceUnlock is the operator-triggered counterpart to the watchdog's
// automatic stuck-lock release: cancel whatever the pump is doing and
// drive its lock entity off directly, bypassing the normal
// acquire/release sequence.
func (c *Controller) ForceUnlock(pumpID string) error {
	snap := c.store.Snapshot()
	pump, ok := snap.PumpByID(pumpID)
	if !ok {
		return &PumpNotFoundError{PumpID: pumpID}
	}
	executor, ok := c.executors[pumpID]
	if !ok {
		return &ExecutorUnavailableError{PumpID: pumpID}
	}

	log.Warn().Str("pump", pumpID).Msg("manual force-unlock requested")
	executor.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.host.SetBool(ctx, pump.LockRef, false)
}
