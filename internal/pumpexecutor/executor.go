// Package pumpexecutor runs one pump's FIFO job queue: lock the pump,
// wait out the pump startup delay, open the zone, run for the assigned
// duration, close the zone, release the lock. One goroutine per pump,
// since each pump's jobs are naturally serial and independent of every
// other pump's.
package pumpexecutor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/clock"
	"github.com/thatsimonsguy/irrigation-controller/internal/configstore"
	"github.com/thatsimonsguy/irrigation-controller/internal/hostclient"
	"github.com/thatsimonsguy/irrigation-controller/internal/metrics"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/notifications"
)

// pollInterval is how often an idle executor checks for new work,
// mirroring queue_processor.py's 1-second processor_tick. The stuck-lock
// watchdog runs on its own watchdogInterval.
const pollInterval = 1 * time.Second

// watchdogInterval is how often a held lock is checked against the
// configured stuck_lock_timeout_seconds.
const watchdogInterval = 5 * time.Second

// PumpExecutor owns the FIFO queue and state machine for a single pump.
// Submit is safe to call from the scheduler and from manual-run requests
// concurrently; Run must be started exactly once.
type PumpExecutor struct {
	pump    model.Pump
	host    *hostclient.Client
	clk     clock.Clock
	store   *configstore.ConfigStore
	metrics *metrics.Collector

	mu            sync.Mutex
	queue         []model.Job
	current       *model.Job
	state         model.JobState
	lockedAt      time.Time
	lastErr       string
	cancelCurrent context.CancelFunc

	status atomic.Pointer[model.PumpStatus]
}

// New builds an executor for pump. store supplies the tuning knobs
// (pump_startup_delay_seconds, stuck_lock_timeout_seconds) on every job so
// changes to system_settings take effect without a restart.
func New(pump model.Pump, host *hostclient.Client, clk clock.Clock, store *configstore.ConfigStore, m *metrics.Collector) *PumpExecutor {
	e := &PumpExecutor{
		pump:    pump,
		host:    host,
		clk:     clk,
		store:   store,
		metrics: m,
	}
	e.publishStatus()
	return e
}

// Submit enqueues job for execution. It never blocks; the queue is
// unbounded, matching the original's plain queue.Queue.
func (e *PumpExecutor) Submit(job model.Job) error {
	e.mu.Lock()
	e.queue = append(e.queue, job)
	e.mu.Unlock()

	log.Info().Str("pump", e.pump.ID).Str("zone", job.ZoneID).Str("job", job.JobID).Msg("job queued")
	e.publishStatus()
	return nil
}

// Status returns the most recently published status, safe to call from
// any goroutine without blocking the executor.
func (e *PumpExecutor) Status() model.PumpStatus {
	if s := e.status.Load(); s != nil {
		return *s
	}
	return model.PumpStatus{PumpID: e.pump.ID, State: "idle"}
}

// Cancel stops the currently-executing job (if any) and discards every
// queued job behind it. Used by manual stop-pump requests.
func (e *PumpExecutor) Cancel() {
	e.mu.Lock()
	dropped := len(e.queue)
	e.queue = nil
	cancel := e.cancelCurrent
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if dropped > 0 {
		log.Info().Str("pump", e.pump.ID).Int("dropped", dropped).Msg("cleared pending queue on stop")
	}
	e.publishStatus()
}

// Run processes the queue until ctx is cancelled.
func (e *PumpExecutor) Run(ctx context.Context) {
	log.Info().Str("pump", e.pump.ID).Msg("pump executor started")

	go e.watchdog(ctx)

	for {
		job, ok := e.dequeue()
		if !ok {
			if err := e.clk.Sleep(ctx, pollInterval); err != nil {
				log.Info().Str("pump", e.pump.ID).Msg("pump executor stopped")
				return
			}
			continue
		}
		e.executeJob(ctx, job)
	}
}

func (e *PumpExecutor) dequeue() (model.Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return model.Job{}, false
	}
	job := e.queue[0]
	e.queue = e.queue[1:]
	return job, true
}

func (e *PumpExecutor) executeJob(ctx context.Context, job model.Job) {
	jobCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.current = &job
	e.cancelCurrent = cancel
	e.mu.Unlock()

	start := e.clk.Now()
	log.Info().Str("pump", e.pump.ID).Str("zone", job.ZoneID).Str("job", job.JobID).Int("duration_s", job.RunSeconds).Msg("starting job")

	e.setState(model.JobAcquiringLock)
	if err := e.awaitLockClear(jobCtx, job); err != nil {
		if jobCtx.Err() != nil {
			e.safetyShutdown(job, start, "cancelled while waiting for pump lock to clear")
		} else {
			e.finishFailed(job, start, err)
		}
		cancel()
		return
	}

	if err := e.host.SetBool(jobCtx, job.LockRef, true); err != nil {
		e.finishFailed(job, start, err)
		cancel()
		return
	}

	e.mu.Lock()
	e.lockedAt = e.clk.Now()
	e.mu.Unlock()

	settings := e.store.Snapshot().Settings

	e.setState(model.JobPumpStartup)
	if err := e.clk.Sleep(jobCtx, time.Duration(settings.PumpStartupDelaySec)*time.Second); err != nil {
		e.safetyShutdown(job, start, "cancelled during pump startup delay")
		cancel()
		return
	}

	e.setState(model.JobZoneOn)
	if err := e.host.SetBool(jobCtx, job.SwitchRef, true); err != nil {
		e.releaseLockBestEffort(job)
		e.finishFailed(job, start, err)
		cancel()
		return
	}

	e.setState(model.JobRunning)
	if err := e.clk.Sleep(jobCtx, time.Duration(job.RunSeconds)*time.Second); err != nil {
		e.safetyShutdown(job, start, "cancelled while running")
		cancel()
		return
	}

	e.setState(model.JobZoneOff)
	if err := e.host.SetBool(context.Background(), job.SwitchRef, false); err != nil {
		log.Error().Err(err).Str("pump", e.pump.ID).Str("zone", job.ZoneID).Msg("failed to close zone switch after run")
	}
	e.clk.Sleep(context.Background(), time.Duration(settings.ZoneSwitchDelaySec)*time.Second)

	e.setState(model.JobReleasingLock)
	e.releaseLockBestEffort(job)

	e.setState(model.JobCompleted)
	if e.metrics != nil {
		e.metrics.RecordCompleted(e.clk.Now().Sub(start).Seconds())
	}
	log.Info().Str("pump", e.pump.ID).Str("zone", job.ZoneID).Str("job", job.JobID).Msg("job completed")

	e.clearCurrent()
	cancel()
}

// awaitLockClear reads the pump's lock entity before this job has touched
// it. If it is already on — held by something other than this executor,
// since this job hasn't attempted to acquire it yet — it waits, re-reading
// every watchdogInterval, until either the lock clears or
// stuck_lock_timeout_seconds elapses, at which point it force-resets the
// lock itself and proceeds.
func (e *PumpExecutor) awaitLockClear(ctx context.Context, job model.Job) error {
	on, err := e.host.ReadBool(ctx, job.LockRef)
	if err != nil {
		return err
	}
	if !on {
		return nil
	}

	log.Warn().Str("pump", e.pump.ID).Str("job", job.JobID).Msg("pump lock already held before job start, waiting for it to clear")

	timeout := time.Duration(e.store.Snapshot().Settings.StuckLockTimeoutSec) * time.Second
	deadline := e.clk.Now().Add(timeout)
	for e.clk.Now().Before(deadline) {
		if err := e.clk.Sleep(ctx, watchdogInterval); err != nil {
			return err
		}
		on, err := e.host.ReadBool(ctx, job.LockRef)
		if err != nil {
			return err
		}
		if !on {
			return nil
		}
	}

	log.Warn().Str("pump", e.pump.ID).Str("job", job.JobID).Msg("pump lock still held after timeout, forcing reset before job start")
	return e.host.SetBool(ctx, job.LockRef, false)
}

// safetyShutdown is the cancellation path: best-effort close the zone and
// release the lock using a fresh, detached context since jobCtx is
// already done, then marks the job cancelled.
func (e *PumpExecutor) safetyShutdown(job model.Job, start time.Time, reason string) {
	log.Warn().Str("pump", e.pump.ID).Str("zone", job.ZoneID).Str("job", job.JobID).Str("reason", reason).Msg("running safety shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.host.SetBool(shutdownCtx, job.SwitchRef, false); err != nil {
		log.Error().Err(err).Str("pump", e.pump.ID).Msg("safety shutdown failed to close zone switch")
	}
	settings := e.store.Snapshot().Settings
	e.clk.Sleep(shutdownCtx, time.Duration(settings.ZoneSwitchDelaySec)*time.Second)
	e.releaseLockBestEffort(job)

	e.setState(model.JobCancelled)
	if e.metrics != nil {
		e.metrics.RecordCancelled(e.clk.Now().Sub(start).Seconds())
	}
	e.clearCurrent()
}

func (e *PumpExecutor) releaseLockBestEffort(job model.Job) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.host.SetBool(releaseCtx, job.LockRef, false); err != nil {
		log.Error().Err(err).Str("pump", e.pump.ID).Msg("failed to release pump lock")
	}
}

func (e *PumpExecutor) finishFailed(job model.Job, start time.Time, err error) {
	log.Error().Err(err).Str("pump", e.pump.ID).Str("zone", job.ZoneID).Str("job", job.JobID).Msg("job failed")

	e.mu.Lock()
	e.lastErr = err.Error()
	e.mu.Unlock()

	e.setState(model.JobFailed)
	if e.metrics != nil {
		e.metrics.RecordFailed(e.clk.Now().Sub(start).Seconds())
	}

	if notifyErr := notifications.Send(context.Background(), "irrigation job failed",
		job.ZoneName+" on pump "+e.pump.Name+": "+err.Error()); notifyErr != nil {
		log.Debug().Err(notifyErr).Msg("failed to send job-failure notification")
	}

	e.clearCurrent()
}

func (e *PumpExecutor) setState(s model.JobState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.publishStatus()
}

func (e *PumpExecutor) clearCurrent() {
	e.mu.Lock()
	e.current = nil
	e.cancelCurrent = nil
	e.lockedAt = time.Time{}
	e.mu.Unlock()
	e.publishStatus()
}

// watchdog polls every watchdogInterval and force-releases a lock that
// has been held longer than stuck_lock_timeout_seconds.
func (e *PumpExecutor) watchdog(ctx context.Context) {
	for {
		if err := e.clk.Sleep(ctx, watchdogInterval); err != nil {
			return
		}
		e.checkStuckLock()
	}
}

func (e *PumpExecutor) checkStuckLock() {
	e.mu.Lock()
	current := e.current
	lockedAt := e.lockedAt
	cancel := e.cancelCurrent
	e.mu.Unlock()

	if current == nil || lockedAt.IsZero() {
		return
	}

	timeout := time.Duration(e.store.Snapshot().Settings.StuckLockTimeoutSec) * time.Second
	elapsed := e.clk.Now().Sub(lockedAt)
	if elapsed <= timeout {
		return
	}

	log.Warn().Str("pump", e.pump.ID).Str("job", current.JobID).Dur("elapsed", elapsed).Msg("pump lock timed out, forcing release")

	if cancel != nil {
		cancel()
	}

	forceCtx, forceCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer forceCancel()
	if err := e.host.SetBool(forceCtx, current.LockRef, false); err != nil {
		log.Error().Err(err).Str("pump", e.pump.ID).Msg("forced lock release failed")
	}

	if err := notifications.Send(context.Background(), "pump lock force-released",
		e.pump.Name+" held its lock past the configured timeout and was force-released"); err != nil {
		log.Debug().Err(err).Msg("failed to send stuck-lock notification")
	}
}

// QueueDepth returns the number of jobs waiting behind the current one.
func (e *PumpExecutor) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *PumpExecutor) publishStatus() {
	e.mu.Lock()
	st := model.PumpStatus{
		PumpID:      e.pump.ID,
		QueueLength: len(e.queue),
		LastError:   e.lastErr,
		UpdatedAt:   e.clk.Now(),
	}
	switch {
	case e.current != nil:
		st.State = "running"
		st.ActiveZone = e.current.ZoneName
	case len(e.queue) > 0:
		st.State = "queued"
	default:
		st.State = "idle"
	}
	e.mu.Unlock()

	e.status.Store(&st)
	if e.metrics != nil {
		e.metrics.SetQueueDepth(e.pump.ID, st.QueueLength)
	}
}
