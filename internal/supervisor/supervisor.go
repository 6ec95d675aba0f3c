// Package supervisor owns the lifetime tree: Clock, HostClient,
// ConfigStore, the Scheduler, and one PumpExecutor per pump. It holds
// the single cancellation root the rest of the core fans out from, and
// runs the bounded-grace shutdown sequence.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/clock"
	"github.com/thatsimonsguy/irrigation-controller/internal/configstore"
	"github.com/thatsimonsguy/irrigation-controller/internal/hostclient"
	"github.com/thatsimonsguy/irrigation-controller/internal/manual"
	"github.com/thatsimonsguy/irrigation-controller/internal/metrics"
	"github.com/thatsimonsguy/irrigation-controller/internal/pumpexecutor"
	"github.com/thatsimonsguy/irrigation-controller/internal/scheduler"
)

// forceReleaseTimeout bounds the best-effort lock release run after the
// shutdown grace period expires.
const forceReleaseTimeout = 5 * time.Second

type Supervisor struct {
	clk       clock.Clock
	host      *hostclient.Client
	store     *configstore.ConfigStore
	metrics   *metrics.Collector
	scheduler *scheduler.Scheduler
	executors map[string]*pumpexecutor.PumpExecutor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds one PumpExecutor per pump in the current configuration
// snapshot and wires the Scheduler's Submitter registry to them.
func New(clk clock.Clock, host *hostclient.Client, store *configstore.ConfigStore, m *metrics.Collector) *Supervisor {
	s := &Supervisor{clk: clk, host: host, store: store, metrics: m, executors: map[string]*pumpexecutor.PumpExecutor{}}

	submitters := map[string]scheduler.Submitter{}
	for _, pump := range store.Snapshot().Pumps {
		exec := pumpexecutor.New(pump, host, clk, store, m)
		s.executors[pump.ID] = exec
		submitters[pump.ID] = exec
	}

	s.scheduler = scheduler.New(store, host, clk, m, submitters)
	return s
}

// ManualExecutors adapts the executor registry to the interface
// internal/manual needs, without that package depending on pumpexecutor
// directly.
func (s *Supervisor) ManualExecutors() map[string]manual.Executor {
	out := make(map[string]manual.Executor, len(s.executors))
	for id, exec := range s.executors {
		out[id] = exec
	}
	return out
}

// Executors exposes the concrete executor registry, e.g. for statusapi.
func (s *Supervisor) Executors() map[string]*pumpexecutor.PumpExecutor {
	return s.executors
}

func (s *Supervisor) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Run starts every worker goroutine under a single cancellation root
// derived from parent, and returns immediately.
func (s *Supervisor) Run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	for id, exec := range s.executors {
		s.wg.Add(1)
		go func(pumpID string, e *pumpexecutor.PumpExecutor) {
			defer s.wg.Done()
			e.Run(ctx)
		}(id, exec)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduler.Run(ctx)
	}()

	log.Info().Int("pumps", len(s.executors)).Msg("supervisor started")
}

// Shutdown triggers the cancellation root and waits for every worker to
// reach quiescence, bounded by 2x stuck_lock_timeout_seconds. Any lock
// still held past that grace period is force-released.
func (s *Supervisor) Shutdown() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	grace := 2 * time.Duration(s.store.Snapshot().Settings.StuckLockTimeoutSec) * time.Second
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("supervisor shutdown complete")
	case <-time.After(grace):
		log.Warn().Dur("grace", grace).Msg("shutdown grace period exceeded, forcing lock release")
		s.forceReleaseLocks()
	}
}

func (s *Supervisor) forceReleaseLocks() {
	ctx, cancel := context.WithTimeout(context.Background(), forceReleaseTimeout)
	defer cancel()

	for _, pump := range s.store.Snapshot().Pumps {
		if err := s.host.SetBool(ctx, pump.LockRef, false); err != nil {
			log.Error().Err(err).Str("pump", pump.ID).Msg("failed to force-release lock on shutdown")
		}
	}
}
