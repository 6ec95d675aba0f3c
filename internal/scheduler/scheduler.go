// Package scheduler runs the periodic tick loop that turns due water
// events into jobs on the right pump's queue, as a single cancellable
// goroutine driven by an injected clock.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/clock"
	"github.com/thatsimonsguy/irrigation-controller/internal/configstore"
	"github.com/thatsimonsguy/irrigation-controller/internal/hostclient"
	"github.com/thatsimonsguy/irrigation-controller/internal/metrics"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/schedule"
)

// Submitter is the narrow interface a PumpExecutor exposes to the
// scheduler: a non-blocking enqueue. PumpExecutor's queue has no size
// limit, so it never refuses a job for lack of room.
type Submitter interface {
	Submit(job model.Job) error
}

type Scheduler struct {
	store      *configstore.ConfigStore
	host       *hostclient.Client
	clk        clock.Clock
	metrics    *metrics.Collector
	submitters map[string]Submitter

	seenDay time.Time
	seen    map[string]bool
}

func New(store *configstore.ConfigStore, host *hostclient.Client, clk clock.Clock, m *metrics.Collector, submitters map[string]Submitter) *Scheduler {
	return &Scheduler{
		store:      store,
		host:       host,
		clk:        clk,
		metrics:    m,
		submitters: submitters,
		seen:       map[string]bool{},
	}
}

// Run blocks, ticking at the configured scheduler_interval_seconds
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Msg("scheduler started")
	for {
		s.tick(ctx)

		interval := time.Duration(s.store.Snapshot().Settings.SchedulerIntervalSec) * time.Second
		if err := s.clk.Sleep(ctx, interval); err != nil {
			log.Info().Msg("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clk.Now()
	s.rolloverIfNewDay(now)

	snap := s.store.Snapshot()
	for _, room := range snap.Rooms {
		if !room.Enabled {
			continue
		}
		for _, evt := range snap.EventsForRoom(room.ID) {
			if !evt.Enabled {
				continue
			}
			s.evaluateEvent(ctx, snap, room, evt, now)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSchedulerTick()
	}
}

func (s *Scheduler) evaluateEvent(ctx context.Context, snap *model.Snapshot, room model.Room, evt model.WaterEvent, now time.Time) {
	sched, err := s.scheduledTime(ctx, room, evt, now)
	if err != nil {
		log.Error().Err(err).Str("event", evt.ID).Msg("failed to compute scheduled time")
		return
	}
	window := time.Duration(s.store.Snapshot().Settings.SchedulerIntervalSec) * time.Second
	if !schedule.IsDue(sched, now, window) {
		return
	}

	key := dedupKey(evt.ID, sched)
	if s.seen[key] {
		return
	}
	s.seen[key] = true

	log.Info().Str("event", evt.ID).Str("name", evt.Name).Time("scheduled_for", sched).Msg("event due, submitting jobs")
	s.submitJobsForEvent(snap, evt, sched)
}

func (s *Scheduler) scheduledTime(ctx context.Context, room model.Room, evt model.WaterEvent, now time.Time) (time.Time, error) {
	switch evt.Kind {
	case model.EventP1:
		lightsOn, err := s.host.ReadTimeOfDay(ctx, room.LightsOnRef)
		if err != nil {
			return time.Time{}, fmt.Errorf("read lights_on_entity for room %s: %w", room.ID, err)
		}
		return schedule.ScheduledTimeForP1(now, lightsOn, evt.DelayMinutes)
	case model.EventP2:
		return schedule.ScheduledTimeForP2(now, evt.TimeOfDay)
	default:
		return time.Time{}, fmt.Errorf("unknown event type %q", evt.Kind)
	}
}

// submitJobsForEvent builds one job per enabled zone on an enabled pump,
// in zone-ID order, and hands each to its pump's Submitter. Events due in
// the same tick are submitted in the order tick visits them (snapshot
// order); they are not sorted by scheduled time or event ID.
func (s *Scheduler) submitJobsForEvent(snap *model.Snapshot, evt model.WaterEvent, sched time.Time) {
	zoneIDs := append([]string(nil), evt.AssignedZoneIDs...)
	sort.Strings(zoneIDs)

	for _, zid := range zoneIDs {
		zone, ok := snap.ZoneByID(zid)
		if !ok {
			log.Warn().Str("event", evt.ID).Str("zone", zid).Msg("event references unknown zone, skipping")
			continue
		}
		if !zone.Enabled {
			log.Debug().Str("zone", zone.ID).Msg("skipping disabled zone")
			continue
		}
		pump, ok := snap.PumpByID(zone.PumpID)
		if !ok || !pump.Enabled {
			log.Debug().Str("zone", zone.ID).Str("pump", zone.PumpID).Msg("skipping zone on disabled/missing pump")
			continue
		}

		submitter, ok := s.submitters[pump.ID]
		if !ok {
			log.Warn().Str("pump", pump.ID).Msg("no executor registered for pump, dropping job")
			continue
		}

		job := model.Job{
			JobID:        uuid.NewString(),
			PumpID:       pump.ID,
			ZoneID:       zone.ID,
			ZoneName:     zone.Name,
			SwitchRef:    zone.SwitchRef,
			LockRef:      pump.LockRef,
			RunSeconds:   evt.RunSeconds,
			Origin:       model.OriginScheduled,
			EventID:      evt.ID,
			SubmittedAt:  s.clk.Now(),
			ScheduledFor: sched,
		}

		if err := submitter.Submit(job); err != nil {
			log.Warn().Err(err).Str("pump", pump.ID).Str("zone", zone.ID).Msg("failed to submit job")
		}
	}
}

func dedupKey(eventID string, scheduledFor time.Time) string {
	return eventID + "@" + scheduledFor.Format("2006-01-02T15:04")
}

func (s *Scheduler) rolloverIfNewDay(now time.Time) {
	if s.seenDay.IsZero() || now.YearDay() != s.seenDay.YearDay() || now.Year() != s.seenDay.Year() {
		s.seen = map[string]bool{}
		s.seenDay = now
	}
}
