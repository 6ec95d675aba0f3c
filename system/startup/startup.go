// Package startup runs one-time boot validation before the supervisor
// starts any worker: can the process reach the lights-on entity of every
// enabled room. Pump lock and zone switch entities are not checked.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/configstore"
	"github.com/thatsimonsguy/irrigation-controller/internal/hostclient"
)

const connectivityTimeout = 10 * time.Second

// Validate confirms the configuration snapshot is internally consistent
// (already enforced by configstore.New/Reload) and that the host is
// reachable for every enabled room's lights-on entity, the one entity every P1
// event depends on regardless of which room it belongs to.
func Validate(ctx context.Context, host *hostclient.Client, store *configstore.ConfigStore) error {
	snap := store.Snapshot()

	if len(snap.Rooms) == 0 {
		log.Warn().Msg("no rooms configured at boot")
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()

	var unreachable []string
	for _, room := range snap.Rooms {
		if !room.Enabled {
			continue
		}
		if _, err := host.ReadTimeOfDay(checkCtx, room.LightsOnRef); err != nil {
			unreachable = append(unreachable, fmt.Sprintf("%s (%s): %v", room.ID, room.LightsOnRef, err))
		}
	}

	if len(unreachable) > 0 {
		return fmt.Errorf("host connectivity check failed for %d room(s): %v", len(unreachable), unreachable)
	}

	log.Info().Int("rooms", len(snap.Rooms)).Int("pumps", len(snap.Pumps)).Int("zones", len(snap.Zones)).Msg("boot validation passed")
	return nil
}
