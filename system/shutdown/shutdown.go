// Package shutdown runs the process's graceful-stop sequence: log,
// drain the supervisor's bounded-grace cancellation, exit.
package shutdown

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/supervisor"
)

// Shutdown triggers the supervisor's cancellation root, waits for every
// worker to reach quiescence (or the grace period to expire, forcing
// lock release), then exits the process.
func Shutdown(sup *supervisor.Supervisor) {
	sup.Shutdown()
	log.Info().Msg("shutdown complete")
	os.Exit(0)
}

// ShutdownWithError logs the triggering error before running the same
// sequence as Shutdown.
func ShutdownWithError(sup *supervisor.Supervisor, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	Shutdown(sup)
}
