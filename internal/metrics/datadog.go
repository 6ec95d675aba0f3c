package metrics

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/env"
)

var dogstatsd *statsd.Client

// InitDatadog opens the DogStatsD push client used for queue-depth and
// job-duration gauges. A failure to dial the agent is non-fatal; Gauge
// becomes a no-op.
func InitDatadog() {
	if !env.Cfg.EnableDatadog {
		return
	}

	var err error
	dogstatsd, err = statsd.New(env.Cfg.DDAgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = env.Cfg.DDNamespace
	dogstatsd.Tags = env.Cfg.DDTags

	log.Info().
		Str("addr", env.Cfg.DDAgentAddr).
		Str("namespace", env.Cfg.DDNamespace).
		Strs("tags", env.Cfg.DDTags).
		Msg("datadog metrics initialized")
}

// Gauge pushes a point-in-time gauge, e.g. a pump's queue depth.
func Gauge(name string, value float64, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Gauge(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("failed to emit gauge metric")
	}
}

// Timing pushes a job-duration style sample in milliseconds.
func Timing(name string, ms float64, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Histogram(name, ms, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("failed to emit timing metric")
	}
}
