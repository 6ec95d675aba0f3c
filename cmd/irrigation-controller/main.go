// Command irrigation-controller is the long-running process: it loads
// configuration, opens the SQLite-backed ConfigStore, wires the
// Scheduler and one PumpExecutor per pump under a Supervisor, serves the
// status API, and runs until it receives a termination signal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/db"
	"github.com/thatsimonsguy/irrigation-controller/internal/clock"
	"github.com/thatsimonsguy/irrigation-controller/internal/config"
	"github.com/thatsimonsguy/irrigation-controller/internal/configstore"
	"github.com/thatsimonsguy/irrigation-controller/internal/env"
	"github.com/thatsimonsguy/irrigation-controller/internal/hostclient"
	"github.com/thatsimonsguy/irrigation-controller/internal/logging"
	"github.com/thatsimonsguy/irrigation-controller/internal/manual"
	"github.com/thatsimonsguy/irrigation-controller/internal/metrics"
	"github.com/thatsimonsguy/irrigation-controller/internal/notifications"
	"github.com/thatsimonsguy/irrigation-controller/internal/statusapi"
	"github.com/thatsimonsguy/irrigation-controller/internal/supervisor"
	"github.com/thatsimonsguy/irrigation-controller/system/shutdown"
	"github.com/thatsimonsguy/irrigation-controller/system/startup"
)

func main() {
	cfg := config.Load()
	env.Cfg = &cfg
	logging.Init(cfg.LogLevel, cfg.DataDir)

	log.Info().Str("data_dir", cfg.DataDir).Str("host", cfg.HostBaseURL).Msg("starting irrigation controller")

	conn, err := db.Open(cfg.DBPath())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer conn.Close()

	if cfg.SeedFile != "" {
		seeded, err := db.IsSeeded(conn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to check seeded state")
		}
		if !seeded || cfg.Reseed {
			spec := config.LoadSeed(cfg.SeedFile)
			if err := db.SeedDatabase(conn, spec); err != nil {
				log.Fatal().Err(err).Msg("failed to seed database")
			}
		}
	}

	store, err := configstore.New(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	clk := clock.New()
	host := hostclient.New(cfg.HostBaseURL, cfg.HostSupervisorToken, clk)

	metrics.InitDatadog()
	collector := metrics.NewCollector()
	notifications.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := startup.Validate(ctx, host, store); err != nil {
		log.Fatal().Err(err).Msg("boot validation failed")
	}

	sup := supervisor.New(clk, host, store, collector)
	manualCtl := manual.New(store, clk, host, sup.ManualExecutors())

	statusSources := map[string]statusapi.StatusSource{}
	for id, exec := range sup.Executors() {
		statusSources[id] = exec
	}
	api := statusapi.New(cfg.StatusAddr, collector, statusSources, manualCtl)
	if err := api.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start status api")
	}

	sup.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown signal received")
	if err := api.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing status api")
	}
	shutdown.Shutdown(sup)
}
