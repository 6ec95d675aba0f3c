package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/thatsimonsguy/irrigation-controller/db"
)

// Config is the process-level configuration: where state lives, how to
// reach the entity host, and how to report status.
type Config struct {
	DataDir             string
	HostBaseURL         string
	HostSupervisorToken string
	StatusAddr          string
	LogLevel            zerolog.Level

	SeedFile string
	Reseed   bool

	EnableDatadog bool
	DDAgentAddr   string
	DDNamespace   string
	DDTags        []string

	NtfyTopic string
}

// DBPath is the SQLite file backing the ConfigStore.
func (c Config) DBPath() string {
	return c.DataDir + "/irrigation.db"
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.SeedFile, "seed", "", "Path to the YAML seed file applied on first boot")
	flag.BoolVar(&cfg.Reseed, "reseed", false, "Re-apply the seed file even if the database is already populated")
	flag.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.DataDir = envOr("DATA_DIR", "data")
	cfg.HostBaseURL = envOr("HOST_BASE_URL", "http://supervisor/core/api")
	cfg.HostSupervisorToken = os.Getenv("HOST_SUPERVISOR_TOKEN")
	cfg.StatusAddr = envOr("STATUS_ADDR", "127.0.0.1:8099")
	cfg.LogLevel = parseLogLevel(logLevel)

	cfg.DDAgentAddr = envOr("DD_AGENT_ADDR", "127.0.0.1:8125")
	cfg.DDNamespace = envOr("DD_NAMESPACE", "irrigation.")
	cfg.EnableDatadog = envOr("DD_ENABLED", "false") == "true"
	if tags := os.Getenv("DD_TAGS"); tags != "" {
		cfg.DDTags = strings.Split(tags, ",")
	}

	cfg.NtfyTopic = os.Getenv("NTFY_TOPIC")

	if cfg.HostSupervisorToken == "" {
		panic("HOST_SUPERVISOR_TOKEN must be set")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// LoadSeed decodes and validates a YAML seed file, collecting every
// problem it finds and panicking once with all of them.
func LoadSeed(path string) db.SeedSpec {
	f, err := os.Open(path)
	if err != nil {
		panic("failed to open seed file: " + err.Error())
	}
	defer f.Close()

	var spec db.SeedSpec
	if err := yaml.NewDecoder(f).Decode(&spec); err != nil {
		panic("failed to parse seed file: " + err.Error())
	}

	validateSeed(&spec)
	return spec
}

func validateSeed(spec *db.SeedSpec) {
	var problems []string

	zoneIDs := map[string]bool{}
	pumpIDs := map[string]bool{}

	for _, r := range spec.Rooms {
		for _, p := range r.Pumps {
			if pumpIDs[p.ID] {
				problems = append(problems, fmt.Sprintf("duplicate pump id %q", p.ID))
			}
			pumpIDs[p.ID] = true

			for _, z := range p.Zones {
				if zoneIDs[z.ID] {
					problems = append(problems, fmt.Sprintf("duplicate zone id %q", z.ID))
				}
				zoneIDs[z.ID] = true
			}
		}
	}

	for _, r := range spec.Rooms {
		for _, e := range r.Events {
			for _, zid := range e.ZoneIDs {
				if !zoneIDs[zid] {
					problems = append(problems, fmt.Sprintf("event %q references unknown zone %q", e.ID, zid))
				}
			}
			switch e.Kind {
			case "p1":
				if e.DelayMinutes < 0 {
					problems = append(problems, fmt.Sprintf("event %q has negative delay_minutes", e.ID))
				}
			case "p2":
				if !timeOfDayPattern.MatchString(e.TimeOfDay) {
					problems = append(problems, fmt.Sprintf("event %q has invalid time_of_day %q", e.ID, e.TimeOfDay))
				}
			default:
				problems = append(problems, fmt.Sprintf("event %q has unknown event_type %q", e.ID, e.Kind))
			}
			if e.RunSeconds <= 0 {
				problems = append(problems, fmt.Sprintf("event %q has non-positive run_time_seconds", e.ID))
			}
		}
	}

	if len(problems) > 0 {
		panic("invalid seed file: " + strings.Join(problems, "; "))
	}
}
