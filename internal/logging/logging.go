package logging

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Init(level zerolog.Level, dataDir string) {
	logFile, err := os.OpenFile(dataDir+"/irrigation-controller.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Errorf("failed to open log file: %w", err))
	}

	multi := zerolog.MultiLevelWriter(logFile, zerolog.ConsoleWriter{Out: os.Stdout})

	logger := zerolog.New(multi).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if level == zerolog.DebugLevel {
		log.Debug().Msg("log level set to DEBUG")
	}
}
