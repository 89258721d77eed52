// Package logger builds the zerolog.Logger dispatchd logs through: a
// console writer for interactive runs, plus an optional lumberjack
// rolling file writer when a log directory is configured. Trimmed from
// the teacher's logger package — the management/feature-flag log
// shipping and the legacy Service/OutputManager abstraction it also
// carried have no home in this module (see DESIGN.md).
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogLevelFlag     = "loglevel"
	LogDirectoryFlag = "log-directory"

	dirPermMode = 0744

	consoleTimeFormat = time.RFC3339
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
}

func fallbackLogger(err error) *zerolog.Logger {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Error().Err(err).Msg("falling back to a default logger due to logger setup failure")
	return &log
}

func newZerolog(cfg *Config) *zerolog.Logger {
	var writers []io.Writer

	if cfg.ConsoleConfig != nil {
		writers = append(writers, createConsoleWriter(*cfg.ConsoleConfig))
	}

	if cfg.RollingConfig != nil {
		rollingWriter, err := createRollingWriter(*cfg.RollingConfig)
		if err != nil {
			return fallbackLogger(err)
		}
		writers = append(writers, rollingWriter)
	}

	level, levelErr := zerolog.ParseLevel(cfg.MinLevel)
	if levelErr != nil {
		level = zerolog.InfoLevel
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log := zerolog.New(multi).Level(level).With().Timestamp().Logger()
	if levelErr != nil {
		log.Error().Msgf("failed to parse log level %q, using %q instead", cfg.MinLevel, level)
	}
	return &log
}

func createConsoleWriter(cfg ConsoleConfig) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        colorable.NewColorable(os.Stderr),
		NoColor:    cfg.noColor,
		TimeFormat: consoleTimeFormat,
	}
}

var rollingInit struct {
	once          sync.Once
	writer        io.Writer
	creationError error
}

func createRollingWriter(cfg RollingConfig) (io.Writer, error) {
	rollingInit.once.Do(func() {
		if err := os.MkdirAll(cfg.Dirname, dirPermMode); err != nil {
			rollingInit.creationError = err
			return
		}
		rollingInit.writer = &lumberjack.Logger{
			Filename:   cfg.fullpath(),
			MaxSize:    cfg.maxSize,
			MaxBackups: cfg.maxBackups,
			MaxAge:     cfg.maxAge,
		}
	})
	return rollingInit.writer, rollingInit.creationError
}

// CreateFromContext builds a logger from the dispatchd CLI flags.
func CreateFromContext(c *cli.Context, disableTerminal bool) *zerolog.Logger {
	cfg := CreateConfig(c.String(LogLevelFlag), disableTerminal, c.String(LogDirectoryFlag))
	return newZerolog(cfg)
}

// Create builds a logger directly from a Config, falling back to the
// package default when cfg is nil.
func Create(cfg *Config) *zerolog.Logger {
	if cfg == nil {
		d := defaultConfig
		cfg = &d
	}
	return newZerolog(cfg)
}
