package logger

import (
	"path/filepath"
)

var defaultConfig = createDefaultConfig()

// Config controls where and how dispatchd's structured log is written.
type Config struct {
	ConsoleConfig *ConsoleConfig // If nil, the logger will not log to the console
	RollingConfig *RollingConfig // If nil, the logger will not use a rolling log file

	MinLevel string // debug | info | warn | error | fatal
}

type ConsoleConfig struct {
	noColor bool
}

type RollingConfig struct {
	Dirname  string
	Filename string

	maxSize    int // megabytes
	maxBackups int // files
	maxAge     int // days
}

func createDefaultConfig() Config {
	const minLevel = "info"

	const rollingMaxSize = 10 // Mb
	const rollingMaxBackups = 5
	const rollingMaxAge = 0 // keep forever
	const defaultLogFilename = "dispatchd.log"

	return Config{
		ConsoleConfig: &ConsoleConfig{noColor: false},
		RollingConfig: &RollingConfig{
			Dirname:    "",
			Filename:   defaultLogFilename,
			maxSize:    rollingMaxSize,
			maxBackups: rollingMaxBackups,
			maxAge:     rollingMaxAge,
		},
		MinLevel: minLevel,
	}
}

// CreateConfig builds a Config from the CLI-level flag values: an empty
// rollingLogDir disables the rolling file writer and logging falls back
// to console only.
func CreateConfig(minLevel string, disableTerminal bool, rollingLogDir string) *Config {
	var console *ConsoleConfig
	if !disableTerminal {
		console = &ConsoleConfig{noColor: false}
	}

	var rolling *RollingConfig
	if rollingLogDir != "" {
		rolling = &RollingConfig{
			Dirname:    rollingLogDir,
			Filename:   defaultConfig.RollingConfig.Filename,
			maxSize:    defaultConfig.RollingConfig.maxSize,
			maxBackups: defaultConfig.RollingConfig.maxBackups,
			maxAge:     defaultConfig.RollingConfig.maxAge,
		}
	}

	if minLevel == "" {
		minLevel = defaultConfig.MinLevel
	}

	return &Config{
		ConsoleConfig: console,
		RollingConfig: rolling,
		MinLevel:      minLevel,
	}
}

func (rc *RollingConfig) fullpath() string {
	return filepath.Join(rc.Dirname, rc.Filename)
}
