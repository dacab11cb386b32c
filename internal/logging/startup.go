package logging

import (
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

// StartupLogger collects the process identity, configuration values, and
// feature flags, then emits a single structured zerolog event summarising
// the cold-start state. This makes it easy to see exactly how a binary was
// configured when troubleshooting from logs.
type StartupLogger struct {
	name         string
	initDuration time.Duration

	ssmParams map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the given binary name
// (e.g. "bot-lambda", "bot-server").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		ssmParams: make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// SSMParam registers an SSM parameter path loaded by this process.
// Only the path is logged, never the value.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	s.ssmParams[label] = path
	return s
}

// Feature registers a boolean feature flag (e.g. "suggestions", "geminiDirect").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-secret configuration value.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration sets the measured cold-start initialization duration.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits the collected startup state as a single structured event.
func (s *StartupLogger) Log() {
	ev := log.Info().
		Str("binary", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH)

	if s.initDuration > 0 {
		ev = ev.Dur("initDuration", s.initDuration)
	}
	if len(s.ssmParams) > 0 {
		ev = ev.Interface("ssmParams", s.ssmParams)
	}
	if len(s.features) > 0 {
		ev = ev.Interface("features", s.features)
	}
	if len(s.config) > 0 {
		ev = ev.Interface("config", s.config)
	}

	ev.Msg("Startup complete")
}
