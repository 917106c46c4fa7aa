package internal

import "log/slog"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	logLevel *slog.Level
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogLevel overrides the configured log level, e.g. from a CLI flag.
func WithLogLevel(level slog.Level) Option {
	return func(a *application) {
		a.logLevel = &level
	}
}
