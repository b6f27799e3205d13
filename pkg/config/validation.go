package config

import (
	"fmt"
	"strings"
)

var knownSourceTypes = map[string]bool{
	"dexscreener":   true,
	"geckoterminal": true,
}

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return ErrNoSourcesConfigured
	}

	enabled := 0
	for i, source := range cfg.Sources {
		if err := validateSourceConfig(&source); err != nil {
			return fmt.Errorf("source %d (%s.%s): %w", i, source.Type, source.Name, err)
		}
		if source.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoSourcesEnabled
	}

	if cfg.Replenish.Interval.ToDuration() <= 0 {
		return ErrInvalidReplenishInterval
	}

	if cfg.Redis.Enabled && cfg.Redis.Host == "" {
		return ErrRedisHostRequired
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateSourceConfig(sc *SourceConfig) error {
	if sc.Type == "" {
		return ErrSourceTypeRequired
	}
	if sc.Name == "" {
		return ErrSourceNameRequired
	}
	if !knownSourceTypes[strings.ToLower(sc.Type)] {
		return fmt.Errorf("%w: %s", ErrUnknownSourceType, sc.Type)
	}
	return nil
}

func validateLoggingConfig(lc *LoggingConfig) error {
	switch strings.ToLower(lc.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, lc.Level)
	}

	switch strings.ToLower(lc.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogFormat, lc.Format)
	}

	return nil
}
