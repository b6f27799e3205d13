// Package config provides configuration loading and validation for token-radar.
package config

import "errors"

var (
	// ErrNoSourcesConfigured indicates that no token sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one token source must be configured")
	// ErrNoSourcesEnabled indicates that no sources are enabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrUnknownSourceType indicates that the source type is unknown.
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrInvalidReplenishInterval indicates a non-positive replenish interval.
	ErrInvalidReplenishInterval = errors.New("replenish interval must be positive")
	// ErrRedisHostRequired indicates that redis host must be specified.
	ErrRedisHostRequired = errors.New("redis host must be specified when redis is enabled")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
