package sources

import (
	"fmt"
	"sync"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/server/ratelimit"
)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a source factory to the registry.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Create creates a new source instance by name.
func Create(name string, config map[string]interface{}) (Source, error) {
	mu.RLock()
	defer mu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	return factory(config)
}

// List returns all registered source names.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// GetLoggerFromConfig extracts the logger passed through the config map, or
// returns a noop logger so sources never dereference nil.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}
	return logging.NewNoopLogger()
}

// GetClockFromConfig extracts an injected clock, defaulting to the real one.
func GetClockFromConfig(config map[string]interface{}) ratelimit.Clock {
	if clockInterface, ok := config["clock"]; ok {
		if clock, ok := clockInterface.(ratelimit.Clock); ok {
			return clock
		}
	}
	return ratelimit.RealClock{}
}

// GetStringFromConfig retrieves a string value with a default.
func GetStringFromConfig(config map[string]interface{}, key, defaultValue string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// GetIntFromConfig retrieves an integer value with a default. YAML decoding
// may surface numbers as int or float64.
func GetIntFromConfig(config map[string]interface{}, key string, defaultValue int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

// GetFloatFromConfig retrieves a float value with a default.
func GetFloatFromConfig(config map[string]interface{}, key string, defaultValue float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return defaultValue
	}
}

// GetStringSliceFromConfig retrieves a string slice from config.
func GetStringSliceFromConfig(config map[string]interface{}, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
