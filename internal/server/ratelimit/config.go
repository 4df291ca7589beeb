package ratelimit

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig builds the limiter configuration from per-path limits (requests
// per minute) and the RATE_LIMIT_* environment variables.
func LoadConfig(perMinute map[string]int) *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 300),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(getEnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: EndpointConfigs(perMinute),
	}
}

// DefaultEndpointConfigs returns the limits for the model-backed endpoints.
func DefaultEndpointConfigs() []EndpointConfig {
	return EndpointConfigs(map[string]int{
		"/api/chat":   30,
		"/api/ingest": 10,
		"/api/scrape": 5,
	})
}

// EndpointConfigs turns a path -> requests-per-minute map into POST endpoint
// configurations, sorted by path.
func EndpointConfigs(perMinute map[string]int) []EndpointConfig {
	paths := make([]string, 0, len(perMinute))
	for p := range perMinute {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	configs := make([]EndpointConfig, 0, len(paths))
	for _, p := range paths {
		limit := perMinute[p]
		configs = append(configs, EndpointConfig{
			Path:   p,
			Method: "POST",
			Limit:  limit,
			Window: time.Minute,
			Burst:  max(1, limit/5),
		})
	}
	return configs
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
