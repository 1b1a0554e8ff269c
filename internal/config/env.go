package config

import (
	"os"
	"strconv"
)

// Fixed env overlay keys, per the environment variable contract.
const (
	envLogLevel        = "MCP_LOG_LEVEL"
	envMaxConcurrent    = "MCP_MAX_CONCURRENT_REQUESTS"
	envRequestTimeoutMs = "MCP_REQUEST_TIMEOUT_MS"
	envEnforceRoot      = "MCP_ENFORCE_PROJECT_ROOT"
	envAllowDestructive = "MCP_ALLOW_DESTRUCTIVE_OPERATIONS"
	envEnvironment      = "MCP_ENV"
)

// overlayEnv applies the fixed set of environment variables on top of a
// snapshot already read from the file. Malformed or out-of-range values are
// silently ignored, falling back to the file's value, per the load
// algorithm's overlay step — this function never returns an error.
func overlayEnv(s *Snapshot) {
	if v, ok := os.LookupEnv(envLogLevel); ok {
		if isValidLogLevel(v) {
			s.Logging.Level = v
		}
	}
	if v, ok := os.LookupEnv(envMaxConcurrent); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= minConcurrentRequests && n <= maxConcurrentRequests {
			s.Server.MaxConcurrentRequests = n
		}
	}
	if v, ok := os.LookupEnv(envRequestTimeoutMs); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= minRequestTimeoutMs && n <= maxRequestTimeoutMs {
			s.Server.RequestTimeoutMs = n
		}
	}
	if v, ok := os.LookupEnv(envEnforceRoot); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Security.EnforceProjectRoot = b
		}
	}
	if v, ok := os.LookupEnv(envAllowDestructive); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Security.AllowDestructiveOperations = b
		}
	}
	if v, ok := os.LookupEnv(envEnvironment); ok && v != "" {
		s.Server.Environment = v
	}
}

func isValidLogLevel(v string) bool {
	for _, l := range validLogLevels {
		if l == v {
			return true
		}
	}
	return false
}
