package config

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/cursorcli/workspace-mcp/internal/errs"
)

const (
	minConcurrentRequests = 1
	maxConcurrentRequests = 100

	minRequestTimeoutMs = 1000
	maxRequestTimeoutMs = 60000

	minFileSizeBytes = 1024
	maxFileSizeBytes = 100 * 1024 * 1024

	minLogSizeMiB = 1
	maxLogSizeMiB = 100

	minRotationCount = 1
	maxRotationCount = 30
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var validLogOutputs = []string{"console", "file", "cursor-output-panel"}

// semverPattern accepts the common MAJOR.MINOR.PATCH form with an optional
// pre-release/build suffix. No semver library appears anywhere in the
// retrieved corpus (confirmed by searching every go.mod for "semver" and
// "Masterminds"), and the check the schema needs is a single bounded regular
// expression, so this is implemented directly against regexp rather than
// reaching for an unvetted external dependency — see the config entry in
// DESIGN.md.
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

// Validate checks a Snapshot against the bounded schema described by the
// configuration file contract: integer ranges, enumerated log levels and
// outputs, a non-empty server name, a semver-formatted version, and an
// allowlist with cardinality >= 1. It returns an *errs.Error of kind
// InvalidArguments on the first violation found.
func Validate(s *Snapshot) error {
	if s == nil {
		return errs.New(errs.KindInvalidArguments, "config snapshot is nil")
	}

	if s.Server.Name == "" {
		return errs.New(errs.KindInvalidArguments, "server.name must not be empty")
	}
	if !semverPattern.MatchString(s.Server.Version) {
		return errs.New(errs.KindInvalidArguments, "server.version must be a semver-formatted string",
			"field", "server.version", "received", s.Server.Version)
	}
	if s.Server.MaxConcurrentRequests < minConcurrentRequests || s.Server.MaxConcurrentRequests > maxConcurrentRequests {
		return errs.New(errs.KindInvalidArguments,
			fmt.Sprintf("server.maxConcurrentRequests must be between %d and %d", minConcurrentRequests, maxConcurrentRequests),
			"field", "server.maxConcurrentRequests", "received", s.Server.MaxConcurrentRequests)
	}
	if s.Server.RequestTimeoutMs < minRequestTimeoutMs || s.Server.RequestTimeoutMs > maxRequestTimeoutMs {
		return errs.New(errs.KindInvalidArguments,
			fmt.Sprintf("server.requestTimeoutMs must be between %d and %d", minRequestTimeoutMs, maxRequestTimeoutMs),
			"field", "server.requestTimeoutMs", "received", s.Server.RequestTimeoutMs)
	}

	if len(s.Tools.AllowedTools) < 1 {
		return errs.New(errs.KindInvalidArguments, "tools.allowedTools must list at least one tool")
	}
	if s.Tools.FileOperations.MaxFileSize < minFileSizeBytes || s.Tools.FileOperations.MaxFileSize > maxFileSizeBytes {
		return errs.New(errs.KindInvalidArguments,
			fmt.Sprintf("tools.fileOperations.maxFileSize must be between %d and %d bytes", minFileSizeBytes, maxFileSizeBytes),
			"field", "tools.fileOperations.maxFileSize", "received", s.Tools.FileOperations.MaxFileSize)
	}

	if !slices.Contains(validLogLevels, s.Logging.Level) {
		return errs.New(errs.KindInvalidArguments,
			fmt.Sprintf("logging.level must be one of %v", validLogLevels),
			"field", "logging.level", "received", s.Logging.Level)
	}
	if len(s.Logging.Outputs) == 0 {
		return errs.New(errs.KindInvalidArguments, "logging.outputs must not be empty")
	}
	for _, o := range s.Logging.Outputs {
		if !slices.Contains(validLogOutputs, o) {
			return errs.New(errs.KindInvalidArguments,
				fmt.Sprintf("logging.outputs entries must be one of %v", validLogOutputs),
				"field", "logging.outputs", "received", o)
		}
	}
	if s.Logging.MaxLogSizeMiB < minLogSizeMiB || s.Logging.MaxLogSizeMiB > maxLogSizeMiB {
		return errs.New(errs.KindInvalidArguments,
			fmt.Sprintf("logging.maxLogSize must be between %d and %d MiB", minLogSizeMiB, maxLogSizeMiB),
			"field", "logging.maxLogSize", "received", s.Logging.MaxLogSizeMiB)
	}
	if s.Logging.RotationCount < minRotationCount || s.Logging.RotationCount > maxRotationCount {
		return errs.New(errs.KindInvalidArguments,
			fmt.Sprintf("logging.rotationCount must be between %d and %d", minRotationCount, maxRotationCount),
			"field", "logging.rotationCount", "received", s.Logging.RotationCount)
	}

	return nil
}
