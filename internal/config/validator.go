package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "collector.poll_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config against the local file system and returns all
// validation errors found
func (c *Config) Validate() []ValidationError {
	return c.ValidateFS(afero.NewOsFs())
}

// ValidateFS is Validate with directory checks made on fsys.
func (c *Config) ValidateFS(fsys afero.Fs) []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateDirectories(fsys)...)
	errs = append(errs, c.validateCollector()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

// validateDirectories checks that every configured directory exists and that
// the central directory is not also a check-in directory.
func (c *Config) validateDirectories(fsys afero.Fs) []ValidationError {
	var errs []ValidationError
	col := c.Collector

	if len(col.CheckInDirs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "collector.checkin_dirs",
			Value:   col.CheckInDirs,
			Message: "at least one check-in directory is required",
		})
	}

	seen := make(map[string]bool)
	for i, dir := range col.CheckInDirs {
		field := fmt.Sprintf("collector.checkin_dirs[%d]", i)
		if msg := checkDir(fsys, dir); msg != "" {
			errs = append(errs, ValidationError{Field: field, Value: dir, Message: msg})
			continue
		}
		clean := filepath.Clean(dir)
		if seen[clean] {
			errs = append(errs, ValidationError{Field: field, Value: dir, Message: "duplicate check-in directory"})
		}
		seen[clean] = true
	}

	if col.CentralDir == "" {
		errs = append(errs, ValidationError{
			Field:   "collector.central_dir",
			Value:   col.CentralDir,
			Message: "central directory is required",
		})
	} else if msg := checkDir(fsys, col.CentralDir); msg != "" {
		errs = append(errs, ValidationError{Field: "collector.central_dir", Value: col.CentralDir, Message: msg})
	} else if seen[filepath.Clean(col.CentralDir)] {
		errs = append(errs, ValidationError{
			Field:   "collector.central_dir",
			Value:   col.CentralDir,
			Message: "must differ from every check-in directory",
		})
	}
	return errs
}

func checkDir(fsys afero.Fs, dir string) string {
	if strings.ContainsRune(dir, '\x00') {
		return "path contains invalid null character"
	}
	ok, err := afero.DirExists(fsys, dir)
	if err != nil {
		return fmt.Sprintf("cannot access directory: %v", err)
	}
	if !ok {
		return "directory does not exist"
	}
	return ""
}

func (c *Config) validateCollector() []ValidationError {
	var errs []ValidationError
	col := c.Collector

	if col.PollIntervalMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "collector.poll_interval_ms",
			Value:   col.PollIntervalMs,
			Message: "must be positive",
		})
	}
	if col.LockTimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "collector.lock_timeout_seconds",
			Value:   col.LockTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if col.MaxWorkers < 1 {
		errs = append(errs, ValidationError{
			Field:   "collector.max_workers",
			Value:   col.MaxWorkers,
			Message: "must be at least 1",
		})
	}
	if col.MinFileAgeMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "collector.min_file_age_ms",
			Value:   col.MinFileAgeMs,
			Message: "must be non-negative",
		})
	}
	for i, pattern := range col.Exclude {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("collector.exclude[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB <= 0 || c.Logging.MaxSizeMB > maxLogSizeMB {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("must be between 1 and %d", maxLogSizeMB),
		})
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}
	return errs
}
