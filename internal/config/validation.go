package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError is one invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid value found.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "console"}
	validOutputs = []string{"stdout", "stderr", "file", "both"}
)

// Validate checks cfg and returns ValidationErrors when anything is wrong.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Engine.MaxDepth <= 0 {
		add("engine.max_depth", "must be positive, got %d", cfg.Engine.MaxDepth)
	}
	if cfg.Engine.MaxRangeCells <= 0 {
		add("engine.max_range_cells", "must be positive, got %d", cfg.Engine.MaxRangeCells)
	}

	if !slices.Contains(validLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLevels, cfg.Logging.Level)
	}
	if !slices.Contains(validFormats, cfg.Logging.Format) {
		add("logging.format", "must be one of %v, got %q", validFormats, cfg.Logging.Format)
	}
	if !slices.Contains(validOutputs, cfg.Logging.Output) {
		add("logging.output", "must be one of %v, got %q", validOutputs, cfg.Logging.Output)
	}
	if (cfg.Logging.Output == "file" || cfg.Logging.Output == "both") && cfg.Logging.FilePath == "" {
		add("logging.file_path", "required when output is %s", cfg.Logging.Output)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
