package model

import (
	"errors"
	"fmt"
)

// Domain errors. Configuration problems are rejected before any step runs;
// numerical problems abort a run with partial results retained.
var (
	// ErrUnknownMaterial indicates a material name with no registration.
	ErrUnknownMaterial = errors.New("furnace: unknown material")

	// ErrInvalidFormula indicates a property formula that failed to parse or
	// references identifiers outside the whitelist.
	ErrInvalidFormula = errors.New("furnace: invalid property formula")

	// ErrNonFinite indicates a NaN or Inf produced by a property evaluation.
	ErrNonFinite = errors.New("furnace: non-finite value")

	// ErrRunNotFound indicates an unknown run id.
	ErrRunNotFound = errors.New("furnace: run not found")

	// ErrResultPending indicates the run has not reached a terminal state.
	ErrResultPending = errors.New("furnace: result not ready")

	// ErrRunActive indicates an operation that requires a terminal run.
	ErrRunActive = errors.New("furnace: run still active")
)

// ConfigError reports an invalid simulation configuration. It is always
// returned synchronously, before any computation starts.
type ConfigError struct {
	Field   string
	Reason  string
	Wrapped error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Wrapped }

// NewConfigError builds a ConfigError for a named config field.
func NewConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InstabilityError reports a CFL breach or a non-finite value mid-run.
type InstabilityError struct {
	Step   int
	Time   float64
	Reason string
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("numerical instability at step %d (t=%.6gs): %s", e.Step, e.Time, e.Reason)
}

// ResourceLimitError reports a mesh that exceeds the configured node
// ceiling. Checked before a run starts, never discovered mid-run.
type ResourceLimitError struct {
	Nodes int
	Limit int
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("mesh of %d nodes exceeds the configured limit of %d", e.Nodes, e.Limit)
}
