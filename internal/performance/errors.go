package performance

import (
	"errors"
	"fmt"
)

// ErrSetupIncomplete is wrapped in the SetupError of a run that ended before
// its scenario setup finished.
var ErrSetupIncomplete = errors.New("setup did not complete before the run ended")

// ValidationError describes an invalid RunConfig field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ConfigError is returned by Scheduler.Run when the run configuration is
// invalid. No VU is started.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid run configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SetupError is returned when a scenario's setup fails. No iteration runs.
type SetupError struct {
	Scenario string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of scenario %q failed: %v", e.Scenario, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
