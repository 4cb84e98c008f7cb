package model

import "fmt"

// FetchError is returned when market data could not be retrieved.
type FetchError struct {
	Source   string
	Symbol   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s failed after %d attempt(s): %v", e.Symbol, e.Source, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError is returned when a fetched or computed table is unusable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ComputationError wraps the failure of a single indicator step.
type ComputationError struct {
	Step string
	Err  error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("indicator %s: %v", e.Step, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid parameter or setting.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DispatchError reports a failed notification delivery.
type DispatchError struct {
	Channel   string
	Recipient string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch via %s to %s: %v", e.Channel, e.Recipient, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
