package config

import "fmt"

// ValidationError reports a configuration value that violates a range
// or exclusivity constraint. Validation failures indicate caller
// misconfiguration and are never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}
