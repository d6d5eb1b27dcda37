package domain

import "fmt"

// LoadError reports that a catalog could not be loaded at all. No partial
// store accompanies it.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FieldValidationError reports a single row rejected for a required field.
// Rows are dropped and counted; the load continues.
type FieldValidationError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *FieldValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: field %s=%q: %v", e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("row %d: field %s is missing", e.Row, e.Field)
}

func (e *FieldValidationError) Unwrap() error { return e.Err }

// ConfigurationError reports a threshold outside its domain.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}
