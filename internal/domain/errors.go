package domain

import (
	"errors"
	"fmt"
)

// Decisioning errors.
var (
	ErrInputValidation   = errors.New("input validation failed")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrInvalidRange      = errors.New("value out of range")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrPrediction        = errors.New("prediction failed")
	ErrConfiguration     = errors.New("invalid configuration")
)

// Service errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
	ErrNotOverridable     = errors.New("decision cannot be overridden")
	ErrUserExists         = errors.New("user already exists")
	ErrBusy               = errors.New("queue is full")
)

// UnknownCategoryError reports a categorical value outside the registered vocabulary.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for %s", e.Value, e.Field)
}

// Is matches ErrUnknownCategory and ErrInputValidation.
func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory || target == ErrInputValidation
}

// InvalidRangeError reports a numeric value outside its domain.
type InvalidRangeError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is matches ErrInvalidRange and ErrInputValidation.
func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange || target == ErrInputValidation
}

// MissingFieldError reports a required profile field left empty.
func MissingFieldError(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInputValidation, field)
}

// ConfigError wraps a configuration problem with ErrConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ErrorField returns the offending field for input errors, or "".
func ErrorField(err error) string {
	var uc *UnknownCategoryError
	if errors.As(err, &uc) {
		return uc.Field
	}
	var ir *InvalidRangeError
	if errors.As(err, &ir) {
		return ir.Field
	}
	return ""
}

// ErrorKind classifies err into a short label for metrics and async records.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrInputValidation):
		return "input_validation"
	case errors.Is(err, ErrOracleUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, ErrPrediction):
		return "prediction"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}
