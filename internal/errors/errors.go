// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrComputation      = errors.New("computation failed")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
	ErrUnsupported      = errors.New("unsupported")
)

// DataError reports that a symbol lacks the bars or pivots a computation needs.
// It always unwraps to ErrInsufficientData.
type DataError struct {
	Symbol   string
	What     string
	Have     int
	Required int
}

func (e *DataError) Error() string {
	return fmt.Sprintf("insufficient data [%s] %s: have %d, need %d", e.Symbol, e.What, e.Have, e.Required)
}

func (e *DataError) Unwrap() error {
	return ErrInsufficientData
}

// NewDataError creates a new DataError.
func NewDataError(symbol, what string, have, required int) *DataError {
	return &DataError{
		Symbol:   symbol,
		What:     what,
		Have:     have,
		Required: required,
	}
}

// ComputationError represents an unexpected failure while evaluating one symbol.
type ComputationError struct {
	Symbol    string
	Operation string
	Err       error
}

func (e *ComputationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("computation error [%s] %s: %v", e.Symbol, e.Operation, e.Err)
	}
	return fmt.Sprintf("computation error [%s] %s", e.Symbol, e.Operation)
}

func (e *ComputationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrComputation}
	}
	return []error{ErrComputation, e.Err}
}

// NewComputationError creates a new ComputationError.
func NewComputationError(symbol, operation string, err error) *ComputationError {
	return &ComputationError{
		Symbol:    symbol,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents a bad configuration value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a failure in the price store.
type StoreError struct {
	Operation string
	Symbol    string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("store error [%s] %s: %v", e.Operation, e.Symbol, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrDatabaseError, e.Err}
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, symbol string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Symbol:    symbol,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsInsufficientData reports whether err means a symbol lacked data.
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// IsConfigError reports whether err is a configuration problem.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}
