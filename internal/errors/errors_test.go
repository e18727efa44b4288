package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDataErrorUnwrapsToInsufficientData(t *testing.T) {
	err := NewDataError("AAPL", "bars", 12, 60)
	if !IsInsufficientData(err) {
		t.Fatalf("expected ErrInsufficientData in chain: %v", err)
	}
	wrapped := Wrap(err, "scoring")
	if !IsInsufficientData(wrapped) {
		t.Fatalf("wrapping lost ErrInsufficientData: %v", wrapped)
	}
	var de *DataError
	if !As(wrapped, &de) || de.Required != 60 {
		t.Fatalf("As failed to recover DataError: %v", wrapped)
	}
}

func TestComputationErrorMatchesBothSentinelAndCause(t *testing.T) {
	cause := fmt.Errorf("bad close")
	err := NewComputationError("MSFT", "score", cause)
	if !Is(err, ErrComputation) {
		t.Error("expected ErrComputation")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if Is(err, ErrInsufficientData) {
		t.Error("computation error must not read as insufficient data")
	}
}

func TestValidationErrorIsConfigError(t *testing.T) {
	err := NewValidationError("swing.pivot_count", -1, "must be non-negative")
	if !IsConfigError(err) {
		t.Fatalf("expected config error: %v", err)
	}
	want := "validation error: swing.pivot_count (-1): must be non-negative"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Error("wrapping nil must return nil")
	}
}
