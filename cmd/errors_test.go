package cmd

import (
	"errors"
	"fmt"
	"testing"
)

func TestInspectionFailedError(t *testing.T) {
	err := &InspectionFailedError{Op: "status", Target: "example.com", Message: "connection refused"}
	want := "status inspection of example.com failed: connection refused"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}

	err = &InspectionFailedError{Op: "tls", Message: "timeout"}
	want = "tls inspection failed: timeout"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}
}

func TestExitCodeFor(t *testing.T) {
	failed := &InspectionFailedError{Op: "meta", Message: "boom"}
	if got := exitCodeFor(failed); got != exitCodeInspectionFailed {
		t.Fatalf("expected %d for inspection failure, got %d", exitCodeInspectionFailed, got)
	}
	if got := exitCodeFor(fmt.Errorf("wrapped: %w", failed)); got != exitCodeInspectionFailed {
		t.Fatalf("expected wrapped inspection failure to map to %d, got %d", exitCodeInspectionFailed, got)
	}
	if got := exitCodeFor(errors.New("unknown flag")); got != exitCodeError {
		t.Fatalf("expected %d for other errors, got %d", exitCodeError, got)
	}
}
