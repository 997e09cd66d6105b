package cmd

import (
	"errors"
	"fmt"
)

const (
	exitCodeError            = 1
	exitCodeInspectionFailed = 2
)

// InspectionFailedError reports a status, tls or meta call that produced no result.
type InspectionFailedError struct {
	Op      string
	Target  string
	Message string
}

func (e *InspectionFailedError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s inspection failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s inspection of %s failed: %s", e.Op, e.Target, e.Message)
}

// exitCodeFor separates endpoint failures from usage and configuration errors.
func exitCodeFor(err error) int {
	var failed *InspectionFailedError
	if errors.As(err, &failed) {
		return exitCodeInspectionFailed
	}
	return exitCodeError
}
