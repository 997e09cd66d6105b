package errors

import "errors"

// Domain errors
var (
	// Inspection errors
	ErrNoUsableCertificate = errors.New("inspection produced no usable certificate and no authorization error")
	ErrEmptyResponse       = errors.New("transport returned no response")
	ErrMissingURL          = errors.New("url is required")

	// Output errors
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)
