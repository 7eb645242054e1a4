package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means no API credential was configured. It is a
	// constructor-time failure, not a first-call surprise.
	ErrMissingCredential = errors.New("no API credential configured")

	// ErrMaterialNotReady means a task that requires study material was
	// issued before any material was loaded.
	ErrMaterialNotReady = errors.New("study material not loaded")

	// ErrEmptyResponse means a well-formed 2xx response carried no usable
	// candidate text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// MalformedOutputError means a structured response failed to parse as the
// declared schema. It occurs after transport success and is never retried.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }
