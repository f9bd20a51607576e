package domain

import "fmt"

// SerializationError is returned when a domain value cannot be encoded
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization failed: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// TransportError is returned when a request cannot be completed.
// StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MappingError is returned when a raw payload cannot be mapped to a domain value
type MappingError struct {
	Target string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s failed: %v", e.Target, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }
