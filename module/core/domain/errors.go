package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input. Indices is set for batch points.
type ValidationError struct {
	Fields  map[string]string
	Indices []int
}

func (e *ValidationError) Error() string {
	var parts []string
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	if len(e.Indices) > 0 {
		parts = append(parts, fmt.Sprintf("invalid points %v", e.Indices))
	}
	return "validation: " + strings.Join(parts, "; ")
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

type NoActiveSessionError struct {
	DriverID     string
	VehicleLogID int64
}

func (e *NoActiveSessionError) Error() string {
	if e.VehicleLogID != 0 {
		return fmt.Sprintf("vehicle log %d is not active", e.VehicleLogID)
	}
	return fmt.Sprintf("no active session for driver %s", e.DriverID)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TransientStorageError wraps a persistence I/O failure.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error { return e.Err }

// FanoutDeliveryError is logged by the fan-out and never returned to ingest callers.
type FanoutDeliveryError struct {
	Sink  string
	Event EventType
	Err   error
}

func (e *FanoutDeliveryError) Error() string {
	return fmt.Sprintf("fanout %s %s: %v", e.Sink, e.Event, e.Err)
}

func (e *FanoutDeliveryError) Unwrap() error { return e.Err }
