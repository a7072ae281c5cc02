// Package catalogerr defines the business error taxonomy shared by all
// catalog components. Every error here is a recoverable business outcome,
// not a fault: callers surface its message verbatim to the user. Anything
// outside this taxonomy is treated as an infrastructure fault.
package catalogerr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ValidationError indicates that input failed a synchronous rule before any
// stored state was consulted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError indicates that a uniqueness or invariant constraint is
// violated by existing state (duplicate category name, duplicate variant
// size/color pair, deleting the main image while siblings remain).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Conflictf builds a ConflictError from a format string.
func Conflictf(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and identifier.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// AuthorizationError indicates the caller does not own the entity being
// mutated.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// NotOwnerf builds an AuthorizationError from a format string.
func NotOwnerf(format string, args ...any) error {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// CapacityError indicates a size ceiling (per-product image limit, total
// category limit) would be exceeded.
type CapacityError struct {
	Reason string
}

func (e *CapacityError) Error() string { return e.Reason }

// Capacityf builds a CapacityError from a format string.
func Capacityf(format string, args ...any) error {
	return &CapacityError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientStockError indicates a stock adjustment would drive the stored
// count negative. It carries the quantities so callers can render an
// actionable message.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", e.Available, e.Requested)
}

// ConcurrencyError indicates an optimistic write lost its race and retries
// were exhausted. The operation can be safely retried by the caller.
type ConcurrencyError struct {
	Op string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s: concurrent modification, please retry", e.Op)
}

// IsBusiness reports whether err belongs to the catalog error taxonomy.
// Errors outside the taxonomy are infrastructure faults and must not be
// shown to users verbatim.
func IsBusiness(err error) bool {
	var (
		validation   *ValidationError
		conflict     *ConflictError
		notFound     *NotFoundError
		authz        *AuthorizationError
		capacity     *CapacityError
		insufficient *InsufficientStockError
		concurrency  *ConcurrencyError
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &conflict),
		errors.As(err, &notFound),
		errors.As(err, &authz),
		errors.As(err, &capacity),
		errors.As(err, &insufficient),
		errors.As(err, &concurrency):
		return true
	}
	return false
}
