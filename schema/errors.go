package schema

import (
	"fmt"

	"github.com/denismitr/forge/concurrency"
	"github.com/pkg/errors"
)

// Error kinds. Every error produced by this package matches exactly one of
// them through errors.Is, or is a *DriverError.
var (
	// ErrConfiguration marks caller or setup mistakes that are never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks lookups of columns, tables or migrations that do not exist.
	ErrNotFound = errors.New("not found")
)

var (
	ErrThreePartReference   = newKindError(ErrConfiguration, "three-part references are not supported")
	ErrMalformedReference   = newKindError(ErrConfiguration, "table reference has an empty segment")
	ErrUnsupportedMorphKey  = newKindError(ErrConfiguration, "morph key type must be 'int', 'uuid', or 'ulid'")
	ErrUnsupportedOperation = newKindError(ErrConfiguration, "operation is not supported by this driver")
	ErrColumnNotFound       = newKindError(ErrNotFound, "column not found")
)

type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) *kindError {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// Unsupported returns an ErrUnsupportedOperation describing what the driver
// cannot do, e.g. Unsupported("dropping all types").
func Unsupported(what string) error {
	return errors.Wrapf(ErrUnsupportedOperation, "this database driver does not support %s", what)
}

// DriverError is a failure surfaced by the underlying connection while
// running a statement.
type DriverError struct {
	Query string
	Err   error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("query [%s] failed: %v", e.Query, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is a transient concurrency
// condition. Retrying is up to the caller.
func (e *DriverError) Retryable() bool {
	return concurrency.IsConcurrencyError(e.Err)
}

func driverError(query string, err error) error {
	if err == nil {
		return nil
	}

	return &DriverError{Query: query, Err: err}
}
