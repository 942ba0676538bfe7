package allocator

import (
	"fmt"
	"strings"
)

// ConfigError is returned by New when the session configuration is invalid.
// It captures the validation context of the violation, eg
// "sessions[1].capacity.chairs".
type ConfigError struct {
	Context []string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string { return joinContext(e.Context, e.Err) }

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError parallels fmt.Errorf to return a new ConfigError instance.
func NewConfigError(format string, args ...interface{}) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// InvalidRequestError is returned by SubmitBatch when a request violates the
// calling contract (eg, a negative requirement or an unknown kind). No request
// of the batch is processed.
type InvalidRequestError struct {
	Context []string
	Err     error
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string { return joinContext(e.Context, e.Err) }

// Unwrap returns the underlying error.
func (e *InvalidRequestError) Unwrap() error { return e.Err }

// NewInvalidRequestError parallels fmt.Errorf to return a new
// InvalidRequestError instance.
func NewInvalidRequestError(format string, args ...interface{}) error {
	return &InvalidRequestError{Err: fmt.Errorf(format, args...)}
}

// NotFoundError is returned by Release when the ledger entry doesn't exist.
type NotFoundError struct {
	Index int    // Requested ledger index, or -1 if released by ID.
	ID    string // Requested record ID, if released by ID.
	Len   int    // Length of the Ledger at the time of the request.
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("ledger record not found (id %s)", e.ID)
	}
	return fmt.Sprintf("ledger index out of range (%d; expected 0 <= index < %d)", e.Index, e.Len)
}

// ExtendContext type-checks |err| to a *ConfigError or *InvalidRequestError,
// and if matched prefixes its context with |format|. In all cases the value
// of |err| is returned.
func ExtendContext(err error, format string, args ...interface{}) error {
	switch e := err.(type) {
	case *ConfigError:
		e.Context = append([]string{fmt.Sprintf(format, args...)}, e.Context...)
	case *InvalidRequestError:
		e.Context = append([]string{fmt.Sprintf(format, args...)}, e.Context...)
	}
	return err
}

func joinContext(ctx []string, err error) string {
	if len(ctx) != 0 {
		return strings.Join(ctx, ".") + ": " + err.Error()
	}
	return err.Error()
}
