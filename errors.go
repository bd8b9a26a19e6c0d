package partstore

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned by Get and Invoke when no live part is
	// registered under the requested type.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insertion requests a type identity,
	// concrete or alias, that already belongs to a live part. The store is
	// left unchanged.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidStateTransition is returned by Application when an operation
	// is not allowed from the current lifecycle state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrConstraintViolation is returned for registration misuse: alias keys
	// that the part cannot be converted to, extra keys on a part that declares
	// its own key type, or types that cannot be default constructed.
	ErrConstraintViolation = errors.New("constraint violation")
)

type errCollector struct {
	mu   sync.Mutex
	errs []error
}

func newErrCollector() *errCollector {
	return &errCollector{
		errs: make([]error, 0),
	}
}

func (ec *errCollector) append(err error) {
	ec.mu.Lock()
	ec.errs = append(ec.errs, err)
	ec.mu.Unlock()
}

func (ec *errCollector) appendf(format string, args ...any) {
	ec.append(fmt.Errorf(format, args...))
}

func (ec *errCollector) errors() error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return errors.Join(ec.errs...)
}
