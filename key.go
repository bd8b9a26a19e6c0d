package partstore

import (
	"context"
	"fmt"
	"reflect"
)

// Starter is implemented by parts that acquire long-lived resources when the
// application starts. Called in insertion order.
type Starter interface {
	Start(context.Context) error
}

// Stopper is implemented by parts that release resources when the
// application stops. Called in reverse insertion order.
type Stopper interface {
	Stop(context.Context) error
}

// Lifecycle defines the temporal boundaries of a part's operation.
// Implementations should ensure Stop cleans up after Start.
type Lifecycle interface {
	Starter
	Stopper
}

// KeyTyper is implemented by parts that are indexed under a single declared
// alias in addition to their own type. KeyType is called before the part is
// constructed, on the zero value of the part type or on new(E) when the part
// type is *E, so it must not depend on receiver state.
type KeyTyper interface {
	KeyType() Keyer
}

// Key identifies an alias type K under which a part is also retrievable.
// The zero value aliases an interface K implemented by the part.
type Key[K any] struct {
	source  reflect.Type
	convert func(any) (K, bool)
}

// As returns a Key for the interface type K.
func As[K any]() Key[K] {
	return Key[K]{}
}

// Project returns a Key for K reached from a part of type T through fn.
// Useful when K is not an interface implemented by T, e.g. an embedded struct.
func Project[T, K any](fn func(T) K) Key[K] {
	return Key[K]{
		source: reflect.TypeFor[T](),
		convert: func(v any) (K, bool) {
			t, ok := v.(T)
			if !ok {
				var zero K
				return zero, false
			}
			return fn(t), true
		},
	}
}

// id returns the type identity of this key.
func (k Key[K]) id() reflect.Type {
	return reflect.TypeFor[K]()
}

func (k Key[K]) String() string {
	return k.id().String()
}

// accepts checks that parts of type part can be indexed under k.
func (k Key[K]) accepts(part reflect.Type) error {
	id := k.id()
	if k.source != nil {
		if k.source != part {
			return fmt.Errorf("key %s projects from %s, not %s: %w", id, k.source, part, ErrConstraintViolation)
		}
		return nil
	}

	if id.Kind() != reflect.Interface {
		return fmt.Errorf("key %s is not an interface: %w", id, ErrConstraintViolation)
	}
	if !part.Implements(id) {
		return fmt.Errorf("%s does not implement %s: %w", part, id, ErrConstraintViolation)
	}
	return nil
}

// bind returns the value stored in the index for part under k.
func (k Key[K]) bind(part any) (any, error) {
	if k.convert != nil {
		if v, ok := k.convert(part); ok {
			if isNil(v) {
				return nil, fmt.Errorf("key %s projected a nil value from %T: %w", k.id(), part, ErrConstraintViolation)
			}
			return v, nil
		}
	} else if v, ok := part.(K); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%T is not convertible to %s: %w", part, k.id(), ErrConstraintViolation)
}

// Keyer provides type erasure for heterogeneous alias keys.
type Keyer interface {
	fmt.Stringer
	id() reflect.Type
	accepts(reflect.Type) error
	bind(any) (any, error)
}
