package partstore

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
)

// Store owns parts of unrelated types and retrieves them by type.
//
// Each type identity refers to at most one part. Parts are destroyed in the
// reverse order of insertion. Lookups may run concurrently with each other;
// insertion and Clear must not run concurrently with any other call.
// The zero value is an empty store ready to use.
type Store struct {
	entries []*entry
	index   map[reflect.Type]any
}

// Find returns the part registered under T.
func Find[T any](s *Store) (T, bool) {
	v, ok := s.index[reflect.TypeFor[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Get returns the part registered under T.
func Get[T any](s *Store) (T, error) {
	if v, ok := Find[T](s); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("part %s: %w", reflect.TypeFor[T](), ErrNotFound)
}

// MustGet returns the part registered under T, panics if it is missing.
func MustGet[T any](s *Store) T {
	v, err := Get[T](s)
	if err != nil {
		panic(err)
	}
	return v
}

// Emplace constructs a part of type T with newFn and registers it under T
// and its alias keys.
//
// If T implements KeyTyper its declared key is used and keys must be empty.
// A nil newFn default constructs T, see Use.
// On any error the store is left unchanged; a part constructed before a
// duplicate key was detected is closed if it implements io.Closer.
func Emplace[T any](s *Store, newFn func(*Store) (T, error), keys ...Keyer) (T, error) {
	keys, err := keySet[T](keys)
	if err != nil {
		var zero T
		return zero, err
	}
	return emplace(s, newFn, keys)
}

// MustEmplace constructs and registers a part of type T, panics if it errors.
func MustEmplace[T any](s *Store, newFn func(*Store) (T, error), keys ...Keyer) T {
	v, err := Emplace(s, newFn, keys...)
	if err != nil {
		panic(err)
	}
	return v
}

// Insert takes ownership of v and registers it like Emplace.
func Insert[T any](s *Store, v T, keys ...Keyer) (T, error) {
	return Emplace(s, func(*Store) (T, error) {
		return v, nil
	}, keys...)
}

// TryEmplace returns the part of exact type T if there is one, otherwise it
// behaves like Emplace. T registered only as an alias of another part does
// not count as present, so Emplace then fails with ErrDuplicateKey.
func TryEmplace[T any](s *Store, newFn func(*Store) (T, error), keys ...Keyer) (T, error) {
	keys, err := keySet[T](keys)
	if err != nil {
		var zero T
		return zero, err
	}
	if s.owns(reflect.TypeFor[T]()) {
		return s.index[reflect.TypeFor[T]()].(T), nil
	}
	return emplace(s, newFn, keys)
}

// Use returns the part registered under T, default constructing it when
// missing: new(E) for T = *E, the zero value for other value kinds.
// Interface, func and chan types cannot be default constructed.
func Use[T any](s *Store) (T, error) {
	return TryEmplace[T](s, nil)
}

// Len returns the number of live parts.
func (s *Store) Len() int {
	return len(s.entries)
}

// owns reports whether a live entry has typ as its own type.
func (s *Store) owns(typ reflect.Type) bool {
	if _, ok := s.index[typ]; !ok {
		return false
	}
	for _, e := range s.entries {
		if e.keys[0] == typ {
			return true
		}
	}
	return false
}

// Elements returns the live parts in insertion order.
func (s *Store) Elements() Elements {
	return Elements{entries: slices.Clone(s.entries)}
}

// Clear destroys all parts in the reverse order of insertion and empties the
// store. Every part is destroyed even if some fail to close; their errors are
// joined.
func (s *Store) Clear() error {
	var errs []error
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		s.entries[i] = nil
		s.entries = s.entries[:i]
		for _, k := range e.keys {
			delete(s.index, k)
		}
		if err := e.destroy(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.name, err))
		}
	}
	s.entries = nil
	clear(s.index)
	return errors.Join(errs...)
}

// emplace constructs and inserts a part under keys already checked by keySet.
func emplace[T any](s *Store, newFn func(*Store) (T, error), keys []Keyer) (T, error) {
	var zero T

	part, err := construct(s, newFn)
	if err != nil {
		return zero, err
	}

	if err := s.insert(reflect.TypeFor[T](), part, keys); err != nil {
		return zero, discard(part, err)
	}
	return part, nil
}

// insert registers part under typ and keys, all or nothing.
func (s *Store) insert(typ reflect.Type, part any, keys []Keyer) error {
	ids := make([]reflect.Type, 0, len(keys)+1)
	vals := make([]any, 0, len(keys)+1)
	ids = append(ids, typ)
	vals = append(vals, part)
	for _, k := range keys {
		v, err := k.bind(part)
		if err != nil {
			return err
		}
		ids = append(ids, k.id())
		vals = append(vals, v)
	}

	if s.index == nil {
		s.index = make(map[reflect.Type]any)
	}

	// the append below must not reallocate once keys are committed
	s.entries = slices.Grow(s.entries, 1)

	for i, id := range ids {
		if _, exists := s.index[id]; exists {
			for _, prev := range ids[:i] {
				delete(s.index, prev)
			}
			return fmt.Errorf("key %s already registered: %w", id, ErrDuplicateKey)
		}
		s.index[id] = vals[i]
	}

	s.entries = append(s.entries, newEntry(part, ids))
	return nil
}

// keySet resolves the alias keys for parts of type T and validates them
// before any part exists.
func keySet[T any](keys []Keyer) ([]Keyer, error) {
	typ := reflect.TypeFor[T]()

	if kt, ok := zeroPart[T]().(KeyTyper); ok {
		if len(keys) > 0 {
			return nil, fmt.Errorf("%s declares its key type, got %d extra keys: %w", typ, len(keys), ErrConstraintViolation)
		}
		keys = nil
		if k := kt.KeyType(); k != nil && k.id() != typ {
			keys = []Keyer{k}
		}
	}

	for _, k := range keys {
		if k == nil {
			return nil, fmt.Errorf("nil key for %s: %w", typ, ErrConstraintViolation)
		}
		if err := k.accepts(typ); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// zeroPart returns the zero part of type T, or new(E) for T = *E so that value
// receiver methods of E can be called on it.
func zeroPart[T any]() any {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Pointer {
		return reflect.New(typ.Elem()).Interface()
	}
	var zero T
	return zero
}

func construct[T any](s *Store, newFn func(*Store) (T, error)) (T, error) {
	typ := reflect.TypeFor[T]()
	if newFn == nil {
		return defaultValue[T]()
	}

	part, err := newFn(s)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("construct %s: %w", typ, err)
	}

	switch typ.Kind() {
	case reflect.Pointer, reflect.Interface:
		if isNil(part) {
			var zero T
			return zero, fmt.Errorf("construct %s returned nil: %w", typ, ErrConstraintViolation)
		}
	}
	return part, nil
}

func defaultValue[T any]() (T, error) {
	var zero T
	typ := reflect.TypeFor[T]()
	switch typ.Kind() {
	case reflect.Pointer:
		return reflect.New(typ.Elem()).Interface().(T), nil
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return zero, fmt.Errorf("%s is not default constructible: %w", typ, ErrConstraintViolation)
	}
	return zero, nil
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// discard destroys a part that could not be inserted.
func discard[T any](part T, err error) error {
	if c, ok := any(part).(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			return errors.Join(err, fmt.Errorf("discard %T: %w", part, cerr))
		}
	}
	return err
}
