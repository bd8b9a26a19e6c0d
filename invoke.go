package partstore

import (
	"fmt"
	"reflect"
)

// Optional is an Invoke parameter that may be absent from the store.
type Optional[T any] struct {
	value   T
	present bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// Value returns the held value and whether it is present.
func (o Optional[T]) Value() (T, bool) {
	return o.value, o.present
}

// Present reports whether a value is held.
func (o Optional[T]) Present() bool {
	return o.present
}

// OrElse returns the held value, or fallback when absent.
func (o Optional[T]) OrElse(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

func (o Optional[T]) elem() reflect.Type {
	return reflect.TypeFor[T]()
}

func (o Optional[T]) with(v any) any {
	return Some(v.(T))
}

// optionalArg is satisfied by every Optional instantiation.
type optionalArg interface {
	elem() reflect.Type
	with(any) any
}

var optionalArgType = reflect.TypeFor[optionalArg]()

// Invoke calls fn with each parameter resolved from the store by type and
// returns its results.
//
// A parameter of type Optional[X] receives the part registered under X, or
// an empty Optional. A *Optional[X] parameter is resolved like any other
// type. Any other parameter type must be registered, otherwise
// ErrNotFound is returned and fn is not called.
func Invoke(s *Store, fn any) ([]any, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, fmt.Errorf("invoke %T: not a function: %w", fn, ErrConstraintViolation)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("invoke %s: variadic functions are not supported: %w", ft, ErrConstraintViolation)
	}

	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		arg, err := s.resolve(ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("invoke %s: argument %d: %w", ft, i, err)
		}
		args[i] = arg
	}

	out := fv.Call(args)
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

func (s *Store) resolve(p reflect.Type) (reflect.Value, error) {
	if p.Kind() == reflect.Struct && p.Implements(optionalArgType) {
		opt := reflect.Zero(p).Interface().(optionalArg)
		v, ok := s.index[opt.elem()]
		if !ok {
			return reflect.Zero(p), nil
		}
		return reflect.ValueOf(opt.with(v)), nil
	}

	v, ok := s.index[p]
	if !ok {
		return reflect.Value{}, fmt.Errorf("part %s: %w", p, ErrNotFound)
	}
	arg := reflect.New(p).Elem()
	arg.Set(reflect.ValueOf(v))
	return arg, nil
}
