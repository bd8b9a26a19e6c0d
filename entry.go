package partstore

import (
	"context"
	"io"
	"reflect"
	"slices"
)

// entry owns one part together with the operations resolved for it at
// insertion. Entries are never moved once appended to a Store.
type entry struct {
	name  string
	value any
	keys  []reflect.Type // keys[0] is the part's own type
	start func(context.Context) error
	stop  func(context.Context) error
	close func() error
}

func newEntry(value any, keys []reflect.Type) *entry {
	e := &entry{
		name:  keys[0].String(),
		value: value,
		keys:  keys,
	}
	if s, ok := value.(Starter); ok {
		e.start = s.Start
	}
	if s, ok := value.(Stopper); ok {
		e.stop = s.Stop
	}
	if c, ok := value.(io.Closer); ok {
		e.close = c.Close
	}
	return e
}

func (e *entry) destroy() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// Elements is an ordered, read-only view of the entries present in a Store
// when the view was taken.
type Elements struct {
	entries []*entry
}

// Len returns the number of entries in the view.
func (v Elements) Len() int {
	return len(v.entries)
}

// At returns the i-th entry in insertion order.
func (v Elements) At(i int) Element {
	return Element{e: v.entries[i]}
}

// Element is a handle to a single stored part.
type Element struct {
	e *entry
}

// Name returns the part's type name.
func (el Element) Name() string {
	return el.e.name
}

// Value returns the stored part.
func (el Element) Value() any {
	return el.e.value
}

// Keys returns every type identity the part is registered under, its own
// type first.
func (el Element) Keys() []reflect.Type {
	return slices.Clone(el.e.keys)
}

// Start calls the part's start hook. Parts that are not a Starter succeed.
func (el Element) Start(ctx context.Context) error {
	if el.e.start == nil {
		return nil
	}
	return el.e.start(ctx)
}

// Stop calls the part's stop hook. Parts that are not a Stopper succeed.
func (el Element) Stop(ctx context.Context) error {
	if el.e.stop == nil {
		return nil
	}
	return el.e.stop(ctx)
}
