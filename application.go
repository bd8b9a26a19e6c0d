package partstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jacoelho/partstore/log"
)

// State is the coarse lifecycle state of an Application.
type State int

const (
	StateNone State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Observer is notified of lifecycle progress. Calls are made without holding
// the Application lock, possibly from several goroutines.
type Observer interface {
	OnStateChange(previous, current State)
	OnPartStart(part string, elapsed time.Duration, err error)
	OnPartStop(part string, elapsed time.Duration, err error)
}

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the logger used for state transitions and hook failures.
func WithLogger(logger log.Logger) Option {
	return func(app *Application) {
		if logger != nil {
			app.logger = logger
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(app *Application) {
		app.observer = o
	}
}

// Application owns a Store and starts and stops its parts.
//
// Parts are inserted into Store during assembly, started in insertion order
// by Start and stopped in reverse order by Stop. Create one with
// NewApplication; an Application must not be copied.
type Application struct {
	mu    sync.Mutex
	state State
	done  chan struct{}

	id       string
	store    Store
	logger   log.Logger
	observer Observer
}

// NewApplication returns an Application in StateNone with an empty store.
func NewApplication(opts ...Option) *Application {
	app := &Application{
		done:   make(chan struct{}),
		id:     uuid.NewString(),
		logger: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Store returns the store owned by the application. It must only be mutated
// during assembly, before Start.
func (app *Application) Store() *Store {
	return &app.store
}

// ID returns the identifier of this application instance.
func (app *Application) ID() string {
	return app.id
}

// State returns the current lifecycle state.
func (app *Application) State() State {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.state
}

// Done returns a channel closed once the application reaches StateStopped.
func (app *Application) Done() <-chan struct{} {
	return app.done
}

// Join blocks until the application reaches StateStopped.
func (app *Application) Join() {
	<-app.done
}

// Start calls the start hook of every part in insertion order.
//
// Start may only be called once, from StateNone. If a part fails to start,
// the parts already started are stopped in reverse order, the application
// ends in StateStopped and the start error is returned joined with any stop
// errors.
func (app *Application) Start(ctx context.Context) error {
	if prev, ok := app.transition(StateNone, StateStarting); !ok {
		return fmt.Errorf("start from %s: %w", prev, ErrInvalidStateTransition)
	}

	parts := app.store.Elements()
	for i := range parts.Len() {
		el := parts.At(i)

		began := time.Now()
		err := el.Start(ctx)
		app.notifyStart(el.Name(), time.Since(began), err)
		if err != nil {
			err = fmt.Errorf("start failed for %q: %w", el.Name(), err)
			app.logger.Error("part start failed",
				log.String("app", app.id),
				log.String("part", el.Name()),
				log.Err(err),
			)
			return errors.Join(err, app.rollback(ctx, parts, i))
		}
	}

	app.transition(StateStarting, StateRunning)
	return nil
}

// Stop calls the stop hook of every part in reverse insertion order.
//
// Stop does nothing and returns nil unless the application is running, so
// it is safe to call from several goroutines: exactly one caller performs the
// stop pass. Every part is stopped even if some fail; their errors are joined.
func (app *Application) Stop(ctx context.Context) error {
	if _, ok := app.transition(StateRunning, StateStopping); !ok {
		return nil
	}

	parts := app.store.Elements()
	err := app.stopParts(ctx, parts, parts.Len())

	app.transition(StateStopping, StateStopped)
	return err
}

// Close destroys every part in reverse insertion order. It fails with
// ErrInvalidStateTransition while the application is starting, running or
// stopping.
func (app *Application) Close() error {
	app.mu.Lock()
	state := app.state
	app.mu.Unlock()

	if state != StateNone && state != StateStopped {
		return fmt.Errorf("close while %s: %w", state, ErrInvalidStateTransition)
	}
	return app.store.Clear()
}

// rollback stops the first n parts after a failed start.
func (app *Application) rollback(ctx context.Context, parts Elements, n int) error {
	app.transition(StateStarting, StateStopping)
	err := app.stopParts(ctx, parts, n)
	app.transition(StateStopping, StateStopped)
	return err
}

// stopParts calls the stop hook of parts[:n] in reverse order.
func (app *Application) stopParts(ctx context.Context, parts Elements, n int) error {
	ec := newErrCollector()
	for i := n - 1; i >= 0; i-- {
		el := parts.At(i)

		began := time.Now()
		err := el.Stop(ctx)
		app.notifyStop(el.Name(), time.Since(began), err)
		if err != nil {
			app.logger.Warn("part stop failed",
				log.String("app", app.id),
				log.String("part", el.Name()),
				log.Err(err),
			)
			ec.appendf("stop failed for %q: %w", el.Name(), err)
		}
	}
	return ec.errors()
}

// transition moves from one state to another. It reports the state found and
// whether the transition happened.
func (app *Application) transition(from, to State) (State, bool) {
	app.mu.Lock()
	prev := app.state
	if prev != from {
		app.mu.Unlock()
		return prev, false
	}
	app.state = to
	if to == StateStopped {
		close(app.done)
	}
	app.mu.Unlock()

	app.logger.Info("state transition",
		log.String("app", app.id),
		log.String("from", from.String()),
		log.String("to", to.String()),
	)
	if app.observer != nil {
		app.observer.OnStateChange(from, to)
	}
	return prev, true
}

func (app *Application) notifyStart(part string, elapsed time.Duration, err error) {
	if app.observer != nil {
		app.observer.OnPartStart(part, elapsed, err)
	}
}

func (app *Application) notifyStop(part string, elapsed time.Duration, err error) {
	if app.observer != nil {
		app.observer.OnPartStop(part, elapsed, err)
	}
}
