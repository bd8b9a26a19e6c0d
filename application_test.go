package partstore_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/partstore"
)

// recorder collects lifecycle events from stub parts.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// stubPart implements Lifecycle and records events.
type stubPart struct {
	name     string
	rec      *recorder
	startErr error
	stopErr  error
}

func (p *stubPart) Start(context.Context) error {
	p.rec.add(p.name + ":start")
	return p.startErr
}

func (p *stubPart) Stop(context.Context) error {
	p.rec.add(p.name + ":stop")
	return p.stopErr
}

// distinct part types, the store holds one part per type
type (
	part1 struct{ stubPart }
	part2 struct{ stubPart }
	part3 struct{ stubPart }
	part4 struct{ stubPart }
	part5 struct{ stubPart }
)

func newFiveParts(t *testing.T, app *partstore.Application, rec *recorder, failing int, err error) {
	t.Helper()
	stub := func(i int) stubPart {
		p := stubPart{name: string(rune('0' + i)), rec: rec}
		if i == failing {
			p.startErr = err
		}
		return p
	}
	s := app.Store()
	_, e1 := partstore.Insert(s, &part1{stub(1)})
	_, e2 := partstore.Insert(s, &part2{stub(2)})
	_, e3 := partstore.Insert(s, &part3{stub(3)})
	_, e4 := partstore.Insert(s, &part4{stub(4)})
	_, e5 := partstore.Insert(s, &part5{stub(5)})
	require.NoError(t, errors.Join(e1, e2, e3, e4, e5))
}

func TestStartAndStopOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	app := partstore.NewApplication()
	newFiveParts(t, app, rec, 0, nil)

	// parts without hooks are skipped
	_, err := partstore.Insert(app.Store(), &A{})
	require.NoError(t, err)

	assert.Equal(t, partstore.StateNone, app.State())
	require.NoError(t, app.Start(ctx))
	assert.Equal(t, partstore.StateRunning, app.State())

	require.NoError(t, app.Stop(ctx))
	assert.Equal(t, partstore.StateStopped, app.State())

	assert.Equal(t, []string{
		"1:start", "2:start", "3:start", "4:start", "5:start",
		"5:stop", "4:stop", "3:stop", "2:stop", "1:stop",
	}, rec.list())
}

func TestStartTwiceFails(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	app := partstore.NewApplication()
	newFiveParts(t, app, rec, 0, nil)

	require.NoError(t, app.Start(ctx))
	err := app.Start(ctx)
	require.ErrorIs(t, err, partstore.ErrInvalidStateTransition)
	assert.Len(t, rec.list(), 5, "no start hook runs again")

	require.NoError(t, app.Stop(ctx))
	require.ErrorIs(t, app.Start(ctx), partstore.ErrInvalidStateTransition)
}

func TestStartRollback(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	boom := errors.New("boom")
	app := partstore.NewApplication()
	newFiveParts(t, app, rec, 3, boom)

	err := app.Start(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, partstore.StateStopped, app.State())
	assert.Equal(t, []string{"1:start", "2:start", "3:start", "2:stop", "1:stop"}, rec.list())

	select {
	case <-app.Done():
	default:
		t.Fatal("Done must be closed after rollback")
	}
}

func TestStartRollbackJoinsStopErrors(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	startErr := errors.New("start")
	stopErr := errors.New("stop")
	app := partstore.NewApplication()
	s := app.Store()

	_, err := partstore.Insert(s, &part1{stubPart{name: "1", rec: rec, stopErr: stopErr}})
	require.NoError(t, err)
	_, err = partstore.Insert(s, &part2{stubPart{name: "2", rec: rec, startErr: startErr}})
	require.NoError(t, err)

	err = app.Start(ctx)
	require.ErrorIs(t, err, startErr)
	require.ErrorIs(t, err, stopErr)
}

func TestStopIsNoopUnlessRunning(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	app := partstore.NewApplication()
	newFiveParts(t, app, rec, 0, nil)

	require.NoError(t, app.Stop(ctx), "stop before start")
	assert.Equal(t, partstore.StateNone, app.State())
	assert.Empty(t, rec.list())

	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Stop(ctx))
	require.NoError(t, app.Stop(ctx), "second stop")
	assert.Len(t, rec.list(), 10, "stop hooks run once")
}

func TestStopContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	stopErr := errors.New("stop")
	app := partstore.NewApplication()
	s := app.Store()

	_, err := partstore.Insert(s, &part1{stubPart{name: "1", rec: rec}})
	require.NoError(t, err)
	_, err = partstore.Insert(s, &part2{stubPart{name: "2", rec: rec, stopErr: stopErr}})
	require.NoError(t, err)

	require.NoError(t, app.Start(ctx))
	err = app.Stop(ctx)
	require.ErrorIs(t, err, stopErr)
	assert.Equal(t, partstore.StateStopped, app.State())
	assert.Equal(t, []string{"1:start", "2:start", "2:stop", "1:stop"}, rec.list())
}

func TestConcurrentStop(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	app := partstore.NewApplication()
	newFiveParts(t, app, rec, 0, nil)
	require.NoError(t, app.Start(ctx))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, app.Stop(ctx))
		}()
	}
	wg.Wait()

	stops := 0
	for _, e := range rec.list() {
		if len(e) > 2 && e[2:] == "stop" {
			stops++
		}
	}
	assert.Equal(t, 5, stops)
}

func TestJoinReleasedOnStop(t *testing.T) {
	ctx := context.Background()
	app := partstore.NewApplication()
	require.NoError(t, app.Start(ctx))

	joined := make(chan struct{})
	go func() {
		app.Join()
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("Join returned while running")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, app.Stop(ctx))
	select {
	case <-joined:
	case <-time.After(5 * time.Second):
		t.Fatal("Join not released")
	}
}

func TestCloseRefusedWhileRunning(t *testing.T) {
	ctx := context.Background()
	var log []string
	app := partstore.NewApplication()
	_, err := partstore.Insert(app.Store(), &first{closeRecorder{name: "1", log: &log}})
	require.NoError(t, err)

	require.NoError(t, app.Start(ctx))
	require.ErrorIs(t, app.Close(), partstore.ErrInvalidStateTransition)
	assert.Empty(t, log)

	require.NoError(t, app.Stop(ctx))
	require.NoError(t, app.Close())
	assert.Equal(t, []string{"1"}, log)
	assert.Equal(t, 0, app.Store().Len())
}

func TestCloseBeforeStart(t *testing.T) {
	var log []string
	app := partstore.NewApplication()
	_, err := partstore.Insert(app.Store(), &first{closeRecorder{name: "1", log: &log}})
	require.NoError(t, err)

	require.NoError(t, app.Close())
	assert.Equal(t, []string{"1"}, log)
}

type observedEvent struct {
	kind string
	part string
	err  bool
}

type testObserver struct {
	mu          sync.Mutex
	transitions [][2]partstore.State
	hooks       []observedEvent
}

func (o *testObserver) OnStateChange(prev, cur partstore.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, [2]partstore.State{prev, cur})
}

func (o *testObserver) OnPartStart(part string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, observedEvent{"start", part, err != nil})
}

func (o *testObserver) OnPartStop(part string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, observedEvent{"stop", part, err != nil})
}

func TestObserver(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	obs := &testObserver{}
	app := partstore.NewApplication(partstore.WithObserver(obs))
	s := app.Store()

	_, err := partstore.Insert(s, &part1{stubPart{name: "1", rec: rec}})
	require.NoError(t, err)
	_, err = partstore.Insert(s, &part2{stubPart{name: "2", rec: rec, startErr: errors.New("boom")}})
	require.NoError(t, err)

	require.Error(t, app.Start(ctx))

	assert.Equal(t, [][2]partstore.State{
		{partstore.StateNone, partstore.StateStarting},
		{partstore.StateStarting, partstore.StateStopping},
		{partstore.StateStopping, partstore.StateStopped},
	}, obs.transitions)
	assert.Equal(t, []observedEvent{
		{"start", "*partstore_test.part1", false},
		{"start", "*partstore_test.part2", true},
		{"stop", "*partstore_test.part1", false},
	}, obs.hooks)
}

func TestApplicationID(t *testing.T) {
	a := partstore.NewApplication()
	b := partstore.NewApplication()
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "None", partstore.StateNone.String())
	assert.Equal(t, "Running", partstore.StateRunning.String())
	assert.Equal(t, "Stopped", partstore.StateStopped.String())
	assert.Equal(t, "Unknown", partstore.State(42).String())
}
