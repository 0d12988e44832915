package vex

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Worker is a spawned unit of concurrent execution, per spec.md §4.7's
// one-to-one thread model: on this host, one goroutine per Worker.
type Worker struct {
	ID     uuid.UUID
	done   chan struct{}
	joined atomic.Bool
	result Value
}

// Runtime owns the set of spawned Workers, mirroring spec.md §5's
// thread-registry responsibilities.
type Runtime struct {
	workers map[uuid.UUID]*Worker
}

func NewRuntime() *Runtime {
	return &Runtime{workers: make(map[uuid.UUID]*Worker)}
}

// Spawn starts fn on its own goroutine and returns a worker id usable
// with Join. fn receives its own id (Go has no ambient thread-local
// storage, so "current thread identifier" from spec.md §5 is passed in
// rather than looked up). fn's return value is delivered to the first
// Join call.
func (r *Runtime) Spawn(fn func(id uuid.UUID) Value) uuid.UUID {
	w := &Worker{ID: uuid.New(), done: make(chan struct{})}
	r.workers[w.ID] = w
	go func() {
		w.result = fn(w.ID)
		close(w.done)
	}()
	return w.ID
}

// Join blocks until the worker identified by id completes and returns
// its result. A second Join on the same id returns the cached result
// without blocking again, since the worker's done channel stays closed;
// the atomic joined flag only records that a Join has happened.
func (r *Runtime) Join(id uuid.UUID) (Value, error) {
	w, ok := r.workers[id]
	if !ok {
		return MakeNull(), newLookupError("no worker with id %s", id)
	}
	<-w.done
	w.joined.Store(true)
	return w.result, nil
}

// JoinAll waits for every id, collecting the first error (if any) via
// errgroup, per spec.md §4.7's join-all convenience.
func (r *Runtime) JoinAll(ids []uuid.UUID) ([]Value, error) {
	results := make([]Value, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, err := r.Join(id)
			results[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Sleep suspends the calling goroutine, the host-thread analogue of
// spec.md §5's sleep primitive.
func Sleep(d time.Duration) { time.Sleep(d) }
