package taskgraph

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// constant returns a work function that always produces v.
func constant(v any) WorkFunc {
	return func(ctx Context, in *Snapshot) (any, error) {
		return v, nil
	}
}

// sum returns a work function adding the int results of keys.
func sum(keys ...string) WorkFunc {
	return func(ctx Context, in *Snapshot) (any, error) {
		total := 0
		for _, k := range keys {
			v, _ := Value[int](in, k)
			total += v
		}
		return total, nil
	}
}

// failing returns a work function that always returns err.
func failing(err error) WorkFunc {
	return func(ctx Context, in *Snapshot) (any, error) {
		return nil, err
	}
}

// panicking returns a work function that panics with v.
func panicking(v any) WorkFunc {
	return func(ctx Context, in *Snapshot) (any, error) {
		panic(v)
	}
}

// sleeping returns a work function that waits d, then produces v.
func sleeping(d time.Duration, v any) WorkFunc {
	return func(ctx Context, in *Snapshot) (any, error) {
		time.Sleep(d)
		return v, nil
	}
}

// flaky returns a work function that fails the first failures calls and
// then produces v. calls counts every invocation.
func flaky(failures int32, err error, v any, calls *atomic.Int32) WorkFunc {
	return func(ctx Context, in *Snapshot) (any, error) {
		if calls.Add(1) <= failures {
			return nil, err
		}
		return v, nil
	}
}

// tracker records events from concurrent goroutines.
type tracker struct {
	mu     sync.Mutex
	events []string
}

func (t *tracker) add(event string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *tracker) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// tracking wraps fn so each call records id.
func (t *tracker) tracking(id string, fn WorkFunc) WorkFunc {
	return func(ctx Context, in *Snapshot) (any, error) {
		t.add(id)
		return fn(ctx, in)
	}
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// mustBuild builds g or panics.
func mustBuild(g *Graph, opts ...BuildOption) *Runner {
	r, err := g.Build(opts...)
	if err != nil {
		panic(err)
	}
	return r
}
