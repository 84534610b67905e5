package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// InputGate serializes request delivery to a single object. While closed
// (close counter > 0), new callers going through RunWith queue until the
// counter returns to zero; callers already inside RunWithClosed are not
// blocked by each other at the gate itself — the engine's RWMutex is what
// actually serializes their shadow mutations, the way blockConcurrencyWhile
// can nest with other in-flight work rather than deadlock against it.
type InputGate struct {
	mu         sync.Mutex
	closeCount int
	waiters    []chan struct{}
}

// NewInputGate returns an open input gate.
func NewInputGate() *InputGate {
	return &InputGate{}
}

// RunWithClosed closes the gate for the duration of fn, then reopens it
// and releases any queued RunWith waiters if no other closer remains.
func (g *InputGate) RunWithClosed(fn func() error) error {
	g.mu.Lock()
	g.closeCount++
	g.mu.Unlock()

	err := fn()

	g.mu.Lock()
	g.closeCount--
	var toRelease []chan struct{}
	if g.closeCount == 0 {
		toRelease = g.waiters
		g.waiters = nil
	}
	g.mu.Unlock()

	for _, w := range toRelease {
		close(w)
	}
	return err
}

// RunWith awaits the gate if it is currently closed, then runs fn.
func (g *InputGate) RunWith(ctx context.Context, fn func() error) error {
	g.mu.Lock()
	if g.closeCount > 0 {
		ch := make(chan struct{})
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		g.mu.Unlock()
	}
	return fn()
}

// BlockConcurrencyWhile defers other request delivery to the same object
// for the duration of fn, by closing the input gate around it.
func (g *InputGate) BlockConcurrencyWhile(fn func() error) error {
	return g.RunWithClosed(fn)
}

// OutputGate accumulates unconfirmed futures and awaits them before its
// enclosing scope completes. Built on errgroup, per the engine's mapping
// of "waitUntil(future)" onto "g.Go(func)" and "await the scope" onto
// "g.Wait()".
type OutputGate struct {
	g *errgroup.Group
}

// NewOutputGate opens a fresh output gate. An Engine holds one for all of
// its direct writes; each transaction attempt opens its own.
func NewOutputGate() *OutputGate {
	return &OutputGate{g: &errgroup.Group{}}
}

// WaitUntil registers fn to run concurrently; its error (if any) surfaces
// from the next Wait.
func (g *OutputGate) WaitUntil(fn func() error) {
	g.g.Go(fn)
}

// RunWith runs fn, then waits for every registered future before
// returning. fn's error takes priority over a subsequent future error.
func (g *OutputGate) RunWith(fn func() error) error {
	err := fn()
	if werr := g.g.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

// Wait blocks until every registered future has completed.
func (g *OutputGate) Wait() error {
	return g.g.Wait()
}
