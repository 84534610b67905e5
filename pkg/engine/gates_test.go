package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputGateClosedCountTracksConcurrentClosers(t *testing.T) {
	g := NewInputGate()
	var wg sync.WaitGroup
	release := make(chan struct{})

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.RunWithClosed(func() error {
				<-release
				return nil
			})
		}()
	}

	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.closeCount == 5
	}, time.Second, time.Millisecond, "all five closers should be tracked concurrently")

	close(release)
	wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Zero(t, g.closeCount)
}

func TestInputGateRunWithQueuesWhileClosed(t *testing.T) {
	g := NewInputGate()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = g.RunWithClosed(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = g.RunWith(context.Background(), func() error {
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
		t.Fatal("RunWith should not proceed while the gate is closed")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWith never proceeded after the gate reopened")
	}
}

func TestInputGateRunWithRespectsContextCancellation(t *testing.T) {
	g := NewInputGate()
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = g.RunWithClosed(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.RunWith(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputGateWaitUntilSurfacesError(t *testing.T) {
	g := NewOutputGate()
	boom := errors.New("boom")
	g.WaitUntil(func() error { return boom })
	err := g.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestOutputGateRunWithPrioritizesOwnError(t *testing.T) {
	g := NewOutputGate()
	own := errors.New("own")
	future := errors.New("future")
	g.WaitUntil(func() error { return future })

	err := g.RunWith(func() error { return own })
	require.Error(t, err)
	assert.ErrorIs(t, err, own)
}
