package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) Record(_ context.Context, evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *collector) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.Action)
	}
	return out
}

func TestDispatcherDeliversToAllRecorders(t *testing.T) {
	first, second := &collector{}, &collector{}
	d := NewDispatcher(8, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Emit(ctx, Event{Action: "a"})
	d.Emit(ctx, Event{Action: "b"})

	require.Eventually(t, func() bool { return d.Delivered() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"a", "b"}, first.actions())
	assert.Equal(t, []string{"a", "b"}, second.actions())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	c := &collector{}
	d := NewDispatcher(2, c)

	// No worker is running, so the third event has nowhere to go.
	d.Emit(context.Background(), Event{Action: "1"})
	d.Emit(context.Background(), Event{Action: "2"})
	d.Emit(context.Background(), Event{Action: "3"})
	assert.Equal(t, uint64(1), d.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, []string{"1", "2"}, c.actions())
}

func TestDispatcherIgnoresRecorderFailures(t *testing.T) {
	c := &collector{}
	failing := RecorderFunc(func(context.Context, Event) error { return errors.New("boom") })
	d := NewDispatcher(4, failing, c)

	d.Emit(context.Background(), Event{Action: "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, []string{"x"}, c.actions())
	assert.Equal(t, uint64(1), d.Delivered())
}

func TestEmitNeverBlocks(t *testing.T) {
	d := NewDispatcher(1)
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			d.Emit(context.Background(), Event{Action: "spam"})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked with a full buffer")
	}
	assert.Equal(t, uint64(999), d.Dropped())
}

func TestDiscardAndLogRecorder(t *testing.T) {
	Discard.Emit(context.Background(), Event{Action: "ignored"})
	assert.NoError(t, LogRecorder{}.Record(context.Background(), Event{Action: "logged"}))
}
