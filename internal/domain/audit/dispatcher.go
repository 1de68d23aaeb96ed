package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Dispatcher is a buffered, at-most-once Sink. Emit never blocks: when the
// buffer is full the event is dropped and counted. A single worker started by
// Run hands each event to every recorder in order; recorder failures are
// logged and never reach the emitter.
type Dispatcher struct {
	queue     chan Event
	recorders []Recorder
	timeout   time.Duration
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func NewDispatcher(bufferSize int, recorders ...Recorder) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Dispatcher{
		queue:     make(chan Event, bufferSize),
		recorders: recorders,
		timeout:   5 * time.Second,
	}
}

func (d *Dispatcher) Emit(_ context.Context, evt Event) {
	select {
	case d.queue <- evt:
	default:
		d.dropped.Add(1)
		slog.Warn("audit queue full, event dropped", "action", evt.Action, "entityId", evt.EntityID, "tenantId", evt.TenantID)
	}
}

// Run delivers events until ctx is cancelled, then drains whatever is
// already buffered before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case evt := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), evt)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case evt := <-d.queue:
			d.deliver(context.Background(), evt)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) {
	for _, r := range d.recorders {
		recordCtx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := r.Record(recordCtx, evt); err != nil {
			slog.Warn("audit record failed", "action", evt.Action, "entityId", evt.EntityID, "err", err)
		}
		cancel()
	}
	d.delivered.Add(1)
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}
