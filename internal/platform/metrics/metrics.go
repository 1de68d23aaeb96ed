package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"timeoff/internal/domain/audit"
)

// Collector keeps in-process counters for HTTP traffic and leave state
// changes. It doubles as an audit.Recorder.
type Collector struct {
	totalRequests   atomic.Uint64
	clientErrors    atomic.Uint64
	serverErrors    atomic.Uint64
	totalDurationMs atomic.Uint64

	mu      sync.Mutex
	actions map[string]uint64

	// AuditStats, when set, reports audit dispatcher delivered/dropped counts.
	AuditStats func() (delivered, dropped uint64)
}

func New() *Collector {
	return &Collector{actions: make(map[string]uint64)}
}

func (c *Collector) ObserveRequest(status int, duration time.Duration) {
	c.totalRequests.Add(1)
	switch {
	case status >= 500:
		c.serverErrors.Add(1)
	case status >= 400:
		c.clientErrors.Add(1)
	}
	c.totalDurationMs.Add(uint64(duration.Milliseconds()))
}

func (c *Collector) Record(_ context.Context, evt audit.Event) error {
	c.mu.Lock()
	c.actions[evt.Action]++
	c.mu.Unlock()
	return nil
}

func (c *Collector) Snapshot() map[string]any {
	total := c.totalRequests.Load()
	totalMs := c.totalDurationMs.Load()
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	actions := make(map[string]uint64, len(c.actions))
	for k, v := range c.actions {
		actions[k] = v
	}
	c.mu.Unlock()

	out := map[string]any{
		"requestsTotal":     total,
		"clientErrorsTotal": c.clientErrors.Load(),
		"serverErrorsTotal": c.serverErrors.Load(),
		"avgDurationMs":     avg,
		"totalDurationMs":   totalMs,
		"leaveEvents":       actions,
	}
	if c.AuditStats != nil {
		delivered, dropped := c.AuditStats()
		out["auditDelivered"] = delivered
		out["auditDropped"] = dropped
	}
	return out
}
