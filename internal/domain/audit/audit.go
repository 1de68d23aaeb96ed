package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event describes one successful state change.
type Event struct {
	TenantID           string         `json:"tenantId"`
	ActorUserID        string         `json:"actorUserId"`
	Action             string         `json:"action"`
	EntityType         string         `json:"entityType"`
	EntityID           string         `json:"entityId"`
	OwnerStaffMemberID int64          `json:"ownerStaffMemberId,omitempty"`
	FromStatus         string         `json:"fromStatus,omitempty"`
	ToStatus           string         `json:"toStatus,omitempty"`
	RequestID          string         `json:"requestId,omitempty"`
	OccurredAt         time.Time      `json:"occurredAt"`
	Details            map[string]any `json:"details,omitempty"`
}

// Sink accepts events without blocking the caller. Delivery is best effort.
type Sink interface {
	Emit(ctx context.Context, evt Event)
}

// Recorder persists or reacts to a single event.
type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

type RecorderFunc func(ctx context.Context, evt Event) error

func (f RecorderFunc) Record(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Discard drops every event.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Emit(context.Context, Event) {}

// LogRecorder writes events to the structured log.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) Record(ctx context.Context, evt Event) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit event",
		"tenantId", evt.TenantID,
		"actorUserId", evt.ActorUserID,
		"action", evt.Action,
		"entityType", evt.EntityType,
		"entityId", evt.EntityID,
		"fromStatus", evt.FromStatus,
		"toStatus", evt.ToStatus,
		"requestId", evt.RequestID,
	)
	return nil
}
