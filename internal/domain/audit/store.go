package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"timeoff/internal/platform/querier"
)

// StoredEvent is an audit row as read back for administrators.
type StoredEvent struct {
	ID          int64           `json:"id"`
	ActorUserID string          `json:"actorUserId"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entityType"`
	EntityID    string          `json:"entityId"`
	FromStatus  string          `json:"fromStatus,omitempty"`
	ToStatus    string          `json:"toStatus,omitempty"`
	RequestID   string          `json:"requestId,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Details     json.RawMessage `json:"details,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorUser  string
}

// Store records events in the audit_events table.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Record(ctx context.Context, evt Event) error {
	var detailsJSON []byte
	if len(evt.Details) > 0 {
		payload, err := json.Marshal(evt.Details)
		if err != nil {
			return err
		}
		detailsJSON = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, from_status, to_status, request_id, details_json, occurred_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, evt.TenantID, evt.ActorUserID, evt.Action, evt.EntityType, evt.EntityID, evt.FromStatus, evt.ToStatus, evt.RequestID, detailsJSON, evt.OccurredAt)
	return err
}

func (s *Store) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", tenantID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) List(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]StoredEvent, error) {
	query, args := buildBaseQuery(
		"SELECT id, actor_user_id, action, entity_type, entity_id, from_status, to_status, request_id, occurred_at, details_json",
		tenantID, filter,
	)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StoredEvent{}
	for rows.Next() {
		var evt StoredEvent
		var details []byte
		if err := rows.Scan(&evt.ID, &evt.ActorUserID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.FromStatus, &evt.ToStatus, &evt.RequestID, &evt.OccurredAt, &details); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			evt.Details = details
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix, tenantID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE tenant_id = $1"
	args := []any{tenantID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", len(args)+1)
		args = append(args, filter.EntityID)
	}
	if filter.ActorUser != "" {
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args)+1)
		args = append(args, filter.ActorUser)
	}
	return query, args
}
