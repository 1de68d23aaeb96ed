package staff

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"timeoff/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) GetStaffMember(ctx context.Context, tenantID string, id int64) (StaffMember, error) {
	var m StaffMember
	err := s.DB.QueryRow(ctx, `
    SELECT id, tenant_id, COALESCE(user_id, ''), first_name, last_name, email, status, created_at, updated_at
    FROM staff_members
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, id).Scan(&m.ID, &m.TenantID, &m.UserID, &m.FirstName, &m.LastName, &m.Email, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StaffMember{}, ErrNotFound
	}
	if err != nil {
		return StaffMember{}, fmt.Errorf("get staff member: %w", err)
	}
	return m, nil
}

func (s *Store) StaffIDByUserID(ctx context.Context, tenantID, userID string) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
    SELECT id FROM staff_members WHERE tenant_id = $1 AND user_id = $2
  `, tenantID, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("staff id by user: %w", err)
	}
	return id, nil
}

func (s *Store) CreateStaffMember(ctx context.Context, m StaffMember) (StaffMember, error) {
	if m.Status == "" {
		m.Status = StatusActive
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO staff_members (tenant_id, user_id, first_name, last_name, email, status)
    VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
    RETURNING id, created_at, updated_at
  `, m.TenantID, m.UserID, m.FirstName, m.LastName, m.Email, m.Status).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return StaffMember{}, fmt.Errorf("create staff member: %w", err)
	}
	return m, nil
}
