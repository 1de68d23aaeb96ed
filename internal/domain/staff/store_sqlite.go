package staff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"timeoff/internal/platform/db"
)

// SQLiteStore is the embedded counterpart of Store.
type SQLiteStore struct {
	DB db.DBTX
}

func NewSQLiteStore(database db.DBTX) *SQLiteStore {
	return &SQLiteStore{DB: database}
}

func (s *SQLiteStore) GetStaffMember(ctx context.Context, tenantID string, id int64) (StaffMember, error) {
	var m StaffMember
	var createdAt, updatedAt string
	err := s.DB.QueryRowContext(ctx, `
    SELECT id, tenant_id, COALESCE(user_id, ''), first_name, last_name, email, status, created_at, updated_at
    FROM staff_members
    WHERE tenant_id = ? AND id = ?
  `, tenantID, id).Scan(&m.ID, &m.TenantID, &m.UserID, &m.FirstName, &m.LastName, &m.Email, &m.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StaffMember{}, ErrNotFound
	}
	if err != nil {
		return StaffMember{}, fmt.Errorf("get staff member: %w", err)
	}
	if m.CreatedAt, err = db.ParseSQLiteTime(createdAt); err != nil {
		return StaffMember{}, fmt.Errorf("parse created_at: %w", err)
	}
	if m.UpdatedAt, err = db.ParseSQLiteTime(updatedAt); err != nil {
		return StaffMember{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) StaffIDByUserID(ctx context.Context, tenantID, userID string) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
    SELECT id FROM staff_members WHERE tenant_id = ? AND user_id = ?
  `, tenantID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("staff id by user: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) CreateStaffMember(ctx context.Context, m StaffMember) (StaffMember, error) {
	if m.Status == "" {
		m.Status = StatusActive
	}
	now := time.Now().UTC()
	var userID any
	if m.UserID != "" {
		userID = m.UserID
	}
	res, err := s.DB.ExecContext(ctx, `
    INSERT INTO staff_members (tenant_id, user_id, first_name, last_name, email, status, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)
  `, m.TenantID, userID, m.FirstName, m.LastName, m.Email, m.Status, db.SQLiteTime(now), db.SQLiteTime(now))
	if err != nil {
		return StaffMember{}, fmt.Errorf("create staff member: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return StaffMember{}, fmt.Errorf("create staff member: %w", err)
	}
	parsed, _ := db.ParseSQLiteTime(db.SQLiteTime(now))
	m.CreatedAt = parsed
	m.UpdatedAt = parsed
	return m, nil
}
