package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"timeoff/internal/platform/querier"
)

// pgQueries implements Queries over either the pool or an open transaction.
type pgQueries struct {
	q querier.Querier
}

func scanPgRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	err := row.Scan(
		&req.ID, &req.TenantID, &req.StaffMemberID, &req.CategoryID, &req.StartDate, &req.EndDate, &req.TotalDays,
		&req.Reason, &status, &req.ApproverID, &req.ApprovalRemarks, &req.DecidedAt,
		&req.CancelledBy, &req.CancelledAt, &req.CreatedAt, &req.UpdatedAt,
	)
	req.Status = Status(status)
	return req, err
}

func scanPgCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.TenantID, &c.Title, &c.AnnualQuota, &c.IsPaid, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (p pgQueries) GetRequest(ctx context.Context, tenantID string, id int64) (Request, error) {
	req, err := scanPgRequest(p.q.QueryRow(ctx, `
    SELECT `+requestColumns+`
    FROM time_off_requests
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (p pgQueries) ListRequests(ctx context.Context, tenantID string, filter ListFilter) ([]Request, int, error) {
	query, args, countQuery, countArgs := postgresDialect.listQuery(tenantID, filter)

	var total int
	if err := p.q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	requests, err := collectPgRequests(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return requests, total, nil
}

func collectPgRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		req, err := scanPgRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (p pgQueries) LiveOverlaps(ctx context.Context, tenantID string, staffMemberID int64, start, end time.Time, excludeID int64) ([]int64, error) {
	query, args := postgresDialect.overlapQuery(tenantID, staffMemberID, start, end, excludeID)
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("overlap check: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("overlap check: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p pgQueries) InsertRequest(ctx context.Context, req Request) (Request, error) {
	created, err := scanPgRequest(p.q.QueryRow(ctx, `
    INSERT INTO time_off_requests (tenant_id, staff_member_id, time_off_category_id, start_date, end_date, total_days, reason, approval_status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING `+requestColumns,
		req.TenantID, req.StaffMemberID, req.CategoryID, CivilDate(req.StartDate), CivilDate(req.EndDate), req.TotalDays, req.Reason, string(req.Status)))
	if err != nil {
		return Request{}, mapPgError(fmt.Errorf("insert request: %w", err))
	}
	return created, nil
}

func (p pgQueries) UpdateRequest(ctx context.Context, req Request) (Request, error) {
	updated, err := scanPgRequest(p.q.QueryRow(ctx, `
    UPDATE time_off_requests
    SET time_off_category_id = $3, start_date = $4, end_date = $5, total_days = $6, reason = $7,
        approval_status = $8, approver_id = NULLIF($9, ''), approval_remarks = $10, decided_at = $11,
        cancelled_by = NULLIF($12, ''), cancelled_at = $13, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+requestColumns,
		req.TenantID, req.ID, req.CategoryID, CivilDate(req.StartDate), CivilDate(req.EndDate), req.TotalDays, req.Reason,
		string(req.Status), req.ApproverID, req.ApprovalRemarks, req.DecidedAt, req.CancelledBy, req.CancelledAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, mapPgError(fmt.Errorf("update request: %w", err))
	}
	return updated, nil
}

func (p pgQueries) DeleteRequest(ctx context.Context, tenantID string, id int64) error {
	tag, err := p.q.Exec(ctx, "DELETE FROM time_off_requests WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p pgQueries) ApprovedInRange(ctx context.Context, tenantID string, staffMemberID int64, from, to time.Time) ([]Request, error) {
	query, args := postgresDialect.rangeQuery(tenantID, &staffMemberID, []Status{StatusApproved}, from, to)
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("approved requests: %w", err)
	}
	return collectPgRequests(rows)
}

func (p pgQueries) LiveInRange(ctx context.Context, tenantID string, staffMemberID *int64, from, to time.Time) ([]Request, error) {
	query, args := postgresDialect.rangeQuery(tenantID, staffMemberID, []Status{StatusPending, StatusApproved}, from, to)
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("live requests: %w", err)
	}
	return collectPgRequests(rows)
}

func (p pgQueries) CountByStatus(ctx context.Context, tenantID string, staffMemberID *int64) ([]StatusCount, error) {
	query, args := postgresDialect.countByStatusQuery(tenantID, staffMemberID)
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count, &sc.Days); err != nil {
			return nil, fmt.Errorf("count by status: %w", err)
		}
		sc.Status = Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (p pgQueries) GetCategory(ctx context.Context, tenantID string, id int64) (Category, error) {
	c, err := scanPgCategory(p.q.QueryRow(ctx, `
    SELECT `+categoryColumns+`
    FROM time_off_categories
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (p pgQueries) ListCategories(ctx context.Context, tenantID string, includeInactive bool) ([]Category, error) {
	query := "SELECT " + categoryColumns + " FROM time_off_categories WHERE tenant_id = $1"
	if !includeInactive {
		query += " AND is_active"
	}
	query += " ORDER BY title, id"
	rows, err := p.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := []Category{}
	for rows.Next() {
		c, err := scanPgCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p pgQueries) InsertCategory(ctx context.Context, c Category) (Category, error) {
	created, err := scanPgCategory(p.q.QueryRow(ctx, `
    INSERT INTO time_off_categories (tenant_id, title, annual_quota, is_paid, is_active)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING `+categoryColumns,
		c.TenantID, c.Title, c.AnnualQuota, c.IsPaid, c.IsActive))
	if isPgUniqueViolation(err) {
		return Category{}, invalidField("title", "already exists")
	}
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return created, nil
}

func (p pgQueries) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	updated, err := scanPgCategory(p.q.QueryRow(ctx, `
    UPDATE time_off_categories
    SET title = $3, annual_quota = $4, is_paid = $5, is_active = $6, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+categoryColumns,
		c.TenantID, c.ID, c.Title, c.AnnualQuota, c.IsPaid, c.IsActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if isPgUniqueViolation(err) {
		return Category{}, invalidField("title", "already exists")
	}
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	return updated, nil
}

func (p pgQueries) DeleteCategory(ctx context.Context, tenantID string, id int64) error {
	tag, err := p.q.Exec(ctx, "DELETE FROM time_off_categories WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p pgQueries) CategoryInUse(ctx context.Context, tenantID string, id int64) (bool, error) {
	var exists bool
	if err := p.q.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM time_off_requests WHERE tenant_id = $1 AND time_off_category_id = $2)
  `, tenantID, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("category in use: %w", err)
	}
	return exists, nil
}

func (p pgQueries) EnsureCategory(ctx context.Context, tenantID, title string, annualQuota int, isPaid bool) error {
	_, err := p.q.Exec(ctx, `
    INSERT INTO time_off_categories (tenant_id, title, annual_quota, is_paid)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (tenant_id, title) DO NOTHING
  `, tenantID, title, annualQuota, isPaid)
	return err
}
