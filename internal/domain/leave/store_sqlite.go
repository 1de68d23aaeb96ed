package leave

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"timeoff/internal/platform/db"
)

var sqliteDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("?%d", n) },
	like:        "LIKE",
	date:        func(t time.Time) any { return db.SQLiteDate(CivilDate(t)) },
}

// SQLiteStore is the embedded store used for local runs and tests. The
// handle must be limited to one connection (see db.OpenSQLite), which makes
// every transaction exclusive and WithinStaffTx trivially serialized.
type SQLiteStore struct {
	sqliteQueries
	DB *sql.DB
}

func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqliteQueries: sqliteQueries{q: database}, DB: database}
}

func (s *SQLiteStore) WithinStaffTx(ctx context.Context, _ string, _ int64, fn func(q Queries) error) error {
	return s.WithinTx(ctx, fn)
}

func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteError(fmt.Errorf("begin tx: %w", err))
	}
	if err := fn(sqliteQueries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("leave tx rollback failed", "err", rbErr)
		}
		return mapSQLiteError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func mapSQLiteError(err error) error {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) && sqErr.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: %s", ErrConflict, sqErr.Error())
	}
	return err
}

func isSQLiteUniqueViolation(err error) bool {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) && sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type sqliteQueries struct {
	q db.DBTX
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRequest(row sqliteScanner) (Request, error) {
	var req Request
	var status, start, end, createdAt, updatedAt string
	var decidedAt, cancelledAt sql.NullString
	if err := row.Scan(
		&req.ID, &req.TenantID, &req.StaffMemberID, &req.CategoryID, &start, &end, &req.TotalDays,
		&req.Reason, &status, &req.ApproverID, &req.ApprovalRemarks, &decidedAt,
		&req.CancelledBy, &cancelledAt, &createdAt, &updatedAt,
	); err != nil {
		return Request{}, err
	}
	req.Status = Status(status)

	var err error
	if req.StartDate, err = db.ParseSQLiteDate(start); err != nil {
		return Request{}, fmt.Errorf("parse start_date: %w", err)
	}
	if req.EndDate, err = db.ParseSQLiteDate(end); err != nil {
		return Request{}, fmt.Errorf("parse end_date: %w", err)
	}
	if req.DecidedAt, err = db.NullSQLiteTime(decidedAt); err != nil {
		return Request{}, fmt.Errorf("parse decided_at: %w", err)
	}
	if req.CancelledAt, err = db.NullSQLiteTime(cancelledAt); err != nil {
		return Request{}, fmt.Errorf("parse cancelled_at: %w", err)
	}
	if req.CreatedAt, err = db.ParseSQLiteTime(createdAt); err != nil {
		return Request{}, fmt.Errorf("parse created_at: %w", err)
	}
	if req.UpdatedAt, err = db.ParseSQLiteTime(updatedAt); err != nil {
		return Request{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return req, nil
}

func scanSQLiteCategory(row sqliteScanner) (Category, error) {
	var c Category
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.TenantID, &c.Title, &c.AnnualQuota, &c.IsPaid, &c.IsActive, &createdAt, &updatedAt); err != nil {
		return Category{}, err
	}
	var err error
	if c.CreatedAt, err = db.ParseSQLiteTime(createdAt); err != nil {
		return Category{}, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = db.ParseSQLiteTime(updatedAt); err != nil {
		return Category{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return c, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return db.SQLiteTime(*t)
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func (p sqliteQueries) collectRequests(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		req, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (p sqliteQueries) GetRequest(ctx context.Context, tenantID string, id int64) (Request, error) {
	req, err := scanSQLiteRequest(p.q.QueryRowContext(ctx, `
    SELECT `+requestColumns+`
    FROM time_off_requests
    WHERE tenant_id = ?1 AND id = ?2
  `, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (p sqliteQueries) ListRequests(ctx context.Context, tenantID string, filter ListFilter) ([]Request, int, error) {
	query, args, countQuery, countArgs := sqliteDialect.listQuery(tenantID, filter)

	var total int
	if err := p.q.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	requests, err := p.collectRequests(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return requests, total, nil
}

func (p sqliteQueries) LiveOverlaps(ctx context.Context, tenantID string, staffMemberID int64, start, end time.Time, excludeID int64) ([]int64, error) {
	query, args := sqliteDialect.overlapQuery(tenantID, staffMemberID, start, end, excludeID)
	rows, err := p.q.QueryContext(ctx, query, args...)
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

func (p sqliteQueries) InsertRequest(ctx context.Context, req Request) (Request, error) {
	now := db.SQLiteTime(time.Now())
	res, err := p.q.ExecContext(ctx, `
    INSERT INTO time_off_requests (tenant_id, staff_member_id, time_off_category_id, start_date, end_date, total_days,
      reason, approval_status, created_at, updated_at)
    VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?9)
  `, req.TenantID, req.StaffMemberID, req.CategoryID, sqliteDialect.date(req.StartDate), sqliteDialect.date(req.EndDate),
		req.TotalDays, req.Reason, string(req.Status), now)
	if err != nil {
		return Request{}, mapSQLiteError(fmt.Errorf("insert request: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Request{}, fmt.Errorf("insert request: %w", err)
	}
	return p.GetRequest(ctx, req.TenantID, id)
}

func (p sqliteQueries) UpdateRequest(ctx context.Context, req Request) (Request, error) {
	res, err := p.q.ExecContext(ctx, `
    UPDATE time_off_requests
    SET time_off_category_id = ?3, start_date = ?4, end_date = ?5, total_days = ?6, reason = ?7,
        approval_status = ?8, approver_id = ?9, approval_remarks = ?10, decided_at = ?11,
        cancelled_by = ?12, cancelled_at = ?13, updated_at = ?14
    WHERE tenant_id = ?1 AND id = ?2
  `, req.TenantID, req.ID, req.CategoryID, sqliteDialect.date(req.StartDate), sqliteDialect.date(req.EndDate), req.TotalDays,
		req.Reason, string(req.Status), nullString(req.ApproverID), req.ApprovalRemarks, nullTime(req.DecidedAt),
		nullString(req.CancelledBy), nullTime(req.CancelledAt), db.SQLiteTime(time.Now()))
	if err != nil {
		return Request{}, mapSQLiteError(fmt.Errorf("update request: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Request{}, ErrNotFound
	}
	return p.GetRequest(ctx, req.TenantID, req.ID)
}

func (p sqliteQueries) DeleteRequest(ctx context.Context, tenantID string, id int64) error {
	res, err := p.q.ExecContext(ctx, "DELETE FROM time_off_requests WHERE tenant_id = ?1 AND id = ?2", tenantID, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p sqliteQueries) ApprovedInRange(ctx context.Context, tenantID string, staffMemberID int64, from, to time.Time) ([]Request, error) {
	query, args := sqliteDialect.rangeQuery(tenantID, &staffMemberID, []Status{StatusApproved}, from, to)
	out, err := p.collectRequests(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("approved requests: %w", err)
	}
	return out, nil
}

func (p sqliteQueries) LiveInRange(ctx context.Context, tenantID string, staffMemberID *int64, from, to time.Time) ([]Request, error) {
	query, args := sqliteDialect.rangeQuery(tenantID, staffMemberID, []Status{StatusPending, StatusApproved}, from, to)
	out, err := p.collectRequests(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("live requests: %w", err)
	}
	return out, nil
}

func (p sqliteQueries) CountByStatus(ctx context.Context, tenantID string, staffMemberID *int64) ([]StatusCount, error) {
	query, args := sqliteDialect.countByStatusQuery(tenantID, staffMemberID)
	rows, err := p.q.QueryContext(ctx, query, args...)
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

func (p sqliteQueries) GetCategory(ctx context.Context, tenantID string, id int64) (Category, error) {
	c, err := scanSQLiteCategory(p.q.QueryRowContext(ctx, `
    SELECT `+categoryColumns+`
    FROM time_off_categories
    WHERE tenant_id = ?1 AND id = ?2
  `, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (p sqliteQueries) ListCategories(ctx context.Context, tenantID string, includeInactive bool) ([]Category, error) {
	query := "SELECT " + categoryColumns + " FROM time_off_categories WHERE tenant_id = ?1"
	if !includeInactive {
		query += " AND is_active = 1"
	}
	query += " ORDER BY title, id"
	rows, err := p.q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := []Category{}
	for rows.Next() {
		c, err := scanSQLiteCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p sqliteQueries) InsertCategory(ctx context.Context, c Category) (Category, error) {
	now := db.SQLiteTime(time.Now())
	res, err := p.q.ExecContext(ctx, `
    INSERT INTO time_off_categories (tenant_id, title, annual_quota, is_paid, is_active, created_at, updated_at)
    VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?6)
  `, c.TenantID, c.Title, c.AnnualQuota, c.IsPaid, c.IsActive, now)
	if isSQLiteUniqueViolation(err) {
		return Category{}, invalidField("title", "already exists")
	}
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return p.GetCategory(ctx, c.TenantID, id)
}

func (p sqliteQueries) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	res, err := p.q.ExecContext(ctx, `
    UPDATE time_off_categories
    SET title = ?3, annual_quota = ?4, is_paid = ?5, is_active = ?6, updated_at = ?7
    WHERE tenant_id = ?1 AND id = ?2
  `, c.TenantID, c.ID, c.Title, c.AnnualQuota, c.IsPaid, c.IsActive, db.SQLiteTime(time.Now()))
	if isSQLiteUniqueViolation(err) {
		return Category{}, invalidField("title", "already exists")
	}
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Category{}, ErrNotFound
	}
	return p.GetCategory(ctx, c.TenantID, c.ID)
}

func (p sqliteQueries) DeleteCategory(ctx context.Context, tenantID string, id int64) error {
	res, err := p.q.ExecContext(ctx, "DELETE FROM time_off_categories WHERE tenant_id = ?1 AND id = ?2", tenantID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p sqliteQueries) CategoryInUse(ctx context.Context, tenantID string, id int64) (bool, error) {
	var exists bool
	if err := p.q.QueryRowContext(ctx, `
    SELECT EXISTS (SELECT 1 FROM time_off_requests WHERE tenant_id = ?1 AND time_off_category_id = ?2)
  `, tenantID, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("category in use: %w", err)
	}
	return exists, nil
}

func (p sqliteQueries) EnsureCategory(ctx context.Context, tenantID, title string, annualQuota int, isPaid bool) error {
	now := db.SQLiteTime(time.Now())
	_, err := p.q.ExecContext(ctx, `
    INSERT INTO time_off_categories (tenant_id, title, annual_quota, is_paid, is_active, created_at, updated_at)
    VALUES (?1, ?2, ?3, ?4, 1, ?5, ?5)
    ON CONFLICT (tenant_id, title) DO NOTHING
  `, tenantID, title, annualQuota, isPaid, now)
	return err
}
