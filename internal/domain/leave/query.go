package leave

import (
	"fmt"
	"strings"
	"time"
)

// dialect captures the differences between the postgres and sqlite stores
// that matter to the shared query builders.
type dialect struct {
	placeholder func(n int) string
	like        string
	date        func(t time.Time) any
}

const requestColumns = `id, tenant_id, staff_member_id, time_off_category_id, start_date, end_date, total_days,
    reason, approval_status, COALESCE(approver_id, ''), approval_remarks, decided_at,
    COALESCE(cancelled_by, ''), cancelled_at, created_at, updated_at`

const categoryColumns = `id, tenant_id, title, annual_quota, is_paid, is_active, created_at, updated_at`

type argList struct {
	d    dialect
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return a.d.placeholder(len(a.args))
}

// listWhere builds the WHERE clause shared by the page and count queries.
func (d dialect) listWhere(tenantID string, f ListFilter) (string, *argList) {
	a := &argList{d: d}
	clauses := []string{"tenant_id = " + a.add(tenantID)}
	if f.StaffMemberID != nil {
		clauses = append(clauses, "staff_member_id = "+a.add(*f.StaffMemberID))
	}
	if f.CategoryID != nil {
		clauses = append(clauses, "time_off_category_id = "+a.add(*f.CategoryID))
	}
	if f.Status != "" {
		clauses = append(clauses, "approval_status = "+a.add(string(f.Status)))
	}
	if f.From != nil {
		clauses = append(clauses, "end_date >= "+a.add(d.date(*f.From)))
	}
	if f.To != nil {
		clauses = append(clauses, "start_date <= "+a.add(d.date(*f.To)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		p := a.add("%" + escapeLike(search) + "%")
		clauses = append(clauses, fmt.Sprintf(`(reason %[1]s %[2]s ESCAPE '\' OR approval_remarks %[1]s %[2]s ESCAPE '\')`, d.like, p))
	}
	return " WHERE " + strings.Join(clauses, " AND "), a
}

func (d dialect) listQuery(tenantID string, f ListFilter) (string, []any, string, []any) {
	where, a := d.listWhere(tenantID, f)
	countQuery := "SELECT COUNT(1) FROM time_off_requests" + where
	countArgs := append([]any(nil), a.args...)

	query := "SELECT " + requestColumns + " FROM time_off_requests" + where + " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT %s OFFSET %s", a.add(f.PageSize), a.add(f.offset()))
	return query, a.args, countQuery, countArgs
}

func (d dialect) overlapQuery(tenantID string, staffMemberID int64, start, end time.Time, excludeID int64) (string, []any) {
	a := &argList{d: d}
	query := fmt.Sprintf(`
    SELECT id FROM time_off_requests
    WHERE tenant_id = %s AND staff_member_id = %s
      AND approval_status IN ('pending', 'approved')
      AND start_date <= %s AND end_date >= %s
      AND id <> %s
    ORDER BY start_date, id
  `, a.add(tenantID), a.add(staffMemberID), a.add(d.date(end)), a.add(d.date(start)), a.add(excludeID))
	return query, a.args
}

func (d dialect) rangeQuery(tenantID string, staffMemberID *int64, statuses []Status, from, to time.Time) (string, []any) {
	a := &argList{d: d}
	query := "SELECT " + requestColumns + " FROM time_off_requests WHERE tenant_id = " + a.add(tenantID)
	if staffMemberID != nil {
		query += " AND staff_member_id = " + a.add(*staffMemberID)
	}
	marks := make([]string, 0, len(statuses))
	for _, s := range statuses {
		marks = append(marks, a.add(string(s)))
	}
	query += " AND approval_status IN (" + strings.Join(marks, ", ") + ")"
	query += " AND start_date <= " + a.add(d.date(to)) + " AND end_date >= " + a.add(d.date(from))
	query += " ORDER BY start_date, id"
	return query, a.args
}

func (d dialect) countByStatusQuery(tenantID string, staffMemberID *int64) (string, []any) {
	a := &argList{d: d}
	query := "SELECT approval_status, COUNT(1), COALESCE(SUM(total_days), 0) FROM time_off_requests WHERE tenant_id = " + a.add(tenantID)
	if staffMemberID != nil {
		query += " AND staff_member_id = " + a.add(*staffMemberID)
	}
	query += " GROUP BY approval_status"
	return query, a.args
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
