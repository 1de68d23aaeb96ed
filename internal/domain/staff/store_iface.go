package staff

import "context"

// Source is the staff-member storage the directory reads through.
type Source interface {
	GetStaffMember(ctx context.Context, tenantID string, id int64) (StaffMember, error)
	StaffIDByUserID(ctx context.Context, tenantID, userID string) (int64, error)
	CreateStaffMember(ctx context.Context, member StaffMember) (StaffMember, error)
}

var (
	_ Source = (*Store)(nil)
	_ Source = (*SQLiteStore)(nil)
)
