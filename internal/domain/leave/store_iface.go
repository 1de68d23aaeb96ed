package leave

import (
	"context"
	"time"
)

// Queries is the read/write surface shared by the plain store and the
// transaction handed to WithinStaffTx.
type Queries interface {
	GetRequest(ctx context.Context, tenantID string, id int64) (Request, error)
	ListRequests(ctx context.Context, tenantID string, filter ListFilter) ([]Request, int, error)
	LiveOverlaps(ctx context.Context, tenantID string, staffMemberID int64, start, end time.Time, excludeID int64) ([]int64, error)
	InsertRequest(ctx context.Context, req Request) (Request, error)
	UpdateRequest(ctx context.Context, req Request) (Request, error)
	DeleteRequest(ctx context.Context, tenantID string, id int64) error
	ApprovedInRange(ctx context.Context, tenantID string, staffMemberID int64, from, to time.Time) ([]Request, error)
	LiveInRange(ctx context.Context, tenantID string, staffMemberID *int64, from, to time.Time) ([]Request, error)
	CountByStatus(ctx context.Context, tenantID string, staffMemberID *int64) ([]StatusCount, error)

	GetCategory(ctx context.Context, tenantID string, id int64) (Category, error)
	ListCategories(ctx context.Context, tenantID string, includeInactive bool) ([]Category, error)
	InsertCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, tenantID string, id int64) error
	CategoryInUse(ctx context.Context, tenantID string, id int64) (bool, error)
	EnsureCategory(ctx context.Context, tenantID, title string, annualQuota int, isPaid bool) error
}

type Store interface {
	Queries
	// WithinStaffTx runs fn in a transaction serialized against all other
	// writers for the same staff member. Serialization failures surface as
	// ErrConflict and overlap violations caught by the database as ErrOverlap.
	WithinStaffTx(ctx context.Context, tenantID string, staffMemberID int64, fn func(q Queries) error) error
	// WithinTx runs fn in a plain transaction.
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
