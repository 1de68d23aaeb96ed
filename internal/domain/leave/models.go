package leave

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every approval status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusDeclined, StatusCancelled}

// Live reports whether a request in this status blocks overlapping requests.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusApproved
}

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

type Category struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenantId"`
	Title       string    `json:"title"`
	AnnualQuota int       `json:"annualQuota"`
	IsPaid      bool      `json:"isPaid"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Request is a time-off request. StartDate and EndDate are civil dates held
// as UTC midnight; both bounds are inclusive.
type Request struct {
	ID              int64      `json:"id"`
	TenantID        string     `json:"tenantId"`
	StaffMemberID   int64      `json:"staffMemberId"`
	CategoryID      int64      `json:"categoryId"`
	StartDate       time.Time  `json:"startDate"`
	EndDate         time.Time  `json:"endDate"`
	TotalDays       int        `json:"totalDays"`
	Reason          string     `json:"reason"`
	Status          Status     `json:"approvalStatus"`
	ApproverID      string     `json:"approverId,omitempty"`
	ApprovalRemarks string     `json:"approvalRemarks,omitempty"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	CancelledBy     string     `json:"cancelledBy,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ListFilter narrows request listings. Zero values mean "no filter"; From
// and To select requests intersecting the window.
type ListFilter struct {
	StaffMemberID *int64     `json:"staffMemberId,omitempty" validate:"omitempty,gt=0"`
	CategoryID    *int64     `json:"categoryId,omitempty" validate:"omitempty,gt=0"`
	Status        Status     `json:"status,omitempty" validate:"omitempty,oneof=pending approved declined cancelled"`
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	Search        string     `json:"search,omitempty" validate:"max=200"`
	Page          int        `json:"page"`
	PageSize      int        `json:"pageSize"`
}

func (f ListFilter) offset() int {
	return (f.Page - 1) * f.PageSize
}

type RequestPage struct {
	Items      []Request `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

type CategoryBalance struct {
	CategoryID int64  `json:"categoryId"`
	Title      string `json:"title"`
	Quota      int    `json:"quota"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
}

type Balance struct {
	StaffMemberID int64                     `json:"staffMemberId"`
	Year          int                       `json:"year"`
	Categories    map[int64]CategoryBalance `json:"categories"`
}

type Statistics struct {
	StaffMemberID     *int64 `json:"staffMemberId,omitempty"`
	Pending           int    `json:"pending"`
	Approved          int    `json:"approved"`
	Declined          int    `json:"declined"`
	Cancelled         int    `json:"cancelled"`
	Total             int    `json:"total"`
	TotalDaysApproved int    `json:"totalDaysApproved"`
}

// StatusCount is one GROUP BY row of the statistics query.
type StatusCount struct {
	Status Status
	Count  int
	Days   int
}
