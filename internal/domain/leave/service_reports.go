package leave

import (
	"context"
	"time"

	"timeoff/internal/domain/auth"
)

// MaxCalendarWindow bounds a calendar export.
const MaxCalendarWindow = 366 * 24 * time.Hour

// LeaveBalance reports quota, approved usage and remaining days per category
// for one staff member and calendar year. Pending requests do not count.
func (s *Service) LeaveBalance(ctx context.Context, id auth.Identity, staffMemberID int64, year int) (Balance, error) {
	if staffMemberID == 0 && id.HasStaffRecord() {
		staffMemberID = *id.StaffMemberID
	}
	if staffMemberID <= 0 {
		return Balance{}, invalidField("staffMemberId", "is required")
	}
	if !s.policy.CanActFor(id, staffMemberID) {
		return Balance{}, ErrForbidden
	}
	if year == 0 {
		year = s.today().Year()
	}
	if year < 1900 || year > 9999 {
		return Balance{}, invalidField("year", "is out of range")
	}

	categories, err := s.store.ListCategories(ctx, id.TenantID, true)
	if err != nil {
		return Balance{}, err
	}
	from, to := YearBounds(year)
	approved, err := s.store.ApprovedInRange(ctx, id.TenantID, staffMemberID, from, to)
	if err != nil {
		return Balance{}, err
	}

	used := make(map[int64]int)
	for _, req := range approved {
		used[req.CategoryID] += DaysWithin(req.StartDate, req.EndDate, from, to)
	}

	out := Balance{StaffMemberID: staffMemberID, Year: year, Categories: make(map[int64]CategoryBalance)}
	for _, c := range categories {
		if !c.IsActive && used[c.ID] == 0 {
			continue
		}
		out.Categories[c.ID] = CategoryBalance{
			CategoryID: c.ID,
			Title:      c.Title,
			Quota:      c.AnnualQuota,
			Used:       used[c.ID],
			Remaining:  Remaining(c.AnnualQuota, used[c.ID]),
		}
	}
	return out, nil
}

// Statistics counts requests per status. A nil staffMemberID asks for the
// whole tenant, which only admins may see.
func (s *Service) Statistics(ctx context.Context, id auth.Identity, staffMemberID *int64) (Statistics, error) {
	if staffMemberID == nil && !s.policy.IsAdmin(id) {
		return Statistics{}, ErrForbidden
	}
	if staffMemberID != nil && !s.policy.CanActFor(id, *staffMemberID) {
		return Statistics{}, ErrForbidden
	}

	counts, err := s.store.CountByStatus(ctx, id.TenantID, staffMemberID)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{StaffMemberID: staffMemberID}
	for _, c := range counts {
		switch c.Status {
		case StatusPending:
			stats.Pending = c.Count
		case StatusApproved:
			stats.Approved = c.Count
			stats.TotalDaysApproved = c.Days
		case StatusDeclined:
			stats.Declined = c.Count
		case StatusCancelled:
			stats.Cancelled = c.Count
		}
		stats.Total += c.Count
	}
	return stats, nil
}

// CalendarEntries returns live requests intersecting [from, to], scoped the
// same way as ListRequests.
func (s *Service) CalendarEntries(ctx context.Context, id auth.Identity, from, to time.Time) ([]Request, error) {
	scoped, err := s.listScope(id, nil)
	if err != nil {
		return nil, err
	}
	from, to = CivilDate(from), CivilDate(to)
	if to.Before(from) {
		return nil, invalidField("to", "must be on or after from")
	}
	if to.Sub(from) > MaxCalendarWindow {
		return nil, invalidField("to", "window must not exceed 366 days")
	}
	entries, err := s.store.LiveInRange(ctx, id.TenantID, scoped, from, to)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Request{}
	}
	return entries, nil
}
