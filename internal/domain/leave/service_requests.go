package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"timeoff/internal/domain/auth"
)

func (s *Service) CreateRequest(ctx context.Context, id auth.Identity, cmd CreateRequestCommand) (Request, error) {
	isAdmin := s.policy.IsAdmin(id)
	if !isAdmin && !id.HasStaffRecord() {
		return Request{}, ErrForbidden
	}
	if cmd.StaffMemberID == 0 && !isAdmin {
		cmd.StaffMemberID = *id.StaffMemberID
	}
	if cmd.StaffMemberID > 0 && !s.policy.CanActFor(id, cmd.StaffMemberID) {
		return Request{}, ErrForbidden
	}

	verr, err := validateStruct(cmd)
	if err != nil {
		return Request{}, err
	}
	s.checkDates(verr, cmd.StartDate, cmd.EndDate, true)
	if err := verr.orNil(); err != nil {
		return Request{}, err
	}

	if err := s.requireActiveStaff(ctx, id.TenantID, cmd.StaffMemberID); err != nil {
		return Request{}, err
	}
	if _, err := s.requireActiveCategory(ctx, id.TenantID, cmd.CategoryID); err != nil {
		return Request{}, err
	}

	start, end := CivilDate(cmd.StartDate), CivilDate(cmd.EndDate)
	days, err := CalculateDays(start, end)
	if err != nil {
		return Request{}, invalidField("endDate", err.Error())
	}

	candidate := Request{
		TenantID:      id.TenantID,
		StaffMemberID: cmd.StaffMemberID,
		CategoryID:    cmd.CategoryID,
		StartDate:     start,
		EndDate:       end,
		TotalDays:     days,
		Reason:        strings.TrimSpace(cmd.Reason),
		Status:        StatusPending,
	}

	var created Request
	err = s.withinStaffTx(ctx, id.TenantID, cmd.StaffMemberID, func(q Queries) error {
		conflicting, err := q.LiveOverlaps(ctx, id.TenantID, cmd.StaffMemberID, start, end, 0)
		if err != nil {
			return err
		}
		if len(conflicting) > 0 {
			return &OverlapError{ConflictingIDs: conflicting}
		}
		created, err = q.InsertRequest(ctx, candidate)
		return err
	})
	if err != nil {
		return Request{}, err
	}

	s.emit(ctx, id, ActionRequestCreate, EntityRequest, created.ID, created.StaffMemberID, "", StatusPending, map[string]any{
		"startDate": created.StartDate.Format(time.DateOnly),
		"endDate":   created.EndDate.Format(time.DateOnly),
		"totalDays": created.TotalDays,
	})
	return created, nil
}

// ListRequests is the "all requests" view. Self-service callers only ever
// see their own requests whatever staff filter they pass.
func (s *Service) ListRequests(ctx context.Context, id auth.Identity, filter ListFilter) (RequestPage, error) {
	scoped, err := s.listScope(id, filter.StaffMemberID)
	if err != nil {
		return RequestPage{}, err
	}
	filter.StaffMemberID = scoped
	return s.list(ctx, id.TenantID, filter)
}

// ListMyRequests is the "my requests" view for any caller with a staff record.
func (s *Service) ListMyRequests(ctx context.Context, id auth.Identity, filter ListFilter) (RequestPage, error) {
	if !id.HasStaffRecord() {
		return RequestPage{}, ErrForbidden
	}
	own := *id.StaffMemberID
	filter.StaffMemberID = &own
	return s.list(ctx, id.TenantID, filter)
}

func (s *Service) list(ctx context.Context, tenantID string, filter ListFilter) (RequestPage, error) {
	verr, err := validateStruct(filter)
	if err != nil {
		return RequestPage{}, err
	}
	if filter.From != nil && filter.To != nil && CivilDate(*filter.To).Before(CivilDate(*filter.From)) {
		verr.Add("to", "must be on or after from")
	}
	if err := verr.orNil(); err != nil {
		return RequestPage{}, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}
	filter.Search = strings.TrimSpace(filter.Search)

	items, total, err := s.store.ListRequests(ctx, tenantID, filter)
	if err != nil {
		return RequestPage{}, err
	}
	if items == nil {
		items = []Request{}
	}
	return RequestPage{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages(total, filter.PageSize),
	}, nil
}

func (s *Service) GetRequest(ctx context.Context, id auth.Identity, requestID int64) (Request, error) {
	return s.loadAccessible(ctx, id, requestID)
}

// loadAccessible fetches a request the caller may act on. Missing records are
// ErrNotFound; someone else's record is a plain ErrForbidden.
func (s *Service) loadAccessible(ctx context.Context, id auth.Identity, requestID int64) (Request, error) {
	req, err := s.store.GetRequest(ctx, id.TenantID, requestID)
	if err != nil {
		return Request{}, err
	}
	if !s.policy.CanActFor(id, req.StaffMemberID) {
		return Request{}, ErrForbidden
	}
	return req, nil
}

func (s *Service) UpdateRequest(ctx context.Context, id auth.Identity, requestID int64, cmd UpdateRequestCommand) (Request, error) {
	current, err := s.loadAccessible(ctx, id, requestID)
	if err != nil {
		return Request{}, err
	}
	if current.Status != StatusPending {
		return Request{}, &InvalidStateError{Action: "update", Status: current.Status}
	}

	verr, err := validateStruct(cmd)
	if err != nil {
		return Request{}, err
	}
	start, end := current.StartDate, current.EndDate
	if cmd.StartDate != nil {
		start = CivilDate(*cmd.StartDate)
	}
	if cmd.EndDate != nil {
		end = CivilDate(*cmd.EndDate)
	}
	datesChanged := !start.Equal(current.StartDate) || !end.Equal(current.EndDate)
	s.checkDates(verr, start, end, datesChanged)
	if err := verr.orNil(); err != nil {
		return Request{}, err
	}
	if cmd.CategoryID != nil && *cmd.CategoryID != current.CategoryID {
		if _, err := s.requireActiveCategory(ctx, id.TenantID, *cmd.CategoryID); err != nil {
			return Request{}, err
		}
	}

	var updated Request
	err = s.withinStaffTx(ctx, id.TenantID, current.StaffMemberID, func(q Queries) error {
		req, err := q.GetRequest(ctx, id.TenantID, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &InvalidStateError{Action: "update", Status: req.Status}
		}
		conflicting, err := q.LiveOverlaps(ctx, id.TenantID, req.StaffMemberID, start, end, req.ID)
		if err != nil {
			return err
		}
		if len(conflicting) > 0 {
			return &OverlapError{ConflictingIDs: conflicting}
		}

		if cmd.CategoryID != nil {
			req.CategoryID = *cmd.CategoryID
		}
		if cmd.Reason != nil {
			req.Reason = strings.TrimSpace(*cmd.Reason)
		}
		req.StartDate, req.EndDate = start, end
		if req.TotalDays, err = CalculateDays(start, end); err != nil {
			return invalidField("endDate", err.Error())
		}
		updated, err = q.UpdateRequest(ctx, req)
		return err
	})
	if err != nil {
		return Request{}, err
	}

	s.emit(ctx, id, ActionRequestUpdate, EntityRequest, updated.ID, updated.StaffMemberID, StatusPending, StatusPending, map[string]any{
		"startDate": updated.StartDate.Format(time.DateOnly),
		"endDate":   updated.EndDate.Format(time.DateOnly),
		"totalDays": updated.TotalDays,
	})
	return updated, nil
}

func (s *Service) CancelRequest(ctx context.Context, id auth.Identity, requestID int64) (Request, error) {
	return s.transition(ctx, id, requestID, ActionRequestCancel, "cancel", StatusCancelled, nil, func(req *Request, now time.Time) {
		req.ApproverID = ""
		req.DecidedAt = nil
		req.CancelledBy = id.UserID
		req.CancelledAt = &now
	})
}

func (s *Service) ApproveRequest(ctx context.Context, id auth.Identity, requestID int64, cmd DecisionCommand) (Request, error) {
	if !s.policy.IsAdmin(id) {
		return Request{}, ErrForbidden
	}
	verr, err := validateStruct(cmd)
	if err != nil {
		return Request{}, err
	}
	if err := verr.orNil(); err != nil {
		return Request{}, err
	}
	remarks := strings.TrimSpace(cmd.Remarks)
	return s.transition(ctx, id, requestID, ActionRequestApprove, "approve", StatusApproved,
		map[string]any{"remarks": remarks}, decide(id, remarks))
}

func (s *Service) DeclineRequest(ctx context.Context, id auth.Identity, requestID int64, cmd DecisionCommand) (Request, error) {
	if !s.policy.IsAdmin(id) {
		return Request{}, ErrForbidden
	}
	verr, err := validateStruct(cmd)
	if err != nil {
		return Request{}, err
	}
	remarks := strings.TrimSpace(cmd.Remarks)
	if remarks == "" {
		verr.Add("remarks", "is required when declining")
	}
	if err := verr.orNil(); err != nil {
		return Request{}, err
	}
	return s.transition(ctx, id, requestID, ActionRequestDecline, "decline", StatusDeclined,
		map[string]any{"remarks": remarks}, decide(id, remarks))
}

func decide(id auth.Identity, remarks string) func(*Request, time.Time) {
	return func(req *Request, now time.Time) {
		req.ApproverID = id.UserID
		req.ApprovalRemarks = remarks
		req.DecidedAt = &now
	}
}

// transition moves a request along one edge of the state machine. The row
// is re-read inside the staff transaction so a concurrent decision cannot be
// overwritten.
func (s *Service) transition(ctx context.Context, id auth.Identity, requestID int64, action, verb string, to Status, details map[string]any, mutate func(*Request, time.Time)) (Request, error) {
	current, err := s.loadAccessible(ctx, id, requestID)
	if err != nil {
		return Request{}, err
	}

	var (
		from    Status
		updated Request
	)
	err = s.withinStaffTx(ctx, id.TenantID, current.StaffMemberID, func(q Queries) error {
		req, err := q.GetRequest(ctx, id.TenantID, requestID)
		if err != nil {
			return err
		}
		if !CanTransition(req.Status, to) {
			return &InvalidStateError{Action: verb, Status: req.Status}
		}
		from = req.Status
		req.Status = to
		mutate(&req, s.now().UTC())
		updated, err = q.UpdateRequest(ctx, req)
		return err
	})
	if err != nil {
		return Request{}, err
	}

	s.emit(ctx, id, action, EntityRequest, updated.ID, updated.StaffMemberID, from, to, details)
	return updated, nil
}

func (s *Service) DeleteRequest(ctx context.Context, id auth.Identity, requestID int64) error {
	current, err := s.loadAccessible(ctx, id, requestID)
	if err != nil {
		return err
	}
	err = s.withinStaffTx(ctx, id.TenantID, current.StaffMemberID, func(q Queries) error {
		req, err := q.GetRequest(ctx, id.TenantID, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &InvalidStateError{Action: "delete", Status: req.Status}
		}
		return q.DeleteRequest(ctx, id.TenantID, requestID)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("request %d: %w", requestID, ErrNotFound)
		}
		return err
	}
	s.emit(ctx, id, ActionRequestDelete, EntityRequest, current.ID, current.StaffMemberID, StatusPending, "", nil)
	return nil
}
