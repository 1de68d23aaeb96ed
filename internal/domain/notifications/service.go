package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"timeoff/internal/domain/audit"
	"timeoff/internal/domain/leave"
	"timeoff/internal/domain/staff"
)

var ErrNotFound = errors.New("notification not found")

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// StaffLookup resolves the owner of a request so they can be told about it.
type StaffLookup interface {
	GetStaffMember(ctx context.Context, tenantID string, id int64) (staff.StaffMember, error)
}

// Service stores in-app notifications for request owners and optionally
// mails them. It is plugged into the audit dispatcher as a Recorder.
type Service struct {
	store        StoreAPI
	staff        StaffLookup
	Mailer       Mailer
	EmailEnabled bool
	DefaultFrom  string
}

func New(store StoreAPI, lookup StaffLookup, mailer Mailer) *Service {
	return &Service{store: store, staff: lookup, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

// Record notifies the owner of a request when somebody decided on it or
// cancelled it for them. Owners cancelling their own requests are not told.
func (s *Service) Record(ctx context.Context, evt audit.Event) error {
	ntype, title := describe(evt)
	if ntype == "" || evt.OwnerStaffMemberID == 0 {
		return nil
	}
	owner, err := s.staff.GetStaffMember(ctx, evt.TenantID, evt.OwnerStaffMemberID)
	if err != nil {
		return fmt.Errorf("notification owner lookup: %w", err)
	}
	if owner.UserID == "" || owner.UserID == evt.ActorUserID {
		return nil
	}

	body := fmt.Sprintf("Your time-off request #%s is now %s.", evt.EntityID, evt.ToStatus)
	if remarks, ok := evt.Details["remarks"].(string); ok && remarks != "" {
		body += " Remarks: " + remarks
	}
	return s.Create(ctx, Notification{
		TenantID: evt.TenantID,
		UserID:   owner.UserID,
		Type:     ntype,
		Title:    title,
		Body:     body,
	}, owner.Email)
}

func describe(evt audit.Event) (string, string) {
	switch evt.Action {
	case leave.ActionRequestApprove:
		return TypeLeaveApproved, "Time-off request approved"
	case leave.ActionRequestDecline:
		return TypeLeaveDeclined, "Time-off request declined"
	case leave.ActionRequestCancel:
		return TypeLeaveCancelled, "Time-off request cancelled"
	}
	return "", ""
}

// Create stores n and mails it to email when mail is enabled. Mail failures
// are logged and swallowed.
func (s *Service) Create(ctx context.Context, n Notification, email string) error {
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return err
	}
	if s.Mailer == nil || !s.EmailEnabled || email == "" {
		return nil
	}
	from := s.DefaultFrom
	if err := s.Mailer.Send(ctx, from, email, n.Title, n.Body); err != nil {
		slog.Warn("notification email send failed", "tenantId", n.TenantID, "userId", n.UserID, "err", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, tenantID, userID string, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, tenantID, userID, limit, offset)
}

func (s *Service) Count(ctx context.Context, tenantID, userID string) (int, error) {
	return s.store.CountNotifications(ctx, tenantID, userID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID string, id int64) error {
	return s.store.MarkRead(ctx, tenantID, userID, id)
}
