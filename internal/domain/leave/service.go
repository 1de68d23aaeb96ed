package leave

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"timeoff/internal/domain/audit"
	"timeoff/internal/domain/auth"
	"timeoff/internal/domain/staff"
	"timeoff/internal/requestctx"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100

	EntityRequest  = "time_off_request"
	EntityCategory = "time_off_category"

	ActionRequestCreate  = "leave.request.create"
	ActionRequestUpdate  = "leave.request.update"
	ActionRequestCancel  = "leave.request.cancel"
	ActionRequestApprove = "leave.request.approve"
	ActionRequestDecline = "leave.request.decline"
	ActionRequestDelete  = "leave.request.delete"
	ActionCategoryCreate = "leave.category.create"
	ActionCategoryUpdate = "leave.category.update"
	ActionCategoryDelete = "leave.category.delete"
)

// StaffDirectory resolves the staff members requests are filed for.
type StaffDirectory interface {
	GetStaffMember(ctx context.Context, tenantID string, id int64) (staff.StaffMember, error)
}

// Service is the leave request engine. Every operation takes the caller's
// identity and consults the same Policy before touching data.
type Service struct {
	store      Store
	staff      StaffDirectory
	policy     auth.Policy
	sink       audit.Sink
	now        func() time.Time
	location   *time.Location
	categories *cache.Cache
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone "today" is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithCategoryCacheTTL caches category lookups; zero disables the cache.
func WithCategoryCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.categories = nil
		if ttl > 0 {
			s.categories = cache.New(ttl, 2*ttl)
		}
	}
}

func NewService(store Store, directory StaffDirectory, policy auth.Policy, sink audit.Sink, opts ...Option) *Service {
	if sink == nil {
		sink = audit.Discard
	}
	s := &Service{
		store:    store,
		staff:    directory,
		policy:   policy,
		sink:     sink,
		now:      time.Now,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy exposes the authorization policy the engine enforces.
func (s *Service) Policy() auth.Policy {
	return s.policy
}

func (s *Service) today() time.Time {
	return Today(s.now(), s.location)
}

// withinStaffTx retries a conflicting transaction once before giving up.
func (s *Service) withinStaffTx(ctx context.Context, tenantID string, staffMemberID int64, fn func(q Queries) error) error {
	err := s.store.WithinStaffTx(ctx, tenantID, staffMemberID, fn)
	if errors.Is(err, ErrConflict) {
		requestctx.Logger(ctx).Warn("leave write conflict, retrying", "tenantId", tenantID, "staffMemberId", staffMemberID, "err", err)
		err = s.store.WithinStaffTx(ctx, tenantID, staffMemberID, fn)
	}
	return err
}

func (s *Service) emit(ctx context.Context, id auth.Identity, action, entityType string, entityID, owner int64, from, to Status, details map[string]any) {
	s.sink.Emit(ctx, audit.Event{
		TenantID:           id.TenantID,
		ActorUserID:        id.UserID,
		Action:             action,
		EntityType:         entityType,
		EntityID:           strconv.FormatInt(entityID, 10),
		OwnerStaffMemberID: owner,
		FromStatus:         string(from),
		ToStatus:           string(to),
		RequestID:          requestctx.RequestID(ctx),
		OccurredAt:         s.now().UTC(),
		Details:            details,
	})
}

func (s *Service) requireActiveStaff(ctx context.Context, tenantID string, staffMemberID int64) error {
	member, err := s.staff.GetStaffMember(ctx, tenantID, staffMemberID)
	if errors.Is(err, staff.ErrNotFound) {
		return fmt.Errorf("staff member %d: %w", staffMemberID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup staff member: %w", err)
	}
	if !member.Active() {
		return invalidField("staffMemberId", "staff member is not active")
	}
	return nil
}

func (s *Service) category(ctx context.Context, tenantID string, id int64) (Category, error) {
	key := tenantID + ":" + strconv.FormatInt(id, 10)
	if s.categories != nil {
		if cached, ok := s.categories.Get(key); ok {
			return cached.(Category), nil
		}
	}
	c, err := s.store.GetCategory(ctx, tenantID, id)
	if err != nil {
		return Category{}, err
	}
	if s.categories != nil {
		s.categories.SetDefault(key, c)
	}
	return c, nil
}

func (s *Service) forgetCategory(tenantID string, id int64) {
	if s.categories != nil {
		s.categories.Delete(tenantID + ":" + strconv.FormatInt(id, 10))
	}
}

func (s *Service) requireActiveCategory(ctx context.Context, tenantID string, categoryID int64) (Category, error) {
	c, err := s.category(ctx, tenantID, categoryID)
	if errors.Is(err, ErrNotFound) {
		return Category{}, fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}
	if err != nil {
		return Category{}, err
	}
	if !c.IsActive {
		return Category{}, invalidField("categoryId", "category is not active")
	}
	return c, nil
}

// checkDates records date problems on verr. When future is set the start
// date may not precede today.
func (s *Service) checkDates(verr *ValidationError, start, end time.Time, future bool) {
	if start.IsZero() {
		verr.Add("startDate", "is required")
	}
	if end.IsZero() {
		verr.Add("endDate", "is required")
	}
	if start.IsZero() || end.IsZero() {
		return
	}
	if CivilDate(end).Before(CivilDate(start)) {
		verr.Add("endDate", "must be on or after startDate")
	}
	if future && CivilDate(start).Before(s.today()) {
		verr.Add("startDate", "must not be in the past")
	}
}

// listScope applies the self-service rule to a staff filter: admins keep it,
// everyone else is pinned to their own staff record.
func (s *Service) listScope(id auth.Identity, requested *int64) (*int64, error) {
	if s.policy.IsAdmin(id) {
		return requested, nil
	}
	scoped, ok := s.policy.ScopeStaff(id, nil)
	if !ok {
		return nil, ErrForbidden
	}
	return scoped, nil
}
