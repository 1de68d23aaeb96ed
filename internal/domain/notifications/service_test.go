package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"timeoff/internal/domain/audit"
	"timeoff/internal/domain/leave"
	"timeoff/internal/domain/staff"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateNotification(ctx context.Context, n Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockStore) ListNotifications(ctx context.Context, tenantID, userID string, limit, offset int) ([]Notification, error) {
	args := m.Called(ctx, tenantID, userID, limit, offset)
	return args.Get(0).([]Notification), args.Error(1)
}

func (m *mockStore) CountNotifications(ctx context.Context, tenantID, userID string) (int, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) MarkRead(ctx context.Context, tenantID, userID string, id int64) error {
	return m.Called(ctx, tenantID, userID, id).Error(0)
}

type staffMap map[int64]staff.StaffMember

func (s staffMap) GetStaffMember(_ context.Context, _ string, id int64) (staff.StaffMember, error) {
	m, ok := s[id]
	if !ok {
		return staff.StaffMember{}, staff.ErrNotFound
	}
	return m, nil
}

type sentMail struct {
	to, subject string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, _, to, subject, _ string) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject})
	return f.err
}

var owner = staff.StaffMember{ID: 7, TenantID: "t1", UserID: "u-owner", Email: "owner@example.com", Status: staff.StatusActive}

func TestRecordNotifiesOwnerOfDecision(t *testing.T) {
	store := &mockStore{}
	store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.UserID == "u-owner" && n.Type == TypeLeaveDeclined &&
			n.Body == "Your time-off request #12 is now declined. Remarks: busy week"
	})).Return(nil).Once()
	mailer := &fakeMailer{}
	svc := New(store, staffMap{7: owner}, mailer)
	svc.EmailEnabled = true

	err := svc.Record(context.Background(), audit.Event{
		TenantID: "t1", ActorUserID: "u-hr", Action: leave.ActionRequestDecline, EntityID: "12",
		OwnerStaffMemberID: 7, ToStatus: "declined", Details: map[string]any{"remarks": "busy week"},
	})
	require.NoError(t, err)
	store.AssertExpectations(t)
	assert.Equal(t, []sentMail{{to: "owner@example.com", subject: "Time-off request declined"}}, mailer.sent)
}

func TestRecordSkipsSelfCancelAndOtherActions(t *testing.T) {
	store := &mockStore{}
	svc := New(store, staffMap{7: owner}, nil)

	require.NoError(t, svc.Record(context.Background(), audit.Event{
		TenantID: "t1", ActorUserID: "u-owner", Action: leave.ActionRequestCancel, OwnerStaffMemberID: 7,
	}))
	require.NoError(t, svc.Record(context.Background(), audit.Event{
		TenantID: "t1", ActorUserID: "u-owner", Action: leave.ActionRequestCreate, OwnerStaffMemberID: 7,
	}))
	store.AssertNotCalled(t, "CreateNotification", mock.Anything, mock.Anything)
}

func TestRecordReportsUnknownOwner(t *testing.T) {
	svc := New(&mockStore{}, staffMap{}, nil)
	err := svc.Record(context.Background(), audit.Event{
		TenantID: "t1", ActorUserID: "u-hr", Action: leave.ActionRequestApprove, OwnerStaffMemberID: 99,
	})
	assert.ErrorIs(t, err, staff.ErrNotFound)
}

func TestMailFailureIsNotFatal(t *testing.T) {
	store := &mockStore{}
	store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := New(store, staffMap{7: owner}, mailer)
	svc.EmailEnabled = true

	err := svc.Record(context.Background(), audit.Event{
		TenantID: "t1", ActorUserID: "u-hr", Action: leave.ActionRequestApprove, EntityID: "3", OwnerStaffMemberID: 7, ToStatus: "approved",
	})
	require.NoError(t, err)
	assert.Len(t, mailer.sent, 1)
}

func TestMailDisabledByDefault(t *testing.T) {
	store := &mockStore{}
	store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)
	mailer := &fakeMailer{}
	svc := New(store, staffMap{7: owner}, mailer)

	require.NoError(t, svc.Record(context.Background(), audit.Event{
		TenantID: "t1", ActorUserID: "u-hr", Action: leave.ActionRequestApprove, OwnerStaffMemberID: 7,
	}))
	assert.Empty(t, mailer.sent)
}
