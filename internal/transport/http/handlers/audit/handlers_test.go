package audithandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff/internal/domain/audit"
	"timeoff/internal/domain/auth"
	"timeoff/internal/transport/http/middleware"
)

type fakeReader struct {
	events []audit.StoredEvent
	err    error
	tenant string
	filter audit.Filter
	limit  int
	offset int
}

func (f *fakeReader) Count(_ context.Context, _ string, _ audit.Filter) (int, error) {
	return len(f.events), nil
}

func (f *fakeReader) List(_ context.Context, tenantID string, filter audit.Filter, limit, offset int) ([]audit.StoredEvent, error) {
	f.tenant, f.filter, f.limit, f.offset = tenantID, filter, limit, offset
	return f.events, f.err
}

func serve(t *testing.T, reader Reader, identity *auth.Identity, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if identity != nil {
				req = req.WithContext(middleware.WithIdentity(req.Context(), *identity))
			}
			next.ServeHTTP(w, req)
		})
	})
	NewHandler(reader, auth.NewPolicy([]string{"hr"})).RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListEventsRequiresAdmin(t *testing.T) {
	reader := &fakeReader{}
	rec := serve(t, reader, &auth.Identity{UserID: "u1", TenantID: "t1", Roles: []string{"employee"}}, "/audit/events")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, reader, nil, "/audit/events")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListEventsPassesFilter(t *testing.T) {
	reader := &fakeReader{events: []audit.StoredEvent{{ID: 1, Action: "leave.request.approve"}}}
	rec := serve(t, reader, &auth.Identity{UserID: "u1", TenantID: "t1", Roles: []string{"HR"}},
		"/audit/events?action=leave.request.approve&entityId=12&limit=10&offset=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, "t1", reader.tenant)
	assert.Equal(t, audit.Filter{Action: "leave.request.approve", EntityID: "12"}, reader.filter)
	assert.Equal(t, 10, reader.limit)
	assert.Equal(t, 5, reader.offset)
}

func TestListEventsFailure(t *testing.T) {
	reader := &fakeReader{err: errors.New("db down")}
	rec := serve(t, reader, &auth.Identity{UserID: "u1", TenantID: "t1", Roles: []string{"hr"}}, "/audit/events")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "audit_list_failed")
}

func TestExportEvents(t *testing.T) {
	reader := &fakeReader{events: []audit.StoredEvent{{
		ID: 3, ActorUserID: "u-hr", Action: "leave.request.decline", EntityType: "leave_request", EntityID: "9",
		FromStatus: "pending", ToStatus: "declined", OccurredAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}}}
	rec := serve(t, reader, &auth.Identity{UserID: "u1", TenantID: "t1", Roles: []string{"hr"}}, "/audit/events/export")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "3,u-hr,leave.request.decline,leave_request,9,pending,declined,,2025-06-01T09:00:00Z", lines[1])
	assert.Equal(t, exportLimit, reader.limit)
}

func TestListEventsRejectsBadPaging(t *testing.T) {
	rec := serve(t, &fakeReader{}, &auth.Identity{UserID: "u1", TenantID: "t1", Roles: []string{"hr"}}, "/audit/events?offset=-4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}
