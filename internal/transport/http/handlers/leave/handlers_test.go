package leavehandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff/internal/domain/auth"
	"timeoff/internal/domain/leave"
	"timeoff/internal/domain/staff"
	"timeoff/internal/platform/db"
	"timeoff/internal/transport/http/middleware"
)

const testSecret = "handler-test-secret"

var testNow = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testAPI struct {
	router   http.Handler
	empToken string
	hrToken  string
	category int64
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	database, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	staffStore := staff.NewSQLiteStore(database)
	_, err = staffStore.CreateStaffMember(ctx, staff.StaffMember{TenantID: "t1", UserID: "u-emp", FirstName: "Erin", LastName: "Ellis"})
	require.NoError(t, err)
	directory := staff.NewDirectory(staffStore, time.Minute)

	svc := leave.NewService(leave.NewSQLiteStore(database), directory, auth.NewPolicy([]string{"hr"}), nil,
		leave.WithClock(func() time.Time { return testNow }))
	category, err := svc.CreateCategory(ctx, auth.Identity{UserID: "u-hr", TenantID: "t1", Roles: []string{"hr"}},
		leave.CreateCategoryCommand{Title: "Annual", AnnualQuota: 20, IsPaid: true})
	require.NoError(t, err)

	h := NewHandler(svc)
	h.now = func() time.Time { return testNow }
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret, directory))
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireIdentity)
		h.RegisterRoutes(r)
	})

	return &testAPI{
		router:   r,
		empToken: token(t, "u-emp", "employee"),
		hrToken:  token(t, "u-hr", "hr"),
		category: category.ID,
	}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, TenantID: "t1", Roles: []string{role}}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, tok, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (a *testAPI) createBody(start, end string) string {
	return `{"categoryId":` + itoa(a.category) + `,"startDate":"` + start + `","endDate":"` + end + `","reason":"trip"}`
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeView(t *testing.T, env envelope) requestView {
	t.Helper()
	var view requestView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func TestAnonymousCallerIsRejected(t *testing.T) {
	a := newTestAPI(t)
	rec, env := a.do(t, "", http.MethodGet, "/api/v1/leave/requests/mine", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestCreateAndOverlap(t *testing.T) {
	a := newTestAPI(t)

	rec, env := a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-06-10", "2025-06-12"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeView(t, env)
	assert.Equal(t, "2025-06-10", created.StartDate)
	assert.Equal(t, 3, created.TotalDays)
	assert.Equal(t, leave.StatusPending, created.Status)

	rec, env = a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-06-12", "2025-06-14"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "overlap", env.Error.Code)
	assert.Equal(t, []any{float64(created.ID)}, env.Error.Details["conflictingIds"])
}

func TestCreateValidation(t *testing.T) {
	a := newTestAPI(t)

	rec, env := a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("10/06/2025", "2025-06-12"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-06-12", "2025-06-10"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.NotEmpty(t, env.Error.Details["fields"])

	rec, env = a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", `{"categoryId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", env.Error.Code)
}

func TestDecisionsAreAdminOnly(t *testing.T) {
	a := newTestAPI(t)
	_, env := a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-07-01", "2025-07-02"))
	created := decodeView(t, env)
	path := "/api/v1/leave/requests/" + itoa(created.ID)

	rec, env := a.do(t, a.empToken, http.MethodPost, path+"/approve", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)

	rec, env = a.do(t, a.hrToken, http.MethodPost, path+"/decline", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = a.do(t, a.hrToken, http.MethodPost, path+"/approve", `{"remarks":"enjoy"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeView(t, env)
	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, "u-hr", approved.ApproverID)

	rec, env = a.do(t, a.hrToken, http.MethodPost, path+"/approve", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", env.Error.Code)

	rec, env = a.do(t, a.empToken, http.MethodPost, path+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, leave.StatusCancelled, decodeView(t, env).Status)
}

func TestGetErrors(t *testing.T) {
	a := newTestAPI(t)

	rec, env := a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/requests/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, env = a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/requests/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestListMineSetsTotalHeader(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-07-01", "2025-07-02"))
	a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-08-01", "2025-08-01"))

	rec, env := a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/requests/mine?pageSize=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	var page pageView
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)

	rec, env = a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/requests?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	a := newTestAPI(t)
	_, env := a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-07-01", "2025-07-02"))
	path := "/api/v1/leave/requests/" + itoa(decodeView(t, env).ID)

	rec, env := a.do(t, a.empToken, http.MethodPatch, path, `{"endDate":"2025-07-04"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decodeView(t, env).TotalDays)

	rec, _ = a.do(t, a.empToken, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = a.do(t, a.hrToken, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoriesRequireAdminToWrite(t *testing.T) {
	a := newTestAPI(t)

	rec, _ := a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/categories", `{"title":"Sick","annualQuota":10}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := a.do(t, a.hrToken, http.MethodPost, "/api/v1/leave/categories", `{"title":"Sick","annualQuota":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created leave.Category
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, created.IsActive)

	rec, env = a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []leave.Category
	require.NoError(t, json.Unmarshal(env.Data, &categories))
	assert.Len(t, categories, 2)
}

func TestBalanceAndStatistics(t *testing.T) {
	a := newTestAPI(t)
	_, env := a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-07-01", "2025-07-03"))
	a.do(t, a.hrToken, http.MethodPost, "/api/v1/leave/requests/"+itoa(decodeView(t, env).ID)+"/approve", `{}`)

	rec, env := a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/balances?year=2025", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var balance leave.Balance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, 3, balance.Categories[a.category].Used)
	assert.Equal(t, 17, balance.Categories[a.category].Remaining)

	rec, env = a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats leave.Statistics
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 3, stats.TotalDaysApproved)

	rec, _ = a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/balances?year=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarExport(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, a.empToken, http.MethodPost, "/api/v1/leave/requests", a.createBody("2025-06-10", "2025-06-12"))

	rec, _ := a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/calendar/export", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,staff_member_id,category,start_date,end_date,total_days,status", lines[0])
	assert.Contains(t, lines[1], "Annual,2025-06-10,2025-06-12,3,pending")

	rec, _ = a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/calendar/export?format=ics&from=2025-06-01&to=2025-06-30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20250610\r\n")
	assert.Contains(t, body, "DTEND;VALUE=DATE:20250613\r\n")
	assert.Contains(t, body, "STATUS:TENTATIVE\r\n")

	rec, _ = a.do(t, a.empToken, http.MethodGet, "/api/v1/leave/calendar/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenderICSEscapesText(t *testing.T) {
	out := renderICS([]leave.Request{{
		ID: 4, TenantID: "t1", StaffMemberID: 2, CategoryID: 1, Status: leave.StatusApproved,
		StartDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}}, func(int64) string { return "Sick; paid, 100%" }, testNow)
	assert.Contains(t, out, `SUMMARY:Staff 2: Sick\; paid\, 100% (approved)`)
	assert.Contains(t, out, "DTEND;VALUE=DATE:20260101\r\n")
	assert.Contains(t, out, "STATUS:CONFIRMED\r\n")
}
