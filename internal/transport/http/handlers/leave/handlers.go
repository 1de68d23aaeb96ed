package leavehandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"timeoff/internal/domain/auth"
	"timeoff/internal/domain/leave"
	"timeoff/internal/transport/http/api"
	"timeoff/internal/transport/http/middleware"
	"timeoff/internal/transport/http/shared"
)

type Handler struct {
	Service *leave.Service
	now     func() time.Time
}

func NewHandler(service *leave.Service) *Handler {
	return &Handler{Service: service, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.Get("/categories", h.handleListCategories)
		r.Post("/categories", h.handleCreateCategory)
		r.Patch("/categories/{categoryID}", h.handleUpdateCategory)
		r.Delete("/categories/{categoryID}", h.handleDeleteCategory)

		r.Get("/requests", h.handleListRequests)
		r.Get("/requests/mine", h.handleListMyRequests)
		r.Post("/requests", h.handleCreateRequest)
		r.Get("/requests/{requestID}", h.handleGetRequest)
		r.Patch("/requests/{requestID}", h.handleUpdateRequest)
		r.Delete("/requests/{requestID}", h.handleDeleteRequest)
		r.Post("/requests/{requestID}/cancel", h.handleCancelRequest)
		r.Post("/requests/{requestID}/approve", h.handleApproveRequest)
		r.Post("/requests/{requestID}/decline", h.handleDeclineRequest)

		r.Get("/balances", h.handleBalance)
		r.Get("/statistics", h.handleStatistics)
		r.Get("/calendar/export", h.handleCalendarExport)
	})
}

// requestView renders a request with plain YYYY-MM-DD dates.
type requestView struct {
	ID              int64        `json:"id"`
	StaffMemberID   int64        `json:"staffMemberId"`
	CategoryID      int64        `json:"categoryId"`
	StartDate       string       `json:"startDate"`
	EndDate         string       `json:"endDate"`
	TotalDays       int          `json:"totalDays"`
	Reason          string       `json:"reason"`
	Status          leave.Status `json:"approvalStatus"`
	ApproverID      string       `json:"approverId,omitempty"`
	ApprovalRemarks string       `json:"approvalRemarks,omitempty"`
	DecidedAt       *time.Time   `json:"decidedAt,omitempty"`
	CancelledBy     string       `json:"cancelledBy,omitempty"`
	CancelledAt     *time.Time   `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

type pageView struct {
	Items      []requestView `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

func toView(req leave.Request) requestView {
	return requestView{
		ID:              req.ID,
		StaffMemberID:   req.StaffMemberID,
		CategoryID:      req.CategoryID,
		StartDate:       req.StartDate.Format(time.DateOnly),
		EndDate:         req.EndDate.Format(time.DateOnly),
		TotalDays:       req.TotalDays,
		Reason:          req.Reason,
		Status:          req.Status,
		ApproverID:      req.ApproverID,
		ApprovalRemarks: req.ApprovalRemarks,
		DecidedAt:       req.DecidedAt,
		CancelledBy:     req.CancelledBy,
		CancelledAt:     req.CancelledAt,
		CreatedAt:       req.CreatedAt,
		UpdatedAt:       req.UpdatedAt,
	}
}

func toPageView(page leave.RequestPage) pageView {
	items := make([]requestView, 0, len(page.Items))
	for _, req := range page.Items {
		items = append(items, toView(req))
	}
	return pageView{Items: items, Total: page.Total, Page: page.Page, PageSize: page.PageSize, TotalPages: page.TotalPages}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
	}
	return id, ok
}

// writeError maps engine error kinds onto HTTP responses. Anything it does
// not recognise is logged and reported as an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	var (
		verr    *leave.ValidationError
		overlap *leave.OverlapError
	)
	switch {
	case errors.As(err, &verr):
		v := shared.NewValidator()
		for _, issue := range verr.Issues {
			v.Add(issue.Field, issue.Reason)
		}
		shared.FailValidation(w, reqID, v.Issues())
	case errors.As(err, &overlap):
		ids := overlap.ConflictingIDs
		if ids == nil {
			ids = []int64{}
		}
		api.FailWithDetails(w, http.StatusConflict, "overlap", "the dates overlap an existing request",
			map[string]any{"conflictingIds": ids}, reqID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not permitted", reqID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", reqID)
	case errors.Is(err, leave.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", invalidStateMessage(err), reqID)
	case errors.Is(err, leave.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "concurrent update, please retry", reqID)
	default:
		slog.Error("leave request failed", "method", r.Method, "path", r.URL.Path, "requestId", reqID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", reqID)
	}
}

func invalidStateMessage(err error) string {
	var state *leave.InvalidStateError
	if errors.As(err, &state) {
		return state.Error()
	}
	return "operation not allowed in the current state"
}

// decode reads a JSON body into dst. It answers the request itself and
// returns false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	reqID := middleware.GetRequestID(r.Context())
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", reqID)
		return false
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
	return false
}

func pathID(w http.ResponseWriter, r *http.Request, param, field string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		v := shared.NewValidator()
		v.Add(field, "must be a positive integer")
		v.Reject(w, middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	categories, err := h.Service.ListCategories(r.Context(), id, includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, categories, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var cmd leave.CreateCategoryCommand
	if !decode(w, r, &cmd) {
		return
	}
	category, err := h.Service.CreateCategory(r.Context(), id, cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, category, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "categoryID", "categoryId")
	if !ok {
		return
	}
	var cmd leave.UpdateCategoryCommand
	if !decode(w, r, &cmd) {
		return
	}
	category, err := h.Service.UpdateCategory(r.Context(), id, categoryID, cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, category, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "categoryID", "categoryId")
	if !ok {
		return
	}
	if err := h.Service.DeleteCategory(r.Context(), id, categoryID); err != nil {
		writeError(w, r, err)
		return
	}
	api.NoContent(w)
}

// parseFilter reads list filters from the query string.
func parseFilter(r *http.Request, v *shared.Validator) leave.ListFilter {
	q := r.URL.Query()
	filter := leave.ListFilter{
		StaffMemberID: v.OptionalID("staffMemberId", q.Get("staffMemberId")),
		CategoryID:    v.OptionalID("categoryId", q.Get("categoryId")),
		Status:        leave.Status(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		From:          v.OptionalDate("from", q.Get("from")),
		To:            v.OptionalDate("to", q.Get("to")),
		Search:        q.Get("search"),
	}
	filter.Page, filter.PageSize = shared.ParsePage(r, v)
	return filter
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListRequests)
}

func (h *Handler) handleListMyRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListMyRequests)
}

type listFunc func(ctx context.Context, id auth.Identity, filter leave.ListFilter) (leave.RequestPage, error)

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fn listFunc) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	filter := parseFilter(r, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page, err := fn(r.Context(), id, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	api.Success(w, toPageView(page), middleware.GetRequestID(r.Context()))
}

type createRequestPayload struct {
	StaffMemberID int64  `json:"staffMemberId"`
	CategoryID    int64  `json:"categoryId"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Reason        string `json:"reason"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var payload createRequestPayload
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), id, leave.CreateRequestCommand{
		StaffMemberID: payload.StaffMemberID,
		CategoryID:    payload.CategoryID,
		StartDate:     start,
		EndDate:       end,
		Reason:        payload.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, toView(req), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID", "requestId")
	if !ok {
		return
	}
	req, err := h.Service.GetRequest(r.Context(), id, requestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, toView(req), middleware.GetRequestID(r.Context()))
}

type updateRequestPayload struct {
	CategoryID *int64  `json:"categoryId"`
	StartDate  *string `json:"startDate"`
	EndDate    *string `json:"endDate"`
	Reason     *string `json:"reason"`
}

func (h *Handler) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID", "requestId")
	if !ok {
		return
	}
	var payload updateRequestPayload
	if !decode(w, r, &payload) {
		return
	}
	cmd := leave.UpdateRequestCommand{CategoryID: payload.CategoryID, Reason: payload.Reason}
	v := shared.NewValidator()
	if payload.StartDate != nil {
		if start, ok := v.Date("startDate", *payload.StartDate); ok {
			cmd.StartDate = &start
		}
	}
	if payload.EndDate != nil {
		if end, ok := v.Date("endDate", *payload.EndDate); ok {
			cmd.EndDate = &end
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.Service.UpdateRequest(r.Context(), id, requestID, cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, toView(req), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID", "requestId")
	if !ok {
		return
	}
	if err := h.Service.DeleteRequest(r.Context(), id, requestID); err != nil {
		writeError(w, r, err)
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID", "requestId")
	if !ok {
		return
	}
	req, err := h.Service.CancelRequest(r.Context(), id, requestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, toView(req), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.ApproveRequest)
}

func (h *Handler) handleDeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.DeclineRequest)
}

type decideFunc func(ctx context.Context, id auth.Identity, requestID int64, cmd leave.DecisionCommand) (leave.Request, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID", "requestId")
	if !ok {
		return
	}
	var cmd leave.DecisionCommand
	if !decode(w, r, &cmd) {
		return
	}
	req, err := fn(r.Context(), id, requestID, cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, toView(req), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	var staffMemberID int64
	if requested := v.OptionalID("staffMemberId", r.URL.Query().Get("staffMemberId")); requested != nil {
		staffMemberID = *requested
	}
	year := v.PositiveInt("year", r.URL.Query().Get("year"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	balance, err := h.Service.LeaveBalance(r.Context(), id, staffMemberID, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, balance, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	staffMemberID := v.OptionalID("staffMemberId", r.URL.Query().Get("staffMemberId"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	// self-service callers asking for no one in particular mean themselves
	if staffMemberID == nil && !h.Service.Policy().IsAdmin(id) {
		staffMemberID = id.StaffMemberID
	}

	stats, err := h.Service.Statistics(r.Context(), id, staffMemberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}
