package shared

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025-06-10", want: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)},
		{in: "2025-06-10T23:30:00+02:00", want: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)},
		{in: "", want: time.Time{}},
		{in: "10/06/2025", wantErr: true},
		{in: "2025-02-30", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %v", tc.in, got)
	}
}

func TestValidatorHelpers(t *testing.T) {
	v := NewValidator()
	assert.Nil(t, v.OptionalID("staffMemberId", ""))
	assert.Equal(t, int64(7), *v.OptionalID("staffMemberId", " 7 "))
	assert.Nil(t, v.OptionalID("categoryId", "0"))
	assert.Equal(t, 0, v.PositiveInt("year", ""))
	assert.Equal(t, 2025, v.PositiveInt("year", "2025"))
	assert.Equal(t, 0, v.PositiveInt("page", "-2"))
	assert.Nil(t, v.OptionalDate("from", "nope"))
	v.Enum("format", "PDF", []string{"csv", "ics"}, "must be csv or ics")

	issues := v.Issues()
	fields := make([]string, 0, len(issues))
	for _, issue := range issues {
		fields = append(fields, issue.Field)
	}
	assert.Equal(t, []string{"categoryId", "format", "from", "page"}, fields)
}

func TestRejectWritesEnvelope(t *testing.T) {
	v := NewValidator()
	rec := httptest.NewRecorder()
	assert.False(t, v.Reject(rec, "req-1"))

	v.Add("startDate", "must be a valid date in YYYY-MM-DD format")
	assert.True(t, v.Reject(rec, "req-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Success   bool   `json:"success"`
		RequestID string `json:"requestId"`
		Error     struct {
			Code    string `json:"code"`
			Details struct {
				Fields []ValidationIssue `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Equal(t, []ValidationIssue{{Field: "startDate", Reason: "must be a valid date in YYYY-MM-DD format"}}, body.Error.Details.Fields)
}

func TestParsePagination(t *testing.T) {
	v := NewValidator()
	r := httptest.NewRequest(http.MethodGet, "/?limit=900&offset=20", nil)
	assert.Equal(t, Pagination{Limit: 500, Offset: 20}, ParsePagination(r, v, 100, 500))
	assert.False(t, v.HasIssues())

	r = httptest.NewRequest(http.MethodGet, "/?limit=abc&offset=-1", nil)
	assert.Equal(t, Pagination{Limit: 100}, ParsePagination(r, v, 100, 500))
	assert.Len(t, v.Issues(), 2)

	v = NewValidator()
	page, size := ParsePage(httptest.NewRequest(http.MethodGet, "/?page=3&pageSize=x", nil), v)
	assert.Equal(t, 3, page)
	assert.Equal(t, 0, size)
	assert.True(t, v.HasIssues())
}
