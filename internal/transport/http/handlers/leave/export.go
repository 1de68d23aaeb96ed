package leavehandler

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"timeoff/internal/domain/leave"
	"timeoff/internal/transport/http/middleware"
	"timeoff/internal/transport/http/shared"
)

const defaultCalendarDays = 90

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

func (h *Handler) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	v := shared.NewValidator()
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "csv"
	}
	v.Enum("format", format, []string{"csv", "ics"}, "must be csv or ics")
	from := leave.CivilDate(h.now().UTC())
	if parsed := v.OptionalDate("from", q.Get("from")); parsed != nil {
		from = *parsed
	}
	to := from.AddDate(0, 0, defaultCalendarDays)
	if parsed := v.OptionalDate("to", q.Get("to")); parsed != nil {
		to = *parsed
	}
	if v.Reject(w, reqID) {
		return
	}

	entries, err := h.Service.CalendarEntries(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	titles := map[int64]string{}
	if categories, err := h.Service.ListCategories(r.Context(), id, true); err == nil {
		for _, c := range categories {
			titles[c.ID] = c.Title
		}
	} else {
		slog.Warn("calendar export category lookup failed", "requestId", reqID, "err", err)
	}
	title := func(categoryID int64) string {
		if t, ok := titles[categoryID]; ok {
			return t
		}
		return "Category " + strconv.FormatInt(categoryID, 10)
	}

	if format == "ics" {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=time-off.ics")
		if _, err := w.Write([]byte(renderICS(entries, title, h.now().UTC()))); err != nil {
			slog.Warn("calendar export write failed", "err", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=time-off.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "staff_member_id", "category", "start_date", "end_date", "total_days", "status"}); err != nil {
		slog.Warn("calendar export csv header write failed", "err", err)
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.StaffMemberID, 10),
			title(e.CategoryID),
			e.StartDate.Format(time.DateOnly),
			e.EndDate.Format(time.DateOnly),
			strconv.Itoa(e.TotalDays),
			string(e.Status),
		}
		if err := writer.Write(row); err != nil {
			slog.Warn("calendar export csv row write failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("calendar export csv flush failed", "err", err)
	}
}

// renderICS writes all-day events. DTEND is exclusive in iCalendar, so it
// lands on the day after the last day off.
func renderICS(entries []leave.Request, title func(int64) string, stamp time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//timeoff//Leave Calendar//EN\r\nCALSCALE:GREGORIAN\r\n")
	for _, e := range entries {
		b.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&b, "UID:request-%d@%s\r\n", e.ID, icsEscaper.Replace(e.TenantID))
		fmt.Fprintf(&b, "DTSTAMP:%s\r\n", stamp.Format("20060102T150405Z"))
		fmt.Fprintf(&b, "DTSTART;VALUE=DATE:%s\r\n", e.StartDate.Format("20060102"))
		fmt.Fprintf(&b, "DTEND;VALUE=DATE:%s\r\n", e.EndDate.AddDate(0, 0, 1).Format("20060102"))
		fmt.Fprintf(&b, "SUMMARY:%s\r\n", icsEscaper.Replace(fmt.Sprintf("Staff %d: %s (%s)", e.StaffMemberID, title(e.CategoryID), e.Status)))
		if e.Status == leave.StatusPending {
			b.WriteString("STATUS:TENTATIVE\r\n")
		} else {
			b.WriteString("STATUS:CONFIRMED\r\n")
		}
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

