package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"timeclock/internal/apperr"
	"timeclock/internal/ledger"
	"timeclock/internal/reports"
)

type clockInRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) ClockIn(c *gin.Context) {
	var req clockInRequest
	if !h.bindOptional(c, &req) {
		return
	}
	rec, err := h.ledger.ClockIn(c.Request.Context(), currentUser(c).ID, req.Notes)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusCreated, gin.H{
		"message":  "Clocked in successfully",
		"id":       rec.ID,
		"clock_in": h.clock.Format(rec.ClockIn),
		"location": rec.Location,
	})
}

type clockOutRequest struct {
	Notes        string `json:"notes"`
	BreakMinutes *int   `json:"break_minutes"`
}

func (h *Handler) ClockOut(c *gin.Context) {
	var req clockOutRequest
	if !h.bindOptional(c, &req) {
		return
	}
	res, err := h.ledger.ClockOut(c.Request.Context(), currentUser(c).ID, req.Notes, req.BreakMinutes)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{
		"message":       "Clocked out successfully",
		"duration":      ledger.Round2(res.WorkedHours),
		"break_minutes": res.BreakMinutes,
		"location":      res.Record.Location,
	})
}

func (h *Handler) ClockStatus(c *gin.Context) {
	st, err := h.ledger.Status(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !st.ClockedIn {
		render(c, http.StatusOK, gin.H{"status": "out", "message": "Not clocked in"})
		return
	}
	render(c, http.StatusOK, gin.H{
		"status":                  "in",
		"record":                  newRecordView(h.clock, *st.Record),
		"duration_hours":          ledger.Round2(st.Elapsed.Hours()),
		"projected_break_minutes": st.BreakMinutes,
		"projected_hours":         ledger.Round2(st.WorkedHours),
	})
}

// dateRange reads optional start_date and end_date. Both or neither must be
// given.
func (h *Handler) dateRange(c *gin.Context) (ledger.Range, bool) {
	start, end := c.Query("start_date"), c.Query("end_date")
	if start == "" && end == "" {
		return ledger.Range{}, true
	}
	from, to, err := h.clock.DayRange(start, end)
	if err != nil {
		h.renderError(c, apperr.Validation("invalid_date", "start_date and end_date must be YYYY-MM-DD"))
		return ledger.Range{}, false
	}
	return ledger.Range{From: from, To: to}, true
}

func (h *Handler) ClockRecords(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	recs, err := h.ledger.Records(c.Request.Context(), currentUser(c).ID, r)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, newRecordViews(h.clock, recs))
}

type locationTotal struct {
	Location     string  `json:"location"`
	TotalRecords int     `json:"total_records"`
	TotalHours   float64 `json:"total_hours"`
}

// LocationSummary totals the caller's hours per location.
func (h *Handler) LocationSummary(c *gin.Context) {
	sum, err := h.reports.Summarize(c.Request.Context(), reports.Query{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		UserID:    currentUser(c).ID,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	out := []locationTotal{}
	for _, u := range sum.Users {
		for _, name := range u.LocationNames() {
			loc := u.Locations[name]
			out = append(out, locationTotal{
				Location:     name,
				TotalRecords: loc.RecordCount,
				TotalHours:   ledger.Round2(loc.TotalHours),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalHours > out[j].TotalHours })
	render(c, http.StatusOK, out)
}

func (h *Handler) Locations(c *gin.Context) {
	locs, err := h.ledger.Locations(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"locations": locs, "default": locs[0]})
}
