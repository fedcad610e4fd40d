package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"timeclock/internal/apperr"
	"timeclock/internal/ledger"
	"timeclock/internal/reports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) summaryQuery(c *gin.Context) reports.Query {
	return reports.Query{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Location:  c.Query("location"),
	}
}

// RecordsSummary returns hours grouped by user and location.
func (h *Handler) RecordsSummary(c *gin.Context) {
	sum, err := h.reports.Summarize(c.Request.Context(), h.summaryQuery(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, sum.View(h.clock))
}

// ExportRecordsSummary serves the summary as an Excel workbook.
func (h *Handler) ExportRecordsSummary(c *gin.Context) {
	q := h.summaryQuery(c)
	sum, err := h.reports.Summarize(c.Request.Context(), q)
	if err != nil {
		h.renderError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := reports.WriteXLSX(&buf, sum, h.clock); err != nil {
		h.renderError(c, err)
		return
	}
	filename := fmt.Sprintf("timeclock-summary-%s-to-%s.xlsx", q.StartDate, q.EndDate)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

type adjustBody struct {
	ClockIn      string  `json:"clock_in"`
	ClockOut     *string `json:"clock_out"`
	BreakMinutes *int    `json:"break_minutes"`
	Location     *string `json:"location"`
	Notes        *string `json:"notes"`
}

func (b adjustBody) patch(h *Handler) (ledger.AdjustPatch, error) {
	var fe apperr.FieldErrors
	var p ledger.AdjustPatch
	if strings.TrimSpace(b.ClockIn) == "" {
		fe.Add("clock_in", "clock_in is required")
	} else if t, err := h.clock.ParseTimestamp(b.ClockIn); err != nil {
		fe.Add("clock_in", "clock_in must be YYYY-MM-DD HH:MM:SS")
	} else {
		p.ClockIn = t
	}
	if b.ClockOut != nil && strings.TrimSpace(*b.ClockOut) != "" {
		if t, err := h.clock.ParseTimestamp(*b.ClockOut); err != nil {
			fe.Add("clock_out", "clock_out must be YYYY-MM-DD HH:MM:SS")
		} else {
			p.ClockOut = &t
		}
	}
	p.BreakMinutes = b.BreakMinutes
	p.Location = b.Location
	p.Notes = b.Notes
	return p, fe.Err()
}

// AdjustRecord lets an admin rewrite one session.
func (h *Handler) AdjustRecord(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var body adjustBody
	if !h.bind(c, &body) {
		return
	}
	patch, err := body.patch(h)
	if err != nil {
		h.renderError(c, err)
		return
	}

	user := currentUser(c)
	rec, err := h.ledger.Adjust(c.Request.Context(), id, patch, ledger.Editor{
		ID:       user.ID,
		Username: user.Username,
		IP:       c.ClientIP(),
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{
		"message":       "Record updated successfully",
		"break_minutes": rec.BreakMinutes,
		"record":        newRecordView(h.clock, rec),
	})
}
