package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timeclock/internal/models"
	"timeclock/internal/requests"
)

type createRequestBody struct {
	RequestType string `json:"request_type"`
	RequestDate string `json:"request_date"`
	RequestTime string `json:"request_time"`
	Reason      string `json:"reason"`
}

func (h *Handler) CreateClockRequest(c *gin.Context) {
	var body createRequestBody
	if !h.bind(c, &body) {
		return
	}
	req, err := h.requests.Create(c.Request.Context(), currentUser(c).ID, requests.CreateInput{
		Type:   body.RequestType,
		Date:   body.RequestDate,
		Time:   body.RequestTime,
		Reason: body.Reason,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusCreated, gin.H{
		"message":    "Clock request submitted",
		"request_id": req.ID,
	})
}

func (h *Handler) requestFilter(c *gin.Context) (requests.Filter, bool) {
	limit, ok := h.queryLimit(c)
	if !ok {
		return requests.Filter{}, false
	}
	return requests.Filter{Status: models.RequestStatus(c.Query("status")), Limit: limit}, true
}

func (h *Handler) MyClockRequests(c *gin.Context) {
	f, ok := h.requestFilter(c)
	if !ok {
		return
	}
	list, err := h.requests.ListForUser(c.Request.Context(), currentUser(c).ID, f)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, newRequestViews(h.clock, list))
}

func (h *Handler) AllClockRequests(c *gin.Context) {
	f, ok := h.requestFilter(c)
	if !ok {
		return
	}
	list, err := h.requests.ListAll(c.Request.Context(), f)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, newRequestViews(h.clock, list))
}

func (h *Handler) DeleteClockRequest(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	if err := h.requests.Delete(c.Request.Context(), id, currentUser(c).ID); err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"message": "Clock request deleted"})
}

type reviewBody struct {
	Action    string `json:"action"`
	AdminNote string `json:"admin_note"`
}

func (h *Handler) ReviewClockRequest(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var body reviewBody
	if !h.bind(c, &body) {
		return
	}
	req, err := h.requests.Review(c.Request.Context(), id, currentUser(c).ID, requests.ReviewInput{
		Action:    requests.Action(body.Action),
		AdminNote: body.AdminNote,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{
		"message": "Clock request " + string(req.Status),
		"status":  req.Status,
		"request": newRequestView(h.clock, req),
	})
}
