package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"timeclock/internal/apperr"
	"timeclock/internal/database"
)

type auditView struct {
	ID        uint            `json:"id"`
	CreatedAt string          `json:"created_at"`
	UserID    *uint           `json:"user_id"`
	Username  string          `json:"username,omitempty"`
	Action    string          `json:"action"`
	Entity    string          `json:"entity"`
	EntityID  uint            `json:"entity_id"`
	OldValues json.RawMessage `json:"old_values,omitempty"`
	NewValues json.RawMessage `json:"new_values,omitempty"`
	IPAddress string          `json:"ip_address"`
}

func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit, ok := h.queryLimit(c)
	if !ok {
		return
	}
	f := database.AuditFilter{
		Entity: c.Query("entity"),
		Action: c.Query("action"),
		Limit:  limit,
	}
	for key, dst := range map[string]*uint{"entity_id": &f.EntityID, "user_id": &f.ActorID} {
		if raw := c.Query(key); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				h.renderError(c, apperr.Validation("invalid_"+key, key+" must be a number"))
				return
			}
			*dst = uint(n)
		}
	}

	logs, err := database.ListAudit(c.Request.Context(), h.db, f)
	if err != nil {
		h.renderError(c, err)
		return
	}

	out := make([]auditView, 0, len(logs))
	for _, l := range logs {
		v := auditView{
			ID:        l.ID,
			CreatedAt: h.clock.Format(l.CreatedAt),
			UserID:    l.UserID,
			Action:    l.Action,
			Entity:    l.Entity,
			EntityID:  l.EntityID,
			OldValues: json.RawMessage(l.OldValues),
			NewValues: json.RawMessage(l.NewValues),
			IPAddress: l.IPAddress,
		}
		if l.User != nil {
			v.Username = l.User.Username
		}
		out = append(out, v)
	}
	render(c, http.StatusOK, out)
}
