package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timeclock/internal/ledger"
	"timeclock/internal/models"
	"timeclock/internal/users"
)

func (h *Handler) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, newUserListView(h.clock, list))
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, newUserView(h.clock, user))
}

type createUserBody struct {
	Username string            `json:"username"`
	Password string            `json:"password"`
	Email    string            `json:"email"`
	FullName string            `json:"full_name"`
	Role     models.UserRole   `json:"role"`
	Status   models.UserStatus `json:"status"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var body createUserBody
	if !h.bind(c, &body) {
		return
	}
	user, err := h.users.Create(c.Request.Context(), users.CreateInput{
		Username: body.Username,
		Password: body.Password,
		Email:    body.Email,
		FullName: body.FullName,
		Role:     body.Role,
		Status:   body.Status,
	}, h.actor(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusCreated, newUserView(h.clock, user))
}

type updateUserBody struct {
	Username *string            `json:"username"`
	Email    *string            `json:"email"`
	FullName *string            `json:"full_name"`
	Role     *models.UserRole   `json:"role"`
	Status   *models.UserStatus `json:"status"`
	Password *string            `json:"password"`
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var body updateUserBody
	if !h.bind(c, &body) {
		return
	}
	// an empty password field in the edit form means unchanged
	if body.Password != nil && *body.Password == "" {
		body.Password = nil
	}
	user, err := h.users.Update(c.Request.Context(), id, users.UpdatePatch{
		Username: body.Username,
		Email:    body.Email,
		FullName: body.FullName,
		Role:     body.Role,
		Status:   body.Status,
		Password: body.Password,
	}, h.actor(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, newUserView(h.clock, user))
}

type statusBody struct {
	Status models.UserStatus `json:"status"`
}

func (h *Handler) SetUserStatus(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var body statusBody
	if !h.bind(c, &body) {
		return
	}
	user, err := h.users.SetStatus(c.Request.Context(), id, body.Status, h.actor(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{
		"message": "User status updated",
		"user":    newUserView(h.clock, user),
	})
}

// DeleteUser deactivates the account.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id, h.actor(c)); err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{"message": "User deactivated"})
}

func (h *Handler) UserRecords(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	out, err := h.users.Records(c.Request.Context(), id, r)
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusOK, gin.H{
		"user":        newUserView(h.clock, out.User),
		"records":     newRecordViews(h.clock, out.Records),
		"total_hours": ledger.Round2(out.TotalHours),
	})
}
