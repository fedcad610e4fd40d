package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"timeclock/internal/auth"
	"timeclock/internal/middleware"
	"timeclock/internal/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}

	token, expires, err := h.tokens.Issue(auth.Principal{UserID: user.ID, Username: user.Username, Role: user.Role})
	if err != nil {
		h.renderError(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(middleware.SessionUserKey, user.ID)
	sess.Set(middleware.SessionRoleKey, string(user.Role))
	if err := sess.Save(); err != nil {
		h.renderError(c, err)
		return
	}

	render(c, http.StatusOK, gin.H{
		"message":    "Login successful",
		"token":      token,
		"expires_at": h.clock.Format(expires),
		"user":       newUserView(h.clock, user),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = sess.Save()
	render(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) Profile(c *gin.Context) {
	render(c, http.StatusOK, newUserView(h.clock, currentUser(c)))
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Register lets an admin add a regular user.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.users.Register(c.Request.Context(), users.CreateInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	}, h.actor(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	render(c, http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user_id": user.ID,
	})
}

func (h *Handler) actor(c *gin.Context) users.Actor {
	return users.Actor{ID: currentUser(c).ID, IP: c.ClientIP()}
}
