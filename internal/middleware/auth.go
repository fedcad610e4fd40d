package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"timeclock/internal/auth"
	"timeclock/internal/models"
)

// Cookie session keys written by login.
const (
	SessionUserKey = "user_id"
	SessionRoleKey = "role"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(raw string) (auth.Principal, error)
}

// RequireAuth accepts a bearer token or the cookie session set by login,
// then loads the user and rejects inactive accounts.
func RequireAuth(tokens TokenParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := bearerUserID(c, tokens)
		if !ok {
			userID, ok = sessionUserID(c)
		}
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		user, err := users.Get(c.Request.Context(), userID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid or expired credentials")
			return
		}
		if user.Status != models.StatusActive {
			abort(c, http.StatusUnauthorized, "account_inactive", "account is inactive")
			return
		}

		setCurrentUser(c, user)
		c.Next()
	}
}

func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := map[models.UserRole]struct{}{}
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if _, ok := roleSet[user.Role]; !ok {
			abort(c, http.StatusForbidden, "forbidden", "access denied")
			return
		}
		c.Next()
	}
}

func bearerUserID(c *gin.Context, tokens TokenParser) (uint, bool) {
	header := c.GetHeader("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return 0, false
	}
	p, err := tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return p.UserID, true
}

func sessionUserID(c *gin.Context) (uint, bool) {
	sess := sessions.Default(c)
	uid, ok := sess.Get(SessionUserKey).(uint)
	return uid, ok && uid > 0
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
