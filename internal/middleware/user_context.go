package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"timeclock/internal/models"
)

const currentUserKey = "CurrentUser"

// UserLoader resolves the authenticated user id.
type UserLoader interface {
	Get(ctx context.Context, id uint) (models.User, error)
}

func setCurrentUser(c *gin.Context, user models.User) {
	c.Set(currentUserKey, user)
}

// CurrentUser returns the user placed on the context by RequireAuth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
