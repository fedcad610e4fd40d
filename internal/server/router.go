package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"timeclock/internal/config"
	"timeclock/internal/handlers"
	"timeclock/internal/middleware"
	"timeclock/internal/models"
)

const sessionName = "timeclock_session"

func NewRouter(cfg *config.Config, h *handlers.Handler, tokens middleware.TokenParser, users middleware.UserLoader, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/health", h.Health)

	api := r.Group("/api")

	// AUTH
	api.POST("/auth/login", h.Login)

	authed := api.Group("/")
	authed.Use(middleware.RequireAuth(tokens, users))
	admin := middleware.RequireRole(models.RoleAdmin)

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/profile", h.Profile)
	authed.POST("/auth/register", admin, h.Register)

	// CLOCK
	authed.POST("/clock/in", h.ClockIn)
	authed.POST("/clock/out", h.ClockOut)
	authed.GET("/clock/status", h.ClockStatus)
	authed.GET("/clock/records", h.ClockRecords)
	authed.GET("/clock/location-summary", h.LocationSummary)
	authed.GET("/clock/locations", h.Locations)

	// CLOCK REQUESTS
	authed.POST("/clock-requests", h.CreateClockRequest)
	authed.GET("/clock-requests/my", h.MyClockRequests)
	authed.GET("/clock-requests/all", admin, h.AllClockRequests)
	authed.DELETE("/clock-requests/:id", h.DeleteClockRequest)
	authed.POST("/clock-requests/:id/review", admin, h.ReviewClockRequest)

	// NOTIFICATIONS
	authed.GET("/notifications", h.ListNotifications)
	authed.GET("/notifications/unread-count", h.UnreadNotificationCount)
	authed.PATCH("/notifications/read-all", h.MarkAllNotificationsRead)
	authed.PATCH("/notifications/:id/read", h.MarkNotificationRead)
	authed.DELETE("/notifications/clear/read", h.ClearReadNotifications)
	authed.DELETE("/notifications/:id", h.DeleteNotification)

	// ADMIN
	adm := authed.Group("/admin")
	adm.Use(admin)

	adm.GET("/records/summary", h.RecordsSummary)
	adm.GET("/records/summary/export", h.ExportRecordsSummary)
	adm.PUT("/records/:id", h.AdjustRecord)

	adm.GET("/users", h.ListUsers)
	adm.POST("/users", h.CreateUser)
	adm.GET("/users/:id", h.GetUser)
	adm.PUT("/users/:id", h.UpdateUser)
	adm.DELETE("/users/:id", h.DeleteUser)
	adm.PATCH("/users/:id/status", h.SetUserStatus)
	adm.GET("/users/:id/records", h.UserRecords)

	adm.GET("/audit-logs", h.ListAuditLogs)

	return r
}
