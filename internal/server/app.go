package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"timeclock/internal/auth"
	"timeclock/internal/civiltime"
	"timeclock/internal/config"
	"timeclock/internal/handlers"
	"timeclock/internal/ledger"
	"timeclock/internal/notifications"
	"timeclock/internal/reports"
	"timeclock/internal/requests"
	"timeclock/internal/users"
)

// Build wires the services over db and returns the HTTP engine.
func Build(cfg *config.Config, db *gorm.DB, clock civiltime.Clock, logger *slog.Logger) *gin.Engine {
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, clock.Now)
	l := ledger.New(db, clock, cfg.DefaultLocation, logger)
	n := notifications.New(db, clock, logger)
	u := users.New(db, clock, l, logger)

	h := handlers.New(handlers.Deps{
		DB:            db,
		Clock:         clock,
		Tokens:        tokens,
		Ledger:        l,
		Requests:      requests.New(db, clock, l, n, logger),
		Reports:       reports.NewAggregator(db, clock, logger),
		Notifications: n,
		Users:         u,
		Logger:        logger,
	})
	return NewRouter(cfg, h, tokens, u, logger)
}
