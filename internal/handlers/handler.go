package handlers

import (
	"log/slog"

	"gorm.io/gorm"

	"timeclock/internal/auth"
	"timeclock/internal/civiltime"
	"timeclock/internal/ledger"
	"timeclock/internal/notifications"
	"timeclock/internal/reports"
	"timeclock/internal/requests"
	"timeclock/internal/users"
)

// Handler serves the JSON API.
type Handler struct {
	db            *gorm.DB
	clock         civiltime.Clock
	tokens        *auth.Tokens
	ledger        *ledger.Ledger
	requests      *requests.Workflow
	reports       *reports.Aggregator
	notifications *notifications.Service
	users         *users.Service
	logger        *slog.Logger
}

type Deps struct {
	DB            *gorm.DB
	Clock         civiltime.Clock
	Tokens        *auth.Tokens
	Ledger        *ledger.Ledger
	Requests      *requests.Workflow
	Reports       *reports.Aggregator
	Notifications *notifications.Service
	Users         *users.Service
	Logger        *slog.Logger
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{
		db:            d.DB,
		clock:         d.Clock,
		tokens:        d.Tokens,
		ledger:        d.Ledger,
		requests:      d.Requests,
		reports:       d.Reports,
		notifications: d.Notifications,
		users:         d.Users,
		logger:        d.Logger,
	}
}
