// Package requests implements retroactive clock requests: a user asks for
// a missed punch and an admin approves or rejects it.
package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timeclock/internal/apperr"
	"timeclock/internal/civiltime"
	"timeclock/internal/ledger"
	"timeclock/internal/logging"
	"timeclock/internal/models"
	"timeclock/internal/notifications"
)

var (
	ErrDuplicatePendingRequest = apperr.Conflict("duplicate_pending_request", "a pending request for this date and type already exists")
	ErrRequestNotFound         = apperr.NotFound("request_not_found", "request not found")
	ErrAlreadyReviewed         = apperr.Conflict("already_reviewed", "request has already been reviewed")
	ErrNotPending              = apperr.Conflict("not_pending", "only pending requests can be deleted")
	ErrInvalidAction           = apperr.Validation("invalid_action", "action must be approve or reject")
)

const (
	DefaultUserLimit  = 50
	DefaultAdminLimit = 100

	// SynthesizedShift is the assumed length of a shift reconstructed from a
	// clock-out request with no open session.
	SynthesizedShift = 8 * time.Hour
)

// Action is an admin decision.
type Action string

const (
	Approve Action = "approve"
	Reject  Action = "reject"
)

type Workflow struct {
	db            *gorm.DB
	clock         civiltime.Clock
	ledger        *ledger.Ledger
	notifications *notifications.Service
	logger        *slog.Logger
}

func New(db *gorm.DB, clock civiltime.Clock, l *ledger.Ledger, n *notifications.Service, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{db: db, clock: clock, ledger: l, notifications: n, logger: logger}
}

func (w *Workflow) log(ctx context.Context, op string) *slog.Logger {
	return logging.FromContext(ctx, w.logger).With("service", "requests", "operation", op)
}

// CreateInput is a user's retroactive request.
type CreateInput struct {
	Type   string
	Date   string
	Time   string
	Reason string
}

func (in CreateInput) normalize(clock civiltime.Clock) (CreateInput, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Reason = strings.TrimSpace(in.Reason)

	var fe apperr.FieldErrors
	if !models.RequestType(in.Type).Valid() {
		fe.Add("request_type", "request_type must be clock_in or clock_out")
	}
	if _, err := clock.ParseDate(in.Date); err != nil {
		fe.Add("request_date", "request_date must be YYYY-MM-DD")
	}
	if _, err := civiltime.ParseTimeOfDay(in.Time); err != nil || len(in.Time) != len(civiltime.TimeLayout) {
		fe.Add("request_time", "request_time must be HH:MM")
	}
	if in.Reason == "" {
		fe.Add("reason", "reason is required")
	}
	return in, fe.Err()
}

// Create stores a pending request and notifies every active admin in the
// same transaction.
func (w *Workflow) Create(ctx context.Context, userID uint, in CreateInput) (models.ClockRequest, error) {
	in, err := in.normalize(w.clock)
	if err != nil {
		return models.ClockRequest{}, err
	}

	req := models.ClockRequest{
		UserID:      userID,
		Type:        models.RequestType(in.Type),
		RequestDate: in.Date,
		RequestTime: in.Time,
		Reason:      in.Reason,
		Status:      models.RequestPending,
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var requester models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&requester, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrUserNotFound
			}
			return fmt.Errorf("load requester: %w", err)
		}

		var dup int64
		if err := tx.Model(&models.ClockRequest{}).
			Where("user_id = ? AND request_date = ? AND request_type = ? AND status = ?",
				userID, req.RequestDate, req.Type, models.RequestPending).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check pending requests: %w", err)
		}
		if dup > 0 {
			return ErrDuplicatePendingRequest
		}

		if err := tx.Create(&req).Error; err != nil {
			return fmt.Errorf("insert clock request: %w", err)
		}

		_, err := w.notifications.WithTx(tx).NotifyAdmins(ctx, notifications.Message{
			Type:      models.NotifyClockRequest,
			Title:     "New clock request",
			Body:      fmt.Sprintf("%s submitted a %s request for %s %s: %s", displayName(requester), typeLabel(req.Type), req.RequestDate, req.RequestTime, req.Reason),
			RelatedID: &req.ID,
		})
		return err
	})
	if err != nil {
		return models.ClockRequest{}, err
	}

	w.log(ctx, "create").Info("clock request created", "request_id", req.ID, "user_id", userID, "type", req.Type)
	return req, nil
}

// ReviewInput is an admin decision on one request.
type ReviewInput struct {
	Action    Action
	AdminNote string
}

// Review approves or rejects a pending request. Approval mutates the
// ledger; the status change, ledger writes and requester notification
// commit or roll back together.
func (w *Workflow) Review(ctx context.Context, requestID, adminID uint, in ReviewInput) (models.ClockRequest, error) {
	if in.Action != Approve && in.Action != Reject {
		return models.ClockRequest{}, ErrInvalidAction
	}
	note := strings.TrimSpace(in.AdminNote)

	var req models.ClockRequest
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("load clock request: %w", err)
		}
		if req.Status != models.RequestPending {
			return ErrAlreadyReviewed
		}

		status := models.RequestRejected
		if in.Action == Approve {
			status = models.RequestApproved
		}
		reviewedAt := w.clock.Now()
		// guarded on pending so a concurrent reviewer cannot win twice
		res := tx.Model(&models.ClockRequest{}).
			Where("id = ? AND status = ?", req.ID, models.RequestPending).
			Updates(map[string]any{
				"status":      status,
				"admin_id":    adminID,
				"admin_note":  note,
				"reviewed_at": reviewedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update clock request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReviewed
		}
		req.Status = status
		req.AdminID = &adminID
		req.AdminNote = note
		req.ReviewedAt = &reviewedAt

		if status == models.RequestApproved {
			if err := w.apply(ctx, tx, req, adminID); err != nil {
				return err
			}
		}

		_, err := w.notifications.WithTx(tx).Notify(ctx, req.UserID, outcomeMessage(req))
		return err
	})
	if err != nil {
		return models.ClockRequest{}, err
	}

	w.log(ctx, "review").Info("clock request reviewed",
		"request_id", req.ID, "admin_id", adminID, "status", req.Status)
	return req, nil
}

// apply turns an approved request into a ledger mutation on tx.
func (w *Workflow) apply(ctx context.Context, tx *gorm.DB, req models.ClockRequest, adminID uint) error {
	at, err := w.clock.Combine(req.RequestDate, req.RequestTime)
	if err != nil {
		return apperr.Validation("invalid_request_time", "request has an invalid date or time")
	}
	l := w.ledger.WithTx(tx)
	annotation := fmt.Sprintf("clock request #%d", req.ID)

	switch req.Type {
	case models.RequestClockIn:
		_, err := l.Open(ctx, ledger.OpenInput{
			UserID:     req.UserID,
			Start:      at,
			Notes:      annotation,
			ModifiedBy: &adminID,
		})
		return err

	case models.RequestClockOut:
		_, err := l.Close(ctx, ledger.CloseInput{
			UserID:     req.UserID,
			End:        at,
			NoteSuffix: " " + annotation,
			ModifiedBy: &adminID,
		})
		if !errors.Is(err, ledger.ErrNoActiveSession) {
			return err
		}
		start := at.Add(-SynthesizedShift)
		_, err = l.InsertClosed(ctx, req.UserID, start, at,
			ledger.BreakMinutesFor(SynthesizedShift),
			annotation+" (clock-in time auto-generated)",
			&adminID,
		)
		return err
	}
	return fmt.Errorf("unknown request type %q", req.Type)
}

// Delete removes a pending request owned by userID together with the admin
// notifications it produced.
func (w *Workflow) Delete(ctx context.Context, requestID, userID uint) error {
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.ClockRequest
		err := tx.Where("id = ? AND user_id = ?", requestID, userID).First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("load clock request: %w", err)
		}
		if req.Status != models.RequestPending {
			return ErrNotPending
		}
		if err := tx.Delete(&req).Error; err != nil {
			return fmt.Errorf("delete clock request: %w", err)
		}
		_, err = w.notifications.WithTx(tx).DeleteRelated(ctx, models.NotifyClockRequest, req.ID)
		return err
	})
	if err != nil {
		return err
	}
	w.log(ctx, "delete").Info("clock request deleted", "request_id", requestID, "user_id", userID)
	return nil
}

// Filter narrows a listing. An empty Status returns every status.
type Filter struct {
	Status models.RequestStatus
	Limit  int
}

func (f Filter) validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return apperr.Validation("invalid_status", "status must be pending, approved or rejected")
	}
	return nil
}

// RequestView is a request joined with the names of its requester and
// reviewer.
type RequestView struct {
	models.ClockRequest
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AdminName string `json:"admin_name,omitempty"`
}

// ListForUser returns the user's requests newest first.
func (w *Workflow) ListForUser(ctx context.Context, userID uint, f Filter) ([]RequestView, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultUserLimit
	}
	q := w.baseQuery(ctx).Where("clock_requests.user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("clock_requests.status = ?", f.Status)
	}
	return w.find(q.Order("clock_requests.created_at DESC").Order("clock_requests.id DESC").Limit(f.Limit))
}

// ListAll returns every request, pending first, then approved, then
// rejected, each newest first.
func (w *Workflow) ListAll(ctx context.Context, f Filter) ([]RequestView, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultAdminLimit
	}
	q := w.baseQuery(ctx)
	if f.Status != "" {
		q = q.Where("clock_requests.status = ?", f.Status)
	}
	q = q.Order("CASE clock_requests.status WHEN 'pending' THEN 1 WHEN 'approved' THEN 2 ELSE 3 END").
		Order("clock_requests.created_at DESC").
		Order("clock_requests.id DESC").
		Limit(f.Limit)
	return w.find(q)
}

func (w *Workflow) baseQuery(ctx context.Context) *gorm.DB {
	return w.db.WithContext(ctx).Model(&models.ClockRequest{}).
		Preload("User").
		Preload("Admin")
}

func (w *Workflow) find(q *gorm.DB) ([]RequestView, error) {
	var reqs []models.ClockRequest
	if err := q.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list clock requests: %w", err)
	}
	views := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		v := RequestView{ClockRequest: r, Username: r.User.Username, FullName: r.User.FullName}
		if r.Admin != nil {
			v.AdminName = displayName(*r.Admin)
		}
		views = append(views, v)
	}
	return views, nil
}

func outcomeMessage(req models.ClockRequest) notifications.Message {
	verb, kind := "rejected", models.NotifyClockRequestRejected
	if req.Status == models.RequestApproved {
		verb, kind = "approved", models.NotifyClockRequestApproved
	}
	body := fmt.Sprintf("Your %s request for %s %s was %s", typeLabel(req.Type), req.RequestDate, req.RequestTime, verb)
	if req.AdminNote != "" {
		body += "\nAdmin note: " + req.AdminNote
	}
	id := req.ID
	return notifications.Message{
		Type:      kind,
		Title:     "Clock request " + verb,
		Body:      body,
		RelatedID: &id,
	}
}

func typeLabel(t models.RequestType) string {
	if t == models.RequestClockIn {
		return "clock-in"
	}
	return "clock-out"
}

func displayName(u models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
