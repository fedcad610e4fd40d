// Package notifications stores in-app notices for admins and requesters.
package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"timeclock/internal/apperr"
	"timeclock/internal/civiltime"
	"timeclock/internal/logging"
	"timeclock/internal/models"
)

var ErrNotFound = apperr.NotFound("notification_not_found", "notification not found")

const DefaultListLimit = 50

type Service struct {
	db     *gorm.DB
	clock  civiltime.Clock
	logger *slog.Logger
}

func New(db *gorm.DB, clock civiltime.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, clock: clock, logger: logger}
}

// WithTx returns a Service that writes on tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	cp := *s
	cp.db = tx
	return &cp
}

// Message is the content of a notification.
type Message struct {
	Type      models.NotificationType
	Title     string
	Body      string
	RelatedID *uint
}

// Notify stores one notification for userID.
func (s *Service) Notify(ctx context.Context, userID uint, msg Message) (models.Notification, error) {
	n := models.Notification{
		UserID:    userID,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Body,
		RelatedID: msg.RelatedID,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return models.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// NotifyAdmins fans msg out to every active admin and returns how many
// notices were written.
func (s *Service) NotifyAdmins(ctx context.Context, msg Message) (int, error) {
	db := s.db.WithContext(ctx)

	var adminIDs []uint
	if err := db.Model(&models.User{}).
		Where("role = ? AND status = ?", models.RoleAdmin, models.StatusActive).
		Order("id").
		Pluck("id", &adminIDs).Error; err != nil {
		return 0, fmt.Errorf("list admins: %w", err)
	}
	if len(adminIDs) == 0 {
		return 0, nil
	}

	batch := make([]models.Notification, 0, len(adminIDs))
	for _, id := range adminIDs {
		batch = append(batch, models.Notification{
			UserID:    id,
			Type:      msg.Type,
			Title:     msg.Title,
			Message:   msg.Body,
			RelatedID: msg.RelatedID,
		})
	}
	if err := db.Create(&batch).Error; err != nil {
		return 0, fmt.Errorf("insert admin notifications: %w", err)
	}
	return len(batch), nil
}

// DeleteRelated removes notifications of type t that point at relatedID.
func (s *Service) DeleteRelated(ctx context.Context, t models.NotificationType, relatedID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("related_id = ? AND type = ?", relatedID, t).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListFilter narrows List. A nil IsRead returns both.
type ListFilter struct {
	IsRead *bool
	Limit  int
}

// List returns the user's notifications newest first.
func (s *Service) List(ctx context.Context, userID uint, f ListFilter) ([]models.Notification, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.IsRead != nil {
		q = q.Where("is_read = ?", *f.IsRead)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read.
func (s *Service) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"is_read": true, "read_at": s.clock.Now()})
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (s *Service) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.clock.Now()})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	logging.FromContext(ctx, s.logger).Debug("notifications marked read",
		"service", "notifications", "user_id", userID, "count", res.RowsAffected)
	return res.RowsAffected, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearRead deletes the user's read notifications.
func (s *Service) ClearRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, true).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear read notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
