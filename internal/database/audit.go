package database

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"timeclock/internal/models"
)

// AuditEntry is one admin mutation to record. ActorID 0 means the system.
type AuditEntry struct {
	ActorID  uint
	Action   string
	Entity   string
	EntityID uint
	Old      any
	New      any
	IP       string
}

// WriteAudit appends an audit_logs row using tx, so the entry commits or
// rolls back with the mutation it describes.
func WriteAudit(tx *gorm.DB, e AuditEntry) error {
	oldJSON, err := snapshot(e.Old)
	if err != nil {
		return fmt.Errorf("encode old values: %w", err)
	}
	newJSON, err := snapshot(e.New)
	if err != nil {
		return fmt.Errorf("encode new values: %w", err)
	}

	record := models.AuditLog{
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Action:    e.Action,
		OldValues: oldJSON,
		NewValues: newJSON,
		IPAddress: e.IP,
	}
	if e.ActorID != 0 {
		actor := e.ActorID
		record.UserID = &actor
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// AuditFilter narrows ListAudit. Zero values match everything.
type AuditFilter struct {
	Entity   string
	EntityID uint
	ActorID  uint
	Action   string
	Limit    int
}

const defaultAuditLimit = 200

// ListAudit returns audit entries newest first with their actors loaded.
func ListAudit(ctx context.Context, db *gorm.DB, f AuditFilter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditLimit
	}
	q := db.WithContext(ctx).Preload("User")
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.ActorID != 0 {
		q = q.Where("user_id = ?", f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at desc").Order("id desc").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
