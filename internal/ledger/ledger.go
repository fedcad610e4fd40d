// Package ledger owns clock sessions: the single open session per user,
// clock in and out, admin edits and worked hours.
package ledger

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
	"timeclock/internal/database"
	"timeclock/internal/logging"
	"timeclock/internal/models"
)

var (
	ErrAlreadyClockedIn = apperr.Conflict("already_clocked_in", "already clocked in")
	ErrNoActiveSession  = apperr.Conflict("no_active_session", "no active clock-in found")
	ErrSessionNotFound  = apperr.NotFound("session_not_found", "record not found")
	ErrInvalidTimeRange = apperr.Validation("invalid_time_range", "invalid time range, hours must be between 0 and 24")
	ErrUserNotFound     = apperr.NotFound("user_not_found", "user not found")
)

// Ledger reads and writes clock_records.
type Ledger struct {
	db       *gorm.DB
	clock    civiltime.Clock
	location string
	logger   *slog.Logger
}

func New(db *gorm.DB, clock civiltime.Clock, location string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, clock: clock, location: location, logger: logger}
}

// WithTx returns a Ledger that runs every statement on tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	cp := *l
	cp.db = tx
	return &cp
}

func (l *Ledger) Clock() civiltime.Clock { return l.clock }

func (l *Ledger) log(ctx context.Context, op string) *slog.Logger {
	return logging.FromContext(ctx, l.logger).With("service", "ledger", "operation", op)
}

// OpenInput describes a session to open.
type OpenInput struct {
	UserID     uint
	Start      time.Time
	Notes      string
	ModifiedBy *uint
}

// ClockIn opens a session starting now.
func (l *Ledger) ClockIn(ctx context.Context, userID uint, notes string) (models.ClockRecord, error) {
	rec, err := l.Open(ctx, OpenInput{UserID: userID, Start: l.clock.Now(), Notes: strings.TrimSpace(notes)})
	if err != nil {
		return rec, err
	}
	l.log(ctx, "clock_in").Info("clocked in", "user_id", userID, "record_id", rec.ID)
	return rec, nil
}

// Open inserts an open session after checking, under the user's row lock,
// that none exists yet.
func (l *Ledger) Open(ctx context.Context, in OpenInput) (models.ClockRecord, error) {
	rec := models.ClockRecord{
		UserID:     in.UserID,
		ClockIn:    in.Start.In(l.clock.Location()),
		Notes:      in.Notes,
		Location:   l.location,
		ModifiedBy: in.ModifiedBy,
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, in.UserID); err != nil {
			return err
		}
		if _, found, err := findOpen(tx, in.UserID); err != nil {
			return err
		} else if found {
			return ErrAlreadyClockedIn
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyClockedIn
			}
			return fmt.Errorf("insert clock record: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ClockRecord{}, err
	}
	return rec, nil
}

// CloseInput describes how to close the open session of a user.
type CloseInput struct {
	UserID        uint
	End           time.Time
	BreakOverride *int
	// NoteSuffix is appended to the existing notes verbatim.
	NoteSuffix string
	ModifiedBy *uint
}

// ClockOutResult is the closed session with its resolved figures.
type ClockOutResult struct {
	Record       models.ClockRecord
	BreakMinutes int
	WorkedHours  float64
}

// ClockOut closes the caller's open session now.
func (l *Ledger) ClockOut(ctx context.Context, userID uint, notes string, breakOverride *int) (ClockOutResult, error) {
	suffix := ""
	if notes = strings.TrimSpace(notes); notes != "" {
		suffix = "\nOut: " + notes
	}
	res, err := l.Close(ctx, CloseInput{
		UserID:        userID,
		End:           l.clock.Now(),
		BreakOverride: breakOverride,
		NoteSuffix:    suffix,
	})
	if err != nil {
		return res, err
	}
	l.log(ctx, "clock_out").Info("clocked out",
		"user_id", userID,
		"record_id", res.Record.ID,
		"break_minutes", res.BreakMinutes,
		"worked_hours", Round2(res.WorkedHours),
	)
	return res, nil
}

// Close sets the end of the user's open session and resolves its break.
func (l *Ledger) Close(ctx context.Context, in CloseInput) (ClockOutResult, error) {
	var res ClockOutResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, in.UserID); err != nil {
			return err
		}
		rec, found, err := findOpen(tx, in.UserID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoActiveSession
		}

		end := in.End.In(l.clock.Location())
		breakMinutes := ResolveBreak(end.Sub(rec.ClockIn), in.BreakOverride)
		updates := map[string]any{
			"clock_out":     end,
			"break_minutes": breakMinutes,
			"notes":         rec.Notes + in.NoteSuffix,
		}
		if in.ModifiedBy != nil {
			updates["modified_by"] = *in.ModifiedBy
		}
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return fmt.Errorf("close clock record: %w", err)
		}

		rec.ClockOut = &end
		rec.BreakMinutes = breakMinutes
		rec.Notes += in.NoteSuffix
		if in.ModifiedBy != nil {
			rec.ModifiedBy = in.ModifiedBy
		}
		res = ClockOutResult{
			Record:       rec,
			BreakMinutes: breakMinutes,
			WorkedHours:  WorkedHours(rec.ClockIn, end, breakMinutes),
		}
		return nil
	})
	return res, err
}

// InsertClosed records a complete session in one statement.
func (l *Ledger) InsertClosed(ctx context.Context, userID uint, start, end time.Time, breakMinutes int, notes string, modifiedBy *uint) (models.ClockRecord, error) {
	loc := l.clock.Location()
	end = end.In(loc)
	rec := models.ClockRecord{
		UserID:       userID,
		ClockIn:      start.In(loc),
		ClockOut:     &end,
		BreakMinutes: breakMinutes,
		Notes:        notes,
		Location:     l.location,
		ModifiedBy:   modifiedBy,
	}
	db := l.db.WithContext(ctx)
	if err := db.Create(&rec).Error; err != nil {
		return models.ClockRecord{}, fmt.Errorf("insert clock record: %w", err)
	}
	// gorm substitutes the column default for a zero value on insert
	if breakMinutes == 0 {
		if err := db.Model(&rec).UpdateColumn("break_minutes", 0).Error; err != nil {
			return models.ClockRecord{}, fmt.Errorf("set break minutes: %w", err)
		}
		rec.BreakMinutes = 0
	}
	return rec, nil
}

// Status describes the caller's open session, if any.
type Status struct {
	ClockedIn    bool
	Record       *models.ClockRecord
	Elapsed      time.Duration
	BreakMinutes int
	WorkedHours  float64
}

func (l *Ledger) Status(ctx context.Context, userID uint) (Status, error) {
	rec, found, err := findOpen(l.db.WithContext(ctx), userID)
	if err != nil || !found {
		return Status{}, err
	}
	elapsed := l.clock.Now().Sub(rec.ClockIn)
	breakMinutes := BreakMinutesFor(elapsed)
	return Status{
		ClockedIn:    true,
		Record:       &rec,
		Elapsed:      elapsed,
		BreakMinutes: breakMinutes,
		WorkedHours:  WorkedHours(rec.ClockIn, rec.ClockIn.Add(elapsed), breakMinutes),
	}, nil
}

// IsClockedIn reports whether userID has an open session.
func (l *Ledger) IsClockedIn(ctx context.Context, userID uint) (bool, error) {
	_, found, err := findOpen(l.db.WithContext(ctx), userID)
	return found, err
}

// OpenUserIDs returns the set of users with an open session.
func (l *Ledger) OpenUserIDs(ctx context.Context) (map[uint]bool, error) {
	var ids []uint
	if err := l.db.WithContext(ctx).Model(&models.ClockRecord{}).
		Where("clock_out IS NULL").
		Distinct().
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// RecordView is a session with its computed hours.
type RecordView struct {
	models.ClockRecord
	WorkedHours float64
}

// Range restricts records to clock_in within [From, To). Zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

// Records lists a user's sessions newest first.
func (l *Ledger) Records(ctx context.Context, userID uint, r Range) ([]RecordView, error) {
	q := l.db.WithContext(ctx).Where("user_id = ?", userID)
	if !r.From.IsZero() {
		q = q.Where("clock_in >= ?", r.From.In(l.clock.Location()))
	}
	if !r.To.IsZero() {
		q = q.Where("clock_in < ?", r.To.In(l.clock.Location()))
	}

	var recs []models.ClockRecord
	if err := q.Order("clock_in DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list clock records: %w", err)
	}

	now := l.clock.Now()
	views := make([]RecordView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, RecordView{ClockRecord: rec, WorkedHours: RecordHours(rec, now)})
	}
	return views, nil
}

// Locations lists the configured location followed by any other location
// found on existing sessions.
func (l *Ledger) Locations(ctx context.Context) ([]string, error) {
	var found []string
	if err := l.db.WithContext(ctx).Model(&models.ClockRecord{}).
		Where("location <> ''").
		Distinct().
		Order("location").
		Pluck("location", &found).Error; err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	out := []string{l.location}
	for _, loc := range found {
		if loc != l.location {
			out = append(out, loc)
		}
	}
	return out, nil
}

// Editor identifies the admin performing an adjustment.
type Editor struct {
	ID       uint
	Username string
	IP       string
}

// AdjustPatch lists the fields an admin edit may set. ClockIn is required;
// a nil ClockOut leaves the session open. Nil BreakMinutes, Location or
// Notes keep the stored value; a negative BreakMinutes is stored as zero.
type AdjustPatch struct {
	ClockIn      time.Time
	ClockOut     *time.Time
	BreakMinutes *int
	Location     *string
	Notes        *string
}

func (p AdjustPatch) validate() error {
	var fe apperr.FieldErrors
	if p.ClockIn.IsZero() {
		fe.Add("clock_in", "clock_in is required")
	}
	if p.Location != nil && strings.TrimSpace(*p.Location) == "" {
		fe.Add("location", "location must not be empty")
	}
	if err := fe.Err(); err != nil {
		return err
	}
	if p.ClockOut != nil {
		span := p.ClockOut.Sub(p.ClockIn)
		if span < 0 || span > MaxSessionSpan {
			return ErrInvalidTimeRange
		}
	}
	return nil
}

type recordSnapshot struct {
	ClockIn      string `json:"clock_in"`
	ClockOut     string `json:"clock_out,omitempty"`
	BreakMinutes int    `json:"break_minutes"`
	Location     string `json:"location"`
	Notes        string `json:"notes"`
}

func (l *Ledger) snapshot(rec models.ClockRecord) recordSnapshot {
	return recordSnapshot{
		ClockIn:      l.clock.Format(rec.ClockIn),
		ClockOut:     l.clock.FormatPtr(rec.ClockOut),
		BreakMinutes: rec.BreakMinutes,
		Location:     rec.Location,
		Notes:        rec.Notes,
	}
}

// Adjust overwrites one session, appends a modification note with the
// prior values and writes an audit entry, all in one transaction.
func (l *Ledger) Adjust(ctx context.Context, id uint, patch AdjustPatch, editor Editor) (models.ClockRecord, error) {
	if err := patch.validate(); err != nil {
		return models.ClockRecord{}, err
	}

	var updated models.ClockRecord
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.ClockRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("load clock record: %w", err)
		}
		before := l.snapshot(rec)

		if patch.ClockOut == nil && rec.ClockOut != nil {
			other, found, err := findOpen(tx, rec.UserID)
			if err != nil {
				return err
			}
			if found && other.ID != rec.ID {
				return ErrAlreadyClockedIn
			}
		}

		next := rec
		loc := l.clock.Location()
		next.ClockIn = patch.ClockIn.In(loc)
		next.ClockOut = nil
		if patch.ClockOut != nil {
			out := patch.ClockOut.In(loc)
			next.ClockOut = &out
		}
		if patch.BreakMinutes != nil {
			next.BreakMinutes = max(0, *patch.BreakMinutes)
		}
		if patch.Location != nil {
			next.Location = strings.TrimSpace(*patch.Location)
		}
		notes := rec.Notes
		if patch.Notes != nil {
			notes = strings.TrimSpace(*patch.Notes)
		}
		next.Notes = joinNotes(notes, l.modificationNote(rec, editor))
		next.ModifiedBy = &editor.ID

		err := tx.Model(&rec).Updates(map[string]any{
			"clock_in":      next.ClockIn,
			"clock_out":     next.ClockOut,
			"break_minutes": next.BreakMinutes,
			"location":      next.Location,
			"notes":         next.Notes,
			"modified_by":   editor.ID,
		}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyClockedIn
			}
			return fmt.Errorf("update clock record: %w", err)
		}

		if err := database.WriteAudit(tx, database.AuditEntry{
			ActorID:  editor.ID,
			Action:   models.AuditUpdate,
			Entity:   "clock_records",
			EntityID: rec.ID,
			Old:      before,
			New:      l.snapshot(next),
			IP:       editor.IP,
		}); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return models.ClockRecord{}, err
	}

	l.log(ctx, "adjust").Info("clock record adjusted", "record_id", id, "editor_id", editor.ID)
	return updated, nil
}

func (l *Ledger) modificationNote(prev models.ClockRecord, editor Editor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Modified by admin (%s) on %s. Previous: In: %s", editor.Username, l.clock.Format(l.clock.Now()), l.clock.Format(prev.ClockIn))
	if prev.ClockOut != nil {
		fmt.Fprintf(&b, ", Out: %s", l.clock.Format(*prev.ClockOut))
	}
	fmt.Fprintf(&b, ", Break: %d minutes, Location: %s]", prev.BreakMinutes, prev.Location)
	return b.String()
}

func joinNotes(notes, suffix string) string {
	if notes == "" {
		return suffix
	}
	return notes + "\n" + suffix
}

func lockUser(tx *gorm.DB, userID uint) error {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func findOpen(db *gorm.DB, userID uint) (models.ClockRecord, bool, error) {
	var rec models.ClockRecord
	err := db.Where("user_id = ? AND clock_out IS NULL", userID).
		Order("clock_in DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return models.ClockRecord{}, false, fmt.Errorf("find open session: %w", err)
	}
	return rec, rec.ID != 0, nil
}
