// Package reports aggregates clock sessions per user and location over a
// date range.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"timeclock/internal/apperr"
	"timeclock/internal/civiltime"
	"timeclock/internal/ledger"
	"timeclock/internal/logging"
	"timeclock/internal/models"
)

// Query selects sessions whose clock-in falls on StartDate..EndDate
// inclusive. Location and UserID are optional filters.
type Query struct {
	StartDate string
	EndDate   string
	Location  string
	UserID    uint
}

// Record is one session inside a location group.
type Record struct {
	ID           uint
	ClockIn      time.Time
	ClockOut     *time.Time
	BreakMinutes int
	Notes        string
	Hours        float64
}

// Group accumulates the sessions of one user at one location, or of one
// user overall.
type Group struct {
	TotalHours     float64
	RecordCount    int
	FirstClockIn   time.Time
	LastClockOut   *time.Time
	StillClockedIn bool
}

func (g *Group) add(rec models.ClockRecord, hours float64) {
	g.TotalHours += hours
	g.RecordCount++
	if g.FirstClockIn.IsZero() || rec.ClockIn.Before(g.FirstClockIn) {
		g.FirstClockIn = rec.ClockIn
	}
	state := rec.State()
	if state.Open {
		g.StillClockedIn = true
		return
	}
	if g.LastClockOut == nil || state.End.After(*g.LastClockOut) {
		end := state.End
		g.LastClockOut = &end
	}
}

type LocationSummary struct {
	Location string
	Group
	Records []Record
}

type UserSummary struct {
	UserID   uint
	Username string
	FullName string
	Group
	Locations map[string]*LocationSummary
}

// LocationNames returns the user's locations sorted by name.
func (u *UserSummary) LocationNames() []string {
	names := make([]string, 0, len(u.Locations))
	for name := range u.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Summary struct {
	StartDate    string
	EndDate      string
	Location     string
	GrandTotal   float64
	TotalRecords int
	Users        []*UserSummary
}

// Aggregate groups records by user then location. Open sessions are
// counted up to now. Hours are not rounded.
func Aggregate(records []models.ClockRecord, now time.Time) []*UserSummary {
	byUser := make(map[uint]*UserSummary)
	for _, rec := range records {
		u, ok := byUser[rec.UserID]
		if !ok {
			u = &UserSummary{
				UserID:    rec.UserID,
				Username:  rec.User.Username,
				FullName:  rec.User.FullName,
				Locations: make(map[string]*LocationSummary),
			}
			byUser[rec.UserID] = u
		}
		loc, ok := u.Locations[rec.Location]
		if !ok {
			loc = &LocationSummary{Location: rec.Location}
			u.Locations[rec.Location] = loc
		}

		hours := ledger.RecordHours(rec, now)
		u.add(rec, hours)
		loc.add(rec, hours)
		loc.Records = append(loc.Records, Record{
			ID:           rec.ID,
			ClockIn:      rec.ClockIn,
			ClockOut:     rec.ClockOut,
			BreakMinutes: rec.BreakMinutes,
			Notes:        rec.Notes,
			Hours:        hours,
		})
	}

	users := make([]*UserSummary, 0, len(byUser))
	for _, u := range byUser {
		for _, loc := range u.Locations {
			sort.SliceStable(loc.Records, func(i, j int) bool {
				return loc.Records[i].ClockIn.After(loc.Records[j].ClockIn)
			})
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// Aggregator reads the ledger; it never writes.
type Aggregator struct {
	db     *gorm.DB
	clock  civiltime.Clock
	logger *slog.Logger
}

func NewAggregator(db *gorm.DB, clock civiltime.Clock, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{db: db, clock: clock, logger: logger}
}

func (a *Aggregator) Clock() civiltime.Clock { return a.clock }

func (q Query) validate(clock civiltime.Clock) (time.Time, time.Time, error) {
	var fe apperr.FieldErrors
	if strings.TrimSpace(q.StartDate) == "" {
		fe.Add("start_date", "start_date is required")
	}
	if strings.TrimSpace(q.EndDate) == "" {
		fe.Add("end_date", "end_date is required")
	}
	if err := fe.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, to, err := clock.DayRange(q.StartDate, q.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("invalid_date", "dates must be YYYY-MM-DD")
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, apperr.Validation("invalid_date_range", "end_date must not precede start_date")
	}
	return from, to, nil
}

// Summarize builds the period summary for q.
func (a *Aggregator) Summarize(ctx context.Context, q Query) (Summary, error) {
	from, to, err := q.validate(a.clock)
	if err != nil {
		return Summary{}, err
	}

	db := a.db.WithContext(ctx).Preload("User").
		Where("clock_in >= ? AND clock_in < ?", from, to)
	if loc := strings.TrimSpace(q.Location); loc != "" {
		db = db.Where("location = ?", loc)
	}
	if q.UserID != 0 {
		db = db.Where("user_id = ?", q.UserID)
	}

	var records []models.ClockRecord
	if err := db.Order("user_id").Order("clock_in DESC").Find(&records).Error; err != nil {
		return Summary{}, fmt.Errorf("load clock records: %w", err)
	}

	users := Aggregate(records, a.clock.Now())
	sum := Summary{
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Location:  strings.TrimSpace(q.Location),
		Users:     users,
	}
	for _, u := range users {
		sum.GrandTotal += u.TotalHours
		sum.TotalRecords += u.RecordCount
	}

	logging.FromContext(ctx, a.logger).Debug("summary built",
		"service", "reports", "operation", "summarize",
		"records", sum.TotalRecords, "users", len(users))
	return sum, nil
}
