package reports

import (
	"timeclock/internal/civiltime"
	"timeclock/internal/ledger"
)

// SummaryView is the presentation form of a Summary: civil timestamps and
// hours rounded to two decimals.
type SummaryView struct {
	StartDate    string     `json:"start_date" yaml:"start_date"`
	EndDate      string     `json:"end_date" yaml:"end_date"`
	Location     string     `json:"location,omitempty" yaml:"location,omitempty"`
	GrandTotal   float64    `json:"grand_total_hours" yaml:"grand_total_hours"`
	TotalRecords int        `json:"total_records" yaml:"total_records"`
	Users        []UserView `json:"users" yaml:"users"`
}

type UserView struct {
	UserID         uint                    `json:"user_id" yaml:"user_id"`
	Username       string                  `json:"username" yaml:"username"`
	FullName       string                  `json:"full_name" yaml:"full_name"`
	TotalHours     float64                 `json:"total_hours" yaml:"total_hours"`
	RecordCount    int                     `json:"record_count" yaml:"record_count"`
	FirstClockIn   string                  `json:"first_clock_in" yaml:"first_clock_in"`
	LastClockOut   string                  `json:"last_clock_out" yaml:"last_clock_out"`
	StillClockedIn bool                    `json:"still_clocked_in" yaml:"still_clocked_in"`
	Locations      map[string]LocationView `json:"locations" yaml:"locations"`
}

type LocationView struct {
	TotalHours     float64      `json:"total_hours" yaml:"total_hours"`
	RecordCount    int          `json:"record_count" yaml:"record_count"`
	FirstClockIn   string       `json:"first_clock_in" yaml:"first_clock_in"`
	LastClockOut   string       `json:"last_clock_out" yaml:"last_clock_out"`
	StillClockedIn bool         `json:"still_clocked_in" yaml:"still_clocked_in"`
	Records        []RecordView `json:"records" yaml:"records"`
}

type RecordView struct {
	ID           uint    `json:"id" yaml:"id"`
	ClockIn      string  `json:"clock_in" yaml:"clock_in"`
	ClockOut     string  `json:"clock_out" yaml:"clock_out"`
	BreakMinutes int     `json:"break_minutes" yaml:"break_minutes"`
	Hours        float64 `json:"hours" yaml:"hours"`
	Notes        string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// StillClockedIn is rendered in place of a last clock-out while a session
// in the group is open.
const StillClockedIn = "Still clocked in"

func lastOut(clock civiltime.Clock, g Group) string {
	if g.StillClockedIn {
		return StillClockedIn
	}
	return clock.FormatPtr(g.LastClockOut)
}

// View renders s for JSON, YAML and terminal output.
func (s Summary) View(clock civiltime.Clock) SummaryView {
	v := SummaryView{
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		Location:     s.Location,
		GrandTotal:   ledger.Round2(s.GrandTotal),
		TotalRecords: s.TotalRecords,
		Users:        make([]UserView, 0, len(s.Users)),
	}
	for _, u := range s.Users {
		uv := UserView{
			UserID:         u.UserID,
			Username:       u.Username,
			FullName:       u.FullName,
			TotalHours:     ledger.Round2(u.TotalHours),
			RecordCount:    u.RecordCount,
			FirstClockIn:   clock.Format(u.FirstClockIn),
			LastClockOut:   lastOut(clock, u.Group),
			StillClockedIn: u.StillClockedIn,
			Locations:      make(map[string]LocationView, len(u.Locations)),
		}
		for name, loc := range u.Locations {
			lv := LocationView{
				TotalHours:     ledger.Round2(loc.TotalHours),
				RecordCount:    loc.RecordCount,
				FirstClockIn:   clock.Format(loc.FirstClockIn),
				LastClockOut:   lastOut(clock, loc.Group),
				StillClockedIn: loc.StillClockedIn,
				Records:        make([]RecordView, 0, len(loc.Records)),
			}
			for _, r := range loc.Records {
				lv.Records = append(lv.Records, RecordView{
					ID:           r.ID,
					ClockIn:      clock.Format(r.ClockIn),
					ClockOut:     clock.FormatPtr(r.ClockOut),
					BreakMinutes: r.BreakMinutes,
					Hours:        ledger.Round2(r.Hours),
					Notes:        r.Notes,
				})
			}
			uv.Locations[name] = lv
		}
		v.Users = append(v.Users, uv)
	}
	return v
}
