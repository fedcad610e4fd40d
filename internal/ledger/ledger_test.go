package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"timeclock/internal/ledger"
	"timeclock/internal/logging"
	"timeclock/internal/models"
	"timeclock/internal/testutil"
)

type fixture struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	clock  *testutil.FakeClock
	user   models.User
	admin  models.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	clock := testutil.NewClock(testutil.At(2024, time.March, 4, 9, 0))
	db := testutil.OpenDB(t, clock)
	return fixture{
		db:     db,
		ledger: ledger.New(db, clock.Civil(), testutil.DefaultLocation, logging.Discard()),
		clock:  clock,
		user:   testutil.CreateUser(t, db, "alice", models.RoleUser),
		admin:  testutil.CreateUser(t, db, "boss", models.RoleAdmin),
	}
}

func TestClockInOut(t *testing.T) {
	ctx := context.Background()

	t.Run("four and a half hours yields four worked hours", func(t *testing.T) {
		f := setup(t)
		rec, err := f.ledger.ClockIn(ctx, f.user.ID, "morning")
		if err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		if rec.Location != testutil.DefaultLocation {
			t.Fatalf("expected configured location, got %q", rec.Location)
		}
		if rec.Status() != models.SessionIn {
			t.Fatalf("expected open session")
		}

		f.clock.Set(testutil.At(2024, time.March, 4, 13, 30))
		res, err := f.ledger.ClockOut(ctx, f.user.ID, "done", nil)
		if err != nil {
			t.Fatalf("ClockOut: %v", err)
		}
		if res.BreakMinutes != 30 {
			t.Fatalf("expected 30 minute break, got %d", res.BreakMinutes)
		}
		if ledger.Round2(res.WorkedHours) != 4.0 {
			t.Fatalf("expected 4.0 hours, got %v", res.WorkedHours)
		}
		if !strings.HasSuffix(res.Record.Notes, "morning\nOut: done") {
			t.Fatalf("unexpected notes %q", res.Record.Notes)
		}
	})

	t.Run("short shift gets no break", func(t *testing.T) {
		f := setup(t)
		if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		f.clock.Advance(3*time.Hour + 59*time.Minute)
		res, err := f.ledger.ClockOut(ctx, f.user.ID, "", nil)
		if err != nil {
			t.Fatalf("ClockOut: %v", err)
		}
		if res.BreakMinutes != 0 {
			t.Fatalf("expected no break, got %d", res.BreakMinutes)
		}
		if got := ledger.Round2(res.WorkedHours); got != 3.98 {
			t.Fatalf("expected 3.98 hours, got %v", got)
		}

		recs, err := f.ledger.Records(ctx, f.user.ID, ledger.Range{})
		if err != nil {
			t.Fatalf("Records: %v", err)
		}
		if len(recs) != 1 || recs[0].BreakMinutes != 0 {
			t.Fatalf("expected stored break of 0, got %+v", recs)
		}
	})

	t.Run("override is clamped at zero", func(t *testing.T) {
		f := setup(t)
		if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		f.clock.Advance(time.Hour)
		negative := -15
		res, err := f.ledger.ClockOut(ctx, f.user.ID, "", &negative)
		if err != nil {
			t.Fatalf("ClockOut: %v", err)
		}
		if res.BreakMinutes != 0 || res.WorkedHours != 1 {
			t.Fatalf("unexpected result %+v", res)
		}
	})

	t.Run("override larger than shift never goes negative", func(t *testing.T) {
		f := setup(t)
		if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		f.clock.Advance(20 * time.Minute)
		long := 60
		res, err := f.ledger.ClockOut(ctx, f.user.ID, "", &long)
		if err != nil {
			t.Fatalf("ClockOut: %v", err)
		}
		if res.WorkedHours != 0 {
			t.Fatalf("expected 0 hours, got %v", res.WorkedHours)
		}
	})

	t.Run("second clock in is rejected", func(t *testing.T) {
		f := setup(t)
		if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); !errors.Is(err, ledger.ErrAlreadyClockedIn) {
			t.Fatalf("expected ErrAlreadyClockedIn, got %v", err)
		}
		ids, err := f.ledger.OpenUserIDs(ctx)
		if err != nil {
			t.Fatalf("OpenUserIDs: %v", err)
		}
		if len(ids) != 1 || !ids[f.user.ID] {
			t.Fatalf("expected exactly one open session, got %v", ids)
		}
	})

	t.Run("clock out without session", func(t *testing.T) {
		f := setup(t)
		if _, err := f.ledger.ClockOut(ctx, f.user.ID, "", nil); !errors.Is(err, ledger.ErrNoActiveSession) {
			t.Fatalf("expected ErrNoActiveSession, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		f := setup(t)
		if _, err := f.ledger.ClockIn(ctx, 9999, ""); !errors.Is(err, ledger.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	st, err := f.ledger.Status(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.ClockedIn {
		t.Fatalf("expected not clocked in")
	}

	if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	f.clock.Advance(5 * time.Hour)

	st, err = f.ledger.Status(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.ClockedIn || st.Elapsed != 5*time.Hour {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.BreakMinutes != 30 || st.WorkedHours != 4.5 {
		t.Fatalf("expected projected 4.5h with 30 min break, got %v / %d", st.WorkedHours, st.BreakMinutes)
	}
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	editor := func(f fixture) ledger.Editor {
		return ledger.Editor{ID: f.admin.ID, Username: f.admin.Username, IP: "10.0.0.1"}
	}

	t.Run("overwrites fields and writes audit entry", func(t *testing.T) {
		f := setup(t)
		rec, err := f.ledger.ClockIn(ctx, f.user.ID, "orig")
		if err != nil {
			t.Fatalf("ClockIn: %v", err)
		}

		in := testutil.At(2024, time.March, 4, 8, 0)
		out := testutil.At(2024, time.March, 4, 16, 0)
		brk := 45
		loc := "Annex"
		got, err := f.ledger.Adjust(ctx, rec.ID, ledger.AdjustPatch{
			ClockIn: in, ClockOut: &out, BreakMinutes: &brk, Location: &loc,
		}, editor(f))
		if err != nil {
			t.Fatalf("Adjust: %v", err)
		}
		if got.ClockOut == nil || !got.ClockOut.Equal(out) || got.BreakMinutes != 45 || got.Location != "Annex" {
			t.Fatalf("unexpected record %+v", got)
		}
		if got.ModifiedBy == nil || *got.ModifiedBy != f.admin.ID {
			t.Fatalf("expected modified_by to be the admin")
		}
		if !strings.HasPrefix(got.Notes, "orig\n[Modified by admin (boss)") || !strings.Contains(got.Notes, "Previous: In: 2024-03-04 09:00:00") {
			t.Fatalf("unexpected notes %q", got.Notes)
		}

		recs, err := f.ledger.Records(ctx, f.user.ID, ledger.Range{})
		if err != nil {
			t.Fatalf("Records: %v", err)
		}
		if len(recs) != 1 || recs[0].WorkedHours != 7.25 {
			t.Fatalf("expected 7.25 hours after edit, got %+v", recs)
		}
	})

	t.Run("negative break is stored as zero", func(t *testing.T) {
		f := setup(t)
		rec, err := f.ledger.ClockIn(ctx, f.user.ID, "")
		if err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		in := testutil.At(2024, time.March, 4, 9, 0)
		out := testutil.At(2024, time.March, 4, 12, 0)
		brk := -20
		got, err := f.ledger.Adjust(ctx, rec.ID, ledger.AdjustPatch{ClockIn: in, ClockOut: &out, BreakMinutes: &brk}, editor(f))
		if err != nil {
			t.Fatalf("Adjust: %v", err)
		}
		if got.BreakMinutes != 0 {
			t.Fatalf("expected break clamped to 0, got %d", got.BreakMinutes)
		}
		var stored models.ClockRecord
		if err := f.db.First(&stored, rec.ID).Error; err != nil {
			t.Fatalf("load record: %v", err)
		}
		if stored.BreakMinutes != 0 {
			t.Fatalf("expected stored break 0, got %d", stored.BreakMinutes)
		}
	})

	t.Run("rejects span over a day", func(t *testing.T) {
		f := setup(t)
		rec, err := f.ledger.ClockIn(ctx, f.user.ID, "")
		if err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		in := testutil.At(2024, time.March, 1, 8, 0)
		out := in.Add(24*time.Hour + time.Minute)
		_, err = f.ledger.Adjust(ctx, rec.ID, ledger.AdjustPatch{ClockIn: in, ClockOut: &out}, editor(f))
		if !errors.Is(err, ledger.ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
	})

	t.Run("rejects end before start", func(t *testing.T) {
		f := setup(t)
		rec, err := f.ledger.ClockIn(ctx, f.user.ID, "")
		if err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		in := testutil.At(2024, time.March, 4, 12, 0)
		out := in.Add(-time.Minute)
		_, err = f.ledger.Adjust(ctx, rec.ID, ledger.AdjustPatch{ClockIn: in, ClockOut: &out}, editor(f))
		if !errors.Is(err, ledger.ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		f := setup(t)
		_, err := f.ledger.Adjust(ctx, 404, ledger.AdjustPatch{ClockIn: f.clock.Now()}, editor(f))
		if !errors.Is(err, ledger.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("reopening conflicts with another open session", func(t *testing.T) {
		f := setup(t)
		day := testutil.At(2024, time.March, 1, 9, 0)
		closed := testutil.CreateRecord(t, f.db, f.user.ID, "X", day, testutil.TimePtr(day.Add(8*time.Hour)), 30)
		if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		_, err := f.ledger.Adjust(ctx, closed.ID, ledger.AdjustPatch{ClockIn: day}, editor(f))
		if !errors.Is(err, ledger.ErrAlreadyClockedIn) {
			t.Fatalf("expected ErrAlreadyClockedIn, got %v", err)
		}
	})
}

func TestRecordsRange(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	db := f.db
	for day := 1; day <= 3; day++ {
		in := testutil.At(2024, time.March, day, 9, 0)
		testutil.CreateRecord(t, db, f.user.ID, "X", in, testutil.TimePtr(in.Add(2*time.Hour)), 0)
	}

	from, to, err := f.ledger.Clock().DayRange("2024-03-02", "2024-03-03")
	if err != nil {
		t.Fatalf("DayRange: %v", err)
	}
	recs, err := f.ledger.Records(ctx, f.user.ID, ledger.Range{From: from, To: to})
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ClockIn.Day() != 3 || recs[1].ClockIn.Day() != 2 {
		t.Fatalf("expected newest first")
	}
	if recs[0].WorkedHours != 2 {
		t.Fatalf("expected 2 hours, got %v", recs[0].WorkedHours)
	}
}

func TestLocations(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	in := testutil.At(2024, time.March, 1, 9, 0)
	testutil.CreateRecord(t, f.db, f.user.ID, "Annex", in, testutil.TimePtr(in.Add(time.Hour)), 0)

	locs, err := f.ledger.Locations(ctx)
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if len(locs) != 2 || locs[0] != testutil.DefaultLocation || locs[1] != "Annex" {
		t.Fatalf("unexpected locations %v", locs)
	}
}

func TestAuditSnapshot(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	db := f.db
	rec, err := f.ledger.ClockIn(ctx, f.user.ID, "")
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	out := f.clock.Now().Add(time.Hour)
	if _, err := f.ledger.Adjust(ctx, rec.ID, ledger.AdjustPatch{ClockIn: rec.ClockIn, ClockOut: &out}, ledger.Editor{ID: f.admin.ID, Username: "boss"}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	var entry models.AuditLog
	if err := db.Where("entity = ? AND entity_id = ?", "clock_records", rec.ID).First(&entry).Error; err != nil {
		t.Fatalf("load audit entry: %v", err)
	}
	var before, after map[string]any
	if err := json.Unmarshal(entry.OldValues, &before); err != nil {
		t.Fatalf("old values: %v", err)
	}
	if err := json.Unmarshal(entry.NewValues, &after); err != nil {
		t.Fatalf("new values: %v", err)
	}
	if _, ok := before["clock_out"]; ok {
		t.Fatalf("expected no clock_out before edit, got %v", before)
	}
	if after["clock_out"] != "2024-03-04 10:00:00" {
		t.Fatalf("unexpected clock_out after edit %v", after["clock_out"])
	}
}

func TestOpenRecordHours(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	f.clock.Advance(2 * time.Hour)

	recs, err := f.ledger.Records(ctx, f.user.ID, ledger.Range{})
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].BreakMinutes != models.DefaultBreakMinutes {
		t.Fatalf("expected one open record with the default break, got %+v", recs)
	}
	if recs[0].WorkedHours != 1.5 {
		t.Fatalf("expected 2h less the stored 30 min break, got %v", recs[0].WorkedHours)
	}

	rec := models.ClockRecord{ClockIn: testutil.At(2024, time.March, 4, 10, 0), BreakMinutes: 0}
	if got := ledger.RecordHours(rec, testutil.At(2024, time.March, 4, 12, 0)); got != 2 {
		t.Fatalf("expected 2h with no stored break, got %v", got)
	}
}
