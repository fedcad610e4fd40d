package requests_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"timeclock/internal/apperr"
	"timeclock/internal/ledger"
	"timeclock/internal/logging"
	"timeclock/internal/models"
	"timeclock/internal/notifications"
	"timeclock/internal/requests"
	"timeclock/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	clock    *testutil.FakeClock
	ledger   *ledger.Ledger
	notes    *notifications.Service
	workflow *requests.Workflow
	user     models.User
	admin    models.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	clock := testutil.NewClock(testutil.At(2024, time.March, 5, 10, 0))
	db := testutil.OpenDB(t, clock)
	civil := clock.Civil()
	l := ledger.New(db, civil, testutil.DefaultLocation, logging.Discard())
	n := notifications.New(db, civil, logging.Discard())
	return fixture{
		db:       db,
		clock:    clock,
		ledger:   l,
		notes:    n,
		workflow: requests.New(db, civil, l, n, logging.Discard()),
		user:     testutil.CreateUser(t, db, "alice", models.RoleUser),
		admin:    testutil.CreateUser(t, db, "boss", models.RoleAdmin),
	}
}

func (f fixture) create(t *testing.T, typ, date, tod string) models.ClockRequest {
	t.Helper()
	req, err := f.workflow.Create(context.Background(), f.user.ID, requests.CreateInput{
		Type: typ, Date: date, Time: tod, Reason: "forgot to punch",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return req
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("validates every field before writing", func(t *testing.T) {
		f := setup(t)
		_, err := f.workflow.Create(ctx, f.user.ID, requests.CreateInput{Type: "lunch", Date: "03/04/2024", Time: "9am"})
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"request_type", "request_date", "request_time", "reason"} {
			if _, ok := appErr.Fields[field]; !ok {
				t.Fatalf("expected field error for %s, got %v", field, appErr.Fields)
			}
		}
		var count int64
		f.db.Model(&models.ClockRequest{}).Count(&count)
		if count != 0 {
			t.Fatalf("expected no rows, got %d", count)
		}
	})

	t.Run("rejects time with seconds", func(t *testing.T) {
		f := setup(t)
		_, err := f.workflow.Create(ctx, f.user.ID, requests.CreateInput{Type: "clock_in", Date: "2024-03-04", Time: "09:00:00", Reason: "x"})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("duplicate pending request", func(t *testing.T) {
		f := setup(t)
		f.create(t, "clock_in", "2024-03-04", "09:00")

		_, err := f.workflow.Create(ctx, f.user.ID, requests.CreateInput{
			Type: "clock_in", Date: "2024-03-04", Time: "09:15", Reason: "again",
		})
		if !errors.Is(err, requests.ErrDuplicatePendingRequest) {
			t.Fatalf("expected ErrDuplicatePendingRequest, got %v", err)
		}

		f.create(t, "clock_out", "2024-03-04", "17:00")
		f.create(t, "clock_in", "2024-03-03", "09:00")
	})

	t.Run("notifies active admins", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_in", "2024-03-04", "09:00")
		list, err := f.notes.List(ctx, f.admin.ID, notifications.ListFilter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 1 || list[0].Type != models.NotifyClockRequest || list[0].RelatedID == nil || *list[0].RelatedID != req.ID {
			t.Fatalf("unexpected admin notifications %+v", list)
		}
	})
}

func TestReview(t *testing.T) {
	ctx := context.Background()

	t.Run("approve clock in opens a session at the requested time", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_in", "2024-03-04", "09:00")

		got, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve})
		if err != nil {
			t.Fatalf("Review: %v", err)
		}
		if got.Status != models.RequestApproved || got.ReviewedAt == nil {
			t.Fatalf("unexpected request %+v", got)
		}

		st, err := f.ledger.Status(ctx, f.user.ID)
		if err != nil || !st.ClockedIn {
			t.Fatalf("expected open session, got %+v (%v)", st, err)
		}
		if !st.Record.ClockIn.Equal(testutil.At(2024, time.March, 4, 9, 0)) {
			t.Fatalf("unexpected clock in %s", st.Record.ClockIn)
		}
		if st.Record.ModifiedBy == nil || *st.Record.ModifiedBy != f.admin.ID {
			t.Fatalf("expected modified_by admin")
		}
		if !strings.Contains(st.Record.Notes, "#") {
			t.Fatalf("expected annotation, got %q", st.Record.Notes)
		}
	})

	t.Run("approve clock out closes the open session", func(t *testing.T) {
		f := setup(t)
		testutil.CreateRecord(t, f.db, f.user.ID, testutil.DefaultLocation, testutil.At(2024, time.March, 4, 9, 0), nil, 30)
		req := f.create(t, "clock_out", "2024-03-04", "17:30")

		if _, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve}); err != nil {
			t.Fatalf("Review: %v", err)
		}
		recs, err := f.ledger.Records(ctx, f.user.ID, ledger.Range{})
		if err != nil {
			t.Fatalf("Records: %v", err)
		}
		if len(recs) != 1 || recs[0].ClockOut == nil {
			t.Fatalf("expected one closed session, got %+v", recs)
		}
		if !recs[0].ClockOut.Equal(testutil.At(2024, time.March, 4, 17, 30)) || recs[0].WorkedHours != 8 {
			t.Fatalf("unexpected session %+v", recs[0])
		}
	})

	t.Run("approve clock out under four hours resolves a zero break", func(t *testing.T) {
		f := setup(t)
		testutil.CreateRecord(t, f.db, f.user.ID, testutil.DefaultLocation, testutil.At(2024, time.March, 4, 9, 0), nil, 30)
		req := f.create(t, "clock_out", "2024-03-04", "11:00")

		if _, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve}); err != nil {
			t.Fatalf("Review: %v", err)
		}
		recs, err := f.ledger.Records(ctx, f.user.ID, ledger.Range{})
		if err != nil || len(recs) != 1 {
			t.Fatalf("expected one session, got %+v (%v)", recs, err)
		}
		if recs[0].BreakMinutes != 0 || recs[0].WorkedHours != 2 {
			t.Fatalf("expected stored 30 min break replaced by 0 and 2h worked, got %d / %v", recs[0].BreakMinutes, recs[0].WorkedHours)
		}
	})

	t.Run("approve clock out without open session synthesizes eight hours", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_out", "2024-03-04", "17:00")

		if _, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve}); err != nil {
			t.Fatalf("Review: %v", err)
		}
		recs, err := f.ledger.Records(ctx, f.user.ID, ledger.Range{})
		if err != nil || len(recs) != 1 {
			t.Fatalf("expected one session, got %+v (%v)", recs, err)
		}
		rec := recs[0]
		if rec.ClockOut == nil || rec.ClockOut.Sub(rec.ClockIn) != 8*time.Hour {
			t.Fatalf("expected an 8h span, got %+v", rec)
		}
		if !strings.Contains(rec.Notes, "auto-generated") {
			t.Fatalf("expected auto-generated annotation, got %q", rec.Notes)
		}
	})

	t.Run("reject notifies requester with admin note", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_in", "2024-03-04", "09:00")

		if _, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Reject, AdminNote: "no record of shift"}); err != nil {
			t.Fatalf("Review: %v", err)
		}
		list, err := f.notes.List(ctx, f.user.ID, notifications.ListFilter{})
		if err != nil || len(list) != 1 {
			t.Fatalf("expected one notification, got %+v (%v)", list, err)
		}
		if list[0].Type != models.NotifyClockRequestRejected || !strings.Contains(list[0].Message, "no record of shift") {
			t.Fatalf("unexpected notification %+v", list[0])
		}
		if open, _ := f.ledger.IsClockedIn(ctx, f.user.ID); open {
			t.Fatalf("rejection must not touch the ledger")
		}
	})

	t.Run("already reviewed leaves request unchanged", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_in", "2024-03-04", "09:00")
		first, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Reject, AdminNote: "first"})
		if err != nil {
			t.Fatalf("Review: %v", err)
		}

		f.clock.Advance(time.Hour)
		_, err = f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve, AdminNote: "second"})
		if !errors.Is(err, requests.ErrAlreadyReviewed) {
			t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
		}

		var stored models.ClockRequest
		if err := f.db.First(&stored, req.ID).Error; err != nil {
			t.Fatalf("load: %v", err)
		}
		if stored.Status != models.RequestRejected || stored.AdminNote != "first" || !stored.ReviewedAt.Equal(*first.ReviewedAt) {
			t.Fatalf("request changed after second review: %+v", stored)
		}
	})

	t.Run("clock in approval with open session rolls back", func(t *testing.T) {
		f := setup(t)
		if _, err := f.ledger.ClockIn(ctx, f.user.ID, ""); err != nil {
			t.Fatalf("ClockIn: %v", err)
		}
		req := f.create(t, "clock_in", "2024-03-04", "09:00")

		_, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve})
		if !errors.Is(err, ledger.ErrAlreadyClockedIn) {
			t.Fatalf("expected ErrAlreadyClockedIn, got %v", err)
		}

		var stored models.ClockRequest
		if err := f.db.First(&stored, req.ID).Error; err != nil {
			t.Fatalf("load: %v", err)
		}
		if stored.Status != models.RequestPending || stored.AdminID != nil {
			t.Fatalf("expected request to stay pending, got %+v", stored)
		}
		var sessions, notices int64
		f.db.Model(&models.ClockRecord{}).Where("user_id = ?", f.user.ID).Count(&sessions)
		f.db.Model(&models.Notification{}).Where("user_id = ?", f.user.ID).Count(&notices)
		if sessions != 1 || notices != 0 {
			t.Fatalf("expected no partial writes, got %d sessions and %d notifications", sessions, notices)
		}
	})

	t.Run("missing request and bad action", func(t *testing.T) {
		f := setup(t)
		if _, err := f.workflow.Review(ctx, 999, f.admin.ID, requests.ReviewInput{Action: requests.Approve}); !errors.Is(err, requests.ErrRequestNotFound) {
			t.Fatalf("expected ErrRequestNotFound, got %v", err)
		}
		if _, err := f.workflow.Review(ctx, 1, f.admin.ID, requests.ReviewInput{Action: "maybe"}); !errors.Is(err, requests.ErrInvalidAction) {
			t.Fatalf("expected ErrInvalidAction, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes pending request and its admin notification", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_in", "2024-03-04", "09:00")

		if err := f.workflow.Delete(ctx, req.ID, f.user.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		var reqs, notices int64
		f.db.Model(&models.ClockRequest{}).Count(&reqs)
		f.db.Model(&models.Notification{}).Where("related_id = ?", req.ID).Count(&notices)
		if reqs != 0 || notices != 0 {
			t.Fatalf("expected request and notification gone, got %d / %d", reqs, notices)
		}
	})

	t.Run("approved request cannot be deleted", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_out", "2024-03-04", "17:00")
		if _, err := f.workflow.Review(ctx, req.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve}); err != nil {
			t.Fatalf("Review: %v", err)
		}
		if err := f.workflow.Delete(ctx, req.ID, f.user.ID); !errors.Is(err, requests.ErrNotPending) {
			t.Fatalf("expected ErrNotPending, got %v", err)
		}
	})

	t.Run("other users cannot delete", func(t *testing.T) {
		f := setup(t)
		req := f.create(t, "clock_in", "2024-03-04", "09:00")
		if err := f.workflow.Delete(ctx, req.ID, f.admin.ID); !errors.Is(err, requests.ErrRequestNotFound) {
			t.Fatalf("expected ErrRequestNotFound, got %v", err)
		}
	})
}

func TestListAllOrdering(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	approved := f.create(t, "clock_in", "2024-03-01", "09:00")
	f.clock.Advance(time.Minute)
	rejected := f.create(t, "clock_in", "2024-03-02", "09:00")
	f.clock.Advance(time.Minute)
	pendingOld := f.create(t, "clock_in", "2024-03-03", "09:00")
	f.clock.Advance(time.Minute)
	pendingNew := f.create(t, "clock_out", "2024-03-03", "17:00")

	if _, err := f.workflow.Review(ctx, approved.ID, f.admin.ID, requests.ReviewInput{Action: requests.Approve}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.workflow.Review(ctx, rejected.ID, f.admin.ID, requests.ReviewInput{Action: requests.Reject}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	all, err := f.workflow.ListAll(ctx, requests.Filter{})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	want := []uint{pendingNew.ID, pendingOld.ID, approved.ID, rejected.ID}
	if len(all) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(all))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("position %d: expected request %d, got %d", i, id, all[i].ID)
		}
	}
	if all[0].Username != "alice" || all[2].AdminName == "" {
		t.Fatalf("expected joined names, got %+v", all[0])
	}

	pending, err := f.workflow.ListForUser(ctx, f.user.ID, requests.Filter{Status: models.RequestPending})
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != pendingNew.ID {
		t.Fatalf("unexpected pending list %+v", pending)
	}

	if _, err := f.workflow.ListAll(ctx, requests.Filter{Status: "archived"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}
