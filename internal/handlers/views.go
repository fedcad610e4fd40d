package handlers

import (
	"timeclock/internal/civiltime"
	"timeclock/internal/ledger"
	"timeclock/internal/models"
	"timeclock/internal/requests"
	"timeclock/internal/users"
)

type userView struct {
	ID          uint              `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	FullName    string            `json:"full_name"`
	Role        models.UserRole   `json:"role"`
	Status      models.UserStatus `json:"status"`
	LastLogin   string            `json:"last_login,omitempty"`
	CreatedAt   string            `json:"created_at"`
	IsClockedIn *bool             `json:"is_clocked_in,omitempty"`
}

func newUserView(clock civiltime.Clock, u models.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Status:    u.Status,
		LastLogin: clock.FormatPtr(u.LastLogin),
		CreatedAt: clock.Format(u.CreatedAt),
	}
}

func newUserListView(clock civiltime.Clock, list []users.UserView) []userView {
	out := make([]userView, 0, len(list))
	for _, u := range list {
		v := newUserView(clock, u.User)
		clockedIn := u.IsClockedIn
		v.IsClockedIn = &clockedIn
		out = append(out, v)
	}
	return out
}

type recordView struct {
	ID           uint                 `json:"id"`
	UserID       uint                 `json:"user_id"`
	ClockIn      string               `json:"clock_in"`
	ClockOut     *string              `json:"clock_out"`
	Status       models.SessionStatus `json:"status"`
	BreakMinutes int                  `json:"break_minutes"`
	Location     string               `json:"location"`
	Notes        string               `json:"notes"`
	ModifiedBy   *uint                `json:"modified_by"`
	HoursWorked  *float64             `json:"hours_worked,omitempty"`
}

func newRecordView(clock civiltime.Clock, rec models.ClockRecord) recordView {
	v := recordView{
		ID:           rec.ID,
		UserID:       rec.UserID,
		ClockIn:      clock.Format(rec.ClockIn),
		Status:       rec.Status(),
		BreakMinutes: rec.BreakMinutes,
		Location:     rec.Location,
		Notes:        rec.Notes,
		ModifiedBy:   rec.ModifiedBy,
	}
	if rec.ClockOut != nil {
		out := clock.Format(*rec.ClockOut)
		v.ClockOut = &out
	}
	return v
}

func newRecordViews(clock civiltime.Clock, recs []ledger.RecordView) []recordView {
	out := make([]recordView, 0, len(recs))
	for _, r := range recs {
		v := newRecordView(clock, r.ClockRecord)
		hours := ledger.Round2(r.WorkedHours)
		v.HoursWorked = &hours
		out = append(out, v)
	}
	return out
}

type requestView struct {
	ID          uint                 `json:"id"`
	UserID      uint                 `json:"user_id"`
	Username    string               `json:"username,omitempty"`
	FullName    string               `json:"full_name,omitempty"`
	RequestType models.RequestType   `json:"request_type"`
	RequestDate string               `json:"request_date"`
	RequestTime string               `json:"request_time"`
	Reason      string               `json:"reason"`
	Status      models.RequestStatus `json:"status"`
	AdminID     *uint                `json:"admin_id"`
	AdminName   string               `json:"admin_name,omitempty"`
	AdminNote   string               `json:"admin_note"`
	ReviewedAt  string               `json:"reviewed_at,omitempty"`
	CreatedAt   string               `json:"created_at"`
}

func newRequestView(clock civiltime.Clock, r models.ClockRequest) requestView {
	return requestView{
		ID:          r.ID,
		UserID:      r.UserID,
		RequestType: r.Type,
		RequestDate: r.RequestDate,
		RequestTime: r.RequestTime,
		Reason:      r.Reason,
		Status:      r.Status,
		AdminID:     r.AdminID,
		AdminNote:   r.AdminNote,
		ReviewedAt:  clock.FormatPtr(r.ReviewedAt),
		CreatedAt:   clock.Format(r.CreatedAt),
	}
}

func newRequestViews(clock civiltime.Clock, list []requests.RequestView) []requestView {
	out := make([]requestView, 0, len(list))
	for _, r := range list {
		v := newRequestView(clock, r.ClockRequest)
		v.Username = r.Username
		v.FullName = r.FullName
		v.AdminName = r.AdminName
		out = append(out, v)
	}
	return out
}

type notificationView struct {
	ID        uint                    `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	RelatedID *uint                   `json:"related_id"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt string                  `json:"created_at"`
	ReadAt    string                  `json:"read_at,omitempty"`
}

func newNotificationViews(clock civiltime.Clock, list []models.Notification) []notificationView {
	out := make([]notificationView, 0, len(list))
	for _, n := range list {
		out = append(out, notificationView{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			RelatedID: n.RelatedID,
			IsRead:    n.IsRead,
			CreatedAt: clock.Format(n.CreatedAt),
			ReadAt:    clock.FormatPtr(n.ReadAt),
		})
	}
	return out
}
