// Package users administers accounts and authenticates them.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timeclock/internal/apperr"
	"timeclock/internal/auth"
	"timeclock/internal/civiltime"
	"timeclock/internal/database"
	"timeclock/internal/ledger"
	"timeclock/internal/logging"
	"timeclock/internal/models"
)

var (
	ErrUserNotFound       = apperr.NotFound("user_not_found", "user not found")
	ErrInvalidCredentials = apperr.Unauthorized("invalid_credentials", "invalid username or password")
	ErrDuplicateUser      = apperr.Conflict("duplicate_user", "username or email already exists")
	ErrLastActiveAdmin    = apperr.Conflict("last_active_admin", "cannot deactivate last active admin")
	ErrSelfDelete         = apperr.Conflict("self_delete", "cannot delete your own account")
	ErrSelfDeactivate     = apperr.Conflict("self_deactivate", "cannot deactivate your own account")
)

const MinPasswordLength = 4

// Actor is the admin performing a mutation.
type Actor struct {
	ID uint
	IP string
}

type Service struct {
	db     *gorm.DB
	clock  civiltime.Clock
	ledger *ledger.Ledger
	logger *slog.Logger
}

func New(db *gorm.DB, clock civiltime.Clock, l *ledger.Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, clock: clock, ledger: l, logger: logger}
}

func (s *Service) log(ctx context.Context, op string) *slog.Logger {
	return logging.FromContext(ctx, s.logger).With("service", "users", "operation", op)
}

// Authenticate checks credentials of an active user and stamps last_login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? AND status = ?", strings.TrimSpace(username), models.StatusActive).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.log(ctx, "authenticate").Warn("failed login", "username", user.Username)
		return models.User{}, ErrInvalidCredentials
	}

	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		return models.User{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now
	return user, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// UserView is a user with its current clock state.
type UserView struct {
	models.User
	IsClockedIn bool `json:"is_clocked_in"`
}

// List returns every user ordered by id.
func (s *Service) List(ctx context.Context) ([]UserView, error) {
	var list []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	open, err := s.ledger.OpenUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, 0, len(list))
	for _, u := range list {
		out = append(out, UserView{User: u, IsClockedIn: open[u.ID]})
	}
	return out, nil
}

// CreateInput describes a new account.
type CreateInput struct {
	Username string
	Password string
	Email    string
	FullName string
	Role     models.UserRole
	Status   models.UserStatus
}

func (in *CreateInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if in.Status == "" {
		in.Status = models.StatusActive
	}

	var fe apperr.FieldErrors
	if in.Username == "" {
		fe.Add("username", "username is required")
	}
	if len(in.Password) < MinPasswordLength {
		fe.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		fe.Add("email", "a valid email is required")
	}
	if in.FullName == "" {
		fe.Add("full_name", "full_name is required")
	}
	if !in.Role.Valid() {
		fe.Add("role", "role must be admin or user")
	}
	if !in.Status.Valid() {
		fe.Add("status", "status must be active or inactive")
	}
	return fe.Err()
}

// Create adds an account with the requested role and status.
func (s *Service) Create(ctx context.Context, in CreateInput, actor Actor) (models.User, error) {
	if err := in.normalize(); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, apperr.Internal("hash password", err)
	}
	user := models.User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         in.Role,
		Status:       in.Status,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(tx, 0, user.Username, user.Email); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateUser
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return database.WriteAudit(tx, database.AuditEntry{
			ActorID:  actor.ID,
			Action:   models.AuditCreate,
			Entity:   "users",
			EntityID: user.ID,
			New:      snapshot(user),
			IP:       actor.IP,
		})
	})
	if err != nil {
		return models.User{}, err
	}
	s.log(ctx, "create").Info("user created", "user_id", user.ID, "role", user.Role, "actor_id", actor.ID)
	return user, nil
}

// Register creates a regular active user.
func (s *Service) Register(ctx context.Context, in CreateInput, actor Actor) (models.User, error) {
	in.Role = models.RoleUser
	in.Status = models.StatusActive
	return s.Create(ctx, in, actor)
}

// UpdatePatch lists optional field changes. Nil means unchanged.
type UpdatePatch struct {
	Username *string
	Email    *string
	FullName *string
	Role     *models.UserRole
	Status   *models.UserStatus
	Password *string
}

func (p UpdatePatch) validate() error {
	var fe apperr.FieldErrors
	if p.Username != nil && strings.TrimSpace(*p.Username) == "" {
		fe.Add("username", "username must not be empty")
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(strings.TrimSpace(*p.Email)); err != nil {
			fe.Add("email", "a valid email is required")
		}
	}
	if p.FullName != nil && strings.TrimSpace(*p.FullName) == "" {
		fe.Add("full_name", "full_name must not be empty")
	}
	if p.Role != nil && !p.Role.Valid() {
		fe.Add("role", "role must be admin or user")
	}
	if p.Status != nil && !p.Status.Valid() {
		fe.Add("status", "status must be active or inactive")
	}
	if p.Password != nil && len(*p.Password) < MinPasswordLength {
		fe.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return fe.Err()
}

// Update applies patch to user id.
func (s *Service) Update(ctx context.Context, id uint, patch UpdatePatch, actor Actor) (models.User, error) {
	if err := patch.validate(); err != nil {
		return models.User{}, err
	}
	var hash string
	if patch.Password != nil {
		var err error
		if hash, err = auth.HashPassword(*patch.Password); err != nil {
			return models.User{}, apperr.Internal("hash password", err)
		}
	}

	var updated models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, id)
		if err != nil {
			return err
		}
		next := user
		if patch.Username != nil {
			next.Username = strings.TrimSpace(*patch.Username)
		}
		if patch.Email != nil {
			next.Email = strings.TrimSpace(*patch.Email)
		}
		if patch.FullName != nil {
			next.FullName = strings.TrimSpace(*patch.FullName)
		}
		if patch.Role != nil {
			next.Role = *patch.Role
		}
		if patch.Status != nil {
			next.Status = *patch.Status
		}
		if hash != "" {
			next.PasswordHash = hash
		}

		if id == actor.ID && next.Status == models.StatusInactive && user.Status == models.StatusActive {
			return ErrSelfDeactivate
		}
		if err := guardLastAdmin(tx, user, next); err != nil {
			return err
		}
		if next.Username != user.Username || next.Email != user.Email {
			if err := ensureUnique(tx, id, next.Username, next.Email); err != nil {
				return err
			}
		}

		if err := tx.Model(&user).Updates(map[string]any{
			"username":      next.Username,
			"email":         next.Email,
			"full_name":     next.FullName,
			"role":          next.Role,
			"status":        next.Status,
			"password_hash": next.PasswordHash,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateUser
			}
			return fmt.Errorf("update user: %w", err)
		}

		after := snapshot(next)
		if hash != "" {
			after["password_changed"] = true
		}
		if err := database.WriteAudit(tx, database.AuditEntry{
			ActorID:  actor.ID,
			Action:   models.AuditUpdate,
			Entity:   "users",
			EntityID: id,
			Old:      snapshot(user),
			New:      after,
			IP:       actor.IP,
		}); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	s.log(ctx, "update").Info("user updated", "user_id", id, "actor_id", actor.ID)
	return updated, nil
}

// SetStatus activates or deactivates user id.
func (s *Service) SetStatus(ctx context.Context, id uint, status models.UserStatus, actor Actor) (models.User, error) {
	return s.Update(ctx, id, UpdatePatch{Status: &status}, actor)
}

// Delete deactivates user id. Accounts are never removed because clock
// records and audit entries reference them.
func (s *Service) Delete(ctx context.Context, id uint, actor Actor) error {
	if id == actor.ID {
		return ErrSelfDelete
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, id)
		if err != nil {
			return err
		}
		next := user
		next.Status = models.StatusInactive
		if err := guardLastAdmin(tx, user, next); err != nil {
			return err
		}
		if err := tx.Model(&user).Update("status", models.StatusInactive).Error; err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		return database.WriteAudit(tx, database.AuditEntry{
			ActorID:  actor.ID,
			Action:   models.AuditDelete,
			Entity:   "users",
			EntityID: id,
			Old:      snapshot(user),
			New:      snapshot(next),
			IP:       actor.IP,
		})
	})
	if err != nil {
		return err
	}
	s.log(ctx, "delete").Info("user deactivated", "user_id", id, "actor_id", actor.ID)
	return nil
}

// UserRecords is an admin view of one user's sessions.
type UserRecords struct {
	User       models.User
	Records    []ledger.RecordView
	TotalHours float64
}

func (s *Service) Records(ctx context.Context, id uint, r ledger.Range) (UserRecords, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return UserRecords{}, err
	}
	recs, err := s.ledger.Records(ctx, id, r)
	if err != nil {
		return UserRecords{}, err
	}
	out := UserRecords{User: user, Records: recs}
	for _, rec := range recs {
		out.TotalHours += rec.WorkedHours
	}
	return out, nil
}

// guardLastAdmin refuses a change that takes the last active admin out of
// the active admin set.
func guardLastAdmin(tx *gorm.DB, before, after models.User) error {
	if !before.IsActiveAdmin() || after.IsActiveAdmin() {
		return nil
	}
	var admins []models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("role = ? AND status = ? AND id <> ?", models.RoleAdmin, models.StatusActive, before.ID).
		Find(&admins).Error; err != nil {
		return fmt.Errorf("count active admins: %w", err)
	}
	if len(admins) == 0 {
		return ErrLastActiveAdmin
	}
	return nil
}

func ensureUnique(tx *gorm.DB, exceptID uint, username, email string) error {
	var count int64
	if err := tx.Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", username, email, exceptID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check duplicate user: %w", err)
	}
	if count > 0 {
		return ErrDuplicateUser
	}
	return nil
}

func lockUser(tx *gorm.DB, id uint) (models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func snapshot(u models.User) map[string]any {
	return map[string]any{
		"username":  u.Username,
		"email":     u.Email,
		"full_name": u.FullName,
		"role":      u.Role,
		"status":    u.Status,
	}
}
