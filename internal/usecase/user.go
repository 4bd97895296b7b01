package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/infra/logger"
	"github.com/arklim/skills-audit/internal/infra/security"
	"github.com/arklim/skills-audit/internal/repository"
)

// UserFilter narrows ListUsers. Empty fields are ignored.
type UserFilter struct {
	Department      string
	Role            domain.Role
	IncludeInactive bool
}

// UserPage is one page of profiles ordered by last name.
type UserPage struct {
	Users      []domain.Profile `json:"users"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// UserService manages employee profiles.
type UserService struct {
	store       port.DocumentStore
	events      port.EventPublisher
	departments []string
	logger      *zap.Logger
	now         func() time.Time
}

// NewUserService builds the service. An empty departments list falls back to domain.Departments.
func NewUserService(store port.DocumentStore, events port.EventPublisher, departments []string, log *zap.Logger) *UserService {
	if len(departments) == 0 {
		departments = domain.Departments
	}
	return &UserService{
		store:       store,
		events:      events,
		departments: departments,
		logger:      logger.OrNop(log),
		now:         time.Now,
	}
}

// WithClock overrides the service clock.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	if now != nil {
		s.now = now
	}
	return s
}

// Departments returns the configured department names.
func (s *UserService) Departments() []string {
	out := make([]string, len(s.departments))
	copy(out, s.departments)
	return out
}

func (s *UserService) GetUser(ctx context.Context, uid string) (domain.Profile, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.Profile{}, ErrProfileNotFound
	}
	doc, err := s.store.Get(ctx, domain.CollectionUsers, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Profile{}, ErrProfileNotFound
		}
		return domain.Profile{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return domain.ProfileFromDocument(doc), nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return s.findOne(ctx, domain.FieldEmail, security.NormalizeEmail(email))
}

func (s *UserService) GetUserByEmployeeID(ctx context.Context, employeeID string) (domain.Profile, error) {
	return s.findOne(ctx, domain.FieldEmployeeID, security.NormalizeEmployeeID(employeeID))
}

func (s *UserService) findOne(ctx context.Context, field, value string) (domain.Profile, error) {
	if value == "" {
		return domain.Profile{}, ErrProfileNotFound
	}
	doc, err := document.First(ctx, s.store, document.Query{
		Collection: domain.CollectionUsers,
		Filters:    []document.Filter{document.Eq(field, value)},
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("find user by %s: %w", field, err)
	}
	if doc == nil {
		return domain.Profile{}, ErrProfileNotFound
	}
	return domain.ProfileFromDocument(doc), nil
}

// UpdateProfile applies a self-service patch. Email, role and active flag are
// changed through their own operations and are rejected here.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, patch domain.ProfilePatch) (domain.Profile, error) {
	verr := &ValidationError{}
	if patch.Email != nil {
		verr.Add("email", "Email is changed through the account settings")
	}
	if patch.Role != nil {
		verr.Add("role", "Role cannot be changed here")
	}
	if patch.IsActive != nil {
		verr.Add("isActive", "Account status cannot be changed here")
	}
	if patch.FirstName != nil {
		trimmed := strings.TrimSpace(*patch.FirstName)
		patch.FirstName = &trimmed
		if trimmed == "" {
			verr.Add("firstName", "First name is required")
		}
	}
	if patch.LastName != nil {
		trimmed := strings.TrimSpace(*patch.LastName)
		patch.LastName = &trimmed
		if trimmed == "" {
			verr.Add("lastName", "Last name is required")
		}
	}
	if patch.Department != nil && !s.knownDepartment(*patch.Department) {
		verr.Add("department", "Unknown department")
	}
	if patch.PhoneNumber != nil && *patch.PhoneNumber != "" && !security.IsValidPhoneNumber(*patch.PhoneNumber) {
		verr.Add("phoneNumber", "Invalid phone number format")
	}
	if err := verr.OrNil(); err != nil {
		return domain.Profile{}, err
	}

	now := s.now().UTC()
	patch.UpdatedAt = &now
	if err := s.store.Update(ctx, domain.CollectionUsers, uid, patch.Fields()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Profile{}, ErrProfileNotFound
		}
		return domain.Profile{}, fmt.Errorf("update profile %s: %w", uid, err)
	}
	if patch.PhoneNumber != nil {
		logger.Enrich(ctx, s.logger).Info("profile phone number changed",
			zap.String("user_id", uid),
			zap.String("phone", logger.MaskPhone(*patch.PhoneNumber)),
		)
	}
	return s.GetUser(ctx, uid)
}

func (s *UserService) knownDepartment(name string) bool {
	for _, d := range s.departments {
		if d == name {
			return true
		}
	}
	return false
}

// ListUsers returns one page of profiles. Inactive profiles are excluded unless requested.
func (s *UserService) ListUsers(ctx context.Context, filter UserFilter, pageSize int, cursorToken string) (UserPage, error) {
	cursor, err := document.DecodeCursor(cursorToken)
	if err != nil {
		verr := &ValidationError{}
		verr.Add("cursor", "Invalid page cursor")
		return UserPage{}, verr
	}

	q := document.Query{
		Collection: domain.CollectionUsers,
		OrderBy:    []document.Order{document.Asc(domain.FieldLastName)},
		StartAfter: cursor,
	}
	if filter.Department != "" {
		q.Filters = append(q.Filters, document.Eq(domain.FieldDepartment, filter.Department))
	}
	if filter.Role != "" {
		q.Filters = append(q.Filters, document.Eq(domain.FieldRole, string(filter.Role)))
	}
	if !filter.IncludeInactive {
		q.Filters = append(q.Filters, document.Eq(domain.FieldIsActive, true))
	}

	page, err := document.Paginate(ctx, s.store, q, pageSize)
	if err != nil {
		if errors.Is(err, document.ErrInvalidCursor) {
			verr := &ValidationError{}
			verr.Add("cursor", "Invalid page cursor")
			return UserPage{}, verr
		}
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}

	out := UserPage{Users: make([]domain.Profile, 0, len(page.Documents))}
	for _, doc := range page.Documents {
		out.Users = append(out.Users, domain.ProfileFromDocument(doc))
	}
	out.NextCursor = page.Next.Encode()
	return out, nil
}

// UpdateRole changes the role of uid. Administrators cannot change their own role.
func (s *UserService) UpdateRole(ctx context.Context, actorID, uid, role string) error {
	newRole, ok := domain.ParseRole(role)
	if !ok {
		verr := &ValidationError{}
		verr.Add("role", "Unknown role")
		return verr
	}
	if actorID == uid {
		return ErrSelfModification
	}

	profile, err := s.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	oldRole := profile.EffectiveRole()
	if oldRole == newRole {
		return nil
	}

	now := s.now().UTC()
	patch := domain.ProfilePatch{Role: &newRole, UpdatedAt: &now}
	if err := s.store.Update(ctx, domain.CollectionUsers, uid, patch.Fields()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("update role of %s: %w", uid, err)
	}

	log := logger.Enrich(ctx, s.logger)
	log.Info("role changed",
		zap.String("user_id", uid),
		zap.String("old_role", string(oldRole)),
		zap.String("new_role", string(newRole)),
		zap.String("changed_by", actorID),
	)
	if s.events != nil {
		event := domain.RoleChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    uid,
			OldRole:   oldRole,
			NewRole:   newRole,
			ChangedBy: actorID,
			ChangedAt: now,
		}
		if err := s.events.PublishRoleChanged(ctx, event); err != nil {
			log.Warn("publish role changed event failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	return nil
}

// Activate re-enables a deactivated profile.
func (s *UserService) Activate(ctx context.Context, actorID, uid string) error {
	return s.setActive(ctx, actorID, uid, true)
}

// Deactivate soft-deletes a profile; the document and its records are kept.
func (s *UserService) Deactivate(ctx context.Context, actorID, uid string) error {
	return s.setActive(ctx, actorID, uid, false)
}

func (s *UserService) setActive(ctx context.Context, actorID, uid string, active bool) error {
	if actorID == uid {
		return ErrSelfModification
	}

	now := s.now().UTC()
	patch := domain.ProfilePatch{IsActive: &active, UpdatedAt: &now}
	if err := s.store.Update(ctx, domain.CollectionUsers, uid, patch.Fields()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("set active=%t for %s: %w", active, uid, err)
	}

	log := logger.Enrich(ctx, s.logger)
	log.Info("account status changed", zap.String("user_id", uid), zap.Bool("active", active), zap.String("changed_by", actorID))
	if s.events != nil {
		event := domain.AccountStatusChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    uid,
			IsActive:  active,
			ChangedBy: actorID,
			ChangedAt: now,
		}
		if err := s.events.PublishAccountStatusChanged(ctx, event); err != nil {
			log.Warn("publish account status event failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	return nil
}

// IsUserActive reports false for unknown users and on lookup failures.
func (s *UserService) IsUserActive(ctx context.Context, uid string) bool {
	profile, err := s.GetUser(ctx, uid)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			logger.Enrich(ctx, s.logger).Warn("check user active", zap.String("user_id", uid), zap.Error(err))
		}
		return false
	}
	return profile.IsActive
}

// Stats counts the records owned by uid and reports how complete the profile is.
func (s *UserService) Stats(ctx context.Context, uid string) (domain.UserStats, error) {
	profile, err := s.GetUser(ctx, uid)
	if err != nil {
		return domain.UserStats{}, err
	}

	stats := domain.UserStats{ProfileCompletion: profile.Completion()}
	counts := []struct {
		collection string
		dst        *int
	}{
		{domain.CollectionSkills, &stats.TotalSkills},
		{domain.CollectionTraining, &stats.TotalTraining},
		{domain.CollectionQualifications, &stats.TotalQualifications},
	}
	for _, c := range counts {
		n, err := countDocuments(ctx, s.store, document.Query{
			Collection: c.collection,
			Filters:    []document.Filter{document.Eq(domain.FieldUserID, uid)},
		})
		if err != nil {
			return domain.UserStats{}, fmt.Errorf("count %s for %s: %w", c.collection, uid, err)
		}
		*c.dst = n
	}
	return stats, nil
}
