package domain

import (
	"strings"
	"time"

	"github.com/arklim/skills-audit/internal/core/document"
)

// Role enumerates the access tiers of the application.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// AllRoles lists every known role in descending privilege order.
var AllRoles = []Role{RoleAdmin, RoleManager, RoleEmployee}

// ParseRole normalises the supplied value and reports whether it names a known role.
func ParseRole(value string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return r, true
	default:
		return "", false
	}
}

// Privileged reports whether the role may act on records owned by other users.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// Document collections.
const (
	CollectionUsers            = "users"
	CollectionSkills           = "skills"
	CollectionTraining         = "training"
	CollectionNotifications    = "notifications"
	CollectionQualifications   = "qualifications"
	CollectionIdentityAccounts = "identity_accounts"
)

// Profile document fields.
const (
	FieldID           = "id"
	FieldFirstName    = "firstName"
	FieldLastName     = "lastName"
	FieldEmail        = "email"
	FieldEmployeeID   = "employeeId"
	FieldDepartment   = "department"
	FieldRole         = "role"
	FieldIsActive     = "isActive"
	FieldPhoneNumber  = "phoneNumber"
	FieldPosition     = "position"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
	FieldLastActivity = "lastActivity"
)

// Departments known to the organisation.
var Departments = []string{
	"National Treasury",
	"Finance",
	"Human Resources",
	"Information Technology",
	"Operations",
	"Legal",
	"Audit",
}

// Profile is the application-owned record of an employee. Its ID equals the
// identity provider account id it was created alongside.
type Profile struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	EmployeeID   string
	Department   string
	Role         Role
	IsActive     bool
	PhoneNumber  *string
	Position     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity *time.Time
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// EffectiveRole returns the stored role or employee when none was recorded.
func (p Profile) EffectiveRole() Role {
	if p.Role == "" {
		return RoleEmployee
	}
	return p.Role
}

// Completion returns the share of the eight profile attributes that are filled in, as a rounded percentage.
func (p Profile) Completion() int {
	const total = 8
	filled := 0
	for _, v := range []string{p.FirstName, p.LastName, p.Email, p.EmployeeID, p.Department, deref(p.PhoneNumber), deref(p.Position)} {
		if v != "" {
			filled++
		}
	}
	if !p.CreatedAt.IsZero() {
		filled++
	}
	return (filled*100 + total/2) / total
}

// ProfilePatch lists the profile attributes a caller may change. Nil fields are left untouched.
type ProfilePatch struct {
	FirstName    *string
	LastName     *string
	Email        *string
	Department   *string
	PhoneNumber  *string
	Position     *string
	Role         *Role
	IsActive     *bool
	UpdatedAt    *time.Time
	LastActivity *time.Time
}

// Fields renders the patch as a partial document update.
func (p ProfilePatch) Fields() map[string]any {
	out := make(map[string]any)
	putString(out, FieldFirstName, p.FirstName)
	putString(out, FieldLastName, p.LastName)
	putString(out, FieldEmail, p.Email)
	putString(out, FieldDepartment, p.Department)
	putString(out, FieldPhoneNumber, p.PhoneNumber)
	putString(out, FieldPosition, p.Position)
	if p.Role != nil {
		out[FieldRole] = string(*p.Role)
	}
	if p.IsActive != nil {
		out[FieldIsActive] = *p.IsActive
	}
	putTime(out, FieldUpdatedAt, p.UpdatedAt)
	putTime(out, FieldLastActivity, p.LastActivity)
	return out
}

// Empty reports whether the patch names no fields.
func (p ProfilePatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Registration carries the data needed to create an account and its profile.
type Registration struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	EmployeeID  string
	Department  string
	PhoneNumber *string
	Position    *string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func putString(dst map[string]any, key string, v *string) {
	if v != nil {
		dst[key] = *v
	}
}

func putTime(dst map[string]any, key string, v *time.Time) {
	if v != nil {
		dst[key] = v.UTC()
	}
}

// ToDocument renders the full profile document.
func (p Profile) ToDocument() map[string]any {
	return map[string]any{
		FieldID:           p.ID,
		FieldFirstName:    p.FirstName,
		FieldLastName:     p.LastName,
		FieldEmail:        p.Email,
		FieldEmployeeID:   p.EmployeeID,
		FieldDepartment:   p.Department,
		FieldRole:         string(p.EffectiveRole()),
		FieldIsActive:     p.IsActive,
		FieldPhoneNumber:  p.PhoneNumber,
		FieldPosition:     p.Position,
		FieldCreatedAt:    p.CreatedAt,
		FieldUpdatedAt:    p.UpdatedAt,
		FieldLastActivity: p.LastActivity,
	}
}

// ProfileFromDocument decodes a users document. Profiles written before the
// active flag existed count as active.
func ProfileFromDocument(doc *document.Document) Profile {
	id := doc.String(FieldID)
	if id == "" {
		id = doc.ID
	}
	active := true
	if doc.Has(FieldIsActive) {
		active = doc.Bool(FieldIsActive)
	}
	return Profile{
		ID:           id,
		FirstName:    doc.String(FieldFirstName),
		LastName:     doc.String(FieldLastName),
		Email:        doc.String(FieldEmail),
		EmployeeID:   doc.String(FieldEmployeeID),
		Department:   doc.String(FieldDepartment),
		Role:         Role(doc.String(FieldRole)),
		IsActive:     active,
		PhoneNumber:  doc.OptionalString(FieldPhoneNumber),
		Position:     doc.OptionalString(FieldPosition),
		CreatedAt:    doc.Time(FieldCreatedAt),
		UpdatedAt:    doc.Time(FieldUpdatedAt),
		LastActivity: doc.OptionalTime(FieldLastActivity),
	}
}
