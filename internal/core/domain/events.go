package domain

import "time"

// UserRegisteredEvent represents the payload for skills.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	EmployeeID   string
	Department   string
	Role         Role
	RegisteredAt time.Time
	Metadata     map[string]any
}

// PasswordChangedEvent represents the payload for skills.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	Metadata  map[string]any
}

// PasswordResetRequestedEvent represents the payload for skills.user.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	MaskedDestination string
	RequestedAt       time.Time
	Metadata          map[string]any
}

// EmailChangedEvent represents the payload for skills.user.email.changed messages.
type EmailChangedEvent struct {
	EventID   string
	UserID    string
	OldEmail  string
	NewEmail  string
	ChangedAt time.Time
	Metadata  map[string]any
}

// RoleChangedEvent represents the payload for skills.user.role.changed messages.
type RoleChangedEvent struct {
	EventID   string
	UserID    string
	OldRole   Role
	NewRole   Role
	ChangedBy string
	ChangedAt time.Time
	Metadata  map[string]any
}

// AccountStatusChangedEvent represents the payload for skills.user.status.changed messages.
type AccountStatusChangedEvent struct {
	EventID   string
	UserID    string
	IsActive  bool
	ChangedBy string
	ChangedAt time.Time
	Metadata  map[string]any
}

// SkillsImportedEvent represents the payload for skills.skill.imported messages.
type SkillsImportedEvent struct {
	EventID    string
	UserID     string
	SkillIDs   []string
	ImportedAt time.Time
	Metadata   map[string]any
}

// TrainingReminderEvent represents the payload for skills.training.reminder messages.
type TrainingReminderEvent struct {
	EventID    string
	UserID     string
	TrainingID string
	Title      string
	StartDate  time.Time
	SentAt     time.Time
	Metadata   map[string]any
}
