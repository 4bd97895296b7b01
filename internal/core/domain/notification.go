package domain

import (
	"time"

	"github.com/arklim/skills-audit/internal/core/document"
)

// NotificationKind classifies in-app notifications.
type NotificationKind string

const (
	NotificationTrainingReminder NotificationKind = "training_reminder"
	NotificationPasswordReset    NotificationKind = "password_reset"
)

// Notification document fields.
const (
	FieldKind      = "kind"
	FieldBody      = "body"
	FieldRelatedID = "relatedId"
	FieldRead      = "read"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        string
	UserID    string
	Kind      NotificationKind
	Title     string
	Body      string
	RelatedID string
	Read      bool
	CreatedAt time.Time
}

// ToDocument renders the notification document.
func (n Notification) ToDocument() map[string]any {
	return map[string]any{
		FieldID:        n.ID,
		FieldUserID:    n.UserID,
		FieldKind:      string(n.Kind),
		FieldTitle:     n.Title,
		FieldBody:      n.Body,
		FieldRelatedID: n.RelatedID,
		FieldRead:      n.Read,
		FieldCreatedAt: n.CreatedAt,
	}
}

// NotificationFromDocument decodes a notifications document.
func NotificationFromDocument(doc *document.Document) Notification {
	return Notification{
		ID:        doc.ID,
		UserID:    doc.String(FieldUserID),
		Kind:      NotificationKind(doc.String(FieldKind)),
		Title:     doc.String(FieldTitle),
		Body:      doc.String(FieldBody),
		RelatedID: doc.String(FieldRelatedID),
		Read:      doc.Bool(FieldRead),
		CreatedAt: doc.Time(FieldCreatedAt),
	}
}

// UserStats aggregates a user's records.
type UserStats struct {
	TotalSkills         int `json:"totalSkills"`
	TotalTraining       int `json:"totalTraining"`
	TotalQualifications int `json:"totalQualifications"`
	ProfileCompletion   int `json:"profileCompletion"`
}
