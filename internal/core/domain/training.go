package domain

import (
	"time"

	"github.com/arklim/skills-audit/internal/core/document"
)

// TrainingStatus tracks progress through a training course.
type TrainingStatus string

const (
	TrainingPlanned    TrainingStatus = "Planned"
	TrainingInProgress TrainingStatus = "In Progress"
	TrainingCompleted  TrainingStatus = "Completed"
	TrainingCancelled  TrainingStatus = "Cancelled"
)

// TrainingStatuses lists every status.
var TrainingStatuses = []TrainingStatus{TrainingPlanned, TrainingInProgress, TrainingCompleted, TrainingCancelled}

// Valid reports whether s is a known status.
func (s TrainingStatus) Valid() bool {
	for _, known := range TrainingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Training document fields.
const (
	FieldTitle          = "title"
	FieldProvider       = "provider"
	FieldStatus         = "status"
	FieldStartDate      = "startDate"
	FieldEndDate        = "endDate"
	FieldDuration       = "duration"
	FieldCertificateURL = "certificateUrl"
)

// Training is a course attended or planned by a user. Duration is in hours.
type Training struct {
	ID             string
	UserID         string
	Title          string
	Provider       string
	Category       string
	Status         TrainingStatus
	StartDate      *time.Time
	EndDate        *time.Time
	Duration       int
	CertificateURL *string
	Description    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ToDocument renders the full training document.
func (t Training) ToDocument() map[string]any {
	return map[string]any{
		FieldID:             t.ID,
		FieldUserID:         t.UserID,
		FieldTitle:          t.Title,
		FieldProvider:       t.Provider,
		FieldCategory:       t.Category,
		FieldStatus:         string(t.Status),
		FieldStartDate:      t.StartDate,
		FieldEndDate:        t.EndDate,
		FieldDuration:       t.Duration,
		FieldCertificateURL: t.CertificateURL,
		FieldDescription:    t.Description,
		FieldCreatedAt:      t.CreatedAt,
		FieldUpdatedAt:      t.UpdatedAt,
	}
}

// TrainingFromDocument decodes a training document.
func TrainingFromDocument(doc *document.Document) Training {
	id := doc.String(FieldID)
	if id == "" {
		id = doc.ID
	}
	return Training{
		ID:             id,
		UserID:         doc.String(FieldUserID),
		Title:          doc.String(FieldTitle),
		Provider:       doc.String(FieldProvider),
		Category:       doc.String(FieldCategory),
		Status:         TrainingStatus(doc.String(FieldStatus)),
		StartDate:      doc.OptionalTime(FieldStartDate),
		EndDate:        doc.OptionalTime(FieldEndDate),
		Duration:       int(doc.Int(FieldDuration)),
		CertificateURL: doc.OptionalString(FieldCertificateURL),
		Description:    doc.OptionalString(FieldDescription),
		CreatedAt:      doc.Time(FieldCreatedAt),
		UpdatedAt:      doc.Time(FieldUpdatedAt),
	}
}

// TrainingPatch lists the training attributes a caller may change. Optional
// dates and the certificate are only written when supplied.
type TrainingPatch struct {
	Title          *string
	Provider       *string
	Category       *string
	Status         *TrainingStatus
	StartDate      *time.Time
	EndDate        *time.Time
	Duration       *int
	CertificateURL *string
	Description    *string
	UpdatedAt      *time.Time
}

// Fields renders the patch as a partial document update.
func (p TrainingPatch) Fields() map[string]any {
	out := make(map[string]any)
	putString(out, FieldTitle, p.Title)
	putString(out, FieldProvider, p.Provider)
	putString(out, FieldCategory, p.Category)
	putString(out, FieldCertificateURL, p.CertificateURL)
	putString(out, FieldDescription, p.Description)
	if p.Status != nil {
		out[FieldStatus] = string(*p.Status)
	}
	if p.Duration != nil {
		out[FieldDuration] = *p.Duration
	}
	putTime(out, FieldStartDate, p.StartDate)
	putTime(out, FieldEndDate, p.EndDate)
	putTime(out, FieldUpdatedAt, p.UpdatedAt)
	return out
}

// TrainingStats summarises a user's training record.
type TrainingStats struct {
	Total        int                    `json:"total"`
	ByStatus     map[TrainingStatus]int `json:"byStatus"`
	TotalHours   int                    `json:"totalHours"`
	Certificates int                    `json:"certificates"`
}
