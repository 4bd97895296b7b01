package domain

import (
	"time"

	"github.com/arklim/skills-audit/internal/core/document"
)

// SkillLevel grades proficiency.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "Beginner"
	SkillIntermediate SkillLevel = "Intermediate"
	SkillAdvanced     SkillLevel = "Advanced"
	SkillExpert       SkillLevel = "Expert"
)

// SkillLevels lists the levels from least to most proficient.
var SkillLevels = []SkillLevel{SkillBeginner, SkillIntermediate, SkillAdvanced, SkillExpert}

// Valid reports whether l is a known level.
func (l SkillLevel) Valid() bool {
	for _, known := range SkillLevels {
		if l == known {
			return true
		}
	}
	return false
}

// SkillCategories are the categories offered when recording a skill.
var SkillCategories = []string{
	"Technical",
	"Management",
	"Communication",
	"Financial",
	"Legal",
	"Administrative",
}

// Skill document fields.
const (
	FieldUserID          = "userId"
	FieldName            = "name"
	FieldCategory        = "category"
	FieldLevel           = "level"
	FieldDescription     = "description"
	FieldYearsExperience = "yearsExperience"
	FieldIsVerified      = "isVerified"
)

// Skill is a competency recorded against a user.
type Skill struct {
	ID              string
	UserID          string
	Name            string
	Category        string
	Level           SkillLevel
	Description     *string
	YearsExperience int
	IsVerified      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ToDocument renders the full skill document.
func (s Skill) ToDocument() map[string]any {
	return map[string]any{
		FieldID:              s.ID,
		FieldUserID:          s.UserID,
		FieldName:            s.Name,
		FieldCategory:        s.Category,
		FieldLevel:           string(s.Level),
		FieldDescription:     s.Description,
		FieldYearsExperience: s.YearsExperience,
		FieldIsVerified:      s.IsVerified,
		FieldCreatedAt:       s.CreatedAt,
		FieldUpdatedAt:       s.UpdatedAt,
	}
}

// SkillFromDocument decodes a skills document.
func SkillFromDocument(doc *document.Document) Skill {
	id := doc.String(FieldID)
	if id == "" {
		id = doc.ID
	}
	return Skill{
		ID:              id,
		UserID:          doc.String(FieldUserID),
		Name:            doc.String(FieldName),
		Category:        doc.String(FieldCategory),
		Level:           SkillLevel(doc.String(FieldLevel)),
		Description:     doc.OptionalString(FieldDescription),
		YearsExperience: int(doc.Int(FieldYearsExperience)),
		IsVerified:      doc.Bool(FieldIsVerified),
		CreatedAt:       doc.Time(FieldCreatedAt),
		UpdatedAt:       doc.Time(FieldUpdatedAt),
	}
}

// SkillPatch lists the skill attributes a caller may change.
type SkillPatch struct {
	Name            *string
	Category        *string
	Level           *SkillLevel
	Description     *string
	YearsExperience *int
	IsVerified      *bool
	UpdatedAt       *time.Time
}

// Fields renders the patch as a partial document update.
func (p SkillPatch) Fields() map[string]any {
	out := make(map[string]any)
	putString(out, FieldName, p.Name)
	putString(out, FieldCategory, p.Category)
	putString(out, FieldDescription, p.Description)
	if p.Level != nil {
		out[FieldLevel] = string(*p.Level)
	}
	if p.YearsExperience != nil {
		out[FieldYearsExperience] = *p.YearsExperience
	}
	if p.IsVerified != nil {
		out[FieldIsVerified] = *p.IsVerified
	}
	putTime(out, FieldUpdatedAt, p.UpdatedAt)
	return out
}

// SkillStats summarises a user's skills.
type SkillStats struct {
	Total        int `json:"total"`
	Beginner     int `json:"beginner"`
	Intermediate int `json:"intermediate"`
	Advanced     int `json:"advanced"`
	Expert       int `json:"expert"`
	Verified     int `json:"verified"`
}
