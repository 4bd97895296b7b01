package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/ids"
	"github.com/arklim/skills-audit/internal/infra/logger"
	"github.com/arklim/skills-audit/internal/repository"
)

const (
	maxSkillNameLength        = 100
	maxSkillDescriptionLength = 500
	maxYearsExperience        = 50
	defaultTopSkills          = 5
)

// SkillService manages the skills recorded against users.
type SkillService struct {
	store  port.DocumentStore
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewSkillService(store port.DocumentStore, events port.EventPublisher, log *zap.Logger) *SkillService {
	return &SkillService{
		store:  store,
		events: events,
		logger: logger.OrNop(log),
		now:    time.Now,
	}
}

// WithClock overrides the service clock.
func (s *SkillService) WithClock(now func() time.Time) *SkillService {
	if now != nil {
		s.now = now
	}
	return s
}

// ListUserSkills returns the skills of uid ordered by name.
func (s *SkillService) ListUserSkills(ctx context.Context, uid string) ([]domain.Skill, error) {
	return s.list(ctx, document.Query{
		Collection: domain.CollectionSkills,
		Filters:    []document.Filter{document.Eq(domain.FieldUserID, uid)},
		OrderBy:    []document.Order{document.Asc(domain.FieldName)},
	})
}

// ListByCategory returns every skill in category ordered by name.
func (s *SkillService) ListByCategory(ctx context.Context, category string) ([]domain.Skill, error) {
	return s.list(ctx, document.Query{
		Collection: domain.CollectionSkills,
		Filters:    []document.Filter{document.Eq(domain.FieldCategory, category)},
		OrderBy:    []document.Order{document.Asc(domain.FieldName)},
	})
}

func (s *SkillService) list(ctx context.Context, q document.Query) ([]domain.Skill, error) {
	var out []domain.Skill
	err := forEach(ctx, s.store, q, func(doc *document.Document) error {
		out = append(out, domain.SkillFromDocument(doc))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return out, nil
}

func (s *SkillService) GetSkill(ctx context.Context, id string) (domain.Skill, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Skill{}, ErrSkillNotFound
	}
	doc, err := s.store.Get(ctx, domain.CollectionSkills, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Skill{}, ErrSkillNotFound
		}
		return domain.Skill{}, fmt.Errorf("get skill %s: %w", id, err)
	}
	return domain.SkillFromDocument(doc), nil
}

// AddSkill records a new skill for uid. New skills start unverified.
func (s *SkillService) AddSkill(ctx context.Context, uid string, skill domain.Skill) (domain.Skill, error) {
	skill = s.prepare(uid, skill)
	if err := validateSkill(skill, "").OrNil(); err != nil {
		return domain.Skill{}, err
	}
	if err := s.store.Set(ctx, domain.CollectionSkills, skill.ID, skill.ToDocument()); err != nil {
		return domain.Skill{}, fmt.Errorf("add skill: %w", err)
	}
	return skill, nil
}

func (s *SkillService) prepare(uid string, skill domain.Skill) domain.Skill {
	now := s.now().UTC()
	skill.ID = ids.New()
	skill.UserID = uid
	skill.Name = strings.TrimSpace(skill.Name)
	skill.Category = strings.TrimSpace(skill.Category)
	skill.IsVerified = false
	skill.CreatedAt = now
	skill.UpdatedAt = now
	return skill
}

// UpdateSkill applies patch after checking actor may modify the skill.
func (s *SkillService) UpdateSkill(ctx context.Context, actor domain.Identity, id string, patch domain.SkillPatch) (domain.Skill, error) {
	current, err := s.ValidateOwnership(ctx, id, actor)
	if err != nil {
		return domain.Skill{}, err
	}
	if patch.IsVerified != nil && !actor.Role.Privileged() {
		return domain.Skill{}, ErrPermissionDenied
	}

	merged := current
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
		merged.Name = trimmed
	}
	if patch.Category != nil {
		trimmed := strings.TrimSpace(*patch.Category)
		patch.Category = &trimmed
		merged.Category = trimmed
	}
	if patch.Level != nil {
		merged.Level = *patch.Level
	}
	if patch.Description != nil {
		merged.Description = patch.Description
	}
	if patch.YearsExperience != nil {
		merged.YearsExperience = *patch.YearsExperience
	}
	if err := validateSkill(merged, "").OrNil(); err != nil {
		return domain.Skill{}, err
	}

	now := s.now().UTC()
	patch.UpdatedAt = &now
	if err := s.store.Update(ctx, domain.CollectionSkills, id, patch.Fields()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Skill{}, ErrSkillNotFound
		}
		return domain.Skill{}, fmt.Errorf("update skill %s: %w", id, err)
	}
	return s.GetSkill(ctx, id)
}

// DeleteSkill removes a skill after checking actor may modify it.
func (s *SkillService) DeleteSkill(ctx context.Context, actor domain.Identity, id string) error {
	if _, err := s.ValidateOwnership(ctx, id, actor); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, domain.CollectionSkills, id); err != nil {
		return fmt.Errorf("delete skill %s: %w", id, err)
	}
	return nil
}

// ValidateOwnership loads the skill and checks that actor owns it or holds a privileged role.
func (s *SkillService) ValidateOwnership(ctx context.Context, id string, actor domain.Identity) (domain.Skill, error) {
	skill, err := s.GetSkill(ctx, id)
	if err != nil {
		return domain.Skill{}, err
	}
	if skill.UserID != actor.UserID && !actor.Role.Privileged() {
		return domain.Skill{}, ErrPermissionDenied
	}
	return skill, nil
}

// Categories returns the distinct categories in use, sorted.
func (s *SkillService) Categories(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := forEach(ctx, s.store, document.Query{Collection: domain.CollectionSkills}, func(doc *document.Document) error {
		if c := doc.String(domain.FieldCategory); c != "" {
			seen[c] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list skill categories: %w", err)
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Search matches term case-insensitively against skill names and descriptions.
// A non-empty uid restricts the search to that user's skills.
func (s *SkillService) Search(ctx context.Context, uid, term string) ([]domain.Skill, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil, nil
	}
	q := document.Query{
		Collection: domain.CollectionSkills,
		OrderBy:    []document.Order{document.Asc(domain.FieldName)},
	}
	if uid != "" {
		q.Filters = append(q.Filters, document.Eq(domain.FieldUserID, uid))
	}

	var out []domain.Skill
	err := forEach(ctx, s.store, q, func(doc *document.Document) error {
		skill := domain.SkillFromDocument(doc)
		description := ""
		if skill.Description != nil {
			description = *skill.Description
		}
		if strings.Contains(strings.ToLower(skill.Name), needle) || strings.Contains(strings.ToLower(description), needle) {
			out = append(out, skill)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search skills: %w", err)
	}
	return out, nil
}

// Stats counts the skills of uid by level.
func (s *SkillService) Stats(ctx context.Context, uid string) (domain.SkillStats, error) {
	var stats domain.SkillStats
	err := forEach(ctx, s.store, document.Query{
		Collection: domain.CollectionSkills,
		Filters:    []document.Filter{document.Eq(domain.FieldUserID, uid)},
	}, func(doc *document.Document) error {
		skill := domain.SkillFromDocument(doc)
		stats.Total++
		switch skill.Level {
		case domain.SkillBeginner:
			stats.Beginner++
		case domain.SkillIntermediate:
			stats.Intermediate++
		case domain.SkillAdvanced:
			stats.Advanced++
		case domain.SkillExpert:
			stats.Expert++
		}
		if skill.IsVerified {
			stats.Verified++
		}
		return nil
	})
	if err != nil {
		return domain.SkillStats{}, fmt.Errorf("skill stats for %s: %w", uid, err)
	}
	return stats, nil
}

// TopSkills returns up to limit skills of uid with the most years of experience.
func (s *SkillService) TopSkills(ctx context.Context, uid string, limit int) ([]domain.Skill, error) {
	if limit <= 0 {
		limit = defaultTopSkills
	}
	return s.list(ctx, document.Query{
		Collection: domain.CollectionSkills,
		Filters:    []document.Filter{document.Eq(domain.FieldUserID, uid)},
		OrderBy:    []document.Order{document.Desc(domain.FieldYearsExperience)},
		Limit:      limit,
	})
}

// ImportSkills writes every skill in one atomic batch. Either all skills are
// stored or none are.
func (s *SkillService) ImportSkills(ctx context.Context, uid string, skills []domain.Skill) ([]domain.Skill, error) {
	if len(skills) == 0 {
		return nil, nil
	}
	if len(skills) > document.MaxBatchWrites {
		verr := &ValidationError{}
		verr.Add("skills", fmt.Sprintf("At most %d skills can be imported at once", document.MaxBatchWrites))
		return nil, verr
	}

	verr := &ValidationError{}
	prepared := make([]domain.Skill, 0, len(skills))
	for i, skill := range skills {
		skill = s.prepare(uid, skill)
		if v := validateSkill(skill, fmt.Sprintf("skills[%d].", i)); v.OrNil() != nil {
			for field, msgs := range v.Fields {
				for _, m := range msgs {
					verr.Add(field, m)
				}
			}
		}
		prepared = append(prepared, skill)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	batch := s.store.Batch()
	skillIDs := make([]string, 0, len(prepared))
	for _, skill := range prepared {
		batch.Set(domain.CollectionSkills, skill.ID, skill.ToDocument())
		skillIDs = append(skillIDs, skill.ID)
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("import skills: %w", err)
	}

	log := logger.Enrich(ctx, s.logger)
	log.Info("skills imported", zap.String("user_id", uid), zap.Int("count", len(prepared)))
	if s.events != nil {
		event := domain.SkillsImportedEvent{
			EventID:    uuid.NewString(),
			UserID:     uid,
			SkillIDs:   skillIDs,
			ImportedAt: s.now().UTC(),
		}
		if err := s.events.PublishSkillsImported(ctx, event); err != nil {
			log.Warn("publish skills imported event failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	return prepared, nil
}

func validateSkill(skill domain.Skill, prefix string) *ValidationError {
	verr := &ValidationError{}
	switch {
	case skill.Name == "":
		verr.Add(prefix+"name", "Skill name is required")
	case len(skill.Name) > maxSkillNameLength:
		verr.Add(prefix+"name", fmt.Sprintf("Skill name cannot exceed %d characters", maxSkillNameLength))
	}
	if skill.Category == "" {
		verr.Add(prefix+"category", "Category is required")
	}
	if !skill.Level.Valid() {
		verr.Add(prefix+"level", "Level must be Beginner, Intermediate, Advanced or Expert")
	}
	if skill.Description != nil && len(*skill.Description) > maxSkillDescriptionLength {
		verr.Add(prefix+"description", fmt.Sprintf("Description cannot exceed %d characters", maxSkillDescriptionLength))
	}
	if skill.YearsExperience < 0 || skill.YearsExperience > maxYearsExperience {
		verr.Add(prefix+"yearsExperience", fmt.Sprintf("Years of experience must be between 0 and %d", maxYearsExperience))
	}
	return verr
}
