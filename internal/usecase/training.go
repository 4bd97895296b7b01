package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/ids"
	"github.com/arklim/skills-audit/internal/infra/logger"
	"github.com/arklim/skills-audit/internal/repository"
)

const (
	maxTrainingTitleLength = 200
	maxTrainingDuration    = 10000
)

// TrainingService manages training records.
type TrainingService struct {
	store  port.DocumentStore
	logger *zap.Logger
	now    func() time.Time
}

func NewTrainingService(store port.DocumentStore, log *zap.Logger) *TrainingService {
	return &TrainingService{
		store:  store,
		logger: logger.OrNop(log),
		now:    time.Now,
	}
}

// WithClock overrides the service clock.
func (s *TrainingService) WithClock(now func() time.Time) *TrainingService {
	if now != nil {
		s.now = now
	}
	return s
}

// ListUserTrainings returns the trainings of uid, newest first.
func (s *TrainingService) ListUserTrainings(ctx context.Context, uid string) ([]domain.Training, error) {
	return s.list(ctx, document.Query{
		Collection: domain.CollectionTraining,
		Filters:    []document.Filter{document.Eq(domain.FieldUserID, uid)},
		OrderBy:    []document.Order{document.Desc(domain.FieldCreatedAt)},
	})
}

// ListByStatus returns the trainings of uid in status, newest first.
func (s *TrainingService) ListByStatus(ctx context.Context, uid string, status domain.TrainingStatus) ([]domain.Training, error) {
	if !status.Valid() {
		verr := &ValidationError{}
		verr.Add("status", "Unknown training status")
		return nil, verr
	}
	return s.list(ctx, document.Query{
		Collection: domain.CollectionTraining,
		Filters: []document.Filter{
			document.Eq(domain.FieldUserID, uid),
			document.Eq(domain.FieldStatus, string(status)),
		},
		OrderBy: []document.Order{document.Desc(domain.FieldCreatedAt)},
	})
}

// ListByDateRange returns the trainings of uid starting within [from, to], newest first.
func (s *TrainingService) ListByDateRange(ctx context.Context, uid string, from, to time.Time) ([]domain.Training, error) {
	if to.Before(from) {
		verr := &ValidationError{}
		verr.Add("endDate", "End of range must not be before its start")
		return nil, verr
	}
	return s.list(ctx, document.Query{
		Collection: domain.CollectionTraining,
		Filters: []document.Filter{
			document.Eq(domain.FieldUserID, uid),
			document.Where(domain.FieldStartDate, document.OpGreaterOrEqual, from.UTC()),
			document.Where(domain.FieldStartDate, document.OpLessOrEqual, to.UTC()),
		},
		OrderBy: []document.Order{document.Desc(domain.FieldCreatedAt)},
	})
}

// Upcoming returns planned trainings of uid that have not started yet, soonest first.
func (s *TrainingService) Upcoming(ctx context.Context, uid string) ([]domain.Training, error) {
	return s.list(ctx, document.Query{
		Collection: domain.CollectionTraining,
		Filters: []document.Filter{
			document.Eq(domain.FieldUserID, uid),
			document.Eq(domain.FieldStatus, string(domain.TrainingPlanned)),
			document.Where(domain.FieldStartDate, document.OpGreaterOrEqual, s.now().UTC()),
		},
		OrderBy: []document.Order{document.Asc(domain.FieldStartDate)},
	})
}

// Completed returns the completed trainings of uid, newest first.
func (s *TrainingService) Completed(ctx context.Context, uid string) ([]domain.Training, error) {
	return s.ListByStatus(ctx, uid, domain.TrainingCompleted)
}

func (s *TrainingService) list(ctx context.Context, q document.Query) ([]domain.Training, error) {
	var out []domain.Training
	err := forEach(ctx, s.store, q, func(doc *document.Document) error {
		out = append(out, domain.TrainingFromDocument(doc))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list trainings: %w", err)
	}
	return out, nil
}

func (s *TrainingService) GetTraining(ctx context.Context, id string) (domain.Training, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Training{}, ErrTrainingNotFound
	}
	doc, err := s.store.Get(ctx, domain.CollectionTraining, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Training{}, ErrTrainingNotFound
		}
		return domain.Training{}, fmt.Errorf("get training %s: %w", id, err)
	}
	return domain.TrainingFromDocument(doc), nil
}

// AddTraining records a training for uid. The status defaults to Planned.
func (s *TrainingService) AddTraining(ctx context.Context, uid string, training domain.Training) (domain.Training, error) {
	now := s.now().UTC()
	training.ID = ids.New()
	training.UserID = uid
	training.Title = strings.TrimSpace(training.Title)
	training.Provider = strings.TrimSpace(training.Provider)
	if training.Status == "" {
		training.Status = domain.TrainingPlanned
	}
	training.CreatedAt = now
	training.UpdatedAt = now

	if err := validateTraining(training).OrNil(); err != nil {
		return domain.Training{}, err
	}
	if err := s.store.Set(ctx, domain.CollectionTraining, training.ID, training.ToDocument()); err != nil {
		return domain.Training{}, fmt.Errorf("add training: %w", err)
	}
	return training, nil
}

// UpdateTraining applies patch after checking actor may modify the training.
func (s *TrainingService) UpdateTraining(ctx context.Context, actor domain.Identity, id string, patch domain.TrainingPatch) (domain.Training, error) {
	current, err := s.ValidateOwnership(ctx, id, actor)
	if err != nil {
		return domain.Training{}, err
	}

	merged := current
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
		merged.Title = trimmed
	}
	if patch.Provider != nil {
		trimmed := strings.TrimSpace(*patch.Provider)
		patch.Provider = &trimmed
		merged.Provider = trimmed
	}
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	if patch.StartDate != nil {
		merged.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		merged.EndDate = patch.EndDate
	}
	if patch.Duration != nil {
		merged.Duration = *patch.Duration
	}
	if patch.CertificateURL != nil {
		merged.CertificateURL = patch.CertificateURL
	}
	if err := validateTraining(merged).OrNil(); err != nil {
		return domain.Training{}, err
	}

	now := s.now().UTC()
	patch.UpdatedAt = &now
	if err := s.store.Update(ctx, domain.CollectionTraining, id, patch.Fields()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Training{}, ErrTrainingNotFound
		}
		return domain.Training{}, fmt.Errorf("update training %s: %w", id, err)
	}
	return s.GetTraining(ctx, id)
}

// DeleteTraining removes a training after checking actor may modify it.
func (s *TrainingService) DeleteTraining(ctx context.Context, actor domain.Identity, id string) error {
	if _, err := s.ValidateOwnership(ctx, id, actor); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, domain.CollectionTraining, id); err != nil {
		return fmt.Errorf("delete training %s: %w", id, err)
	}
	return nil
}

// ValidateOwnership loads the training and checks that actor owns it or holds a privileged role.
func (s *TrainingService) ValidateOwnership(ctx context.Context, id string, actor domain.Identity) (domain.Training, error) {
	training, err := s.GetTraining(ctx, id)
	if err != nil {
		return domain.Training{}, err
	}
	if training.UserID != actor.UserID && !actor.Role.Privileged() {
		return domain.Training{}, ErrPermissionDenied
	}
	return training, nil
}

// Stats summarises the training record of uid. Hours and certificates only count completed trainings.
func (s *TrainingService) Stats(ctx context.Context, uid string) (domain.TrainingStats, error) {
	stats := domain.TrainingStats{ByStatus: make(map[domain.TrainingStatus]int, len(domain.TrainingStatuses))}
	for _, st := range domain.TrainingStatuses {
		stats.ByStatus[st] = 0
	}
	err := forEach(ctx, s.store, document.Query{
		Collection: domain.CollectionTraining,
		Filters:    []document.Filter{document.Eq(domain.FieldUserID, uid)},
	}, func(doc *document.Document) error {
		t := domain.TrainingFromDocument(doc)
		stats.Total++
		stats.ByStatus[t.Status]++
		if t.Status == domain.TrainingCompleted {
			stats.TotalHours += t.Duration
			if t.CertificateURL != nil && *t.CertificateURL != "" {
				stats.Certificates++
			}
		}
		return nil
	})
	if err != nil {
		return domain.TrainingStats{}, fmt.Errorf("training stats for %s: %w", uid, err)
	}
	return stats, nil
}

// TrainingHours sums the duration of the completed trainings of uid.
func (s *TrainingService) TrainingHours(ctx context.Context, uid string) (int, error) {
	total := 0
	err := forEach(ctx, s.store, document.Query{
		Collection: domain.CollectionTraining,
		Filters: []document.Filter{
			document.Eq(domain.FieldUserID, uid),
			document.Eq(domain.FieldStatus, string(domain.TrainingCompleted)),
		},
	}, func(doc *document.Document) error {
		total += int(doc.Int(domain.FieldDuration))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("training hours for %s: %w", uid, err)
	}
	return total, nil
}

func validateTraining(t domain.Training) *ValidationError {
	verr := &ValidationError{}
	switch {
	case t.Title == "":
		verr.Add("title", "Title is required")
	case len(t.Title) > maxTrainingTitleLength:
		verr.Add("title", fmt.Sprintf("Title cannot exceed %d characters", maxTrainingTitleLength))
	}
	if t.Provider == "" {
		verr.Add("provider", "Provider is required")
	}
	if !t.Status.Valid() {
		verr.Add("status", "Status must be Planned, In Progress, Completed or Cancelled")
	}
	if t.Duration < 0 || t.Duration > maxTrainingDuration {
		verr.Add("duration", fmt.Sprintf("Duration must be between 0 and %d hours", maxTrainingDuration))
	}
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
		verr.Add("endDate", "End date must not be before the start date")
	}
	if t.CertificateURL != nil && *t.CertificateURL != "" {
		if u, err := url.ParseRequestURI(*t.CertificateURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			verr.Add("certificateUrl", "Certificate URL must be an http or https address")
		}
	}
	return verr
}
