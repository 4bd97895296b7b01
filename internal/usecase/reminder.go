package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/infra/logger"
	"github.com/arklim/skills-audit/internal/infra/telemetry"
	"github.com/arklim/skills-audit/internal/repository"
)

const (
	defaultReminderLookahead = 72 * time.Hour
	reminderIDPrefix         = "training-reminder-"
)

// ReminderService notifies users about planned trainings that start soon.
type ReminderService struct {
	store     port.DocumentStore
	events    port.EventPublisher
	metrics   *telemetry.Metrics
	lookahead time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewReminderService(store port.DocumentStore, events port.EventPublisher, metrics *telemetry.Metrics, lookahead time.Duration, log *zap.Logger) *ReminderService {
	if lookahead <= 0 {
		lookahead = defaultReminderLookahead
	}
	return &ReminderService{
		store:     store,
		events:    events,
		metrics:   metrics,
		lookahead: lookahead,
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// WithClock overrides the service clock.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	if now != nil {
		s.now = now
	}
	return s
}

// ReminderID is the notification id written for a training. Each training gets at most one reminder.
func ReminderID(trainingID string) string {
	return reminderIDPrefix + trainingID
}

// Run writes a reminder for every planned training starting within the
// look-ahead window that has none yet, and returns how many were written.
func (s *ReminderService) Run(ctx context.Context) (int, error) {
	dispatched, err := s.run(ctx)
	s.metrics.ObserveReminderRun(dispatched, err)
	return dispatched, err
}

func (s *ReminderService) run(ctx context.Context) (int, error) {
	log := logger.Enrich(ctx, s.logger)
	now := s.now().UTC()

	// collected first so no write happens while the result set is still open
	due, err := document.QueryAll(ctx, s.store, document.Query{
		Collection: domain.CollectionTraining,
		Filters: []document.Filter{
			document.Eq(domain.FieldStatus, string(domain.TrainingPlanned)),
			document.Where(domain.FieldStartDate, document.OpGreaterOrEqual, now),
			document.Where(domain.FieldStartDate, document.OpLessOrEqual, now.Add(s.lookahead)),
		},
		OrderBy: []document.Order{document.Asc(domain.FieldStartDate)},
	})
	if err != nil {
		return 0, fmt.Errorf("query due trainings: %w", err)
	}

	dispatched := 0
	for _, doc := range due {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}
		training := domain.TrainingFromDocument(doc)
		sent, err := s.remind(ctx, training, now)
		if err != nil {
			return dispatched, err
		}
		if sent {
			dispatched++
		}
	}

	log.Info("training reminders dispatched", zap.Int("due", len(due)), zap.Int("dispatched", dispatched))
	return dispatched, nil
}

func (s *ReminderService) remind(ctx context.Context, training domain.Training, now time.Time) (bool, error) {
	id := ReminderID(training.ID)
	_, err := s.store.Get(ctx, domain.CollectionNotifications, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("check reminder %s: %w", id, err)
	}

	start := ""
	if training.StartDate != nil {
		start = training.StartDate.Format("Mon 2 Jan 2006 15:04 MST")
	}
	notification := domain.Notification{
		ID:        id,
		UserID:    training.UserID,
		Kind:      domain.NotificationTrainingReminder,
		Title:     "Upcoming training: " + training.Title,
		Body:      fmt.Sprintf("%s by %s starts on %s.", training.Title, training.Provider, start),
		RelatedID: training.ID,
		CreatedAt: now,
	}
	if err := s.store.Set(ctx, domain.CollectionNotifications, id, notification.ToDocument()); err != nil {
		return false, fmt.Errorf("write reminder %s: %w", id, err)
	}

	if s.events != nil && training.StartDate != nil {
		event := domain.TrainingReminderEvent{
			EventID:    uuid.NewString(),
			UserID:     training.UserID,
			TrainingID: training.ID,
			Title:      training.Title,
			StartDate:  *training.StartDate,
			SentAt:     now,
		}
		if err := s.events.PublishTrainingReminder(ctx, event); err != nil {
			logger.Enrich(ctx, s.logger).Warn("publish training reminder failed", zap.String("training_id", training.ID), zap.Error(err))
		}
	}
	return true, nil
}
