package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when kafka.enabled is false.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger.OrNop(log)}
}

func (p *StubPublisher) logEvent(ctx context.Context, eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now()
	}
	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	logger.Enrich(ctx, p.logger).Info("stub event published", append(base, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(ctx, EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("department", event.Department),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(ctx, EventPasswordChanged, event.UserID, event.ChangedAt)
	return nil
}

func (p *StubPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(ctx, EventPasswordResetRequested, "", event.RequestedAt,
		zap.String("destination", event.MaskedDestination),
	)
	return nil
}

func (p *StubPublisher) PublishEmailChanged(ctx context.Context, event domain.EmailChangedEvent) error {
	p.logEvent(ctx, EventEmailChanged, event.UserID, event.ChangedAt,
		zap.String("old_email", logger.MaskEmail(event.OldEmail)),
		zap.String("new_email", logger.MaskEmail(event.NewEmail)),
	)
	return nil
}

func (p *StubPublisher) PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error {
	p.logEvent(ctx, EventRoleChanged, event.UserID, event.ChangedAt,
		zap.String("old_role", string(event.OldRole)),
		zap.String("new_role", string(event.NewRole)),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

func (p *StubPublisher) PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error {
	p.logEvent(ctx, EventAccountStatusChanged, event.UserID, event.ChangedAt,
		zap.Bool("is_active", event.IsActive),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

func (p *StubPublisher) PublishSkillsImported(ctx context.Context, event domain.SkillsImportedEvent) error {
	p.logEvent(ctx, EventSkillsImported, event.UserID, event.ImportedAt,
		zap.Int("count", len(event.SkillIDs)),
	)
	return nil
}

func (p *StubPublisher) PublishTrainingReminder(ctx context.Context, event domain.TrainingReminderEvent) error {
	p.logEvent(ctx, EventTrainingReminder, event.UserID, event.SentAt,
		zap.String("training_id", event.TrainingID),
		zap.Time("start_date", event.StartDate),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
