package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types; the producer prefixes them with the configured topic prefix.
const (
	EventUserRegistered         = "user.registered"
	EventPasswordChanged        = "user.password.changed"
	EventPasswordResetRequested = "user.password.reset_requested"
	EventEmailChanged           = "user.email.changed"
	EventRoleChanged            = "user.role.changed"
	EventAccountStatusChanged   = "user.status.changed"
	EventSkillsImported         = "skill.imported"
	EventTrainingReminder       = "training.reminder"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}
	if userID != "" {
		message.Key = sarama.StringEncoder(userID)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Email        string         `json:"email"`
		EmployeeID   string         `json:"employee_id"`
		Department   string         `json:"department"`
		Role         string         `json:"role"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		EmployeeID:   event.EmployeeID,
		Department:   event.Department,
		Role:         string(event.Role),
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventPasswordChanged, event.UserID, event.ChangedAt, payload)
}

// PublishPasswordResetRequested carries only the masked address; the account is unknown to the caller.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		MaskedDestination string         `json:"masked_destination"`
		RequestedAt       time.Time      `json:"requested_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		MaskedDestination: event.MaskedDestination,
		RequestedAt:       event.RequestedAt.UTC(),
		Metadata:          event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventPasswordResetRequested, "", event.RequestedAt, payload)
}

func (p *EventPublisher) PublishEmailChanged(ctx context.Context, event domain.EmailChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		OldEmail  string         `json:"old_email"`
		NewEmail  string         `json:"new_email"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		OldEmail:  event.OldEmail,
		NewEmail:  event.NewEmail,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventEmailChanged, event.UserID, event.ChangedAt, payload)
}

func (p *EventPublisher) PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		OldRole   string         `json:"old_role"`
		NewRole   string         `json:"new_role"`
		ChangedBy string         `json:"changed_by"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		OldRole:   string(event.OldRole),
		NewRole:   string(event.NewRole),
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventRoleChanged, event.UserID, event.ChangedAt, payload)
}

func (p *EventPublisher) PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		IsActive  bool           `json:"is_active"`
		ChangedBy string         `json:"changed_by"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		IsActive:  event.IsActive,
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventAccountStatusChanged, event.UserID, event.ChangedAt, payload)
}

func (p *EventPublisher) PublishSkillsImported(ctx context.Context, event domain.SkillsImportedEvent) error {
	payload := struct {
		UserID     string         `json:"user_id"`
		SkillIDs   []string       `json:"skill_ids"`
		Count      int            `json:"count"`
		ImportedAt time.Time      `json:"imported_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		SkillIDs:   event.SkillIDs,
		Count:      len(event.SkillIDs),
		ImportedAt: event.ImportedAt.UTC(),
		Metadata:   event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventSkillsImported, event.UserID, event.ImportedAt, payload)
}

func (p *EventPublisher) PublishTrainingReminder(ctx context.Context, event domain.TrainingReminderEvent) error {
	payload := struct {
		UserID     string         `json:"user_id"`
		TrainingID string         `json:"training_id"`
		Title      string         `json:"title"`
		StartDate  time.Time      `json:"start_date"`
		SentAt     time.Time      `json:"sent_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		TrainingID: event.TrainingID,
		Title:      event.Title,
		StartDate:  event.StartDate.UTC(),
		SentAt:     event.SentAt.UTC(),
		Metadata:   event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventTrainingReminder, event.UserID, event.SentAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
