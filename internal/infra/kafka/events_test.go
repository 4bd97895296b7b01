package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer(buffer int) *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, buffer),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, async *fakeAsyncProducer) (*EventPublisher, *Producer) {
	t.Helper()
	producer := newProducer(async, config.KafkaSettings{TopicPrefix: "skills"}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewEventPublisher(producer, config.AppSettings{Name: "skills-audit", Env: "test"}, zaptest.NewLogger(t))
	return publisher, producer
}

func decodeEnvelope(t *testing.T, msg *sarama.ProducerMessage) map[string]any {
	t.Helper()
	raw, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("Value.Encode returned error: %v", err)
	}
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return envelope
}

func TestPublishUserRegistered(t *testing.T) {
	async := newFakeAsyncProducer(1)
	publisher, _ := newTestPublisher(t, async)

	registeredAt := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	event := domain.UserRegisteredEvent{
		EventID:      "evt-1",
		UserID:       "u-1",
		Email:        "thandi@treasury.gov.za",
		EmployeeID:   "EMP1001",
		Department:   "Finance",
		Role:         domain.RoleEmployee,
		RegisteredAt: registeredAt,
	}
	if err := publisher.PublishUserRegistered(context.Background(), event); err != nil {
		t.Fatalf("PublishUserRegistered returned error: %v", err)
	}

	msg := <-async.input
	if msg.Topic != "skills.user.registered" {
		t.Fatalf("unexpected topic %s", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "u-1" {
		t.Fatalf("expected message key u-1, got %s", key)
	}

	envelope := decodeEnvelope(t, msg)
	if envelope["event_id"] != "evt-1" || envelope["event_type"] != EventUserRegistered || envelope["version"] != schemaVersion {
		t.Fatalf("unexpected envelope %v", envelope)
	}
	if envelope["timestamp"] != registeredAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp %v", envelope["timestamp"])
	}
	payload := envelope["payload"].(map[string]any)
	if payload["employee_id"] != "EMP1001" || payload["role"] != "employee" {
		t.Fatalf("unexpected payload %v", payload)
	}
	metadata := envelope["metadata"].(map[string]any)
	if metadata["service"] != "skills-audit" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata %v", metadata)
	}
}

func TestPublishPasswordResetHasNoKey(t *testing.T) {
	async := newFakeAsyncProducer(1)
	publisher, _ := newTestPublisher(t, async)

	err := publisher.PublishPasswordResetRequested(context.Background(), domain.PasswordResetRequestedEvent{
		MaskedDestination: "tha***@treasury.gov.za",
		RequestedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("PublishPasswordResetRequested returned error: %v", err)
	}

	msg := <-async.input
	if msg.Key != nil {
		t.Fatalf("expected no partition key, got %v", msg.Key)
	}
	envelope := decodeEnvelope(t, msg)
	if envelope["event_id"] == "" {
		t.Fatal("expected generated event id")
	}
	if _, ok := envelope["user_id"]; ok {
		t.Fatal("expected user_id to be omitted")
	}
}

func TestPublishHonoursContextCancellation(t *testing.T) {
	async := newFakeAsyncProducer(0)
	publisher, _ := newTestPublisher(t, async)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishSkillsImported(ctx, domain.SkillsImportedEvent{UserID: "u-1", SkillIDs: []string{"s-1"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProducerReportsDeliveryErrors(t *testing.T) {
	async := newFakeAsyncProducer(1)
	producer := newProducer(async, config.KafkaSettings{TopicPrefix: "skills"}, zaptest.NewLogger(t))

	failed := make(chan string, 1)
	producer.OnError(func(topic string) { failed <- topic })

	async.errors <- &sarama.ProducerError{
		Msg: &sarama.ProducerMessage{Topic: "skills.training.reminder"},
		Err: errors.New("broker down"),
	}

	select {
	case topic := <-failed:
		if topic != "skills.training.reminder" {
			t.Fatalf("unexpected topic %s", topic)
		}
	case <-time.After(time.Second):
		t.Fatal("error callback not invoked")
	}

	if err := producer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestTopicName(t *testing.T) {
	p := &Producer{cfg: config.KafkaSettings{TopicPrefix: "skills"}}
	if got := p.TopicName("user.registered"); got != "skills.user.registered" {
		t.Fatalf("unexpected topic %s", got)
	}
	if got := p.TopicName("skills.user.registered"); got != "skills.user.registered" {
		t.Fatalf("prefix applied twice: %s", got)
	}
	p.cfg.TopicPrefix = ""
	if got := p.TopicName("user.registered"); got != "user.registered" {
		t.Fatalf("unexpected topic %s", got)
	}
}

func TestStubPublisherMasksEmail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	stub := NewStubPublisher(zap.New(core))

	err := stub.PublishEmailChanged(context.Background(), domain.EmailChangedEvent{
		UserID:   "u-1",
		OldEmail: "thandi@treasury.gov.za",
		NewEmail: "thandi.m@treasury.gov.za",
	})
	if err != nil {
		t.Fatalf("PublishEmailChanged returned error: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["old_email"] != "tha***@treasury.gov.za" || fields["event_type"] != EventEmailChanged {
		t.Fatalf("unexpected fields %v", fields)
	}
}
