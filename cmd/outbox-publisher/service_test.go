package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox/payloads"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestDrainContinuesAfterRetryableFailure(t *testing.T) {
	store := &stubEventStore{
		events: []models.OutboxEvent{
			orderEvent(t, "event-one"),
			orderEvent(t, "event-two"),
		},
	}
	pub := &scriptedPublisher{
		acks: []ack{
			stubAck{err: errors.New("transient")},
			stubAck{},
		},
	}
	service := newTestService(t, store, pub, orderResolver(), &stubQuarantine{}, nil)

	drained, err := service.drain(context.Background())
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if drained != 2 {
		t.Fatalf("expected 2 drained events, got %d", drained)
	}
	if got := len(store.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(store.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if store.failed[0] != store.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if store.published[0] != store.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestDrainQuarantinesNonRetryable(t *testing.T) {
	event := orderEvent(t, "nonretryable")
	store := &stubEventStore{events: []models.OutboxEvent{event}}
	resolver := &stubResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	quarantine := &stubQuarantine{}
	service := newTestService(t, store, &scriptedPublisher{}, resolver, quarantine, nil)

	if _, err := service.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if got := len(quarantine.entries); got != 1 {
		t.Fatalf("expected quarantine entry, got %d", got)
	}
	entry := quarantine.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("quarantine event_id mismatch: %s", entry.EventID)
	}
	if entry.Payload == nil || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("quarantine payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if got := len(store.terminal); got != 1 || store.terminal[0] != event.ID {
		t.Fatalf("expected the row marked terminal, got %v", store.terminal)
	}
}

func TestDrainQuarantinesOnExhaustedAttempts(t *testing.T) {
	event := orderEvent(t, "exhausted")
	event.AttemptCount = 1
	store := &stubEventStore{events: []models.OutboxEvent{event}}
	pub := &scriptedPublisher{acks: []ack{stubAck{err: errors.New("transient")}}}
	quarantine := &stubQuarantine{}
	service := newTestService(t, store, pub, orderResolver(), quarantine, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if got := len(quarantine.entries); got != 1 {
		t.Fatalf("expected quarantine entry, got %d", got)
	}
	if quarantine.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", quarantine.entries[0].ErrorReason)
	}
}

func TestPublisherBuiltOncePerTopic(t *testing.T) {
	store := &stubEventStore{
		events: []models.OutboxEvent{
			orderEvent(t, "first"),
			orderEvent(t, "second"),
		},
	}
	built := 0
	service := newTestService(t, store, nil, orderResolver(), &stubQuarantine{}, nil)
	service.newPublisher = func(topic string) topicPublisher {
		built++
		return &scriptedPublisher{acks: []ack{stubAck{}, stubAck{}}}
	}

	if _, err := service.drain(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if built != 1 {
		t.Fatalf("expected one publisher per topic, built %d", built)
	}
	if got := len(store.published); got != 2 {
		t.Fatalf("expected both events published, got %d", got)
	}
}

func newTestService(t *testing.T, store eventStore, pub topicPublisher, resolver eventResolver, quarantine quarantineStore, outboxCfg *config.OutboxConfig) *Service {
	t.Helper()
	cfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfg != nil {
		cfg = *outboxCfg
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:       &config.Config{Outbox: cfg},
		Logger:       logg,
		DB:           &stubDB{},
		Broker:       &stubBroker{},
		Events:       store,
		Resolver:     resolver,
		Quarantine:   quarantine,
		NewPublisher: func(string) topicPublisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderEvent(tb testing.TB, eventID string) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func orderResolver() *stubResolver {
	return &stubResolver{
		resolved: &registry.ResolvedEvent{
			Descriptor: registry.EventDescriptor{
				Topic:         "domain-topic",
				AggregateType: enums.AggregateOrder,
			},
			Envelope: outbox.PayloadEnvelope{
				EventID:    uuid.NewString(),
				OccurredAt: time.Now(),
			},
			Payload: &payloads.OrderCreatedEvent{},
		},
	}
}

type stubEventStore struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (s *stubEventStore) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return s.events, nil
}

func (s *stubEventStore) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubEventStore) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubEventStore) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	s.terminal = append(s.terminal, id)
	return nil
}

type stubDB struct{}

func (s *stubDB) Ping(context.Context) error {
	return nil
}

func (s *stubDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type stubBroker struct{}

func (s *stubBroker) Ping(context.Context) error {
	return nil
}

func (s *stubBroker) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type scriptedPublisher struct {
	acks []ack
}

func (s *scriptedPublisher) Publish(context.Context, *gcppubsub.Message) ack {
	if len(s.acks) == 0 {
		return nil
	}
	next := s.acks[0]
	s.acks = s.acks[1:]
	return next
}

type stubAck struct {
	err error
}

func (s stubAck) Get(context.Context) (string, error) {
	return "", s.err
}

type stubResolver struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (s *stubResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.resolved == nil {
		return nil, s.err
	}
	resolved := *s.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, s.err
}

type stubQuarantine struct {
	entries []models.OutboxDLQ
}

func (s *stubQuarantine) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	s.entries = append(s.entries, entry)
	return nil
}
