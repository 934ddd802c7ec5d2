package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	retry "github.com/sethvargo/go-retry"

	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tuning reflects the write pattern of the checkout flow: bursts of order and
// payment events around a purchase, long quiet stretches in between. A full
// batch means more rows are probably waiting, so the drain loop goes straight
// back to the table without sleeping.
const (
	defaultBatchSize   = 100
	defaultPollEvery   = 250 * time.Millisecond
	defaultMaxAttempts = 8
	publishTimeout     = 10 * time.Second
	errorBackoffCap    = 30 * time.Second
	bootWindow         = 45 * time.Second
	bootPingDelay      = time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type quarantineStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher and ack wrap the pubsub publisher surface so tests can
// script delivery outcomes.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) ack
}

type ack interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           txRunner
	Broker       broker
	Events       eventStore
	Resolver     eventResolver
	Quarantine   quarantineStore
	NewPublisher func(topic string) topicPublisher
}

// Service drains the outbox table and hands each event to its pubsub topic.
// Publishers are built once per topic and reused; the gcp publisher keeps
// per-topic delivery state that is expensive to recreate.
type Service struct {
	cfg        *config.Config
	logg       *logger.Logger
	db         txRunner
	broker     broker
	events     eventStore
	resolver   eventResolver
	quarantine quarantineStore

	newPublisher func(topic string) topicPublisher
	publishers   map[string]topicPublisher

	batchSize   int
	maxAttempts int
	pollEvery   time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Broker == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Events == nil {
		return nil, errors.New("event store is required")
	}
	if params.Resolver == nil {
		return nil, errors.New("event resolver is required")
	}
	if params.Quarantine == nil {
		return nil, errors.New("quarantine store is required")
	}

	newPublisher := params.NewPublisher
	if newPublisher == nil {
		newPublisher = func(topic string) topicPublisher {
			return wrapPublisher(params.Broker.Publisher(topic))
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollEvery := time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond
	if pollEvery <= 0 {
		pollEvery = defaultPollEvery
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		broker:       params.Broker,
		events:       params.Events,
		resolver:     params.Resolver,
		quarantine:   params.Quarantine,
		newPublisher: newPublisher,
		publishers:   make(map[string]topicPublisher),
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollEvery:    pollEvery,
	}, nil
}

// awaitDependencies blocks until the database and the broker answer pings.
// The publisher usually boots alongside both in the same deployment, so they
// get a bounded window to come up before the process gives up.
func (s *Service) awaitDependencies(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.broker.Ping},
	}
	for _, dep := range deps {
		backoff := retry.WithMaxDuration(bootWindow, retry.NewExponential(bootPingDelay))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := dep.ping(ctx); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "dependency", dep.name), "dependency not ready, retrying")
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s never became ready", dep.name), err)
			return fmt.Errorf("awaiting %s: %w", dep.name, err)
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.awaitDependencies(ctx); err != nil {
		return err
	}

	errorDelay := s.pollEvery
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher stopping")
			return ctx.Err()
		default:
		}

		drained, err := s.drain(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox drain failed", err)
			if err := s.wait(ctx, jittered(errorDelay)); err != nil {
				return err
			}
			errorDelay = doubled(errorDelay, errorBackoffCap)
			continue
		}
		errorDelay = s.pollEvery

		// A full batch means the table likely still has rows; skip the nap.
		if drained >= s.batchSize {
			continue
		}
		if err := s.wait(ctx, jittered(s.pollEvery)); err != nil {
			return err
		}
	}
}

// drain claims one batch inside a transaction and dispatches every event in
// it. Returns how many events were handled so the caller can decide whether
// to poll again immediately.
func (s *Service) drain(ctx context.Context) (int, error) {
	drained := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.events.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range batch {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
			drained++
		}
		return nil
	})
	return drained, err
}

// dispatch delivers one event. Retryable failures bump the attempt counter;
// non-retryable ones and exhausted attempt budgets land in quarantine. An
// error return aborts the whole batch, so only bookkeeping failures return
// one.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.resolver.Resolve(event)
	if err != nil {
		return s.quarantineEvent(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, "")
	}

	topic := resolved.Descriptor.Topic
	if err := s.publish(ctx, event, resolved); err != nil {
		var fatal registry.NonRetryableError
		if errors.As(err, &fatal) {
			return s.quarantineEvent(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, topic)
		}

		attempt := event.AttemptCount + 1
		if attempt >= s.maxAttempts {
			exhausted := fmt.Errorf("attempt budget exhausted: %w", err)
			return s.quarantineEvent(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, exhausted, topic)
		}

		logCtx := s.logg.WithFields(ctx, s.deliveryFields(event, topic))
		logCtx = s.logg.WithField(logCtx, "error", err.Error())
		s.logg.Warn(logCtx, "event delivery failed, will retry")
		if markErr := s.events.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return fmt.Errorf("recording failed attempt for %s: %w", event.ID, markErr)
		}
		return nil
	}

	if err := s.events.MarkPublishedTx(tx, event.ID); err != nil {
		return fmt.Errorf("recording publication of %s: %w", event.ID, err)
	}
	s.logg.Info(s.logg.WithFields(ctx, s.deliveryFields(event, topic)), "event delivered")
	return nil
}

// quarantineEvent copies the event into the DLQ and marks the outbox row
// terminal in the same transaction, so the row never races a redelivery.
func (s *Service) quarantineEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	logCtx := s.logg.WithFields(ctx, s.deliveryFields(event, topic))
	logCtx = s.logg.WithField(logCtx, "reason", string(reason))
	logCtx = s.logg.WithField(logCtx, "error", cause.Error())
	s.logg.Warn(logCtx, "event quarantined")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.quarantine.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("quarantining %s: %w", event.ID, err)
	}
	if err := s.events.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("marking %s terminal: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	pub := s.publisherFor(resolved.Descriptor.Topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", resolved.Descriptor.Topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", resolved.Descriptor.Topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) publisherFor(topic string) topicPublisher {
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.newPublisher(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

func (s *Service) deliveryFields(event models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id": event.ID.String(),
		"event":     event.EventType,
		"aggregate": fmt.Sprintf("%s/%s", event.AggregateType, event.AggregateID),
		"attempt":   event.AttemptCount + 1,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func doubled(d, cap time.Duration) time.Duration {
	if d <= 0 {
		return cap
	}
	if d *= 2; d > cap {
		return cap
	}
	return d
}

// jittered spreads wakeups so several replicas do not hammer the table in
// lockstep.
func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func wrapPublisher(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) ack {
	result := g.pub.Publish(ctx, msg)
	if result == nil {
		return nil
	}
	return gcpAck{result}
}

type gcpAck struct {
	result *gcppubsub.PublishResult
}

func (g gcpAck) Get(ctx context.Context) (string, error) {
	return g.result.Get(ctx)
}
