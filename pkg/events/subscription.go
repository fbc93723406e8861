package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Rowan-T/clover/pkg/logging"
)

// defaultGroupPrefix names throwaway consumer groups when no prefix is
// configured
const defaultGroupPrefix = "clover-view"

// SubscriberConfig holds change feed consumer configuration
type SubscriberConfig struct {
	Brokers []string
	Topic   string
	// GroupPrefix namespaces the per-subscription consumer groups so they
	// are attributable in broker tooling. Defaults to clover-view.
	GroupPrefix string
}

func (c SubscriberConfig) groupID() string {
	prefix := c.GroupPrefix
	if prefix == "" {
		prefix = defaultGroupPrefix
	}
	return prefix + "-" + uuid.NewString()
}

// Subscriber creates per-subject subscriptions on the match change feed
type Subscriber struct {
	cfg    SubscriberConfig
	logger logging.Logger
}

// NewSubscriber creates a new Subscriber
func NewSubscriber(cfg SubscriberConfig, logger logging.Logger) *Subscriber {
	return &Subscriber{
		cfg:    cfg,
		logger: logger,
	}
}

// Subscription delivers a subject's match events until closed
type Subscription struct {
	events chan MatchEvent
	reader *kafka.Reader
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Events returns the subscription's event channel. The channel is closed
// when the subscription is.
func (s *Subscription) Events() <-chan MatchEvent {
	return s.events
}

// Close tears down the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.reader.Close()
		s.wg.Wait()
		close(s.events)
	})
	return err
}

// Subscribe starts consuming the change feed filtered to one subject. Each
// subscription reads from the latest offset under its own throwaway group,
// so it only sees changes made while it is active.
func (s *Subscriber) Subscribe(ctx context.Context, subjectID string) (*Subscription, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        s.cfg.Brokers,
		Topic:          s.cfg.Topic,
		GroupID:        s.cfg.groupID(),
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan MatchEvent, 16),
		reader: reader,
		cancel: cancel,
	}

	sub.wg.Add(1)
	go s.consumeLoop(ctx, sub, subjectID)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":      s.cfg.Topic,
		"subject_id": subjectID,
	}).Info("Match change subscription started")

	return sub, nil
}

func (s *Subscriber) consumeLoop(ctx context.Context, sub *Subscription, subjectID string) {
	defer sub.wg.Done()

	for {
		msg, err := sub.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return
			}
			s.logger.WithContext(ctx).WithError(err).Error("Failed to fetch match event")
			continue
		}

		var event MatchEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Failed to parse match event")
			_ = sub.reader.CommitMessages(ctx, msg)
			continue
		}

		if event.SubjectID == subjectID {
			select {
			case sub.events <- event:
			case <-ctx.Done():
				return
			default:
				// The consumer always re-fetches on notification, so a full
				// buffer means a refresh is already owed. Drop the event.
			}
		}

		if err := sub.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Failed to commit match event")
		}
	}
}
