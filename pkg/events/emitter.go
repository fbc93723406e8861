package events

import (
	"context"

	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// ChangeEmitter publishes match change events. The view layer subscribes to
// the same feed to trigger debounced refreshes.
type ChangeEmitter interface {
	EmitMatchesUpserted(ctx context.Context, subjectID string, insertedPlaceIDs, updatedPlaceIDs []string) error
	EmitMatchSaved(ctx context.Context, subjectID, externalPlaceID string) error
	EmitMatchesCleared(ctx context.Context, subjectID string) error
}

// Emitter publishes match change events through the Kafka producer
type Emitter struct {
	producer *Producer
	logger   logging.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *Producer, logger logging.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitMatchesUpserted emits created/updated events for a discovery write
func (e *Emitter) EmitMatchesUpserted(ctx context.Context, subjectID string, insertedPlaceIDs, updatedPlaceIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchesUpserted")
	defer span.End()

	batch := make([]*MatchEvent, 0, len(insertedPlaceIDs)+len(updatedPlaceIDs))
	for _, placeID := range insertedPlaceIDs {
		batch = append(batch, &MatchEvent{
			EventType:       EventMatchCreated,
			SubjectID:       subjectID,
			ExternalPlaceID: placeID,
		})
	}
	for _, placeID := range updatedPlaceIDs {
		batch = append(batch, &MatchEvent{
			EventType:       EventMatchUpdated,
			SubjectID:       subjectID,
			ExternalPlaceID: placeID,
		})
	}

	if err := e.producer.PublishMatchEvents(ctx, batch); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit match upsert events")
		return err
	}

	return nil
}

// EmitMatchSaved emits an update event for a saved flag toggle
func (e *Emitter) EmitMatchSaved(ctx context.Context, subjectID, externalPlaceID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchSaved")
	defer span.End()

	event := &MatchEvent{
		EventType:       EventMatchUpdated,
		SubjectID:       subjectID,
		ExternalPlaceID: externalPlaceID,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit match.updated event")
		return err
	}

	return nil
}

// EmitMatchesCleared emits a delete event covering all of a subject's records
func (e *Emitter) EmitMatchesCleared(ctx context.Context, subjectID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchesCleared")
	defer span.End()

	event := &MatchEvent{
		EventType: EventMatchDeleted,
		SubjectID: subjectID,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit match.deleted event")
		return err
	}

	return nil
}

// NopEmitter discards events, for tests and event-less deployments
type NopEmitter struct{}

func (NopEmitter) EmitMatchesUpserted(context.Context, string, []string, []string) error {
	return nil
}

func (NopEmitter) EmitMatchSaved(context.Context, string, string) error { return nil }

func (NopEmitter) EmitMatchesCleared(context.Context, string) error { return nil }
