// Package events publishes and consumes match record change events
package events

import "time"

// event kinds on the match change feed
const (
	EventMatchCreated = "match.created"
	EventMatchUpdated = "match.updated"
	EventMatchDeleted = "match.deleted"
)

// MatchEvent notifies subscribers that a subject's match records changed.
// Consumers re-fetch rather than trusting payloads, so identity fields are
// the whole contract.
type MatchEvent struct {
	EventType       string    `json:"event_type"`
	SubjectID       string    `json:"subject_id"`
	ExternalPlaceID string    `json:"external_place_id,omitempty"` // empty for bulk operations
	Timestamp       time.Time `json:"timestamp"`
}
