package models

import (
	"time"

	"github.com/Rowan-T/clover/pkg/database"
)

// MaxSummaryLength is the upper bound on a narrative summary
const MaxSummaryLength = 1200

// NarrativeSource records which path produced a narrative profile
type NarrativeSource string

const (
	NarrativeSourceGenerated NarrativeSource = "generated" // text-generation collaborator
	NarrativeSourceFallback  NarrativeSource = "fallback"  // deterministic template
)

// NarrativeProfile is the structured narrative synthesized from a subject's
// normalized answers, stored alongside the normalized profile that produced
// it so later discovery runs can reuse the subject's preferences. One row is
// appended per generation; rows are never mutated.
type NarrativeProfile struct {
	ID                  string                        `json:"id" db:"id"`
	SubjectID           string                        `json:"subject_id" db:"subject_id"`
	QuestionnaireID     string                        `json:"questionnaire_id" db:"questionnaire_id"`
	Profile             database.JSONB[SearchProfile] `json:"profile" db:"profile"`
	Summary             string                        `json:"summary" db:"summary"`
	Traits              database.JSONB[[]string]      `json:"traits" db:"traits"`
	Interests           database.JSONB[[]string]      `json:"interests" db:"interests"`
	SuggestedCategories database.JSONB[[]string]      `json:"suggested_categories" db:"suggested_categories"`
	Source              NarrativeSource               `json:"source" db:"source"`
	CreatedAt           time.Time                     `json:"created_at" db:"created_at"`
}

// SearchProfile returns the stored normalized profile, nil on a nil receiver
// so callers without a narrative fall through to engine defaults.
func (n *NarrativeProfile) SearchProfile() *SearchProfile {
	if n == nil {
		return nil
	}
	profile := n.Profile.Data
	return &profile
}

// CreateProfileRequest is the request to normalize and synthesize a profile
type CreateProfileRequest struct {
	QuestionnaireID string         `json:"questionnaire_id" validate:"required"`
	Answers         map[string]any `json:"answers" validate:"required"`
}

// CreateProfileResponse returns both the canonical profile and the narrative
type CreateProfileResponse struct {
	Profile   SearchProfile     `json:"profile"`
	Narrative *NarrativeProfile `json:"narrative"`
}
