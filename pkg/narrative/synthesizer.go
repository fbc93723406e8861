// Package narrative turns normalized questionnaire answers into a structured
// narrative profile via an external text-generation collaborator, with a
// deterministic template fallback.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Rowan-T/clover/pkg/database"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

const systemPrompt = `You write short partnership outreach profiles for athletes. ` +
	`Respond with a JSON object containing "summary" (a paragraph under 1000 characters), ` +
	`"traits" (3-5 short strings), "interests" (3-5 short strings), and ` +
	`"suggested_categories" (3-5 local business categories suited to partnership outreach).`

// Synthesizer builds narrative profiles from search profiles
type Synthesizer struct {
	generator Generator
	logger    logging.Logger
}

// NewSynthesizer creates a new Synthesizer
func NewSynthesizer(generator Generator, logger logging.Logger) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		logger:    logger,
	}
}

// Synthesize produces a NarrativeProfile for the subject. Generation failure
// is never fatal: any transport, status, or parse failure falls back to a
// deterministic template built from the profile alone.
func (s *Synthesizer) Synthesize(ctx context.Context, subjectID, questionnaireID string, profile models.SearchProfile, rawAnswers map[string]interface{}) models.NarrativeProfile {
	ctx, span := tracing.StartSpan(ctx, "Synthesizer.Synthesize")
	defer span.End()

	generated, err := s.generate(ctx, profile, rawAnswers)
	source := models.NarrativeSourceGenerated
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnf("narrative generation failed for subject %s, using fallback template", subjectID)
		generated = fallbackNarrative(profile)
		source = models.NarrativeSourceFallback
	}

	return models.NarrativeProfile{
		SubjectID:           subjectID,
		QuestionnaireID:     questionnaireID,
		Profile:             database.NewJSONB(profile),
		Summary:             truncateSummary(generated.Summary),
		Traits:              database.NewJSONB(emptyIfNil(generated.Traits)),
		Interests:           database.NewJSONB(emptyIfNil(generated.Interests)),
		SuggestedCategories: database.NewJSONB(emptyIfNil(generated.SuggestedCategories)),
		Source:              source,
	}
}

func (s *Synthesizer) generate(ctx context.Context, profile models.SearchProfile, rawAnswers map[string]interface{}) (*GeneratedNarrative, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no generator configured")
	}

	userPrompt, err := buildUserPrompt(profile, rawAnswers)
	if err != nil {
		return nil, err
	}

	return s.generator.Generate(ctx, systemPrompt, userPrompt)
}

func buildUserPrompt(profile models.SearchProfile, rawAnswers map[string]interface{}) (string, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}

	answersJSON, err := json.Marshal(rawAnswers)
	if err != nil {
		return "", fmt.Errorf("failed to encode raw answers: %w", err)
	}

	return fmt.Sprintf("Normalized profile:\n%s\n\nRaw questionnaire answers:\n%s", profileJSON, answersJSON), nil
}

// fallbackNarrative builds a deterministic narrative purely from profile
// fields. It must never fail.
func fallbackNarrative(profile models.SearchProfile) *GeneratedNarrative {
	tier := strings.ReplaceAll(string(profile.AthleteTier), "_", " ")

	var b strings.Builder
	fmt.Fprintf(&b, "A %s athlete looking for local business partnerships.", tier)
	if profile.SchoolOrAffiliation != nil {
		fmt.Fprintf(&b, " Affiliated with %s.", *profile.SchoolOrAffiliation)
	}
	if total := profile.TotalFollowing(); total > 0 {
		fmt.Fprintf(&b, " Reaches an audience of %d followers with an estimated engagement rate of %.1f%%.", total, profile.EngagementRate*100)
	}
	if len(profile.Categories) > 0 {
		fmt.Fprintf(&b, " Interested in %s.", strings.Join(profile.Categories, ", "))
	}
	fmt.Fprintf(&b, " Available for partnership work at commitment level %d of 5.", profile.TimeCommitment)

	traits := []string{"motivated", "community focused"}
	if profile.TimeCommitment >= 4 {
		traits = append(traits, "highly available")
	}
	if profile.EngagementRate >= 0.05 {
		traits = append(traits, "strong audience engagement")
	}

	categories := profile.Categories
	if len(categories) == 0 {
		categories = []string{"restaurant", "fitness", "retail"}
	}

	return &GeneratedNarrative{
		Summary:             b.String(),
		Traits:              traits,
		Interests:           append([]string{}, profile.ContentTypes...),
		SuggestedCategories: append([]string{}, categories...),
	}
}

func truncateSummary(summary string) string {
	summary = strings.TrimSpace(summary)
	if len(summary) <= models.MaxSummaryLength {
		return summary
	}
	cut := models.MaxSummaryLength
	// back up so the cut never lands inside a multi-byte rune
	for cut > 0 && !utf8.RuneStart(summary[cut]) {
		cut--
	}
	return summary[:cut]
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
