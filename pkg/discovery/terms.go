package discovery

import (
	"strings"

	"github.com/Rowan-T/clover/pkg/models"
)

// MaxTerms caps the primary term set
const MaxTerms = 8

// fallbackTerms is the fixed secondary term set used only when the primary
// terms yield nothing. Broad commerce categories so sparse interest tags
// still surface viable nearby businesses.
var fallbackTerms = []string{
	"restaurant",
	"coffee shop",
	"gym",
	"retail store",
	"salon",
	"auto services",
}

// buildTermSet derives the primary search terms for a subject: suggested
// categories first, then interests, case-folded and deduplicated, capped at
// maxTerms. Ordering matters downstream: earlier terms win dedup ties.
func buildTermSet(narrative *models.NarrativeProfile, profile *models.SearchProfile, maxTerms int) []string {
	var raw []string
	if narrative != nil {
		raw = append(raw, narrative.SuggestedCategories.Data...)
		raw = append(raw, narrative.Interests.Data...)
	}
	if profile != nil {
		raw = append(raw, profile.Categories...)
	}

	if maxTerms < 1 {
		maxTerms = MaxTerms
	}

	seen := make(map[string]bool, len(raw))
	terms := make([]string, 0, maxTerms)
	for _, term := range raw {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
		if len(terms) == maxTerms {
			break
		}
	}

	if len(terms) == 0 {
		return append([]string{}, fallbackTerms...)
	}

	return terms
}
