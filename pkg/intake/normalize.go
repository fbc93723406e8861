// Package intake normalizes raw questionnaire answers into a canonical
// search profile
package intake

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Rowan-T/clover/pkg/models"
)

// field defaults for missing or malformed answers
const (
	DefaultRadiusMiles    = 15.0
	DefaultTimeCommitment = 3
	MaxCategories         = 3
)

// engagementBand maps a follower-count bucket to an estimated per-post
// engagement fraction. The tables are configuration, not derived data.
type engagementBand struct {
	maxFollowers int64
	rate         float64
}

// bands per platform, ascending by bucket ceiling. Smaller accounts engage
// at higher rates on every platform.
var engagementBands = map[string][]engagementBand{
	"instagram": {
		{1_000, 0.08},
		{10_000, 0.045},
		{100_000, 0.025},
		{math.MaxInt64, 0.012},
	},
	"tiktok": {
		{1_000, 0.12},
		{10_000, 0.09},
		{100_000, 0.055},
		{math.MaxInt64, 0.03},
	},
	"youtube": {
		{1_000, 0.05},
		{10_000, 0.035},
		{100_000, 0.02},
		{math.MaxInt64, 0.01},
	},
	"twitter": {
		{1_000, 0.035},
		{10_000, 0.02},
		{100_000, 0.012},
		{math.MaxInt64, 0.006},
	},
}

// defaultBands is used for platforms without their own table
var defaultBands = []engagementBand{
	{1_000, 0.05},
	{10_000, 0.03},
	{100_000, 0.015},
	{math.MaxInt64, 0.008},
}

// Normalize converts a raw answer map into a SearchProfile. It is total:
// unknown or malformed keys resolve to field defaults and every numeric
// field is clamped to its declared range.
func Normalize(rawAnswers map[string]interface{}) models.SearchProfile {
	profile := models.SearchProfile{
		AthleteTier:         normalizeTier(stringAnswer(rawAnswers, "athleteTier", "athlete_tier", "tier")),
		TimeCommitment:      normalizeTimeCommitment(rawAnswers),
		ContentTypes:        stringSetAnswer(rawAnswers, "contentTypes", "content_types"),
		Categories:          normalizeCategories(rawAnswers),
		FollowingByPlatform: normalizeFollowing(rawAnswers),
		PreferredRadiusMiles: clampFloat(
			floatAnswer(rawAnswers, DefaultRadiusMiles, "preferredRadiusMiles", "preferred_radius_miles", "radiusMiles"),
			0, math.MaxFloat64),
	}

	if school := stringAnswer(rawAnswers, "schoolOrAffiliation", "school_or_affiliation", "school"); school != "" {
		profile.SchoolOrAffiliation = &school
	}

	profile.EngagementRate = estimateEngagementRate(profile.FollowingByPlatform)

	return profile
}

func normalizeTier(raw string) models.AthleteTier {
	switch tier := models.AthleteTier(strings.ToLower(strings.TrimSpace(raw))); tier {
	case models.AthleteTierHighSchool, models.AthleteTierCollege, models.AthleteTierSemiPro, models.AthleteTierProfessional:
		return tier
	default:
		return models.AthleteTierCollege
	}
}

// normalizeTimeCommitment maps weekly hours onto a 1..5 scale. An explicit
// timeCommitment answer wins over hoursPerWeek.
func normalizeTimeCommitment(rawAnswers map[string]interface{}) int {
	if explicit, ok := intFromAnswer(rawAnswers["timeCommitment"]); ok {
		return clampInt(explicit, 1, 5)
	}

	hours, ok := floatFromAnswer(rawAnswers["hoursPerWeek"])
	if !ok {
		hours, ok = floatFromAnswer(rawAnswers["hours_per_week"])
	}
	if !ok {
		return DefaultTimeCommitment
	}

	return clampInt(int(math.Round(hours/10*5)), 1, 5)
}

func normalizeCategories(rawAnswers map[string]interface{}) []string {
	raw := stringSliceAnswer(rawAnswers, "categories", "interests")

	seen := make(map[string]bool, len(raw))
	categories := make([]string, 0, MaxCategories)
	for _, category := range raw {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" || seen[category] {
			continue
		}
		seen[category] = true
		categories = append(categories, category)
		if len(categories) == MaxCategories {
			break
		}
	}

	return categories
}

func normalizeFollowing(rawAnswers map[string]interface{}) map[string]int64 {
	following := make(map[string]int64)

	raw, ok := rawAnswers["followingByPlatform"].(map[string]interface{})
	if !ok {
		raw, ok = rawAnswers["following_by_platform"].(map[string]interface{})
	}
	if !ok {
		return following
	}

	for platform, value := range raw {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}
		count, ok := floatFromAnswer(value)
		if !ok || count < 0 {
			continue
		}
		following[platform] = int64(count)
	}

	return following
}

// estimateEngagementRate computes a weighted engagement estimate across
// platforms and divides by total following. The denominator is floored at 1
// so an empty audience yields 0 rather than dividing by zero.
func estimateEngagementRate(following map[string]int64) float64 {
	// iterate platforms deterministically
	platforms := make([]string, 0, len(following))
	for platform := range following {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)

	var engagementVolume float64
	var totalFollowing int64
	for _, platform := range platforms {
		count := following[platform]
		totalFollowing += count
		engagementVolume += float64(count) * bandRate(platform, count)
	}

	denominator := totalFollowing
	if denominator < 1 {
		denominator = 1
	}

	return clampFloat(engagementVolume/float64(denominator), 0, 1)
}

func bandRate(platform string, followers int64) float64 {
	bands, ok := engagementBands[platform]
	if !ok {
		bands = defaultBands
	}
	for _, band := range bands {
		if followers <= band.maxFollowers {
			return band.rate
		}
	}
	return bands[len(bands)-1].rate
}

// answer extraction helpers

func stringAnswer(rawAnswers map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := rawAnswers[key].(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func floatAnswer(rawAnswers map[string]interface{}, fallback float64, keys ...string) float64 {
	for _, key := range keys {
		if value, ok := floatFromAnswer(rawAnswers[key]); ok {
			return value
		}
	}
	return fallback
}

func stringSliceAnswer(rawAnswers map[string]interface{}, keys ...string) []string {
	for _, key := range keys {
		switch value := rawAnswers[key].(type) {
		case []string:
			return value
		case []interface{}:
			items := make([]string, 0, len(value))
			for _, item := range value {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
			return items
		case string:
			if value == "" {
				continue
			}
			return strings.Split(value, ",")
		}
	}
	return nil
}

func stringSetAnswer(rawAnswers map[string]interface{}, keys ...string) []string {
	raw := stringSliceAnswer(rawAnswers, keys...)

	seen := make(map[string]bool, len(raw))
	set := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		set = append(set, item)
	}

	return set
}

func floatFromAnswer(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func intFromAnswer(value interface{}) (int, bool) {
	parsed, ok := floatFromAnswer(value)
	if !ok {
		return 0, false
	}
	return int(math.Round(parsed)), true
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
