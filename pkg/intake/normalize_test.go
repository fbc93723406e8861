package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rowan-T/clover/pkg/models"
)

func TestNormalize_Defaults(t *testing.T) {
	t.Run("empty answers resolve to field defaults", func(t *testing.T) {
		profile := Normalize(map[string]any{})

		assert.Equal(t, models.AthleteTierCollege, profile.AthleteTier)
		assert.Equal(t, DefaultTimeCommitment, profile.TimeCommitment)
		assert.Equal(t, DefaultRadiusMiles, profile.PreferredRadiusMiles)
		assert.Empty(t, profile.Categories)
		assert.Equal(t, 0.0, profile.EngagementRate)
		assert.Nil(t, profile.SchoolOrAffiliation)
	})

	t.Run("nil map never panics", func(t *testing.T) {
		profile := Normalize(nil)
		assert.Equal(t, DefaultRadiusMiles, profile.PreferredRadiusMiles)
	})

	t.Run("malformed values degrade to defaults", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"athleteTier":          42,
			"hoursPerWeek":         "not a number",
			"preferredRadiusMiles": []string{"nope"},
			"categories":           123,
		})

		assert.Equal(t, models.AthleteTierCollege, profile.AthleteTier)
		assert.Equal(t, DefaultTimeCommitment, profile.TimeCommitment)
		assert.Equal(t, DefaultRadiusMiles, profile.PreferredRadiusMiles)
		assert.Empty(t, profile.Categories)
	})
}

func TestNormalize_TimeCommitment(t *testing.T) {
	tests := []struct {
		name     string
		answers  map[string]any
		expected int
	}{
		{"explicit value wins", map[string]any{"timeCommitment": 4, "hoursPerWeek": 2.0}, 4},
		{"explicit value clamped high", map[string]any{"timeCommitment": 9}, 5},
		{"explicit value clamped low", map[string]any{"timeCommitment": 0}, 1},
		{"ten hours maps to five", map[string]any{"hoursPerWeek": 10.0}, 5},
		{"five hours rounds to three", map[string]any{"hoursPerWeek": 5.0}, 3},
		{"one hour clamps to one", map[string]any{"hoursPerWeek": 1.0}, 1},
		{"forty hours clamps to five", map[string]any{"hoursPerWeek": 40.0}, 5},
		{"string hours parse", map[string]any{"hoursPerWeek": "6"}, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profile := Normalize(tc.answers)
			assert.Equal(t, tc.expected, profile.TimeCommitment)
		})
	}
}

func TestNormalize_Categories(t *testing.T) {
	t.Run("case folded, deduplicated, capped at three", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"categories": []any{"Coffee", "coffee", " GYM ", "retail", "salon"},
		})
		assert.Equal(t, []string{"coffee", "gym", "retail"}, profile.Categories)
	})

	t.Run("interests key is an alias", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"interests": []string{"fitness", "food"},
		})
		assert.Equal(t, []string{"fitness", "food"}, profile.Categories)
	})
}

func TestNormalize_Tier(t *testing.T) {
	profile := Normalize(map[string]any{"athleteTier": "Semi_Pro"})
	assert.Equal(t, models.AthleteTierSemiPro, profile.AthleteTier)

	profile = Normalize(map[string]any{"tier": "professional"})
	assert.Equal(t, models.AthleteTierProfessional, profile.AthleteTier)
}

func TestNormalize_EngagementRate(t *testing.T) {
	t.Run("small account gets high band rate", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"followingByPlatform": map[string]any{"instagram": 500.0},
		})
		assert.InDelta(t, 0.08, profile.EngagementRate, 0.0001)
	})

	t.Run("weighted across platforms", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"followingByPlatform": map[string]any{
				"instagram": 500.0,
				"tiktok":    500.0,
			},
		})
		// (500*0.08 + 500*0.12) / 1000
		assert.InDelta(t, 0.1, profile.EngagementRate, 0.0001)
	})

	t.Run("unknown platform uses default bands", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"followingByPlatform": map[string]any{"twitch": 500.0},
		})
		assert.InDelta(t, 0.05, profile.EngagementRate, 0.0001)
	})

	t.Run("empty audience yields zero without dividing by zero", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"followingByPlatform": map[string]any{},
		})
		assert.Equal(t, 0.0, profile.EngagementRate)
	})

	t.Run("negative counts are dropped", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"followingByPlatform": map[string]any{"instagram": -100.0},
		})
		require.Empty(t, profile.FollowingByPlatform)
		assert.Equal(t, 0.0, profile.EngagementRate)
	})

	t.Run("rate stays within unit interval", func(t *testing.T) {
		profile := Normalize(map[string]any{
			"followingByPlatform": map[string]any{"tiktok": 900.0},
		})
		assert.GreaterOrEqual(t, profile.EngagementRate, 0.0)
		assert.LessOrEqual(t, profile.EngagementRate, 1.0)
	})
}

func TestNormalize_RadiusAndSchool(t *testing.T) {
	profile := Normalize(map[string]any{
		"preferredRadiusMiles": 25.0,
		"schoolOrAffiliation":  " State University ",
		"contentTypes":         []any{"Video", "video", "photo"},
	})

	assert.Equal(t, 25.0, profile.PreferredRadiusMiles)
	require.NotNil(t, profile.SchoolOrAffiliation)
	assert.Equal(t, "State University", *profile.SchoolOrAffiliation)
	assert.Equal(t, []string{"video", "photo"}, profile.ContentTypes)

	t.Run("negative radius clamps to zero", func(t *testing.T) {
		profile := Normalize(map[string]any{"preferredRadiusMiles": -5.0})
		assert.Equal(t, 0.0, profile.PreferredRadiusMiles)
	})
}
