package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rowan-T/clover/pkg/database"
)

func TestMilesFromMeters(t *testing.T) {
	t.Run("one mile exactly", func(t *testing.T) {
		meters := 1609.34
		miles := MilesFromMeters(&meters)
		require.NotNil(t, miles)
		assert.Equal(t, 1.0, *miles)
	})

	t.Run("rounds to one decimal", func(t *testing.T) {
		meters := 2500.0
		miles := MilesFromMeters(&meters)
		require.NotNil(t, miles)
		assert.Equal(t, 1.6, *miles)
	})

	t.Run("nil stays nil, never zero", func(t *testing.T) {
		assert.Nil(t, MilesFromMeters(nil))
	})

	t.Run("zero meters is zero miles", func(t *testing.T) {
		meters := 0.0
		miles := MilesFromMeters(&meters)
		require.NotNil(t, miles)
		assert.Equal(t, 0.0, *miles)
	})
}

func TestSearchProfile_TotalFollowing(t *testing.T) {
	profile := SearchProfile{
		FollowingByPlatform: map[string]int64{
			"instagram": 12000,
			"tiktok":    8000,
		},
	}
	assert.Equal(t, int64(20000), profile.TotalFollowing())

	empty := SearchProfile{}
	assert.Equal(t, int64(0), empty.TotalFollowing())
}

func TestSearchProfile_PreferredRadiusMeters(t *testing.T) {
	profile := SearchProfile{PreferredRadiusMiles: 10}
	assert.InDelta(t, 16093.4, profile.PreferredRadiusMeters(), 0.001)
}

func TestNarrativeProfile_SearchProfile(t *testing.T) {
	t.Run("returns the stored profile", func(t *testing.T) {
		narrative := &NarrativeProfile{
			Profile: database.NewJSONB(SearchProfile{PreferredRadiusMiles: 5, Categories: []string{"coffee"}}),
		}
		profile := narrative.SearchProfile()
		require.NotNil(t, profile)
		assert.Equal(t, 5.0, profile.PreferredRadiusMiles)
		assert.Equal(t, []string{"coffee"}, profile.Categories)
	})

	t.Run("nil narrative yields nil profile", func(t *testing.T) {
		var narrative *NarrativeProfile
		assert.Nil(t, narrative.SearchProfile())
	})
}
