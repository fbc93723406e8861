package matchview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rowan-T/clover/pkg/models"
)

func TestReconcile(t *testing.T) {
	cached := []models.MatchRecord{record("cached", 1000)}
	authoritative := []models.MatchRecord{record("auth-1", 2000), record("auth-2", 3000)}

	t.Run("authoritative data replaces the cache and invalidates it", func(t *testing.T) {
		final, clearCache := Reconcile(cached, authoritative)
		assert.Equal(t, authoritative, final)
		assert.True(t, clearCache)
	})

	t.Run("empty authoritative keeps the cached view", func(t *testing.T) {
		final, clearCache := Reconcile(cached, nil)
		assert.Equal(t, cached, final)
		assert.False(t, clearCache)
	})

	t.Run("both empty stays empty", func(t *testing.T) {
		final, clearCache := Reconcile(nil, nil)
		assert.Empty(t, final)
		assert.False(t, clearCache)
	})

	t.Run("authoritative wins even without a cached view", func(t *testing.T) {
		final, clearCache := Reconcile(nil, authoritative)
		assert.Equal(t, authoritative, final)
		assert.True(t, clearCache)
	})
}
