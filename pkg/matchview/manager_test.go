package matchview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rowan-T/clover/pkg/logging"
)

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses the subject's controller across calls", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(2)}
		m := NewManager(store, &fakeCache{}, nil, Config{PageSize: 10}, logging.NewNop())
		defer m.Close()

		first, err := m.Get(ctx, "subject-1")
		require.NoError(t, err)
		second, err := m.Get(ctx, "subject-1")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("release tears the controller down", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(2)}
		m := NewManager(store, &fakeCache{}, nil, Config{PageSize: 10}, logging.NewNop())
		defer m.Close()

		first, err := m.Get(ctx, "subject-1")
		require.NoError(t, err)
		require.NoError(t, m.Release("subject-1"))

		// A fresh controller is built on the next access.
		next, err := m.Get(ctx, "subject-1")
		require.NoError(t, err)
		assert.NotSame(t, first, next)

		// Releasing an unknown subject is a no-op.
		assert.NoError(t, m.Release("nobody"))
	})
}
