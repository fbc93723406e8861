package events

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberConfig_GroupID(t *testing.T) {
	t.Run("configured prefix namespaces the group", func(t *testing.T) {
		cfg := SubscriberConfig{GroupPrefix: "clover-view-consumer"}

		id := cfg.groupID()
		require.True(t, strings.HasPrefix(id, "clover-view-consumer-"))
		_, err := uuid.Parse(strings.TrimPrefix(id, "clover-view-consumer-"))
		assert.NoError(t, err)
	})

	t.Run("empty prefix falls back to the default", func(t *testing.T) {
		cfg := SubscriberConfig{}
		assert.True(t, strings.HasPrefix(cfg.groupID(), defaultGroupPrefix+"-"))
	})

	t.Run("each subscription gets its own group", func(t *testing.T) {
		cfg := SubscriberConfig{GroupPrefix: "clover-view-consumer"}
		assert.NotEqual(t, cfg.groupID(), cfg.groupID())
	})
}
