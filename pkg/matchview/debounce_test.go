package matchview

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer(t *testing.T) {
	t.Run("burst collapses to a single callback", func(t *testing.T) {
		var fired int64
		d := NewDebouncer(30*time.Millisecond, func() {
			atomic.AddInt64(&fired, 1)
		})
		defer d.Stop()

		for i := 0; i < 10; i++ {
			d.Trigger()
			time.Sleep(2 * time.Millisecond)
		}
		assert.True(t, d.Pending())

		assert.Eventually(t, func() bool {
			return atomic.LoadInt64(&fired) == 1
		}, time.Second, 5*time.Millisecond)

		// No straggler fires after the burst settles.
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, int64(1), atomic.LoadInt64(&fired))
		assert.False(t, d.Pending())
	})

	t.Run("trigger after settle re-arms", func(t *testing.T) {
		var fired int64
		d := NewDebouncer(10*time.Millisecond, func() {
			atomic.AddInt64(&fired, 1)
		})
		defer d.Stop()

		d.Trigger()
		assert.Eventually(t, func() bool {
			return atomic.LoadInt64(&fired) == 1
		}, time.Second, 2*time.Millisecond)

		d.Trigger()
		assert.Eventually(t, func() bool {
			return atomic.LoadInt64(&fired) == 2
		}, time.Second, 2*time.Millisecond)
	})

	t.Run("stop cancels a pending callback", func(t *testing.T) {
		var fired int64
		d := NewDebouncer(20*time.Millisecond, func() {
			atomic.AddInt64(&fired, 1)
		})

		d.Trigger()
		d.Stop()
		assert.False(t, d.Pending())

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(0), atomic.LoadInt64(&fired))

		// Triggers after Stop stay dead.
		d.Trigger()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(0), atomic.LoadInt64(&fired))
	})
}
