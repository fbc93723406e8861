package matchview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rowan-T/clover/pkg/events"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
)

type fakeStore struct {
	mu      sync.Mutex
	records []models.MatchRecord
	listErr error

	saveStarted  chan string
	saveRelease  chan struct{}
	deletedCalls int
}

func (f *fakeStore) ListBySubject(ctx context.Context, subjectID string, offset, limit int) ([]models.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	if offset >= len(f.records) {
		return []models.MatchRecord{}, nil
	}
	end := offset + limit
	if end > len(f.records) {
		end = len(f.records)
	}
	page := make([]models.MatchRecord, end-offset)
	copy(page, f.records[offset:end])
	return page, nil
}

func (f *fakeStore) SetSaved(ctx context.Context, subjectID, externalPlaceID string, saved bool) (*models.MatchRecord, error) {
	if f.saveStarted != nil {
		f.saveStarted <- externalPlaceID
		<-f.saveRelease
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ExternalPlaceID == externalPlaceID {
			f.records[i].Saved = saved
			record := f.records[i]
			return &record, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (f *fakeStore) DeleteAllForSubject(ctx context.Context, subjectID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedCalls++
	n := int64(len(f.records))
	f.records = nil
	return n, nil
}

type fakeCache struct {
	mu       sync.Mutex
	snapshot []models.MatchRecord
	getErr   error
	cleared  int
}

func (f *fakeCache) Get(ctx context.Context, subjectID string) ([]models.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.snapshot, nil
}

func (f *fakeCache) Clear(ctx context.Context, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.snapshot = nil
	return nil
}

func (f *fakeCache) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

type fakeSubscription struct {
	events chan events.MatchEvent
	closed bool
	mu     sync.Mutex
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan events.MatchEvent, 16)}
}

func (f *fakeSubscription) Events() <-chan events.MatchEvent { return f.events }

func (f *fakeSubscription) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func record(placeID string, meters float64) models.MatchRecord {
	return models.MatchRecord{
		SubjectID:       "subject-1",
		ExternalPlaceID: placeID,
		Name:            "Business " + placeID,
		Category:        "coffee",
		MatchScore:      0.8,
		DistanceMeters:  &meters,
	}
}

func makeRecords(n int) []models.MatchRecord {
	records := make([]models.MatchRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, record(fmt.Sprintf("p%02d", i), 1609.34))
	}
	return records
}

func newTestController(store Store, cache Cache, subscribe SubscribeFunc, cfg Config) *Controller {
	return NewController("subject-1", store, cache, subscribe, cfg, logging.NewNop())
}

func TestController_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("hydrates from snapshot then replaces with authoritative", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(3)}
		cache := &fakeCache{snapshot: []models.MatchRecord{record("stale", 1000)}}
		c := newTestController(store, cache, nil, Config{PageSize: 10})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))

		records := c.Records()
		require.Len(t, records, 3)
		assert.Equal(t, "p00", records[0].ExternalPlaceID)
		assert.Equal(t, StateSteady, c.State())
		assert.Equal(t, 1, cache.clearCount(), "snapshot cleared once authoritative data lands")
	})

	t.Run("cache failure is non fatal", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(2)}
		cache := &fakeCache{getErr: fmt.Errorf("redis down")}
		c := newTestController(store, cache, nil, Config{PageSize: 10})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))
		assert.Len(t, c.Records(), 2)
	})

	t.Run("keeps hydrated snapshot when authoritative fetch fails", func(t *testing.T) {
		store := &fakeStore{listErr: fmt.Errorf("db down")}
		cache := &fakeCache{snapshot: []models.MatchRecord{record("cached", 1000)}}
		c := newTestController(store, cache, nil, Config{PageSize: 10})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))

		records := c.Records()
		require.Len(t, records, 1)
		assert.Equal(t, "cached", records[0].ExternalPlaceID)
		assert.Equal(t, 0, cache.clearCount())
	})

	t.Run("derives miles from canonical meters", func(t *testing.T) {
		store := &fakeStore{records: []models.MatchRecord{record("p1", 2500)}}
		c := newTestController(store, &fakeCache{}, nil, Config{PageSize: 10})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))

		records := c.Records()
		require.Len(t, records, 1)
		require.NotNil(t, records[0].DistanceMiles)
		assert.Equal(t, 1.6, *records[0].DistanceMiles)
	})
}

func TestController_LoadMore(t *testing.T) {
	ctx := context.Background()

	t.Run("appends pages and stops at the end", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(5)}
		c := newTestController(store, &fakeCache{}, nil, Config{PageSize: 2})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))
		assert.Len(t, c.Records(), 2)

		require.NoError(t, c.LoadMore(ctx))
		assert.Len(t, c.Records(), 4)

		require.NoError(t, c.LoadMore(ctx))
		assert.Len(t, c.Records(), 5)

		// End reached, further calls are no-ops.
		require.NoError(t, c.LoadMore(ctx))
		assert.Len(t, c.Records(), 5)
		assert.Equal(t, StateSteady, c.State())
	})

	t.Run("drops records already present in the view", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(4)}
		c := newTestController(store, &fakeCache{}, nil, Config{PageSize: 2})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))

		// A new match landing at the top shifts the pages, so the next page
		// re-serves a record the view already holds.
		store.mu.Lock()
		store.records = append([]models.MatchRecord{record("new-top", 500)}, store.records...)
		store.mu.Unlock()

		require.NoError(t, c.LoadMore(ctx))

		ids := map[string]int{}
		for _, r := range c.Records() {
			ids[r.ExternalPlaceID]++
		}
		for id, count := range ids {
			assert.Equal(t, 1, count, "record %s duplicated in view", id)
		}
	})
}

func TestController_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("empty authoritative result preserves the hydrated snapshot", func(t *testing.T) {
		store := &fakeStore{}
		cache := &fakeCache{snapshot: []models.MatchRecord{record("stale", 1000)}}
		c := newTestController(store, cache, nil, Config{PageSize: 10})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))

		// An empty authoritative answer does not wipe a non-empty cached
		// view; the snapshot keeps serving until real data lands.
		records := c.Records()
		assert.Len(t, records, 1, "empty authoritative result preserves cached view")
		assert.Equal(t, StateSteady, c.State())
	})

	t.Run("refresh covers the paginated window", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(6)}
		c := newTestController(store, &fakeCache{}, nil, Config{PageSize: 2})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))
		require.NoError(t, c.LoadMore(ctx))
		require.Len(t, c.Records(), 4)

		require.NoError(t, c.Refresh(ctx))
		assert.Len(t, c.Records(), 4, "refresh window matches the view size")
	})
}

func TestController_SetSaved(t *testing.T) {
	ctx := context.Background()

	t.Run("flips the flag only after the store confirms", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(1)}
		c := newTestController(store, &fakeCache{}, nil, Config{PageSize: 10})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))
		require.NoError(t, c.SetSaved(ctx, "p00", true))

		records := c.Records()
		require.Len(t, records, 1)
		assert.True(t, records[0].Saved)
	})

	t.Run("store failure leaves the view untouched", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(1)}
		c := newTestController(store, &fakeCache{}, nil, Config{PageSize: 10})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))
		require.Error(t, c.SetSaved(ctx, "missing", true))
		assert.False(t, c.Records()[0].Saved)
	})

	t.Run("second toggle during an in-flight save is ignored", func(t *testing.T) {
		store := &fakeStore{
			records:     makeRecords(1),
			saveStarted: make(chan string, 2),
			saveRelease: make(chan struct{}),
		}
		c := newTestController(store, &fakeCache{}, nil, Config{PageSize: 10})
		defer c.Close()

		// Activate before arming the save gate so the initial refresh is
		// unaffected.
		require.NoError(t, c.Activate(ctx))

		done := make(chan error, 1)
		go func() {
			done <- c.SetSaved(ctx, "p00", true)
		}()
		<-store.saveStarted

		// The overlapping toggle returns immediately and never reaches the
		// store.
		require.NoError(t, c.SetSaved(ctx, "p00", false))
		select {
		case <-store.saveStarted:
			t.Fatal("second toggle reached the store while the first was in flight")
		case <-time.After(50 * time.Millisecond):
		}

		close(store.saveRelease)
		require.NoError(t, <-done)

		assert.True(t, c.Records()[0].Saved, "first toggle's result stands")
	})
}

func TestController_ClearAll(t *testing.T) {
	ctx := context.Background()

	store := &fakeStore{records: makeRecords(3)}
	cache := &fakeCache{snapshot: makeRecords(3)}
	c := newTestController(store, cache, nil, Config{PageSize: 10})
	defer c.Close()

	require.NoError(t, c.Activate(ctx))
	clearsBefore := cache.clearCount()

	require.NoError(t, c.ClearAll(ctx))

	assert.Empty(t, c.Records())
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, clearsBefore+1, cache.clearCount())
	assert.Equal(t, 1, store.deletedCalls)
}

func TestController_RealtimeRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("burst of notifications coalesces into one refresh", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(1)}
		sub := newFakeSubscription()
		subscribe := func(ctx context.Context, subjectID string) (Subscription, error) {
			return sub, nil
		}
		c := newTestController(store, &fakeCache{}, subscribe, Config{
			PageSize:       10,
			DebounceWindow: 40 * time.Millisecond,
		})
		defer c.Close()

		require.NoError(t, c.Activate(ctx))

		// Mutate the store, then fire a burst. Only the settled view matters.
		store.mu.Lock()
		store.records = makeRecords(3)
		store.mu.Unlock()

		for i := 0; i < 5; i++ {
			sub.events <- events.MatchEvent{EventType: events.EventMatchCreated, SubjectID: "subject-1"}
		}

		assert.Eventually(t, func() bool {
			return len(c.Records()) == 3
		}, time.Second, 10*time.Millisecond)

		assert.Eventually(t, func() bool {
			return !c.LiveUpdatePending()
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("close releases the subscription and disarms the debounce", func(t *testing.T) {
		store := &fakeStore{records: makeRecords(1)}
		sub := newFakeSubscription()
		subscribe := func(ctx context.Context, subjectID string) (Subscription, error) {
			return sub, nil
		}
		c := newTestController(store, &fakeCache{}, subscribe, Config{
			PageSize:       10,
			DebounceWindow: 20 * time.Millisecond,
		})

		require.NoError(t, c.Activate(ctx))
		sub.events <- events.MatchEvent{EventType: events.EventMatchUpdated, SubjectID: "subject-1"}
		require.NoError(t, c.Close())

		sub.mu.Lock()
		closed := sub.closed
		sub.mu.Unlock()
		assert.True(t, closed)
		assert.False(t, c.LiveUpdatePending())

		// A pending timer must not resurrect a closed controller's refresh.
		before := len(c.Records())
		time.Sleep(60 * time.Millisecond)
		assert.Len(t, c.Records(), before)
	})
}
