// Package matchview keeps a client-facing view of a subject's matches
// correct under caching, pagination, and realtime mutation.
package matchview

import (
	"context"
	"sync"
	"time"

	"github.com/Rowan-T/clover/pkg/events"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// State is the controller's lifecycle position
type State string

const (
	StateEmpty      State = "empty"
	StateHydrating  State = "hydrating"
	StateRefreshing State = "refreshing"
	StateSteady     State = "steady"
	StatePaginating State = "paginating"
)

// Store is the authoritative match source
type Store interface {
	ListBySubject(ctx context.Context, subjectID string, offset, limit int) ([]models.MatchRecord, error)
	SetSaved(ctx context.Context, subjectID, externalPlaceID string, saved bool) (*models.MatchRecord, error)
	DeleteAllForSubject(ctx context.Context, subjectID string) (int64, error)
}

// Cache is the durable per-subject snapshot used to hydrate the view before
// the authoritative fetch resolves
type Cache interface {
	Get(ctx context.Context, subjectID string) ([]models.MatchRecord, error)
	Clear(ctx context.Context, subjectID string) error
}

// Subscription delivers the subject's change feed until closed
type Subscription interface {
	Events() <-chan events.MatchEvent
	Close() error
}

// SubscribeFunc establishes a change feed subscription for a subject
type SubscribeFunc func(ctx context.Context, subjectID string) (Subscription, error)

// Config holds controller tuning
type Config struct {
	PageSize       int
	DebounceWindow time.Duration
	RefreshTimeout time.Duration
}

// Controller orchestrates cache hydration, authoritative reconciliation,
// debounced realtime refresh, and paginated loading for one subject.
type Controller struct {
	subjectID string
	store     Store
	cache     Cache
	subscribe SubscribeFunc
	logger    logging.Logger
	cfg       Config

	debouncer *Debouncer
	cancel    context.CancelFunc

	mu            sync.Mutex
	state         State
	records       []models.MatchRecord
	seen          map[string]bool
	endReached    bool
	savesInFlight map[string]bool
	sub           Subscription
	closed        bool
}

// NewController creates a controller for one subject. Call Activate to start
// it and Close to tear it down.
func NewController(subjectID string, store Store, cache Cache, subscribe SubscribeFunc, cfg Config, logger logging.Logger) *Controller {
	if cfg.PageSize < 1 {
		cfg.PageSize = 20
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 400 * time.Millisecond
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 10 * time.Second
	}

	return &Controller{
		subjectID:     subjectID,
		store:         store,
		cache:         cache,
		subscribe:     subscribe,
		logger:        logger,
		cfg:           cfg,
		state:         StateEmpty,
		seen:          make(map[string]bool),
		savesInFlight: make(map[string]bool),
	}
}

// Activate hydrates the view from the cached snapshot if one exists, then
// issues the authoritative refresh unconditionally and starts the realtime
// subscription. Cache problems are non-fatal.
func (c *Controller) Activate(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "matchview.Controller.Activate")
	defer span.End()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.debouncer = NewDebouncer(c.cfg.DebounceWindow, func() {
		refreshCtx, refreshCancel := context.WithTimeout(runCtx, c.cfg.RefreshTimeout)
		defer refreshCancel()
		if err := c.Refresh(refreshCtx); err != nil {
			c.logger.WithContext(refreshCtx).WithError(err).Warn("Debounced refresh failed")
		}
	})

	cached, err := c.cache.Get(ctx, c.subjectID)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Snapshot hydration failed, continuing without cache")
		cached = nil
	}
	if len(cached) > 0 {
		c.mu.Lock()
		c.state = StateHydrating
		c.replaceLocked(cached)
		c.mu.Unlock()
	}

	if err := c.Refresh(ctx); err != nil {
		// Keep serving the hydrated view; the subscription will retry.
		c.logger.WithContext(ctx).WithError(err).Warn("Authoritative refresh failed on activation")
	}

	if c.subscribe != nil {
		sub, err := c.subscribe(runCtx, c.subjectID)
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Change feed subscription failed, operating without realtime refresh")
		} else {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
			go c.notificationLoop(runCtx, sub)
		}
	}

	return nil
}

// notificationLoop schedules a debounced refresh per change notification.
// Payloads are ignored; the refresh always re-fetches.
func (c *Controller) notificationLoop(ctx context.Context, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			c.debouncer.Trigger()
		}
	}
}

// Refresh fetches the authoritative view and reconciles it against whatever
// is currently shown. The fetch window covers the current view size so
// pagination progress survives a refresh.
func (c *Controller) Refresh(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "matchview.Controller.Refresh")
	defer span.End()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateRefreshing
	window := len(c.records)
	if window < c.cfg.PageSize {
		window = c.cfg.PageSize
	}
	current := c.records
	c.mu.Unlock()

	authoritative, err := c.store.ListBySubject(ctx, c.subjectID, 0, window)
	if err != nil {
		c.mu.Lock()
		c.state = c.settledStateLocked()
		c.mu.Unlock()
		return err
	}

	final, clearCache := Reconcile(current, authoritative)

	c.mu.Lock()
	c.replaceLocked(final)
	c.endReached = false
	c.state = c.settledStateLocked()
	c.mu.Unlock()

	if clearCache {
		if err := c.cache.Clear(ctx, c.subjectID); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to clear match snapshot after reconciliation")
		}
	}

	return nil
}

// LoadMore appends the next page of unseen records. Invoking it with no
// further pages available is a no-op, not an error.
func (c *Controller) LoadMore(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "matchview.Controller.LoadMore")
	defer span.End()

	c.mu.Lock()
	if c.closed || c.endReached {
		c.mu.Unlock()
		return nil
	}
	c.state = StatePaginating
	offset := len(c.records)
	c.mu.Unlock()

	page, err := c.store.ListBySubject(ctx, c.subjectID, offset, c.cfg.PageSize)
	if err != nil {
		c.mu.Lock()
		c.state = c.settledStateLocked()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	for _, record := range page {
		c.appendLocked(record)
	}
	if len(page) < c.cfg.PageSize {
		c.endReached = true
	}
	c.state = c.settledStateLocked()
	c.mu.Unlock()

	return nil
}

// SetSaved toggles the saved flag on one record. The view is only updated
// after the store confirms the write; a second toggle on a record already
// mid-flight is ignored until the first completes.
func (c *Controller) SetSaved(ctx context.Context, externalPlaceID string, saved bool) error {
	ctx, span := tracing.StartSpan(ctx, "matchview.Controller.SetSaved")
	defer span.End()

	c.mu.Lock()
	if c.closed || c.savesInFlight[externalPlaceID] {
		c.mu.Unlock()
		return nil
	}
	c.savesInFlight[externalPlaceID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.savesInFlight, externalPlaceID)
		c.mu.Unlock()
	}()

	updated, err := c.store.SetSaved(ctx, c.subjectID, externalPlaceID, saved)
	if err != nil {
		// The flag was never flipped locally, so there is nothing to roll
		// back; the view still shows what the store holds.
		return err
	}

	c.mu.Lock()
	for i := range c.records {
		if c.records[i].ExternalPlaceID == externalPlaceID {
			c.records[i].Saved = updated.Saved
			break
		}
	}
	c.mu.Unlock()

	return nil
}

// ClearAll deletes every match for the subject. Confirmation is the caller's
// responsibility. On failure the view is left unchanged.
func (c *Controller) ClearAll(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "matchview.Controller.ClearAll")
	defer span.End()

	if _, err := c.store.DeleteAllForSubject(ctx, c.subjectID); err != nil {
		return err
	}

	c.mu.Lock()
	c.replaceLocked(nil)
	c.endReached = false
	c.state = StateEmpty
	c.mu.Unlock()

	if err := c.cache.Clear(ctx, c.subjectID); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to clear match snapshot after delete")
	}

	return nil
}

// Records returns a copy of the current view
func (c *Controller) Records() []models.MatchRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]models.MatchRecord, len(c.records))
	copy(records, c.records)
	return records
}

// State returns the controller's current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LiveUpdatePending reports whether a debounced refresh is armed
func (c *Controller) LiveUpdatePending() bool {
	return c.debouncer != nil && c.debouncer.Pending()
}

// Close tears the controller down: the debounce timer is cleared and the
// subscription released. No callbacks fire after Close returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.mu.Unlock()

	if c.debouncer != nil {
		c.debouncer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if sub != nil {
		return sub.Close()
	}
	return nil
}

// replaceLocked swaps the view contents. Records pass through the single
// conversion site and the dedup index is rebuilt. Caller holds c.mu.
func (c *Controller) replaceLocked(records []models.MatchRecord) {
	c.records = c.records[:0]
	c.seen = make(map[string]bool, len(records))
	for _, record := range records {
		c.appendLocked(record)
	}
}

// appendLocked adds a record unless its identity is already present.
// Caller holds c.mu.
func (c *Controller) appendLocked(record models.MatchRecord) {
	if c.seen[record.ExternalPlaceID] {
		return
	}
	c.seen[record.ExternalPlaceID] = true
	// Meters is canonical; miles is derived here and nowhere else.
	record.DistanceMiles = models.MilesFromMeters(record.DistanceMeters)
	c.records = append(c.records, record)
}

func (c *Controller) settledStateLocked() State {
	if len(c.records) == 0 {
		return StateEmpty
	}
	return StateSteady
}
