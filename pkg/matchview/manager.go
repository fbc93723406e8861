package matchview

import (
	"context"
	"sync"

	"github.com/Rowan-T/clover/pkg/logging"
)

// Manager owns one controller per subject, created lazily on first use and
// torn down on release.
type Manager struct {
	store     Store
	cache     Cache
	subscribe SubscribeFunc
	cfg       Config
	logger    logging.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager creates a controller manager
func NewManager(store Store, cache Cache, subscribe SubscribeFunc, cfg Config, logger logging.Logger) *Manager {
	return &Manager{
		store:       store,
		cache:       cache,
		subscribe:   subscribe,
		cfg:         cfg,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the subject's controller, activating a new one if needed
func (m *Manager) Get(ctx context.Context, subjectID string) (*Controller, error) {
	m.mu.Lock()
	if controller, ok := m.controllers[subjectID]; ok {
		m.mu.Unlock()
		return controller, nil
	}
	m.mu.Unlock()

	controller := NewController(subjectID, m.store, m.cache, m.subscribe, m.cfg, m.logger)
	if err := controller.Activate(ctx); err != nil {
		_ = controller.Close()
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.controllers[subjectID]; ok {
		// Lost the race; keep the established controller.
		_ = controller.Close()
		return existing, nil
	}
	m.controllers[subjectID] = controller
	return controller, nil
}

// Release closes and removes the subject's controller if one exists
func (m *Manager) Release(subjectID string) error {
	m.mu.Lock()
	controller, ok := m.controllers[subjectID]
	delete(m.controllers, subjectID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return controller.Close()
}

// Close releases every controller
func (m *Manager) Close() error {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, controller := range m.controllers {
		controllers = append(controllers, controller)
	}
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	var firstErr error
	for _, controller := range controllers {
		if err := controller.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
