// internal/domain/cart/manager.go
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager owns one cart aggregate per session and persists them
type Manager struct {
	mu        sync.Mutex
	carts     map[string]*Service
	saved     map[string]time.Time // UpdatedAt of the last stored snapshot
	settings  Settings
	pricer    Pricer
	store     Store
	observers []Observer
	opts      []ServiceOption
	logger    *logrus.Logger
	now       func() time.Time
}

// NewManager creates a manager. store may be nil to disable persistence.
func NewManager(settings Settings, pricer Pricer, store Store, logger *logrus.Logger, opts ...ServiceOption) *Manager {
	return &Manager{
		carts:    make(map[string]*Service),
		saved:    make(map[string]time.Time),
		settings: settings,
		pricer:   pricer,
		store:    store,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Observe attaches o to every cart created from now on
func (m *Manager) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Get returns the session cart, restoring it from the store on first use
func (m *Manager) Get(ctx context.Context, sessionID string) *Service {
	return m.lookup(ctx, sessionID, true)
}

// View returns the session cart if it is live or stored. Otherwise it
// returns an empty cart that is not registered for the session.
func (m *Manager) View(ctx context.Context, sessionID string) *Service {
	if sessionID != "" {
		if svc := m.lookup(ctx, sessionID, false); svc != nil {
			return svc
		}
	}
	return NewService(m.settings, m.pricer, m.logger, m.opts...)
}

func (m *Manager) lookup(ctx context.Context, sessionID string, create bool) *Service {
	m.mu.Lock()
	defer m.mu.Unlock()

	if svc, ok := m.carts[sessionID]; ok {
		return svc
	}

	var snapshot *Cart
	if m.store != nil {
		stored, err := m.store.Load(ctx, sessionID)
		switch {
		case err == nil:
			snapshot = stored
		case errors.Is(err, ErrSnapshotNotFound):
		default:
			m.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to restore cart, starting empty")
		}
	}
	if snapshot == nil && !create {
		return nil
	}

	svc := NewService(m.settings, m.pricer, m.logger, m.opts...)
	if snapshot != nil {
		svc.Restore(ctx, snapshot)
		m.saved[sessionID] = svc.updatedAt()
	}
	for _, o := range m.observers {
		svc.Subscribe(o)
	}

	m.carts[sessionID] = svc
	return svc
}

// Save persists one session cart
func (m *Manager) Save(ctx context.Context, sessionID string) error {
	if m.store == nil {
		return nil
	}
	return m.Get(ctx, sessionID).Save(ctx, m.store, sessionID)
}

// SaveAll writes a snapshot of every changed cart and returns how many
// failed. Auto-save uses the store directly and publishes no event.
func (m *Manager) SaveAll(ctx context.Context) int {
	if m.store == nil {
		return 0
	}

	failed := 0
	for sessionID, svc := range m.live() {
		if err := m.saveIfChanged(ctx, sessionID, svc); err != nil {
			failed++
			m.logger.WithError(err).WithField("session_id", sessionID).Warn("Auto-save failed")
		}
	}
	return failed
}

// EvictIdle drops carts untouched for longer than Settings.IdleTimeout.
// Unsaved changes are stored first; a cart that cannot be stored stays.
func (m *Manager) EvictIdle(ctx context.Context) int {
	if m.settings.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.settings.IdleTimeout)

	evicted := 0
	for sessionID, svc := range m.live() {
		if !svc.updatedAt().Before(cutoff) {
			continue
		}
		if m.store != nil {
			if err := m.saveIfChanged(ctx, sessionID, svc); err != nil {
				m.logger.WithError(err).WithField("session_id", sessionID).Warn("Keeping idle cart, save failed")
				continue
			}
		}

		m.mu.Lock()
		current, ok := m.carts[sessionID]
		drop := ok && current == svc && svc.updatedAt().Before(cutoff)
		if drop {
			delete(m.carts, sessionID)
			delete(m.saved, sessionID)
		}
		m.mu.Unlock()

		if drop {
			svc.Close()
			evicted++
		}
	}
	return evicted
}

// RunAutoSave saves every changed cart and evicts idle ones on each tick
// until ctx is done
func (m *Manager) RunAutoSave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if failed := m.SaveAll(ctx); failed > 0 {
				m.logger.WithField("failed", failed).Warn("Auto-save finished with errors")
			}
			if evicted := m.EvictIdle(ctx); evicted > 0 {
				m.logger.WithField("evicted", evicted).Debug("Evicted idle carts")
			}
		}
	}
}

// Len returns the number of live carts
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

// Close stops all recalculations and writes a final snapshot of every cart
func (m *Manager) Close(ctx context.Context) {
	for _, svc := range m.live() {
		svc.Close()
	}
	m.SaveAll(ctx)
}

func (m *Manager) live() map[string]*Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	carts := make(map[string]*Service, len(m.carts))
	for id, svc := range m.carts {
		carts[id] = svc
	}
	return carts
}

// saveIfChanged skips carts that were never touched or are unchanged since
// their last snapshot
func (m *Manager) saveIfChanged(ctx context.Context, sessionID string, svc *Service) error {
	snapshot := svc.GetCart()
	if len(snapshot.Items) == 0 && snapshot.UpdatedAt.Equal(snapshot.CreatedAt) {
		return nil
	}
	m.mu.Lock()
	last, ok := m.saved[sessionID]
	m.mu.Unlock()
	if ok && last.Equal(snapshot.UpdatedAt) {
		return nil
	}

	if err := m.store.Save(ctx, sessionID, snapshot); err != nil {
		return err
	}
	m.markSaved(sessionID, svc, snapshot.UpdatedAt)
	return nil
}

func (m *Manager) markSaved(sessionID string, svc *Service, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carts[sessionID] == svc {
		m.saved[sessionID] = updatedAt
	}
}
