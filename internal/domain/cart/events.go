// internal/domain/cart/events.go
package cart

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType is the kind of change a cart went through
type EventType string

const (
	EventItemAdded           EventType = "item_added"
	EventItemUpdated         EventType = "item_updated"
	EventItemRemoved         EventType = "item_removed"
	EventQuantityChanged     EventType = "quantity_changed"
	EventOptionChanged       EventType = "option_changed"
	EventModificationChanged EventType = "modification_changed"
	EventDiscountApplied     EventType = "discount_applied"
	EventClientInfoUpdated   EventType = "client_info_updated"
	EventCartCleared         EventType = "cart_cleared"
	EventCartSaved           EventType = "cart_saved"
	EventCartExported        EventType = "cart_exported"
)

// Event describes one cart mutation
type Event struct {
	Type      EventType              `json:"type"`
	CartID    string                 `json:"cart_id"`
	ItemID    string                 `json:"item_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
}

// SnapshotListener receives the full cart after every change
type SnapshotListener func(c *Cart) error

// EventListener receives semantic change events
type EventListener func(e Event) error

// Observer subscribes to both channels at once
type Observer interface {
	OnSnapshot(c *Cart) error
	OnEvent(e Event) error
}

// Bus fans cart notifications out to listeners. A listener that fails or
// panics is logged and never affects the cart or the other listeners.
type Bus struct {
	mu        sync.RWMutex
	next      uint64
	snapshots map[uint64]SnapshotListener
	events    map[uint64]EventListener
	logger    *logrus.Logger
}

// NewBus creates an empty bus
func NewBus(logger *logrus.Logger) *Bus {
	return &Bus{
		snapshots: make(map[uint64]SnapshotListener),
		events:    make(map[uint64]EventListener),
		logger:    logger,
	}
}

// SubscribeSnapshots registers fn and returns its unsubscribe function
func (b *Bus) SubscribeSnapshots(fn SnapshotListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.snapshots[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.snapshots, id)
		b.mu.Unlock()
	}
}

// SubscribeEvents registers fn and returns its unsubscribe function
func (b *Bus) SubscribeEvents(fn EventListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.events[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.events, id)
		b.mu.Unlock()
	}
}

// Subscribe registers o on both channels
func (b *Bus) Subscribe(o Observer) func() {
	unsubSnapshots := b.SubscribeSnapshots(o.OnSnapshot)
	unsubEvents := b.SubscribeEvents(o.OnEvent)
	return func() {
		unsubSnapshots()
		unsubEvents()
	}
}

func (b *Bus) publishEvent(e Event) {
	b.mu.RLock()
	listeners := make([]EventListener, 0, len(b.events))
	for _, fn := range b.events {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		b.safeCall(string(e.Type), func() error { return fn(e) })
	}
}

func (b *Bus) publishSnapshot(c *Cart) {
	b.mu.RLock()
	listeners := make([]SnapshotListener, 0, len(b.snapshots))
	for _, fn := range b.snapshots {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	// every listener gets its own copy
	for _, fn := range listeners {
		snapshot := c.Clone()
		b.safeCall("snapshot", func() error { return fn(snapshot) })
	}
}

func (b *Bus) safeCall(kind string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"notification": kind,
				"panic":        fmt.Sprint(r),
			}).Error("Cart listener panicked")
		}
	}()
	if err := fn(); err != nil {
		b.logger.WithError(err).WithField("notification", kind).Error("Cart listener failed")
	}
}

// LogObserver writes every cart event to the logger
type LogObserver struct {
	Logger *logrus.Logger
}

// OnSnapshot implements Observer
func (o LogObserver) OnSnapshot(c *Cart) error {
	o.Logger.WithFields(logrus.Fields{
		"cart_id": c.ID,
		"items":   len(c.Items),
		"total":   c.Total,
	}).Debug("Cart snapshot")
	return nil
}

// OnEvent implements Observer
func (o LogObserver) OnEvent(e Event) error {
	o.Logger.WithFields(logrus.Fields{
		"event":   e.Type,
		"cart_id": e.CartID,
		"item_id": e.ItemID,
		"user_id": e.UserID,
	}).Info("Cart event")
	return nil
}
