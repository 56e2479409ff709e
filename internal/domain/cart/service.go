// internal/domain/cart/service.go
package cart

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/configurator-backend/internal/domain/pricing"
)

// Pricer prices a door configuration. Implementations never fail; they
// degrade to a local estimate instead.
type Pricer interface {
	CalculatePriceUniversal(ctx context.Context, req pricing.Request) pricing.Result
}

// ServiceOption customises a Service
type ServiceOption func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithEstimator replaces the local price estimator
func WithEstimator(estimate func(pricing.Request) pricing.Result) ServiceOption {
	return func(s *Service) { s.estimate = estimate }
}

// WithBus shares a notification bus between services
func WithBus(bus *Bus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

type notification struct {
	event    *Event
	snapshot *Cart
}

// Service is the cart aggregate. All mutations are serialised; listeners are
// notified after the state lock is released, in mutation order.
type Service struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	cart     *Cart
	settings Settings
	pricer   Pricer
	estimate func(pricing.Request) pricing.Result
	bus      *Bus
	logger   *logrus.Logger
	now      func() time.Time

	queue    []notification
	pending  map[string]*time.Timer // debounced recalculations by item id
	inflight sync.WaitGroup
	closed   bool
}

// NewService creates an empty active cart
func NewService(settings Settings, pricer Pricer, logger *logrus.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		settings: settings,
		pricer:   pricer,
		estimate: pricing.Estimate,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = NewBus(logger)
	}

	now := s.now()
	s.cart = &Cart{
		ID:           uuid.New().String(),
		Items:        []*Item{},
		DiscountType: DiscountFixed,
		TaxRate:      settings.DefaultTaxRate,
		Currency:     settings.Currency,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s
}

// Subscribe registers o for snapshots and events
func (s *Service) Subscribe(o Observer) func() {
	return s.bus.Subscribe(o)
}

// SubscribeSnapshots registers a snapshot-only listener
func (s *Service) SubscribeSnapshots(fn SnapshotListener) func() {
	return s.bus.SubscribeSnapshots(fn)
}

// SubscribeEvents registers an event-only listener
func (s *Service) SubscribeEvents(fn EventListener) func() {
	return s.bus.SubscribeEvents(fn)
}

// GetCart returns a copy of the current cart
func (s *Service) GetCart() *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// GetItem returns a copy of one line
func (s *Service) GetItem(itemID string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, _ := s.findItem(itemID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	return item.Clone(), nil
}

// AddItem appends a line, or merges it into an equal existing line
func (s *Service) AddItem(ctx context.Context, draft ItemDraft) (*Item, error) {
	if draft.ProductID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrInvalidItem)
	}
	if draft.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	}
	if draft.BasePrice < 0 {
		return nil, fmt.Errorf("%w: base price must not be negative", ErrInvalidItem)
	}
	if draft.Quantity > s.settings.MaxQuantity {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", ErrLimitExceeded, draft.Quantity, s.settings.MaxQuantity)
	}
	mods := normalizeModifications(draft.Modifications)

	s.mu.Lock()
	now := s.now()

	if idx := s.findMergeTarget(draft.ProductID, draft.Options, mods, draft.Configuration); idx >= 0 {
		existing := s.cart.Items[idx]
		qty := existing.Quantity + draft.Quantity
		if qty > s.settings.MaxQuantity {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: quantity %d exceeds %d", ErrLimitExceeded, qty, s.settings.MaxQuantity)
		}
		merged := existing.Clone()
		merged.Quantity = qty
		merged.UpdatedAt = now
		s.cart.Items[idx] = merged
		s.recalculate(now)

		result := merged.Clone()
		ev := s.newEvent(ctx, EventItemAdded, merged.ID, map[string]interface{}{
			"item":   merged.Clone(),
			"merged": true,
		})
		s.unlockAndPublish(&ev)
		return result, nil
	}

	if len(s.cart.Items) >= s.settings.MaxItems {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cart holds %d items", ErrLimitExceeded, s.settings.MaxItems)
	}

	item := &Item{
		ID:             uuid.New().String(),
		ProductID:      draft.ProductID,
		ProductName:    draft.ProductName,
		ProductSKU:     draft.ProductSKU,
		CategoryID:     draft.CategoryID,
		CategoryName:   draft.CategoryName,
		Quantity:       draft.Quantity,
		BasePrice:      draft.BasePrice,
		Options:        append([]Option{}, draft.Options...),
		Modifications:  mods,
		Specifications: draft.Specifications,
		Notes:          draft.Notes,
		Images:         draft.Images,
		AddedAt:        now,
		UpdatedAt:      now,
	}
	if draft.Configuration != nil {
		conf := *draft.Configuration
		item.Configuration = &conf
	}

	// an unpriced door gets an estimate until the pricing service answers
	var req pricing.Request
	schedule := item.BasePrice == 0 && s.settings.isRemotePriced(item)
	if schedule {
		req = item.Configuration.PricingRequest()
		item.BasePrice = s.estimate(req).Total
		item.PriceState = &PriceState{Phase: PriceProvisional, Sequence: 1, Source: pricing.SourceLocal}
	}

	s.cart.Items = append(s.cart.Items, item)
	s.recalculate(now)
	if schedule {
		s.scheduleRecalculation(ctx, item.ID, 1, req)
	}

	result := item.Clone()
	ev := s.newEvent(ctx, EventItemAdded, item.ID, map[string]interface{}{
		"item":   item.Clone(),
		"merged": false,
	})
	s.unlockAndPublish(&ev)
	return result, nil
}

// UpdateItem applies a partial update. An update that changes nothing is a
// no-op: no recompute, no notification.
func (s *Service) UpdateItem(ctx context.Context, itemID string, upd ItemUpdate) (*Item, error) {
	return s.updateItem(ctx, itemID, upd, EventItemUpdated)
}

func (s *Service) updateItem(ctx context.Context, itemID string, upd ItemUpdate, eventType EventType) (*Item, error) {
	if upd.Quantity != nil {
		if *upd.Quantity > s.settings.MaxQuantity {
			return nil, fmt.Errorf("%w: quantity %d exceeds %d", ErrLimitExceeded, *upd.Quantity, s.settings.MaxQuantity)
		}
		if *upd.Quantity <= 0 && !s.settings.AllowNegativeQuantities {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
		}
	}
	if upd.BasePrice != nil && *upd.BasePrice < 0 {
		return nil, fmt.Errorf("%w: base price must not be negative", ErrInvalidItem)
	}
	if upd.Modifications != nil {
		mods := normalizeModifications(*upd.Modifications)
		upd.Modifications = &mods
	}

	s.mu.Lock()
	current, idx := s.findItem(itemID)
	if current == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}

	updated := current.Clone()
	changed, configChanged := upd.applyTo(updated)
	if !changed {
		s.mu.Unlock()
		s.logger.WithField("item_id", itemID).Debug("Cart item update changed nothing")
		return updated, nil
	}

	now := s.now()
	updated.UpdatedAt = now

	var (
		req      pricing.Request
		seq      uint64
		schedule bool
	)
	switch {
	case upd.BasePrice != nil:
		// an explicit price wins over any recalculation in flight
		s.cancelPending(itemID)
		updated.PriceState = &PriceState{
			Phase:    PriceConfirmed,
			Sequence: nextSequence(updated.PriceState),
			Source:   pricing.SourceManual,
		}
	case configChanged && s.settings.isRemotePriced(updated):
		req = updated.Configuration.PricingRequest()
		seq = nextSequence(updated.PriceState)
		updated.BasePrice = s.estimate(req).Total
		updated.PriceState = &PriceState{Phase: PriceProvisional, Sequence: seq, Source: pricing.SourceLocal}
		schedule = true
	}

	s.cart.Items[idx] = updated
	s.recalculate(now)
	if schedule {
		s.scheduleRecalculation(ctx, itemID, seq, req)
	}

	result := updated.Clone()
	ev := s.newEvent(ctx, eventType, itemID, map[string]interface{}{
		"updates": upd,
		"item":    updated.Clone(),
	})
	s.unlockAndPublish(&ev)
	return result, nil
}

// RemoveItem deletes a line and drops any pending recalculation for it
func (s *Service) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	item, idx := s.findItem(itemID)
	if item == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	s.cancelPending(itemID)
	s.cart.Items = append(s.cart.Items[:idx:idx], s.cart.Items[idx+1:]...)
	s.recalculate(s.now())

	ev := s.newEvent(ctx, EventItemRemoved, itemID, map[string]interface{}{"item": item})
	s.unlockAndPublish(&ev)
	return nil
}

// UpdateQuantity sets a line quantity. Unless negative quantities are
// allowed, a quantity of zero or less removes the line and nil is returned.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*Item, error) {
	if quantity <= 0 && !s.settings.AllowNegativeQuantities {
		return nil, s.RemoveItem(ctx, itemID)
	}
	return s.updateItem(ctx, itemID, ItemUpdate{Quantity: &quantity}, EventQuantityChanged)
}

// AddOption adds an option to a line, replacing one with the same id
func (s *Service) AddOption(ctx context.Context, itemID string, opt Option) (*Item, error) {
	if opt.ID == "" {
		return nil, fmt.Errorf("%w: option id is required", ErrInvalidItem)
	}

	s.mu.Lock()
	current, idx := s.findItem(itemID)
	if current == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}

	now := s.now()
	updated := current.Clone()
	options := make([]Option, 0, len(updated.Options)+1)
	for _, o := range updated.Options {
		if o.ID != opt.ID {
			options = append(options, o)
		}
	}
	updated.Options = append(options, opt)
	updated.UpdatedAt = now
	s.cart.Items[idx] = updated
	s.recalculate(now)

	result := updated.Clone()
	ev := s.newEvent(ctx, EventOptionChanged, itemID, map[string]interface{}{
		"option": opt,
		"item":   updated.Clone(),
	})
	s.unlockAndPublish(&ev)
	return result, nil
}

// AddModification adds a modification to a line, replacing one with the same id
func (s *Service) AddModification(ctx context.Context, itemID string, mod Modification) (*Item, error) {
	if mod.ID == "" {
		return nil, fmt.Errorf("%w: modification id is required", ErrInvalidItem)
	}
	mod = normalizeModification(mod)

	s.mu.Lock()
	current, idx := s.findItem(itemID)
	if current == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}

	now := s.now()
	updated := current.Clone()
	mods := make([]Modification, 0, len(updated.Modifications)+1)
	for _, m := range updated.Modifications {
		if m.ID != mod.ID {
			mods = append(mods, m)
		}
	}
	updated.Modifications = append(mods, mod)
	updated.UpdatedAt = now
	s.cart.Items[idx] = updated
	s.recalculate(now)

	result := updated.Clone()
	ev := s.newEvent(ctx, EventModificationChanged, itemID, map[string]interface{}{
		"modification": mod,
		"item":         updated.Clone(),
	})
	s.unlockAndPublish(&ev)
	return result, nil
}

// ApplyDiscount sets the cart-level discount
func (s *Service) ApplyDiscount(ctx context.Context, discountType DiscountType, value float64) error {
	if discountType != DiscountPercentage && discountType != DiscountFixed {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, discountType)
	}
	if value < 0 {
		return fmt.Errorf("%w: value must not be negative", ErrInvalidDiscount)
	}

	s.mu.Lock()
	s.cart.DiscountType = discountType
	s.cart.DiscountValue = value
	s.recalculate(s.now())

	ev := s.newEvent(ctx, EventDiscountApplied, "", map[string]interface{}{
		"type":     discountType,
		"value":    value,
		"discount": s.cart.Discount,
	})
	s.unlockAndPublish(&ev)
	return nil
}

// UpdateClientInfo replaces the client contact data
func (s *Service) UpdateClientInfo(ctx context.Context, info ClientInfo) {
	s.mu.Lock()
	s.cart.ClientInfo = &info
	s.cart.UpdatedAt = s.now()

	ev := s.newEvent(ctx, EventClientInfoUpdated, "", map[string]interface{}{"client_info": info})
	s.unlockAndPublish(&ev)
}

// UpdateCosts sets delivery and installation costs
func (s *Service) UpdateCosts(ctx context.Context, delivery, installation float64) error {
	if delivery < 0 || installation < 0 {
		return fmt.Errorf("%w: costs must not be negative", ErrInvalidCosts)
	}

	s.mu.Lock()
	s.cart.DeliveryCost = delivery
	s.cart.InstallationCost = installation
	s.recalculate(s.now())
	s.unlockAndPublish(nil)
	return nil
}

// SetTaxRate changes the tax percentage used for items and the cart
func (s *Service) SetTaxRate(ctx context.Context, rate float64) error {
	if rate < 0 || rate > 100 {
		return fmt.Errorf("%w: tax rate %.2f out of range", ErrInvalidCosts, rate)
	}

	s.mu.Lock()
	s.cart.TaxRate = rate
	s.recalculate(s.now())
	s.unlockAndPublish(nil)
	return nil
}

// SetStatus moves the cart to another lifecycle status
func (s *Service) SetStatus(ctx context.Context, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	s.cart.Status = status
	s.cart.UpdatedAt = s.now()
	s.unlockAndPublish(nil)
	return nil
}

// ClearCart removes every line. Discount, costs and client data stay.
func (s *Service) ClearCart(ctx context.Context) {
	s.mu.Lock()
	count := len(s.cart.Items)
	for id := range s.pending {
		s.cancelPending(id)
	}
	s.cart.Items = []*Item{}
	s.recalculate(s.now())

	ev := s.newEvent(ctx, EventCartCleared, "", map[string]interface{}{"removed": count})
	s.unlockAndPublish(&ev)
}

// Validate checks the cart without changing it
func (s *Service) Validate() ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Validate(s.cart)
}

// GetCalculation returns the total decomposition
func (s *Service) GetCalculation() Calculation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildCalculation(s.cart)
}

// Stats summarises the cart
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildStats(s.cart)
}

// RecalculateItemPrice prices a configured line synchronously and applies
// the result. Any debounced recalculation for the line is superseded.
func (s *Service) RecalculateItemPrice(ctx context.Context, itemID string) (*Item, error) {
	s.mu.Lock()
	item, idx := s.findItem(itemID)
	if item == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	if item.Configuration == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: item has no configuration to price", ErrInvalidItem)
	}
	s.cancelPending(itemID)
	req := item.Configuration.PricingRequest()
	seq := nextSequence(item.PriceState)

	updated := item.Clone()
	state := PriceState{Phase: PriceProvisional, Sequence: seq, Source: pricing.SourceLocal}
	if item.PriceState != nil {
		state.Phase = item.PriceState.Phase
		state.Source = item.PriceState.Source
	}
	updated.PriceState = &state
	s.cart.Items[idx] = updated
	s.mu.Unlock()

	var result pricing.Result
	if s.pricer != nil {
		result = s.pricer.CalculatePriceUniversal(ctx, req)
	} else {
		result = s.estimate(req)
	}

	if applied := s.applyConfirmedPrice(ctx, itemID, seq, result); applied != nil {
		return applied, nil
	}
	return s.GetItem(itemID)
}

// Export validates the cart and moves it to the status matching the document
func (s *Service) Export(ctx context.Context, document DocumentType) (*ExportDocument, error) {
	status, ok := document.Status()
	if !ok {
		return nil, fmt.Errorf("%w: unknown document %q", ErrInvalidStatus, document)
	}

	s.mu.Lock()
	result := Validate(s.cart)
	if !result.IsValid {
		s.mu.Unlock()
		return nil, &ValidationError{Result: result}
	}

	now := s.now()
	s.cart.Status = status
	s.cart.UpdatedAt = now
	doc := &ExportDocument{
		Document:    document,
		Cart:        s.cart.Clone(),
		Calculation: buildCalculation(s.cart),
		Validation:  result,
		ExportedAt:  now,
	}

	ev := s.newEvent(ctx, EventCartExported, "", map[string]interface{}{
		"document": document,
		"total":    s.cart.Total,
	})
	s.unlockAndPublish(&ev)
	return doc, nil
}

// Save writes the current snapshot to store under key
func (s *Service) Save(ctx context.Context, store Store, key string) error {
	snapshot := s.GetCart()
	if err := store.Save(ctx, key, snapshot); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	s.mu.Lock()
	ev := s.newEvent(ctx, EventCartSaved, "", map[string]interface{}{"key": key})
	s.queue = append(s.queue, notification{event: &ev})
	s.mu.Unlock()
	s.drain()
	return nil
}

// Restore replaces the cart with a previously saved snapshot. Doors saved
// with a provisional price are priced again.
func (s *Service) Restore(ctx context.Context, snapshot *Cart) {
	if snapshot == nil {
		return
	}
	s.mu.Lock()
	for id := range s.pending {
		s.cancelPending(id)
	}
	restored := snapshot.Clone()
	if restored.Items == nil {
		restored.Items = []*Item{}
	}
	calculateCartTotals(restored)
	s.cart = restored

	for _, item := range restored.Items {
		if item.PriceState == nil || item.PriceState.Phase != PriceProvisional || !s.settings.isRemotePriced(item) {
			continue
		}
		seq := nextSequence(item.PriceState)
		item.PriceState.Sequence = seq
		s.scheduleRecalculation(ctx, item.ID, seq, item.Configuration.PricingRequest())
	}
	s.unlockAndPublish(nil)
}

func (s *Service) updatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.UpdatedAt
}

// wait blocks until every scheduled recalculation has finished. Callers
// must not mutate the cart concurrently.
func (s *Service) wait() {
	s.inflight.Wait()
}

// Close stops pending recalculations and waits for running ones
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	for id := range s.pending {
		s.cancelPending(id)
	}
	s.mu.Unlock()
	s.wait()
}

// scheduleRecalculation debounces a remote price call for the item.
// Callers hold s.mu.
func (s *Service) scheduleRecalculation(ctx context.Context, itemID string, seq uint64, req pricing.Request) {
	if s.closed || s.pricer == nil {
		return
	}
	s.cancelPending(itemID)

	// keep request values such as the user id, drop its deadline
	bg := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(s.settings.RecalculationDebounce, func() {
		defer s.inflight.Done()

		s.mu.Lock()
		if s.pending[itemID] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.pending, itemID)
		s.mu.Unlock()

		result := s.pricer.CalculatePriceUniversal(bg, req)
		s.applyConfirmedPrice(bg, itemID, seq, result)
	})
	s.pending[itemID] = timer
}

// cancelPending stops a debounced recalculation that has not started yet.
// Callers hold s.mu.
func (s *Service) cancelPending(itemID string) {
	timer, ok := s.pending[itemID]
	if !ok {
		return
	}
	delete(s.pending, itemID)
	if timer.Stop() {
		s.inflight.Done()
	}
}

// applyConfirmedPrice stores a pricing result unless the item was removed or
// a newer recalculation was issued since seq.
func (s *Service) applyConfirmedPrice(ctx context.Context, itemID string, seq uint64, result pricing.Result) *Item {
	s.mu.Lock()
	current, idx := s.findItem(itemID)
	if current == nil || current.PriceState == nil || current.PriceState.Sequence != seq {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"item_id":  itemID,
			"sequence": seq,
		}).Debug("Discarding stale price recalculation")
		return nil
	}

	now := s.now()
	updated := current.Clone()
	updated.BasePrice = result.Total
	updated.PriceState = &PriceState{
		Phase:       PriceConfirmed,
		Sequence:    seq,
		Source:      result.Source,
		ConfirmedAt: &now,
	}
	updated.UpdatedAt = now
	s.cart.Items[idx] = updated
	s.recalculate(now)

	applied := updated.Clone()
	ev := s.newEvent(ctx, EventItemUpdated, itemID, map[string]interface{}{
		"updates": map[string]interface{}{"base_price": result.Total},
		"source":  result.Source,
		"sku_1c":  result.SKU1C,
		"item":    updated.Clone(),
	})
	s.unlockAndPublish(&ev)
	return applied
}

// recalculate re-establishes every derived total. Callers hold s.mu.
func (s *Service) recalculate(now time.Time) {
	calculateCartTotals(s.cart)
	s.cart.UpdatedAt = now
}

// unlockAndPublish queues the notification, releases s.mu and delivers
// queued notifications in mutation order. A mutation made by a listener is
// delivered by the goroutine already draining the queue.
func (s *Service) unlockAndPublish(ev *Event) {
	s.queue = append(s.queue, notification{event: ev, snapshot: s.cart.Clone()})
	s.mu.Unlock()
	s.drain()
}

func (s *Service) drain() {
	for {
		if !s.notifyMu.TryLock() {
			return
		}
		for {
			n, ok := s.dequeue()
			if !ok {
				break
			}
			if n.event != nil {
				s.bus.publishEvent(*n.event)
			}
			if n.snapshot != nil {
				s.bus.publishSnapshot(n.snapshot)
			}
		}
		s.notifyMu.Unlock()

		s.mu.Lock()
		pending := len(s.queue) > 0
		s.mu.Unlock()
		if !pending {
			return
		}
	}
}

func (s *Service) dequeue() (notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return notification{}, false
	}
	n := s.queue[0]
	s.queue[0] = notification{}
	s.queue = s.queue[1:]
	return n, true
}

func (s *Service) newEvent(ctx context.Context, eventType EventType, itemID string, data map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		CartID:    s.cart.ID,
		ItemID:    itemID,
		Data:      data,
		Timestamp: s.now(),
		UserID:    UserIDFromContext(ctx),
	}
}

func (s *Service) findItem(itemID string) (*Item, int) {
	for i, item := range s.cart.Items {
		if item.ID == itemID {
			return item, i
		}
	}
	return nil, -1
}

func (s *Service) findMergeTarget(productID string, options []Option, mods []Modification, conf *Configuration) int {
	for i, item := range s.cart.Items {
		if item.ProductID == productID &&
			equalOptions(item.Options, options) &&
			equalModifications(item.Modifications, mods) &&
			equalConfiguration(item.Configuration, conf) {
			return i
		}
	}
	return -1
}

// applyTo copies the set fields onto item and reports what changed
func (u ItemUpdate) applyTo(item *Item) (changed, configChanged bool) {
	setString := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setString(&item.ProductName, u.ProductName)
	setString(&item.ProductSKU, u.ProductSKU)
	setString(&item.CategoryID, u.CategoryID)
	setString(&item.CategoryName, u.CategoryName)
	setString(&item.Notes, u.Notes)

	if u.Quantity != nil && item.Quantity != *u.Quantity {
		item.Quantity = *u.Quantity
		changed = true
	}
	if u.BasePrice != nil && item.BasePrice != *u.BasePrice {
		item.BasePrice = *u.BasePrice
		changed = true
	}
	if u.Options != nil && !equalOptions(item.Options, *u.Options) {
		item.Options = append([]Option{}, *u.Options...)
		changed = true
	}
	if u.Modifications != nil && !equalModifications(item.Modifications, *u.Modifications) {
		item.Modifications = append([]Modification{}, *u.Modifications...)
		changed = true
	}
	if u.Specifications != nil && !equalLoose(item.Specifications, *u.Specifications) {
		item.Specifications = *u.Specifications
		changed = true
	}
	if u.Images != nil && !equalLoose(item.Images, *u.Images) {
		item.Images = append([]string(nil), *u.Images...)
		changed = true
	}
	if u.Configuration != nil && (item.Configuration == nil || *item.Configuration != *u.Configuration) {
		conf := *u.Configuration
		item.Configuration = &conf
		changed = true
		configChanged = true
	}
	return changed, configChanged
}

func equalOptions(a, b []Option) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func equalModifications(a, b []Modification) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func equalConfiguration(a, b *Configuration) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalLoose treats nil and empty collections as equal
func equalLoose(a, b interface{}) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Len() == 0 && bv.Len() == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// normalizeModification treats a missing multiplier as 1
func normalizeModification(m Modification) Modification {
	if m.PriceMultiplier == 0 {
		m.PriceMultiplier = 1
	}
	return m
}

func normalizeModifications(mods []Modification) []Modification {
	out := make([]Modification, 0, len(mods))
	for _, m := range mods {
		out = append(out, normalizeModification(m))
	}
	return out
}

func nextSequence(state *PriceState) uint64 {
	if state == nil {
		return 1
	}
	return state.Sequence + 1
}
