// internal/domain/cart/service_test.go
package cart

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/configurator-backend/internal/domain/pricing"
	"github.com/your-org/configurator-backend/internal/pkg/logger"
)

type priceCall struct {
	req   pricing.Request
	reply chan pricing.Result
}

// blockingPricer hands every call to the test and waits for its answer
type blockingPricer struct {
	calls chan priceCall
}

func newBlockingPricer() *blockingPricer {
	return &blockingPricer{calls: make(chan priceCall, 8)}
}

func (p *blockingPricer) CalculatePriceUniversal(ctx context.Context, req pricing.Request) pricing.Result {
	call := priceCall{req: req, reply: make(chan pricing.Result, 1)}
	p.calls <- call
	return <-call.reply
}

func (p *blockingPricer) next(t *testing.T) priceCall {
	t.Helper()
	select {
	case call := <-p.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("pricing call was not made")
		return priceCall{}
	}
}

type fixedPricer struct {
	mu     sync.Mutex
	total  float64
	source pricing.Source
	calls  int
}

func (p *fixedPricer) CalculatePriceUniversal(ctx context.Context, req pricing.Request) pricing.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return pricing.Result{Total: p.total, Source: p.source}
}

func (p *fixedPricer) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recorder struct {
	mu        sync.Mutex
	events    []Event
	snapshots []*Cart
}

func (r *recorder) OnSnapshot(c *Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, c)
	return nil
}

func (r *recorder) OnEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) eventTypes() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *recorder) snapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func testSettings() Settings {
	s := DefaultSettings()
	s.RecalculationDebounce = 0
	return s
}

func newTestService(t *testing.T, settings Settings, pricer Pricer, opts ...ServiceOption) (*Service, *recorder) {
	t.Helper()
	svc := NewService(settings, pricer, logger.Discard(), opts...)
	rec := &recorder{}
	svc.Subscribe(rec)
	t.Cleanup(svc.Close)
	return svc, rec
}

func doorDraft() ItemDraft {
	return ItemDraft{
		ProductID:   "D1",
		ProductName: "Door",
		Quantity:    1,
		BasePrice:   15000,
	}
}

func doorConfiguration(style string) *Configuration {
	return &Configuration{Style: style, Finish: "veneer", Width: 800, Height: 2000}
}

func assertConsistent(t *testing.T, c *Cart) {
	t.Helper()
	subtotal := 0.0
	for _, item := range c.Items {
		qty := float64(item.Quantity)
		expected := item.BasePrice * qty
		for _, opt := range item.Options {
			expected += opt.Price * qty
		}
		assert.InDelta(t, expected, item.Subtotal, 1e-6, "item %s subtotal", item.ID)
		subtotal += item.Subtotal
	}
	assert.InDelta(t, subtotal, c.Subtotal, 1e-6)
	assert.GreaterOrEqual(t, c.Discount, 0.0)
	if c.Subtotal >= 0 {
		assert.LessOrEqual(t, c.Discount, c.Subtotal+1e-6)
	}
	taxable := c.Subtotal - c.Discount + c.DeliveryCost + c.InstallationCost
	assert.InDelta(t, taxable*c.TaxRate/100, c.Tax, 1e-6)
	assert.InDelta(t, taxable+c.Tax, c.Total, 1e-6)
}

func TestNewService(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)

	c := svc.GetCart()
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, "RUB", c.Currency)
	assert.Equal(t, 20.0, c.TaxRate)
	assert.Empty(t, c.Items)
	assert.Zero(t, c.Total)
}

func TestQuantityScenario(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)
	assert.Equal(t, 15000.0, svc.GetCart().Subtotal)

	_, err = svc.UpdateQuantity(ctx, item.ID, 3)
	require.NoError(t, err)

	c := svc.GetCart()
	assert.Equal(t, 45000.0, c.Subtotal)
	assert.InDelta(t, 54000.0, c.Total, 1e-6)
	assertConsistent(t, c)
}

func TestAddItemMergesEqualConfigurations(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	first := doorDraft()
	first.Quantity = 2
	second := doorDraft()
	second.Quantity = 3
	second.Options = []Option{} // empty and nil lists are equal

	a, err := svc.AddItem(ctx, first)
	require.NoError(t, err)
	b, err := svc.AddItem(ctx, second)
	require.NoError(t, err)

	c := svc.GetCart()
	require.Len(t, c.Items, 1)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, []EventType{EventItemAdded, EventItemAdded}, rec.eventTypes())
	assert.Equal(t, true, rec.events[1].Data["merged"])
}

func TestAddItemKeepsDifferentOptionsApart(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	draft := doorDraft()
	withGlass := doorDraft()
	withGlass.Options = []Option{{ID: "glass", Name: "Glass", Price: 2000}}

	_, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, withGlass)
	require.NoError(t, err)

	assert.Len(t, svc.GetCart().Items, 2)
}

func TestAddItemKeepsDifferentConfigurationsApart(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	narrow := doorDraft()
	narrow.Configuration = doorConfiguration("classic")
	wide := doorDraft()
	wide.Configuration = doorConfiguration("classic")
	wide.Configuration.Width = 900
	plain := doorDraft()

	for _, draft := range []ItemDraft{narrow, wide, plain} {
		_, err := svc.AddItem(ctx, draft)
		require.NoError(t, err)
	}
	_, err := svc.AddItem(ctx, wide)
	require.NoError(t, err)

	c := svc.GetCart()
	require.Len(t, c.Items, 3)
	assert.Equal(t, 800, c.Items[0].Configuration.Width)
	assert.Equal(t, 900, c.Items[1].Configuration.Width)
	assert.Equal(t, 2, c.Items[1].Quantity)
	assert.Nil(t, c.Items[2].Configuration)
}

func TestAddItemRejectsInvalidDrafts(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*ItemDraft)
		err    error
	}{
		{"missing product", func(d *ItemDraft) { d.ProductID = "" }, ErrInvalidItem},
		{"zero quantity", func(d *ItemDraft) { d.Quantity = 0 }, ErrInvalidItem},
		{"negative price", func(d *ItemDraft) { d.BasePrice = -1 }, ErrInvalidItem},
		{"quantity over ceiling", func(d *ItemDraft) { d.Quantity = 1000 }, ErrLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := doorDraft()
			tt.mutate(&draft)
			_, err := svc.AddItem(ctx, draft)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Empty(t, svc.GetCart().Items)
	assert.Empty(t, rec.eventTypes())
}

func TestAddItemLimits(t *testing.T) {
	settings := testSettings()
	settings.MaxItems = 2
	settings.MaxQuantity = 10
	svc, _ := newTestService(t, settings, nil)
	ctx := context.Background()

	for _, id := range []string{"A", "B"} {
		draft := doorDraft()
		draft.ProductID = id
		_, err := svc.AddItem(ctx, draft)
		require.NoError(t, err)
	}

	third := doorDraft()
	third.ProductID = "C"
	_, err := svc.AddItem(ctx, third)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	// merging into an existing line adds no line
	merge := doorDraft()
	merge.ProductID = "A"
	merge.Quantity = 9
	item, err := svc.AddItem(ctx, merge)
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)

	merge.Quantity = 1
	_, err = svc.AddItem(ctx, merge)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Len(t, svc.GetCart().Items, 2)
}

func TestAddOptionAddsToSubtotal(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	draft := doorDraft()
	draft.Quantity = 3
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)
	before := svc.GetCart().Subtotal

	updated, err := svc.AddOption(ctx, item.ID, Option{ID: "opt1", Name: "Lock", Price: 500})
	require.NoError(t, err)
	assert.Equal(t, before+1500, svc.GetCart().Subtotal)
	assert.Len(t, updated.Options, 1)

	// same id replaces
	_, err = svc.AddOption(ctx, item.ID, Option{ID: "opt1", Name: "Lock", Price: 700})
	require.NoError(t, err)
	c := svc.GetCart()
	assert.Len(t, c.Items[0].Options, 1)
	assert.Equal(t, before+2100, c.Subtotal)
	assert.Contains(t, rec.eventTypes(), EventOptionChanged)
	assertConsistent(t, c)
}

func TestAddModificationShapesItemTotal(t *testing.T) {
	settings := testSettings()
	settings.DefaultTaxRate = 0
	svc, _ := newTestService(t, settings, nil)
	ctx := context.Background()

	draft := doorDraft()
	draft.Quantity = 2
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	updated, err := svc.AddModification(ctx, item.ID, Modification{ID: "m1", Name: "Wide", PriceMultiplier: 1.5, PriceAdd: 1000})
	require.NoError(t, err)
	assert.Equal(t, 30000.0, updated.Subtotal)
	assert.Equal(t, 30000*1.5+2000, updated.Total)

	// a missing multiplier means 1
	updated, err = svc.AddModification(ctx, item.ID, Modification{ID: "m1", Name: "Paint", PriceAdd: 500})
	require.NoError(t, err)
	require.Len(t, updated.Modifications, 1)
	assert.Equal(t, 1.0, updated.Modifications[0].PriceMultiplier)
	assert.Equal(t, 31000.0, updated.Total)

	calc := svc.GetCalculation()
	assert.Equal(t, 1000.0, calc.Breakdown.Modifications)
}

func TestUpdateItemNoOp(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)
	events, snapshots := len(rec.eventTypes()), rec.snapshotCount()

	name := item.ProductName
	qty := item.Quantity
	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{ProductName: &name, Quantity: &qty, Options: &[]Option{}})
	require.NoError(t, err)

	assert.Len(t, rec.eventTypes(), events)
	assert.Equal(t, snapshots, rec.snapshotCount())
}

func TestUpdateItemNotFound(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	qty := 2
	_, err := svc.UpdateItem(ctx, "missing", ItemUpdate{Quantity: &qty})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.RemoveItem(ctx, "missing"), ErrNotFound)
	_, err = svc.UpdateQuantity(ctx, "missing", 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddOption(ctx, "missing", Option{ID: "o"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.RecalculateItemPrice(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)

	removed, err := svc.UpdateQuantity(ctx, item.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.Empty(t, svc.GetCart().Items)
	assert.Equal(t, []EventType{EventItemAdded, EventItemRemoved}, rec.eventTypes())
}

func TestUpdateQuantityNegativeAllowed(t *testing.T) {
	settings := testSettings()
	settings.AllowNegativeQuantities = true
	svc, _ := newTestService(t, settings, nil)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)

	updated, err := svc.UpdateQuantity(ctx, item.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, updated.Quantity)
	assert.Equal(t, -15000.0, svc.GetCart().Subtotal)
	assert.False(t, svc.Validate().IsValid)
}

func TestUpdateQuantityAboveCeiling(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(ctx, item.ID, 1000)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, 1, svc.GetCart().Items[0].Quantity)
}

func TestApplyDiscount(t *testing.T) {
	settings := testSettings()
	settings.DefaultTaxRate = 0
	svc, rec := newTestService(t, settings, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)

	require.NoError(t, svc.ApplyDiscount(ctx, DiscountPercentage, 10))
	assert.Equal(t, 1500.0, svc.GetCart().Discount)

	require.NoError(t, svc.ApplyDiscount(ctx, DiscountFixed, 50000))
	c := svc.GetCart()
	assert.Equal(t, 15000.0, c.Discount)
	assert.Zero(t, c.Total)

	require.NoError(t, svc.ApplyDiscount(ctx, DiscountPercentage, 150))
	assert.Equal(t, 15000.0, svc.GetCart().Discount)

	assert.ErrorIs(t, svc.ApplyDiscount(ctx, "bogus", 1), ErrInvalidDiscount)
	assert.ErrorIs(t, svc.ApplyDiscount(ctx, DiscountFixed, -1), ErrInvalidDiscount)
	assert.Contains(t, rec.eventTypes(), EventDiscountApplied)
}

func TestCostsAndTaxRate(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)
	events := len(rec.eventTypes())

	require.NoError(t, svc.UpdateCosts(ctx, 1000, 2000))
	c := svc.GetCart()
	assert.InDelta(t, (15000+3000)*1.2, c.Total, 1e-6)

	require.NoError(t, svc.SetTaxRate(ctx, 10))
	c = svc.GetCart()
	assert.InDelta(t, 18000*1.1, c.Total, 1e-6)
	assert.InDelta(t, 1500, c.Items[0].Tax, 1e-6)
	assertConsistent(t, c)

	assert.ErrorIs(t, svc.UpdateCosts(ctx, -1, 0), ErrInvalidCosts)
	assert.ErrorIs(t, svc.SetTaxRate(ctx, 101), ErrInvalidCosts)

	// snapshot-only notifications
	assert.Len(t, rec.eventTypes(), events)
}

func TestClearCart(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)
	require.NoError(t, svc.UpdateCosts(ctx, 500, 0))

	svc.ClearCart(ctx)
	c := svc.GetCart()
	assert.Empty(t, c.Items)
	assert.Zero(t, c.Subtotal)
	assert.InDelta(t, 600, c.Total, 1e-6)
	assert.Equal(t, EventCartCleared, rec.eventTypes()[len(rec.eventTypes())-1])
}

func TestUpdateClientInfo(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := ContextWithUserID(context.Background(), "user-1")

	svc.UpdateClientInfo(ctx, ClientInfo{Name: "Ivan", Phone: "+7 900"})

	c := svc.GetCart()
	require.NotNil(t, c.ClientInfo)
	assert.Equal(t, "Ivan", c.ClientInfo.Name)
	require.Len(t, rec.events, 1)
	assert.Equal(t, EventClientInfoUpdated, rec.events[0].Type)
	assert.Equal(t, "user-1", rec.events[0].UserID)
	assert.Equal(t, c.ID, rec.events[0].CartID)
}

func TestRemoteRecalculationProvisionalThenConfirmed(t *testing.T) {
	pricer := &fixedPricer{total: 40000, source: pricing.SourceRemote}
	svc, rec := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)
	assert.Nil(t, item.PriceState)

	conf := doorConfiguration("classic")
	updated, err := svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: conf})
	require.NoError(t, err)

	estimate := pricing.Estimate(conf.PricingRequest()).Total
	assert.Equal(t, estimate, updated.BasePrice)
	require.NotNil(t, updated.PriceState)
	assert.Equal(t, PriceProvisional, updated.PriceState.Phase)

	svc.wait()

	confirmed, err := svc.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 40000.0, confirmed.BasePrice)
	assert.Equal(t, PriceConfirmed, confirmed.PriceState.Phase)
	assert.Equal(t, pricing.SourceRemote, confirmed.PriceState.Source)
	assert.Equal(t, 1, pricer.callCount())
	assertConsistent(t, svc.GetCart())
	assert.Equal(t, []EventType{EventItemAdded, EventItemUpdated, EventItemUpdated}, rec.eventTypes())
}

func TestRemoteRecalculationSkipsOtherCategories(t *testing.T) {
	pricer := &fixedPricer{total: 40000, source: pricing.SourceRemote}
	svc, _ := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "handles"
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: doorConfiguration("classic")})
	require.NoError(t, err)
	svc.wait()

	assert.Equal(t, 15000.0, updated.BasePrice)
	assert.Zero(t, pricer.callCount())
}

func TestStaleRecalculationIsDiscarded(t *testing.T) {
	pricer := newBlockingPricer()
	svc, _ := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: doorConfiguration("classic")})
	require.NoError(t, err)
	older := pricer.next(t)

	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: doorConfiguration("modern")})
	require.NoError(t, err)
	newer := pricer.next(t)
	assert.Equal(t, "modern", newer.req.Style)

	// the newer answer lands first, the older one after it
	newer.reply <- pricing.Result{Total: 50000, Source: pricing.SourceRemote}
	older.reply <- pricing.Result{Total: 99999, Source: pricing.SourceRemote}
	svc.wait()

	got, err := svc.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, got.BasePrice)
	assert.Equal(t, PriceConfirmed, got.PriceState.Phase)
	assertConsistent(t, svc.GetCart())
}

func TestQuantityChangeDuringRecalculation(t *testing.T) {
	pricer := newBlockingPricer()
	svc, _ := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: doorConfiguration("classic")})
	require.NoError(t, err)
	call := pricer.next(t)

	_, err = svc.UpdateQuantity(ctx, item.ID, 2)
	require.NoError(t, err)

	call.reply <- pricing.Result{Total: 30000, Source: pricing.SourceRemote}
	svc.wait()

	c := svc.GetCart()
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 30000.0, c.Items[0].BasePrice)
	assert.Equal(t, 60000.0, c.Subtotal)
	assertConsistent(t, c)
}

func TestManualPriceSupersedesRecalculation(t *testing.T) {
	pricer := newBlockingPricer()
	svc, _ := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: doorConfiguration("classic")})
	require.NoError(t, err)
	call := pricer.next(t)

	price := 12345.0
	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{BasePrice: &price})
	require.NoError(t, err)

	call.reply <- pricing.Result{Total: 30000, Source: pricing.SourceRemote}
	svc.wait()

	got, err := svc.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 12345.0, got.BasePrice)
	assert.Equal(t, pricing.SourceManual, got.PriceState.Source)
}

func TestRemoveItemCancelsPendingRecalculation(t *testing.T) {
	pricer := &fixedPricer{total: 40000, source: pricing.SourceRemote}
	settings := testSettings()
	settings.RecalculationDebounce = time.Hour
	svc, _ := newTestService(t, settings, pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)
	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: doorConfiguration("classic")})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, item.ID))

	done := make(chan struct{})
	go func() {
		svc.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on a cancelled recalculation")
	}
	assert.Zero(t, pricer.callCount())
}

func TestDebounceCoalescesEdits(t *testing.T) {
	pricer := &fixedPricer{total: 40000, source: pricing.SourceRemote}
	settings := testSettings()
	settings.RecalculationDebounce = 50 * time.Millisecond
	svc, _ := newTestService(t, settings, pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	for _, style := range []string{"classic", "modern", "hidden"} {
		_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{Configuration: doorConfiguration(style)})
		require.NoError(t, err)
	}
	svc.wait()

	assert.Equal(t, 1, pricer.callCount())
	got, err := svc.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 40000.0, got.BasePrice)
}

func TestAddItemPricesUnpricedDoor(t *testing.T) {
	pricer := &fixedPricer{total: 41000, source: pricing.SourceRemote}
	svc, _ := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	draft.BasePrice = 0
	draft.Configuration = doorConfiguration("neoclassic")

	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, pricing.Estimate(draft.Configuration.PricingRequest()).Total, item.BasePrice)

	svc.wait()
	got, err := svc.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 41000.0, got.BasePrice)
}

func TestRecalculateItemPrice(t *testing.T) {
	pricer := &fixedPricer{total: 33000, source: pricing.SourceCache}
	svc, _ := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)

	_, err = svc.RecalculateItemPrice(ctx, item.ID)
	assert.ErrorIs(t, err, ErrInvalidItem)

	draft := doorDraft()
	draft.ProductID = "D2"
	draft.Configuration = doorConfiguration("classic")
	configured, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	priced, err := svc.RecalculateItemPrice(ctx, configured.ID)
	require.NoError(t, err)
	assert.Equal(t, 33000.0, priced.BasePrice)
	assert.Equal(t, PriceConfirmed, priced.PriceState.Phase)
	assert.Equal(t, pricing.SourceCache, priced.PriceState.Source)
}

func TestRecalculateItemPriceWithoutPricer(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	draft := doorDraft()
	draft.Configuration = doorConfiguration("classic")
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	priced, err := svc.RecalculateItemPrice(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, pricing.Estimate(draft.Configuration.PricingRequest()).Total, priced.BasePrice)
	assert.Equal(t, pricing.SourceLocal, priced.PriceState.Source)
}

func TestExport(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	draft := doorDraft()
	draft.ProductName = ""
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	_, err = svc.Export(ctx, DocumentQuote)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Result.Errors, 1)
	assert.Equal(t, "product_name", verr.Result.Errors[0].Field)
	assert.Equal(t, StatusActive, svc.GetCart().Status)

	name := "Door"
	_, err = svc.UpdateItem(ctx, item.ID, ItemUpdate{ProductName: &name})
	require.NoError(t, err)

	doc, err := svc.Export(ctx, DocumentInvoice)
	require.NoError(t, err)
	assert.Equal(t, StatusInvoice, doc.Cart.Status)
	assert.Equal(t, doc.Cart.Total, doc.Calculation.Cart.Total)
	assert.True(t, doc.Validation.IsValid)
	assert.Len(t, doc.Validation.Warnings, 1)
	assert.Equal(t, EventCartExported, rec.eventTypes()[len(rec.eventTypes())-1])

	_, err = svc.Export(ctx, "receipt")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSetStatus(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	require.NoError(t, svc.SetStatus(ctx, StatusDraft))
	assert.Equal(t, StatusDraft, svc.GetCart().Status)
	assert.ErrorIs(t, svc.SetStatus(ctx, "lost"), ErrInvalidStatus)
}

func TestSaveAndRestore(t *testing.T) {
	svc, rec := newTestService(t, testSettings(), nil)
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)
	require.NoError(t, svc.Save(ctx, store, "session-1"))
	assert.Equal(t, EventCartSaved, rec.eventTypes()[len(rec.eventTypes())-1])

	snapshot, err := store.Load(ctx, "session-1")
	require.NoError(t, err)

	// tampered totals are recomputed on restore
	snapshot.Total = 1
	other, _ := newTestService(t, testSettings(), nil)
	other.Restore(context.Background(), snapshot)

	c := other.GetCart()
	assert.Equal(t, svc.GetCart().ID, c.ID)
	assert.InDelta(t, 18000, c.Total, 1e-6)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRestoreRepricesProvisionalDoors(t *testing.T) {
	pricer := &fixedPricer{total: 42000, source: pricing.SourceRemote}
	svc, _ := newTestService(t, testSettings(), pricer)
	ctx := context.Background()

	door := &Item{
		ID:            "door-1",
		ProductID:     "D1",
		ProductName:   "Door",
		CategoryID:    "doors",
		Quantity:      1,
		BasePrice:     17000,
		Configuration: doorConfiguration("classic"),
		PriceState:    &PriceState{Phase: PriceProvisional, Sequence: 3, Source: pricing.SourceLocal},
	}
	confirmed := door.Clone()
	confirmed.ID = "door-2"
	confirmed.PriceState = &PriceState{Phase: PriceConfirmed, Sequence: 1, Source: pricing.SourceRemote}

	svc.Restore(ctx, &Cart{ID: "saved", Items: []*Item{door, confirmed}, TaxRate: 20})
	svc.wait()

	got, err := svc.GetItem("door-1")
	require.NoError(t, err)
	assert.Equal(t, 42000.0, got.BasePrice)
	assert.Equal(t, PriceConfirmed, got.PriceState.Phase)
	assert.Equal(t, uint64(4), got.PriceState.Sequence)

	untouched, err := svc.GetItem("door-2")
	require.NoError(t, err)
	assert.Equal(t, 17000.0, untouched.BasePrice)
	assert.Equal(t, 1, pricer.callCount())
	assertConsistent(t, svc.GetCart())
}

func TestServiceOptions(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	estimate := func(pricing.Request) pricing.Result {
		return pricing.Result{Total: 123, Source: pricing.SourceLocal}
	}
	svc, _ := newTestService(t, testSettings(), nil, WithClock(func() time.Time { return fixed }), WithEstimator(estimate))
	ctx := context.Background()

	draft := doorDraft()
	draft.CategoryID = "doors"
	draft.BasePrice = 0
	draft.Configuration = doorConfiguration("modern")
	item, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	assert.Equal(t, 123.0, item.BasePrice)
	assert.Equal(t, fixed, item.AddedAt)
	assert.Equal(t, fixed, svc.GetCart().UpdatedAt)
}

func TestSharedBus(t *testing.T) {
	bus := NewBus(logger.Discard())
	rec := &recorder{}
	bus.Subscribe(rec)
	ctx := context.Background()

	a, _ := newTestService(t, testSettings(), nil, WithBus(bus))
	b, _ := newTestService(t, testSettings(), nil, WithBus(bus))
	_, err := a.AddItem(ctx, doorDraft())
	require.NoError(t, err)
	b.ClearCart(ctx)

	assert.Equal(t, []EventType{EventItemAdded, EventCartCleared}, rec.eventTypes())
}

func TestStatsAndCalculation(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	draft := doorDraft()
	draft.Quantity = 2
	draft.Options = []Option{{ID: "lock", Name: "Lock", Price: 1000}}
	_, err := svc.AddItem(ctx, draft)
	require.NoError(t, err)

	other := doorDraft()
	other.ProductID = "D2"
	_, err = svc.AddItem(ctx, other)
	require.NoError(t, err)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.ItemCount)
	assert.Equal(t, 3, stats.TotalQuantity)
	assert.Equal(t, "RUB", stats.Currency)

	calc := svc.GetCalculation()
	assert.Equal(t, 47000.0, calc.Items.Subtotal)
	assert.Equal(t, 2000.0, calc.Breakdown.Options)
	assert.Equal(t, 45000.0, calc.Breakdown.BaseItems)
	assert.Equal(t, svc.GetCart().Total, calc.Cart.Total)
}

func TestSnapshotsStayConsistent(t *testing.T) {
	settings := testSettings()
	settings.MaxItems = 5
	settings.MaxQuantity = 20
	svc, rec := newTestService(t, settings, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	ids := func() []string {
		c := svc.GetCart()
		out := make([]string, 0, len(c.Items))
		for _, item := range c.Items {
			out = append(out, item.ID)
		}
		return out
	}

	for i := 0; i < 300; i++ {
		current := ids()
		pick := func() string {
			if len(current) == 0 {
				return "none"
			}
			return current[rng.Intn(len(current))]
		}

		switch rng.Intn(8) {
		case 0, 1:
			draft := doorDraft()
			draft.ProductID = []string{"A", "B", "C", "D", "E", "F"}[rng.Intn(6)]
			draft.Quantity = 1 + rng.Intn(5)
			draft.BasePrice = float64(1000 * (1 + rng.Intn(20)))
			_, _ = svc.AddItem(ctx, draft)
		case 2:
			_, _ = svc.UpdateQuantity(ctx, pick(), rng.Intn(25)-2)
		case 3:
			_ = svc.RemoveItem(ctx, pick())
		case 4:
			_, _ = svc.AddOption(ctx, pick(), Option{ID: "o", Price: float64(rng.Intn(3000))})
		case 5:
			_ = svc.ApplyDiscount(ctx, []DiscountType{DiscountFixed, DiscountPercentage}[rng.Intn(2)], float64(rng.Intn(60000)))
		case 6:
			_ = svc.UpdateCosts(ctx, float64(rng.Intn(3000)), float64(rng.Intn(3000)))
		case 7:
			_, _ = svc.AddModification(ctx, pick(), Modification{ID: "m", PriceMultiplier: 1.1, PriceAdd: 100})
		}

		c := svc.GetCart()
		assertConsistent(t, c)
		assert.LessOrEqual(t, len(c.Items), settings.MaxItems)
		for _, item := range c.Items {
			assert.Greater(t, item.Quantity, 0)
			assert.LessOrEqual(t, item.Quantity, settings.MaxQuantity)
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, snapshot := range rec.snapshots {
		assertConsistent(t, snapshot)
	}
}

func TestConcurrentMutations(t *testing.T) {
	svc, _ := newTestService(t, testSettings(), nil)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, doorDraft())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			draft := doorDraft()
			_, _ = svc.AddItem(ctx, draft)
		}()
	}
	wg.Wait()

	got, err := svc.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 51, got.Quantity)
	assertConsistent(t, svc.GetCart())
}
