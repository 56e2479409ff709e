// internal/domain/cart/totals.go
package cart

import "math"

// calculateItemTotals derives the price fields of one line. Modifications
// shape the line total but not its subtotal.
func calculateItemTotals(item *Item, taxRate float64) {
	qty := float64(item.Quantity)

	subtotal := item.BasePrice * qty
	for _, opt := range item.Options {
		subtotal += opt.Price * qty
	}

	final := subtotal
	for _, mod := range item.Modifications {
		final = final*mod.PriceMultiplier + mod.PriceAdd*qty
	}

	discount := 0.0
	tax := (final - discount) * (taxRate / 100)

	item.Subtotal = subtotal
	item.Discount = discount
	item.Tax = tax
	item.Total = final - discount + tax
}

// calculateCartTotals recomputes every line and then the cart figures
func calculateCartTotals(c *Cart) {
	subtotal := 0.0
	for _, item := range c.Items {
		calculateItemTotals(item, c.TaxRate)
		subtotal += item.Subtotal
	}
	c.Subtotal = subtotal

	switch c.DiscountType {
	case DiscountPercentage:
		c.Discount = subtotal * (c.DiscountValue / 100)
	case DiscountFixed:
		c.Discount = c.DiscountValue
	default:
		c.Discount = 0
	}
	// never below zero, never above the subtotal
	c.Discount = math.Max(0, math.Min(c.Discount, math.Max(subtotal, 0)))

	taxable := c.Subtotal - c.Discount + c.DeliveryCost + c.InstallationCost
	c.Tax = taxable * (c.TaxRate / 100)
	c.Total = taxable + c.Tax
}

func buildCalculation(c *Cart) Calculation {
	var calc Calculation
	var options, modifications float64

	for _, item := range c.Items {
		calc.Items.Subtotal += item.Subtotal
		calc.Items.Discount += item.Discount
		calc.Items.Tax += item.Tax
		calc.Items.Total += item.Total

		qty := float64(item.Quantity)
		for _, opt := range item.Options {
			options += opt.Price * qty
		}
		for _, mod := range item.Modifications {
			modifications += mod.PriceAdd * qty
		}
	}

	calc.Cart = CartTotals{
		Subtotal:     c.Subtotal,
		Discount:     c.Discount,
		Delivery:     c.DeliveryCost,
		Installation: c.InstallationCost,
		Tax:          c.Tax,
		Total:        c.Total,
	}
	calc.Breakdown = Breakdown{
		BaseItems:     calc.Items.Subtotal - options,
		Options:       options,
		Modifications: modifications,
		Discounts:     c.Discount,
		Delivery:      c.DeliveryCost,
		Installation:  c.InstallationCost,
		Tax:           c.Tax,
	}
	return calc
}

func buildStats(c *Cart) Stats {
	stats := Stats{
		ItemCount: len(c.Items),
		Total:     c.Total,
		Currency:  c.Currency,
		Status:    c.Status,
	}
	for _, item := range c.Items {
		stats.TotalQuantity += item.Quantity
	}
	return stats
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]*Item, len(c.Items))
	for i, item := range c.Items {
		cp.Items[i] = item.Clone()
	}
	if c.ClientInfo != nil {
		info := *c.ClientInfo
		cp.ClientInfo = &info
	}
	return &cp
}

// Clone returns a deep copy of the item
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Options = append([]Option{}, i.Options...)
	cp.Modifications = append([]Modification{}, i.Modifications...)
	cp.Images = append([]string(nil), i.Images...)
	if i.Specifications != nil {
		cp.Specifications = make(map[string]interface{}, len(i.Specifications))
		for k, v := range i.Specifications {
			cp.Specifications[k] = v
		}
	}
	if i.Configuration != nil {
		conf := *i.Configuration
		cp.Configuration = &conf
	}
	if i.PriceState != nil {
		state := *i.PriceState
		cp.PriceState = &state
	}
	return &cp
}
