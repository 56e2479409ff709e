// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/your-org/configurator-backend/internal/domain/pricing"
)

// Status represents the cart lifecycle status
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusQuote     Status = "quote"
	StatusInvoice   Status = "invoice"
	StatusOrder     Status = "order"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusQuote, StatusInvoice, StatusOrder, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// DiscountType selects how DiscountValue is interpreted
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// OptionType is the input kind of an option
type OptionType string

const (
	OptionSelect   OptionType = "select"
	OptionCheckbox OptionType = "checkbox"
	OptionNumber   OptionType = "number"
	OptionText     OptionType = "text"
)

// ModificationType is the kind of transform a modification applies
type ModificationType string

const (
	ModificationSize     ModificationType = "size"
	ModificationColor    ModificationType = "color"
	ModificationMaterial ModificationType = "material"
	ModificationFinish   ModificationType = "finish"
	ModificationCustom   ModificationType = "custom"
)

// Option is an additive configurable choice on a line item
type Option struct {
	ID       string      `json:"id" binding:"required"`
	Name     string      `json:"name"`
	Type     OptionType  `json:"type"`
	Value    interface{} `json:"value,omitempty"`
	Price    float64     `json:"price"`
	Required bool        `json:"required"`
}

// Modification is a multiplicative and additive price transform
type Modification struct {
	ID              string           `json:"id" binding:"required"`
	Name            string           `json:"name"`
	Type            ModificationType `json:"type"`
	Value           string           `json:"value,omitempty"`
	PriceMultiplier float64          `json:"price_multiplier"`
	PriceAdd        float64          `json:"price_add"`
}

// Configuration holds the door parameters priced by the pricing service
type Configuration struct {
	Style         string `json:"style"`
	Model         string `json:"model"`
	Finish        string `json:"finish"`
	Color         string `json:"color"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	HardwareKitID string `json:"hardware_kit_id,omitempty"`
	HandleID      string `json:"handle_id,omitempty"`
}

// PricingRequest converts the configuration into a pricing request
func (c Configuration) PricingRequest() pricing.Request {
	req := pricing.Request{
		Style:  c.Style,
		Model:  c.Model,
		Finish: c.Finish,
		Color:  c.Color,
		Width:  c.Width,
		Height: c.Height,
	}
	if c.HardwareKitID != "" {
		req.HardwareKit = &pricing.Ref{ID: c.HardwareKitID}
	}
	if c.HandleID != "" {
		req.Handle = &pricing.Ref{ID: c.HandleID}
	}
	return req.Normalize()
}

// PricePhase tells whether BasePrice is a local estimate or a confirmed price
type PricePhase string

const (
	PriceProvisional PricePhase = "provisional"
	PriceConfirmed   PricePhase = "confirmed"
)

// PriceState tracks remote recalculation of a remotely priced item.
// Sequence is the latest recalculation issued for the item.
type PriceState struct {
	Phase       PricePhase     `json:"phase"`
	Sequence    uint64         `json:"sequence"`
	Source      pricing.Source `json:"source"`
	ConfirmedAt *time.Time     `json:"confirmed_at,omitempty"`
}

// Item is one configured product line
type Item struct {
	ID             string                 `json:"id"`
	ProductID      string                 `json:"product_id"`
	ProductName    string                 `json:"product_name"`
	ProductSKU     string                 `json:"product_sku,omitempty"`
	CategoryID     string                 `json:"category_id,omitempty"`
	CategoryName   string                 `json:"category_name,omitempty"`
	Quantity       int                    `json:"quantity"`
	BasePrice      float64                `json:"base_price"`
	Options        []Option               `json:"options"`
	Modifications  []Modification         `json:"modifications"`
	Specifications map[string]interface{} `json:"specifications,omitempty"`
	Configuration  *Configuration         `json:"configuration,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
	Images         []string               `json:"images,omitempty"`
	Subtotal       float64                `json:"subtotal"`
	Discount       float64                `json:"discount"`
	Tax            float64                `json:"tax"`
	Total          float64                `json:"total"`
	PriceState     *PriceState            `json:"price_state,omitempty"`
	AddedAt        time.Time              `json:"added_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ItemDraft is the input of AddItem
type ItemDraft struct {
	ProductID      string                 `json:"product_id" binding:"required"`
	ProductName    string                 `json:"product_name"`
	ProductSKU     string                 `json:"product_sku"`
	CategoryID     string                 `json:"category_id"`
	CategoryName   string                 `json:"category_name"`
	Quantity       int                    `json:"quantity" binding:"required"`
	BasePrice      float64                `json:"base_price"`
	Options        []Option               `json:"options"`
	Modifications  []Modification         `json:"modifications"`
	Specifications map[string]interface{} `json:"specifications"`
	Configuration  *Configuration         `json:"configuration"`
	Notes          string                 `json:"notes"`
	Images         []string               `json:"images"`
}

// ItemUpdate is a partial update; nil fields are left untouched
type ItemUpdate struct {
	ProductName    *string                 `json:"product_name,omitempty"`
	ProductSKU     *string                 `json:"product_sku,omitempty"`
	CategoryID     *string                 `json:"category_id,omitempty"`
	CategoryName   *string                 `json:"category_name,omitempty"`
	Quantity       *int                    `json:"quantity,omitempty"`
	BasePrice      *float64                `json:"base_price,omitempty"`
	Options        *[]Option               `json:"options,omitempty"`
	Modifications  *[]Modification         `json:"modifications,omitempty"`
	Specifications *map[string]interface{} `json:"specifications,omitempty"`
	Configuration  *Configuration          `json:"configuration,omitempty"`
	Notes          *string                 `json:"notes,omitempty"`
	Images         *[]string               `json:"images,omitempty"`
}

// ClientInfo holds customer contact data attached to a cart
type ClientInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Company string `json:"company,omitempty"`
	TaxID   string `json:"tax_id,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Cart is the aggregate root
type Cart struct {
	ID               string       `json:"id"`
	Items            []*Item      `json:"items"`
	Subtotal         float64      `json:"subtotal"`
	Discount         float64      `json:"discount"`
	DiscountType     DiscountType `json:"discount_type"`
	DiscountValue    float64      `json:"discount_value"`
	DeliveryCost     float64      `json:"delivery_cost"`
	InstallationCost float64      `json:"installation_cost"`
	Tax              float64      `json:"tax"`
	TaxRate          float64      `json:"tax_rate"`
	Total            float64      `json:"total"`
	Currency         string       `json:"currency"`
	Status           Status       `json:"status"`
	ClientInfo       *ClientInfo  `json:"client_info,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Calculation decomposes the cart total for display
type Calculation struct {
	Items     ItemsTotals `json:"items"`
	Cart      CartTotals  `json:"cart"`
	Breakdown Breakdown   `json:"breakdown"`
}

// ItemsTotals sums the item-level figures
type ItemsTotals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// CartTotals repeats the cart-level figures
type CartTotals struct {
	Subtotal     float64 `json:"subtotal"`
	Discount     float64 `json:"discount"`
	Delivery     float64 `json:"delivery"`
	Installation float64 `json:"installation"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`
}

// Breakdown splits the total by origin
type Breakdown struct {
	BaseItems     float64 `json:"base_items"`
	Options       float64 `json:"options"`
	Modifications float64 `json:"modifications"`
	Discounts     float64 `json:"discounts"`
	Delivery      float64 `json:"delivery"`
	Installation  float64 `json:"installation"`
	Tax           float64 `json:"tax"`
}

// Stats summarises cart contents
type Stats struct {
	ItemCount     int     `json:"item_count"`     // Number of lines
	TotalQuantity int     `json:"total_quantity"` // Sum of all quantities
	Total         float64 `json:"total"`
	Currency      string  `json:"currency"`
	Status        Status  `json:"status"`
}

// DocumentType is the kind of document a cart is exported to
type DocumentType string

const (
	DocumentQuote   DocumentType = "quote"
	DocumentInvoice DocumentType = "invoice"
	DocumentOrder   DocumentType = "order"
)

// Status returns the cart status a document moves the cart to
func (d DocumentType) Status() (Status, bool) {
	switch d {
	case DocumentQuote:
		return StatusQuote, true
	case DocumentInvoice:
		return StatusInvoice, true
	case DocumentOrder:
		return StatusOrder, true
	}
	return "", false
}

// ExportDocument is what the document service receives
type ExportDocument struct {
	Document    DocumentType     `json:"document"`
	Cart        *Cart            `json:"cart"`
	Calculation Calculation      `json:"calculation"`
	Validation  ValidationResult `json:"validation"`
	ExportedAt  time.Time        `json:"exported_at"`
}
