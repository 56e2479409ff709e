// internal/domain/pricing/entity.go
package pricing

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrPricingUnavailable is returned by the remote client when no usable
// price could be obtained. It never leaves the pricing Service.
var ErrPricingUnavailable = errors.New("pricing: remote price unavailable")

// Ref identifies a selected accessory by id only
type Ref struct {
	ID string `json:"id"`
}

// Request describes a fully specified configurable door
type Request struct {
	Style       string `json:"style"`
	Model       string `json:"model"`
	Finish      string `json:"finish"`
	Color       string `json:"color"`
	Width       int    `json:"width"`  // mm
	Height      int    `json:"height"` // mm
	HardwareKit *Ref   `json:"hardware_kit,omitempty"`
	Handle      *Ref   `json:"handle,omitempty"`
}

// Source tells where a price came from
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceLocal  Source = "local"
	SourceManual Source = "manual" // set explicitly by the caller
)

// BreakdownLine is one labelled component of a price
type BreakdownLine struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Result is the price of a configuration
type Result struct {
	Total     float64         `json:"total"`
	BasePrice float64         `json:"base_price"`
	SKU1C     string          `json:"sku_1c,omitempty"`
	Breakdown []BreakdownLine `json:"breakdown,omitempty"`
	Source    Source          `json:"source"`
}

// CacheStats describes the facade cache contents
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Normalize trims every field and reduces accessories to their ids
func (r Request) Normalize() Request {
	n := Request{
		Style:  strings.TrimSpace(r.Style),
		Model:  strings.TrimSpace(r.Model),
		Finish: strings.TrimSpace(r.Finish),
		Color:  strings.TrimSpace(r.Color),
		Width:  r.Width,
		Height: r.Height,
	}
	if r.HardwareKit != nil && strings.TrimSpace(r.HardwareKit.ID) != "" {
		n.HardwareKit = &Ref{ID: strings.TrimSpace(r.HardwareKit.ID)}
	}
	if r.Handle != nil && strings.TrimSpace(r.Handle.ID) != "" {
		n.Handle = &Ref{ID: strings.TrimSpace(r.Handle.ID)}
	}
	return n
}

// CacheKey is the canonical serialization of the normalized request
func (r Request) CacheKey() string {
	data, err := json.Marshal(r.Normalize())
	if err != nil {
		// Request only holds strings, ints and pointers to string structs.
		panic(err)
	}
	return string(data)
}
