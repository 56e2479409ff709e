// internal/domain/cart/settings.go
package cart

import (
	"strings"
	"time"

	"github.com/your-org/configurator-backend/internal/config"
)

// Settings are the per-cart business limits
type Settings struct {
	MaxItems                int
	MaxQuantity             int
	AllowNegativeQuantities bool
	DefaultTaxRate          float64
	Currency                string
	Locale                  string
	RemotePricedCategories  []string
	RecalculationDebounce   time.Duration
	IdleTimeout             time.Duration // carts untouched this long are evicted; 0 keeps them
}

// DefaultSettings mirrors the configuration defaults
func DefaultSettings() Settings {
	return Settings{
		MaxItems:               100,
		MaxQuantity:            999,
		DefaultTaxRate:         20,
		Currency:               "RUB",
		Locale:                 "ru-RU",
		RemotePricedCategories: []string{"doors"},
		RecalculationDebounce:  400 * time.Millisecond,
		IdleTimeout:            24 * time.Hour,
	}
}

// SettingsFromConfig extracts cart settings from the application config
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxItems:                cfg.Cart.MaxItems,
		MaxQuantity:             cfg.Cart.MaxQuantity,
		AllowNegativeQuantities: cfg.Cart.AllowNegativeQuantities,
		DefaultTaxRate:          cfg.Cart.DefaultTaxRate,
		Currency:                cfg.Cart.Currency,
		Locale:                  cfg.Cart.Locale,
		RemotePricedCategories:  cfg.Cart.RemotePricedCategories,
		RecalculationDebounce:   cfg.Cart.RecalculationDebounce,
		IdleTimeout:             cfg.Storage.SnapshotTTL,
	}
}

func (s Settings) isRemotePriced(item *Item) bool {
	if item.Configuration == nil {
		return false
	}
	for _, category := range s.RemotePricedCategories {
		if strings.EqualFold(category, item.CategoryID) {
			return true
		}
	}
	return false
}
