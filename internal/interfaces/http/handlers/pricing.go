// internal/interfaces/http/handlers/pricing.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/configurator-backend/internal/domain/pricing"
)

// PriceCalculator is the pricing facade as seen by HTTP
type PriceCalculator interface {
	CalculatePriceUniversal(ctx context.Context, req pricing.Request) pricing.Result
	ClearCache()
	CacheStats() pricing.CacheStats
}

// PricingHandler handles pricing endpoints
type PricingHandler struct {
	pricing PriceCalculator
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(calculator PriceCalculator) *PricingHandler {
	return &PricingHandler{pricing: calculator}
}

// PriceDoorRequest is the body of POST /pricing/doors
type PriceDoorRequest struct {
	Selection pricing.Request `json:"selection"`
}

// PriceDoor handles POST /pricing/doors
func (h *PricingHandler) PriceDoor(c *gin.Context) {
	var req PriceDoorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Selection.Width < 0 || req.Selection.Height < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dimensions must not be negative"})
		return
	}

	result := h.pricing.CalculatePriceUniversal(c.Request.Context(), req.Selection)
	c.JSON(http.StatusOK, gin.H{
		"message": "Price calculated successfully",
		"data":    result,
	})
}

// CacheStats handles GET /pricing/cache
func (h *PricingHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Pricing cache stats",
		"data":    h.pricing.CacheStats(),
	})
}

// ClearCache handles DELETE /pricing/cache
func (h *PricingHandler) ClearCache(c *gin.Context) {
	h.pricing.ClearCache()
	c.JSON(http.StatusOK, gin.H{"message": "Pricing cache cleared"})
}
