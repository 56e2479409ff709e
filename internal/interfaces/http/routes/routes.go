// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/configurator-backend/internal/interfaces/http/handlers"
	"github.com/your-org/configurator-backend/internal/interfaces/http/middleware"
)

// RoleManager is the role allowed to administer the pricing cache
const RoleManager = "manager"

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, h *handlers.CartHandler) {
	cartGroup := rg.Group("/cart")
	{
		cartGroup.GET("", h.GetCart)
		cartGroup.DELETE("", h.ClearCart)

		cartGroup.POST("/items", h.AddItem)
		cartGroup.PATCH("/items/:id", h.UpdateItem)
		cartGroup.DELETE("/items/:id", h.RemoveItem)
		cartGroup.PUT("/items/:id/quantity", h.UpdateQuantity)
		cartGroup.PUT("/items/:id/options", h.AddOption)
		cartGroup.PUT("/items/:id/modifications", h.AddModification)
		cartGroup.POST("/items/:id/recalculate", h.RecalculateItem)

		cartGroup.POST("/discount", h.ApplyDiscount)
		cartGroup.PUT("/client", h.UpdateClientInfo)
		cartGroup.PUT("/costs", h.UpdateCosts)
		cartGroup.PUT("/tax-rate", h.SetTaxRate)
		cartGroup.PUT("/status", h.SetStatus)

		cartGroup.GET("/validate", h.Validate)
		cartGroup.GET("/calculation", h.GetCalculation)
		cartGroup.GET("/stats", h.GetStats)

		cartGroup.POST("/save", h.Save)
		cartGroup.POST("/export/:document", h.Export)
	}
}

// SetupPricingRoutes sets up pricing related routes
func SetupPricingRoutes(rg *gin.RouterGroup, h *handlers.PricingHandler) {
	pricingGroup := rg.Group("/pricing")
	{
		pricingGroup.POST("/doors", h.PriceDoor)

		admin := pricingGroup.Group("/cache")
		admin.Use(middleware.RequireRole(RoleManager))
		{
			admin.GET("", h.CacheStats)
			admin.DELETE("", h.ClearCache)
		}
	}
}

// SetupRoutes sets up all API routes
func SetupRoutes(rg *gin.RouterGroup, cartHandler *handlers.CartHandler, pricingHandler *handlers.PricingHandler) {
	SetupCartRoutes(rg, cartHandler)
	SetupPricingRoutes(rg, pricingHandler)
}
