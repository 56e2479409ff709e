// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/configurator-backend/internal/domain/cart"
)

const sessionCookie = "session_id"

// CartHandler handles cart endpoints
type CartHandler struct {
	manager      *cart.Manager
	secureCookie bool
}

// NewCartHandler creates a new cart handler
func NewCartHandler(manager *cart.Manager, secureCookie bool) *CartHandler {
	return &CartHandler{
		manager:      manager,
		secureCookie: secureCookie,
	}
}

// UpdateQuantityRequest is the body of PUT /cart/items/:id/quantity
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// ApplyDiscountRequest is the body of POST /cart/discount
type ApplyDiscountRequest struct {
	Type  cart.DiscountType `json:"type" binding:"required,oneof=percentage fixed"`
	Value float64           `json:"value" binding:"gte=0"`
}

// UpdateCostsRequest is the body of PUT /cart/costs
type UpdateCostsRequest struct {
	Delivery     float64 `json:"delivery" binding:"gte=0"`
	Installation float64 `json:"installation" binding:"gte=0"`
}

// SetTaxRateRequest is the body of PUT /cart/tax-rate
type SetTaxRateRequest struct {
	Rate *float64 `json:"rate" binding:"required"`
}

// SetStatusRequest is the body of PUT /cart/status
type SetStatusRequest struct {
	Status cart.Status `json:"status" binding:"required"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	svc := h.readCart(c)
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    svc.GetCart(),
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	svc := h.cart(c)
	svc.ClearCart(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
		"data":    svc.GetCart(),
	})
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req cart.ItemDraft
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	item, err := svc.AddItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Item added to cart successfully",
		"data": gin.H{
			"item": item,
			"cart": svc.GetCart(),
		},
	})
}

// UpdateItem handles PATCH /cart/items/:id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req cart.ItemUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	item, err := svc.UpdateItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondItem(c, svc, item, "Cart item updated successfully")
}

// RemoveItem handles DELETE /cart/items/:id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	svc := h.cart(c)
	if err := svc.RemoveItem(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    svc.GetCart(),
	})
}

// UpdateQuantity handles PUT /cart/items/:id/quantity
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	item, err := svc.UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{
			"message": "Item removed from cart successfully",
			"data":    gin.H{"cart": svc.GetCart()},
		})
		return
	}
	h.respondItem(c, svc, item, "Quantity updated successfully")
}

// AddOption handles PUT /cart/items/:id/options
func (h *CartHandler) AddOption(c *gin.Context) {
	var req cart.Option
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	item, err := svc.AddOption(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondItem(c, svc, item, "Option saved successfully")
}

// AddModification handles PUT /cart/items/:id/modifications
func (h *CartHandler) AddModification(c *gin.Context) {
	var req cart.Modification
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	item, err := svc.AddModification(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondItem(c, svc, item, "Modification saved successfully")
}

// RecalculateItem handles POST /cart/items/:id/recalculate
func (h *CartHandler) RecalculateItem(c *gin.Context) {
	svc := h.cart(c)
	item, err := svc.RecalculateItemPrice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondItem(c, svc, item, "Item price recalculated")
}

// ApplyDiscount handles POST /cart/discount
func (h *CartHandler) ApplyDiscount(c *gin.Context) {
	var req ApplyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	if err := svc.ApplyDiscount(c.Request.Context(), req.Type, req.Value); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, svc, "Discount applied successfully")
}

// UpdateClientInfo handles PUT /cart/client
func (h *CartHandler) UpdateClientInfo(c *gin.Context) {
	var req cart.ClientInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	svc.UpdateClientInfo(c.Request.Context(), req)
	h.respondCart(c, svc, "Client information updated successfully")
}

// UpdateCosts handles PUT /cart/costs
func (h *CartHandler) UpdateCosts(c *gin.Context) {
	var req UpdateCostsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	if err := svc.UpdateCosts(c.Request.Context(), req.Delivery, req.Installation); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, svc, "Costs updated successfully")
}

// SetTaxRate handles PUT /cart/tax-rate
func (h *CartHandler) SetTaxRate(c *gin.Context) {
	var req SetTaxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	if err := svc.SetTaxRate(c.Request.Context(), *req.Rate); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, svc, "Tax rate updated successfully")
}

// SetStatus handles PUT /cart/status
func (h *CartHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	svc := h.cart(c)
	if err := svc.SetStatus(c.Request.Context(), req.Status); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, svc, "Status updated successfully")
}

// Validate handles GET /cart/validate
func (h *CartHandler) Validate(c *gin.Context) {
	result := h.readCart(c).Validate()
	status := http.StatusOK
	if !result.IsValid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"message": "Cart validated",
		"data":    result,
	})
}

// GetCalculation handles GET /cart/calculation
func (h *CartHandler) GetCalculation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Calculation retrieved successfully",
		"data":    h.readCart(c).GetCalculation(),
	})
}

// GetStats handles GET /cart/stats
func (h *CartHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Stats retrieved successfully",
		"data":    h.readCart(c).Stats(),
	})
}

// Save handles POST /cart/save
func (h *CartHandler) Save(c *gin.Context) {
	sessionID := h.getOrCreateSessionID(c)
	if err := h.manager.Save(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart saved successfully"})
}

// Export handles POST /cart/export/:document
func (h *CartHandler) Export(c *gin.Context) {
	svc := h.cart(c)
	doc, err := svc.Export(c.Request.Context(), cart.DocumentType(c.Param("document")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart exported successfully",
		"data":    doc,
	})
}

func (h *CartHandler) respondItem(c *gin.Context, svc *cart.Service, item *cart.Item, message string) {
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data": gin.H{
			"item": item,
			"cart": svc.GetCart(),
		},
	})
}

func (h *CartHandler) respondCart(c *gin.Context, svc *cart.Service, message string) {
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    svc.GetCart(),
	})
}

func (h *CartHandler) cart(c *gin.Context) *cart.Service {
	return h.manager.Get(c.Request.Context(), h.getOrCreateSessionID(c))
}

// readCart serves reads without opening a session for cookieless visitors
func (h *CartHandler) readCart(c *gin.Context) *cart.Service {
	sessionID, _ := c.Cookie(sessionCookie)
	return h.manager.View(c.Request.Context(), sessionID)
}

// getOrCreateSessionID gets session ID from cookie or creates a new one
func (h *CartHandler) getOrCreateSessionID(c *gin.Context) string {
	if id := c.GetString(sessionCookie); id != "" {
		return id
	}

	sessionID, err := c.Cookie(sessionCookie)
	if err != nil || sessionID == "" {
		sessionID = uuid.New().String()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, sessionID, 86400, "/", "", h.secureCookie, true)
	}
	c.Set(sessionCookie, sessionID)
	return sessionID
}
