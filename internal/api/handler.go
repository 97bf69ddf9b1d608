package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pokemart/internal/models"
	"pokemart/internal/service"
	"pokemart/internal/store"
	"pokemart/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	catalog  *service.CatalogService
	catches  *service.CatchService
	trainers *service.TrainerService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	catalog *service.CatalogService,
	catches *service.CatchService,
	trainers *service.TrainerService,
) *Handler {
	return &Handler{
		orders:   orders,
		catalog:  catalog,
		catches:  catches,
		trainers: trainers,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cards", h.listCards)
		v1.POST("/cards", h.createCard)
		v1.GET("/cards/:id", h.getCard)
		v1.PUT("/cards/:id", h.updateCard)
		v1.DELETE("/cards/:id", h.deactivateCard)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.PUT("/orders/:id/status", h.updateOrderStatus)
		v1.GET("/orders/user/:wallet", h.listOrdersByWallet)

		v1.POST("/users/auth", h.authTrainer)
		v1.PUT("/users/display-name", h.updateDisplayName)

		v1.GET("/daily-catch/today", h.dailyToday)
		v1.POST("/daily-catch/catch", h.dailyCatch)

		v1.GET("/pokedex/:wallet", h.getPokedex)
		v1.POST("/pokedex/check-badges", h.checkBadges)
	}
}

// respondError maps the service error taxonomy onto HTTP. Unknown
// errors get a generic 500 so internals never leak; full detail is in
// the server log.
func respondError(c *gin.Context, err error) {
	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":              "Catch cooldown active",
			"code":               "cooldown_active",
			"time_until_next_ms": cooldown.Remaining.Milliseconds(),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "conflict"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "invalid_transition"})
	case errors.Is(err, service.ErrOrderExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error(), "code": "order_expired"})
	case errors.Is(err, store.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "insufficient_stock"})
	case errors.Is(err, service.ErrSoldOutPaymentReceived):
		// Money has moved on-chain; the buyer must be told a refund is
		// owed, not shown a generic failure.
		c.JSON(http.StatusConflict, gin.H{
			"error":           "Item sold out after your payment was verified. A refund is required.",
			"code":            "sold_out_payment_received",
			"refund_required": true,
		})
	case errors.Is(err, service.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Payment transaction not found yet. Wait for it to propagate and retry.",
			"code":  "payment_not_found",
			"retry": true,
		})
	case errors.Is(err, service.ErrPaymentUnconfirmed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Payment transaction failed on chain", "code": "payment_unconfirmed"})
	case errors.Is(err, service.ErrInsufficientAmount):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Payment amount is below the order total", "code": "insufficient_amount"})
	case errors.Is(err, service.ErrWrongRecipient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Payment was sent to the wrong recipient", "code": "wrong_recipient"})
	case errors.Is(err, service.ErrVerificationUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Payment verification is temporarily unavailable, try again shortly",
			"code":  "verification_unavailable",
			"retry": true,
		})
	default:
		util.GetLogger().Error("Internal error: " + err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "internal"})
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID", "code": "invalid_input"})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	// Non-positive per_page would divide the page count by zero.
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// listCards handles catalog listing with filters
func (h *Handler) listCards(c *gin.Context) {
	page, perPage := pagination(c)
	includeInactive, _ := strconv.ParseBool(c.DefaultQuery("include_inactive", "false"))

	cards, total, err := h.catalog.ListCards(c.Request.Context(), store.CardFilter{
		Rarity:          c.Query("rarity"),
		SetName:         c.Query("set_name"),
		Search:          c.Query("q"),
		IncludeInactive: includeInactive,
		Page:            page,
		PerPage:         perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cards":        cards,
		"total":        total,
		"pages":        (total + perPage - 1) / perPage,
		"current_page": page,
	})
}

// createCard handles card creation
func (h *Handler) createCard(c *gin.Context) {
	var card models.Card
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	card.IsActive = true
	if card.Stock == 0 {
		card.Stock = 1
	}

	if err := h.catalog.CreateCard(c.Request.Context(), &card); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

// getCard handles get card by ID
func (h *Handler) getCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	card, err := h.catalog.GetCard(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// updateCard handles card updates
func (h *Handler) updateCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var card models.Card
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	card.ID = id

	updated, err := h.catalog.UpdateCard(c.Request.Context(), &card)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// deactivateCard handles soft deletion
func (h *Handler) deactivateCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeactivateCard(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// listOrders handles order listing
func (h *Handler) listOrders(c *gin.Context) {
	page, perPage := pagination(c)
	trainerID, _ := strconv.ParseInt(c.Query("trainer_id"), 10, 64)

	orders, total, err := h.orders.ListOrders(c.Request.Context(), store.OrderFilter{
		TrainerID: trainerID,
		Status:    c.Query("status"),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":       orders,
		"total":        total,
		"pages":        (total + perPage - 1) / perPage,
		"current_page": page,
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type confirmOrderRequest struct {
	TxHash       string         `json:"transaction_hash" binding:"required"`
	ShippingInfo types.JSONText `json:"shipping_info"`
}

// confirmOrder handles payment confirmation
func (h *Handler) confirmOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req confirmOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction hash is required", "details": err.Error()})
		return
	}

	order, err := h.orders.ConfirmOrder(c.Request.Context(), id, req.TxHash, req.ShippingInfo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// cancelOrder handles buyer cancellation
func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus handles the admin transition path
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required", "details": err.Error()})
		return
	}

	order, err := h.orders.AdvanceOrder(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// listOrdersByWallet handles per-buyer order history
func (h *Handler) listOrdersByWallet(c *gin.Context) {
	page, perPage := pagination(c)
	orders, total, err := h.orders.ListOrdersByWallet(c.Request.Context(), c.Param("wallet"), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":       orders,
		"total":        total,
		"pages":        (total + perPage - 1) / perPage,
		"current_page": page,
	})
}

type walletRequest struct {
	Wallet string `json:"wallet_address" binding:"required"`
}

// authTrainer handles wallet login / account creation
func (h *Handler) authTrainer(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet address is required", "details": err.Error()})
		return
	}

	trainer, err := h.trainers.Auth(c.Request.Context(), req.Wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trainer)
}

type displayNameRequest struct {
	Wallet      string `json:"wallet_address" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}

// updateDisplayName handles display name changes
func (h *Handler) updateDisplayName(c *gin.Context) {
	var req displayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	trainer, err := h.trainers.UpdateDisplayName(c.Request.Context(), req.Wallet, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trainer)
}

// dailyToday handles the daily species lookup
func (h *Handler) dailyToday(c *gin.Context) {
	wallet := c.Query("wallet_address")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet address is required", "code": "invalid_input"})
		return
	}

	info, err := h.catches.Today(c.Request.Context(), wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// dailyCatch handles catch submissions
func (h *Handler) dailyCatch(c *gin.Context) {
	var req service.CatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "details": err.Error()})
		return
	}

	result, err := h.catches.RecordCatch(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getPokedex handles pokedex reads
func (h *Handler) getPokedex(c *gin.Context) {
	entries, records, err := h.catches.Pokedex(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"caught_pokemon": entries,
		"badges":         records,
		"total_caught":   len(entries),
	})
}

// checkBadges handles badge re-evaluation
func (h *Handler) checkBadges(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet address is required", "details": err.Error()})
		return
	}

	records, err := h.catches.CheckBadges(c.Request.Context(), req.Wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "badges": records})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
