package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pokemart/internal/chain"
	"pokemart/internal/models"
	"pokemart/internal/store"
	"pokemart/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// OrderStore is the slice of the store the order lifecycle needs.
type OrderStore interface {
	GetCardByID(ctx context.Context, id int64) (*models.Card, error)
	GetOrCreateTrainer(ctx context.Context, wallet string) (*models.Trainer, error)
	GetTrainerByWallet(ctx context.Context, wallet string) (*models.Trainer, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error)
	TransitionOrder(ctx context.Context, orderID int64, from, to string) error
	ConfirmOrderTx(ctx context.Context, orderID, cardID int64, quantity int, txHash string, shippingInfo types.JSONText) error
}

// PaymentVerifier validates a claimed on-chain payment.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txHash, recipient string, expectedEth decimal.Decimal) (chain.Outcome, error)
}

// OrderEvents publishes order lifecycle events.
type OrderEvents interface {
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderExpired(ctx context.Context, event *models.OrderExpiredEvent) error
}

// OrderService enforces the order state machine: stock is decremented
// at most once, only after verified payment.
type OrderService struct {
	store         OrderStore
	verifier      PaymentVerifier
	events        OrderEvents
	recipient     string
	confirmWindow time.Duration
	failOpen      bool
	logger        *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	st OrderStore,
	verifier PaymentVerifier,
	events OrderEvents,
	recipient string,
	confirmWindow time.Duration,
	failOpen bool,
) *OrderService {
	return &OrderService{
		store:         st,
		verifier:      verifier,
		events:        events,
		recipient:     recipient,
		confirmWindow: confirmWindow,
		failOpen:      failOpen,
		logger:        util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CardID      int64  `json:"card_id" binding:"required"`
	Quantity    int    `json:"quantity"`
	BuyerWallet string `json:"buyer_wallet_address" binding:"required"`
}

// CreateOrder creates a pending order with the total frozen at the
// card's current price. Stock stays untouched until a verified payment
// confirms the order, so unpaid intents never lock inventory.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrInvalidInput)
	}
	wallet := strings.ToLower(req.BuyerWallet)
	if !walletPattern.MatchString(wallet) {
		return nil, fmt.Errorf("malformed wallet address: %w", ErrInvalidInput)
	}

	card, err := s.store.GetCardByID(ctx, req.CardID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("card_not_found").Inc()
		return nil, err
	}
	if !card.IsActive {
		util.OrdersFailedTotal.WithLabelValues("card_inactive").Inc()
		return nil, fmt.Errorf("card %d is not for sale: %w", card.ID, store.ErrNotFound)
	}
	if card.Stock < req.Quantity {
		util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, fmt.Errorf("card %d has %d in stock: %w", card.ID, card.Stock, store.ErrInsufficientStock)
	}

	trainer, err := s.store.GetOrCreateTrainer(ctx, wallet)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		TrainerID:     trainer.ID,
		CardID:        card.ID,
		Quantity:      req.Quantity,
		TotalPriceEth: card.PriceEth.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Status:        models.OrderStatusPending,
		BuyerWallet:   wallet,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("card_id", card.ID),
		zap.String("total_eth", order.TotalPriceEth.String()))

	return order, nil
}

// ConfirmOrder verifies the claimed payment and, on success, commits
// the stock decrement and the pending→confirmed transition atomically.
// Retrying with the same transaction hash after a transient failure is
// safe; once any confirmation succeeds the status guard and the unique
// hash index reject everything else.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID int64, txHash string, shippingInfo types.JSONText) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConfirmOrder")
	defer span.End()

	if !chain.ValidTxHash(txHash) {
		return nil, fmt.Errorf("malformed transaction hash: %w", ErrInvalidInput)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrConflict)
	}

	if time.Since(order.CreatedAt) > s.confirmWindow {
		return nil, s.expireOrder(ctx, order)
	}

	softPassed, err := s.verify(ctx, order, txHash)
	if err != nil {
		return nil, err
	}

	err = s.store.ConfirmOrderTx(ctx, order.ID, order.CardID, order.Quantity, txHash, shippingInfo)
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		// Payment already verified but another confirmation took the
		// last stock. Money has moved; surface the refund condition.
		util.OrdersFailedTotal.WithLabelValues("oversold_after_payment").Inc()
		s.logger.Error("Stock exhausted after verified payment, refund required",
			zap.Int64("order_id", order.ID),
			zap.String("tx_hash", txHash))
		return nil, fmt.Errorf("order %d: %w", order.ID, ErrSoldOutPaymentReceived)
	case errors.Is(err, store.ErrDuplicateTxHash):
		util.OrdersFailedTotal.WithLabelValues("duplicate_tx_hash").Inc()
		return nil, fmt.Errorf("transaction already backs another order: %w", ErrConflict)
	case errors.Is(err, store.ErrStatusConflict):
		return nil, fmt.Errorf("order %d no longer pending: %w", order.ID, ErrConflict)
	case err != nil:
		return nil, err
	}

	util.OrdersConfirmedTotal.Inc()
	s.logger.Info("Order confirmed",
		zap.Int64("order_id", order.ID),
		zap.String("tx_hash", txHash),
		zap.Bool("soft_passed", softPassed))

	if s.events != nil {
		event := &models.OrderConfirmedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeOrderConfirmed),
			OrderID:     order.ID,
			TrainerID:   order.TrainerID,
			CardID:      order.CardID,
			Quantity:    order.Quantity,
			TotalEth:    order.TotalPriceEth.String(),
			TxHash:      txHash,
			BuyerWallet: order.BuyerWallet,
			SoftPassed:  softPassed,
		}
		if err := s.events.PublishOrderConfirmed(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
		}
	}

	return s.store.GetOrderByID(ctx, order.ID)
}

// verify runs the chain check and maps each outcome onto the error
// taxonomy. Returns whether the confirmation is a fail-open soft-pass.
func (s *OrderService) verify(ctx context.Context, order *models.Order, txHash string) (bool, error) {
	start := time.Now()
	outcome, verr := s.verifier.VerifyPayment(ctx, txHash, s.recipient, order.TotalPriceEth)
	util.PaymentVerificationLatency.Observe(time.Since(start).Seconds())
	util.PaymentVerificationsTotal.WithLabelValues(outcome.String()).Inc()

	switch outcome {
	case chain.Verified:
		return false, nil
	case chain.NotFound:
		return false, fmt.Errorf("order %d, tx %s: %w", order.ID, txHash, ErrPaymentNotFound)
	case chain.Unconfirmed:
		return false, fmt.Errorf("order %d, tx %s: %w", order.ID, txHash, ErrPaymentUnconfirmed)
	case chain.InsufficientAmount:
		return false, fmt.Errorf("order %d, tx %s: %w", order.ID, txHash, ErrInsufficientAmount)
	case chain.WrongRecipient:
		return false, fmt.Errorf("order %d, tx %s: %w", order.ID, txHash, ErrWrongRecipient)
	case chain.Unavailable:
		if !s.failOpen {
			s.logger.Error("Chain RPC unavailable, rejecting confirmation",
				zap.Int64("order_id", order.ID),
				zap.Error(verr))
			return false, fmt.Errorf("order %d: %w", order.ID, ErrVerificationUnavailable)
		}
		// AUDIT: payment accepted without on-chain verification.
		util.PaymentSoftPassTotal.Inc()
		s.logger.Warn("Chain RPC unavailable, soft-passing payment for manual review",
			zap.Int64("order_id", order.ID),
			zap.String("tx_hash", txHash),
			zap.Error(verr))
		return true, nil
	}
	return false, fmt.Errorf("order %d: unexpected verification outcome %s", order.ID, outcome)
}

// expireOrder transitions a stale pending order and reports the expiry.
func (s *OrderService) expireOrder(ctx context.Context, order *models.Order) error {
	err := s.store.TransitionOrder(ctx, order.ID, models.OrderStatusPending, models.OrderStatusExpired)
	if err != nil && !errors.Is(err, store.ErrStatusConflict) {
		return err
	}
	if err == nil {
		util.OrdersExpiredTotal.Inc()
		s.logger.Info("Order expired", zap.Int64("order_id", order.ID))
		if s.events != nil {
			event := &models.OrderExpiredEvent{
				BaseEvent: newBaseEvent(models.EventTypeOrderExpired),
				OrderID:   order.ID,
			}
			if perr := s.events.PublishOrderExpired(ctx, event); perr != nil {
				s.logger.Error("Failed to publish OrderExpired event", zap.Error(perr))
			}
		}
	}
	return fmt.Errorf("order %d created %s ago: %w", order.ID, time.Since(order.CreatedAt).Round(time.Second), ErrOrderExpired)
}

// CancelOrder cancels a pending order. Stock was never deducted for
// pending orders, so there is nothing to restore.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	err := s.store.TransitionOrder(ctx, orderID, models.OrderStatusPending, models.OrderStatusCancelled)
	if errors.Is(err, store.ErrStatusConflict) {
		return nil, fmt.Errorf("order %d not pending: %w", orderID, ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.Int64("order_id", orderID))

	if s.events != nil {
		event := &models.OrderCancelledEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
			OrderID:   orderID,
			Reason:    "buyer_cancelled",
		}
		if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
		}
	}

	return s.store.GetOrderByID(ctx, orderID)
}

// AdvanceOrder is the administrative transition path. Only moves listed
// in the transition table are allowed; arbitrary overwrites are not.
func (s *OrderService) AdvanceOrder(ctx context.Context, orderID int64, next string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AdvanceOrder")
	defer span.End()

	if !models.ValidOrderStatus(next) {
		return nil, fmt.Errorf("unknown status %q: %w", next, ErrInvalidInput)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(order.Status, next) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, next, ErrInvalidTransition)
	}

	err = s.store.TransitionOrder(ctx, orderID, order.Status, next)
	if errors.Is(err, store.ErrStatusConflict) {
		return nil, fmt.Errorf("order %d moved concurrently: %w", orderID, ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status advanced",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", next))

	if next == models.OrderStatusCancelled {
		util.OrdersCancelledTotal.Inc()
	}

	return s.store.GetOrderByID(ctx, orderID)
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// ListOrders retrieves orders matching the filter
func (s *OrderService) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error) {
	return s.store.ListOrders(ctx, f)
}

// ListOrdersByWallet retrieves a buyer's orders. An unknown wallet
// yields an empty list, not an error.
func (s *OrderService) ListOrdersByWallet(ctx context.Context, wallet string, page, perPage int) ([]models.Order, int, error) {
	trainer, err := s.store.GetTrainerByWallet(ctx, strings.ToLower(wallet))
	if errors.Is(err, store.ErrNotFound) {
		return []models.Order{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListOrders(ctx, store.OrderFilter{
		TrainerID: trainer.ID,
		Page:      page,
		PerPage:   perPage,
	})
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
