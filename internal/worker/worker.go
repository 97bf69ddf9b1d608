package worker

import (
	"context"
	"log"

	"pokemart/internal/broker"
	"pokemart/internal/models"
	"pokemart/internal/store"
	"pokemart/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes order events and notifies the shop
// admin. Notification is fire-and-forget: a failure here never touches
// the buyer's confirmation response.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, st *store.Store) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderConfirmed(w.handleOrderConfirmed)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	// Mail delivery lives outside this service; the structured log is
	// the notification channel the admin tooling tails.
	w.logger.Info("Admin notification: order confirmed",
		zap.Int64("order_id", event.OrderID),
		zap.String("buyer_wallet", event.BuyerWallet),
		zap.String("total_eth", event.TotalEth),
		zap.String("tx_hash", event.TxHash),
		zap.Bool("needs_manual_review", event.SoftPassed))

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	w.logger.Info("Admin notification: order cancelled",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
