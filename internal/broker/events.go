package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pokemart/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderConfirmed publishes OrderConfirmed event
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderExpired publishes OrderExpired event
func (ep *EventPublisher) PublishOrderExpired(ctx context.Context, event *models.OrderExpiredEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCatchRecorded publishes CatchRecorded event
func (ep *EventPublisher) PublishCatchRecorded(ctx context.Context, event *models.CatchRecordedEvent) error {
	key := fmt.Sprintf("trainer-%d", event.TrainerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBadgeUnlocked publishes BadgeUnlocked event
func (ep *EventPublisher) PublishBadgeUnlocked(ctx context.Context, event *models.BadgeUnlockedEvent) error {
	key := fmt.Sprintf("trainer-%d", event.TrainerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onOrderConfirmed func(context.Context, *models.OrderConfirmedEvent) error
	onOrderCancelled func(context.Context, *models.OrderCancelledEvent) error
	onBadgeUnlocked  func(context.Context, *models.BadgeUnlockedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderConfirmed registers a handler for OrderConfirmed events
func (eh *EventHandler) OnOrderConfirmed(handler func(context.Context, *models.OrderConfirmedEvent) error) {
	eh.onOrderConfirmed = handler
}

// OnOrderCancelled registers a handler for OrderCancelled events
func (eh *EventHandler) OnOrderCancelled(handler func(context.Context, *models.OrderCancelledEvent) error) {
	eh.onOrderCancelled = handler
}

// OnBadgeUnlocked registers a handler for BadgeUnlocked events
func (eh *EventHandler) OnBadgeUnlocked(handler func(context.Context, *models.BadgeUnlockedEvent) error) {
	eh.onBadgeUnlocked = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeOrderConfirmed:
		if eh.onOrderConfirmed != nil {
			var event models.OrderConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderConfirmed event: %w", err)
			}
			return eh.onOrderConfirmed(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			var event models.OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCancelled event: %w", err)
			}
			return eh.onOrderCancelled(ctx, &event)
		}

	case models.EventTypeBadgeUnlocked:
		if eh.onBadgeUnlocked != nil {
			var event models.BadgeUnlockedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BadgeUnlocked event: %w", err)
			}
			return eh.onBadgeUnlocked(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
