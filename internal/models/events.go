package models

import "time"

// Event types
const (
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypeOrderExpired   = "ORDER_EXPIRED"
	EventTypeCatchRecorded  = "CATCH_RECORDED"
	EventTypeBadgeUnlocked  = "BADGE_UNLOCKED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderConfirmedEvent published after a verified payment confirms an order
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	TrainerID   int64  `json:"trainer_id"`
	CardID      int64  `json:"card_id"`
	Quantity    int    `json:"quantity"`
	TotalEth    string `json:"total_eth"`
	TxHash      string `json:"tx_hash"`
	BuyerWallet string `json:"buyer_wallet"`
	// SoftPassed marks confirmations that went through while the RPC
	// provider was unreachable; these need manual reconciliation.
	SoftPassed bool `json:"soft_passed,omitempty"`
}

// OrderCancelledEvent published when a pending order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderExpiredEvent published when a confirm attempt finds the window closed
type OrderExpiredEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

// CatchRecordedEvent published after a daily catch
type CatchRecordedEvent struct {
	BaseEvent
	TrainerID   int64  `json:"trainer_id"`
	SpeciesID   int    `json:"species_id"`
	SpeciesName string `json:"species_name"`
	IsNewEntry  bool   `json:"is_new_entry"`
}

// BadgeUnlockedEvent published once per newly earned badge
type BadgeUnlockedEvent struct {
	BaseEvent
	TrainerID int64  `json:"trainer_id"`
	BadgeID   string `json:"badge_id"`
}
