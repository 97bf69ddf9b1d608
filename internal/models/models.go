package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Card represents a purchasable listing in the catalog
type Card struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	PriceEth    decimal.Decimal `db:"price_eth" json:"price_eth"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	Rarity      string          `db:"rarity" json:"rarity"`
	SetName     string          `db:"set_name" json:"set_name"`
	CardNumber  string          `db:"card_number" json:"card_number"`
	Condition   string          `db:"condition" json:"condition"`
	Stock       int             `db:"stock_quantity" json:"stock_quantity"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Order represents a buyer's request to purchase a quantity of one card
type Order struct {
	ID            int64           `db:"id" json:"id"`
	TrainerID     int64           `db:"trainer_id" json:"trainer_id"`
	CardID        int64           `db:"card_id" json:"card_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	TotalPriceEth decimal.Decimal `db:"total_price_eth" json:"total_price_eth"`
	Status        string          `db:"status" json:"status"`
	TxHash        *string         `db:"tx_hash" json:"transaction_hash,omitempty"`
	BuyerWallet   string          `db:"buyer_wallet" json:"buyer_wallet_address"`
	ShippingInfo  types.JSONText  `db:"shipping_info" json:"shipping_info,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Trainer represents a user account keyed by wallet address
type Trainer struct {
	ID            int64      `db:"id" json:"id"`
	WalletAddress string     `db:"wallet_address" json:"wallet_address"`
	Username      string     `db:"username" json:"username"`
	DisplayName   *string    `db:"display_name" json:"display_name,omitempty"`
	IsAdmin       bool       `db:"is_admin" json:"is_admin"`
	LastCatchAt   *time.Time `db:"last_catch_at" json:"last_catch_at,omitempty"`
	LastLoginAt   time.Time  `db:"last_login_at" json:"last_login_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// CaughtEntry is one species in a trainer's pokedex.
// At most one row exists per (trainer, species).
type CaughtEntry struct {
	ID          int64     `db:"id" json:"-"`
	TrainerID   int64     `db:"trainer_id" json:"-"`
	SpeciesID   int       `db:"species_id" json:"pokemon_id"`
	SpeciesName string    `db:"species_name" json:"pokemon_name"`
	SpriteURL   string    `db:"sprite_url" json:"sprite"`
	CaughtAt    time.Time `db:"caught_at" json:"caught_at"`
}

// BadgeRecord is a permanently unlocked achievement
type BadgeRecord struct {
	TrainerID  int64     `db:"trainer_id" json:"-"`
	BadgeID    string    `db:"badge_id" json:"badge_id"`
	UnlockedAt time.Time `db:"unlocked_at" json:"unlocked_at"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
)

// orderTransitions is the only legal movement through the order state
// machine. Anything not listed is rejected.
var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusConfirmed: {OrderStatusShipped},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions exist.
func IsTerminalStatus(status string) bool {
	return len(orderTransitions[status]) == 0
}

// ValidOrderStatus reports whether s is a known status value.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
