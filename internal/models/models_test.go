package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusConfirmed))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusExpired))
	assert.True(t, CanTransition(OrderStatusConfirmed, OrderStatusShipped))
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusDelivered))

	// No backward or skipping moves.
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusShipped))
	assert.False(t, CanTransition(OrderStatusConfirmed, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusConfirmed, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusConfirmed))

	// Terminal statuses go nowhere.
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusShipped))
	assert.False(t, CanTransition(OrderStatusCancelled, OrderStatusConfirmed))
	assert.False(t, CanTransition(OrderStatusExpired, OrderStatusConfirmed))
}

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, IsTerminalStatus(OrderStatusPending))
	assert.False(t, IsTerminalStatus(OrderStatusConfirmed))
	assert.False(t, IsTerminalStatus(OrderStatusShipped))
	assert.True(t, IsTerminalStatus(OrderStatusDelivered))
	assert.True(t, IsTerminalStatus(OrderStatusCancelled))
	assert.True(t, IsTerminalStatus(OrderStatusExpired))
}

func TestValidOrderStatus(t *testing.T) {
	assert.True(t, ValidOrderStatus(OrderStatusPending))
	assert.True(t, ValidOrderStatus(OrderStatusDelivered))
	assert.False(t, ValidOrderStatus("teleported"))
	assert.False(t, ValidOrderStatus(""))
}
