package service

import (
	"errors"
	"fmt"
	"time"
)

// Business-rule and infrastructure errors surfaced to the API layer.
// Store-level sentinels (store.ErrNotFound and friends) pass through
// where they already say the right thing.
var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict covers state-machine violations: order not pending,
	// transaction hash already used.
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderExpired      = errors.New("order confirmation window expired")
	// ErrPaymentNotFound means the chain does not know the transaction
	// yet; the buyer should retry once it propagates.
	ErrPaymentNotFound    = errors.New("payment transaction not found")
	ErrPaymentUnconfirmed = errors.New("payment transaction failed on chain")
	ErrInsufficientAmount = errors.New("payment amount insufficient")
	ErrWrongRecipient     = errors.New("payment sent to wrong recipient")
	// ErrVerificationUnavailable is an infrastructure failure, not a
	// verdict on the payment.
	ErrVerificationUnavailable = errors.New("payment verification unavailable")
	// ErrSoldOutPaymentReceived means stock ran out after the payment
	// verified; money has moved and a refund is owed.
	ErrSoldOutPaymentReceived = errors.New("sold out after verified payment, refund required")
	ErrCooldownActive         = errors.New("catch cooldown active")
)

// CooldownError carries the remaining wait. errors.Is matches it
// against ErrCooldownActive.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("catch cooldown active, %s remaining", e.Remaining)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}
