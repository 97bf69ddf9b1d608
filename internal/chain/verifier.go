package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pokemart/internal/util"
)

// Outcome is the result of verifying a claimed on-chain payment.
type Outcome int

const (
	// Verified means the transaction exists, succeeded, went to the
	// expected recipient and carried at least the tolerated amount.
	Verified Outcome = iota
	// NotFound means the node does not know the transaction yet; the
	// client may retry once it propagates.
	NotFound
	// Unconfirmed means the transaction was mined but reverted.
	Unconfirmed
	// InsufficientAmount means the value transferred is below the
	// tolerated minimum.
	InsufficientAmount
	// WrongRecipient means the funds went somewhere else.
	WrongRecipient
	// Unavailable means the RPC provider could not be reached; this is
	// an infrastructure failure, not a verdict on the payment.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case NotFound:
		return "not_found"
	case Unconfirmed:
		return "unconfirmed"
	case InsufficientAmount:
		return "insufficient_amount"
	case WrongRecipient:
		return "wrong_recipient"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ValidTxHash reports whether s looks like an Ethereum transaction hash.
func ValidTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

// Backend is the slice of the Ethereum RPC surface the verifier needs.
// *ethclient.Client satisfies it.
type Backend interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Verifier turns an untrusted client-supplied transaction hash into a
// verified-or-rejected payment fact.
type Verifier struct {
	backend          Backend
	toleranceBP      int64
	minConfirmations uint64
	logger           *zap.Logger
}

// NewVerifier creates a verifier against an RPC backend. toleranceBP is
// the accepted underpayment in basis points (100 = 1%).
// minConfirmations below 1 is treated as 1.
func NewVerifier(backend Backend, toleranceBP, minConfirmations int) *Verifier {
	if minConfirmations < 1 {
		minConfirmations = 1
	}
	return &Verifier{
		backend:          backend,
		toleranceBP:      int64(toleranceBP),
		minConfirmations: uint64(minConfirmations),
		logger:           util.GetLogger(),
	}
}

// Dial connects to an Ethereum JSON-RPC endpoint and wraps it in a
// verifier.
func Dial(rpcURL string, toleranceBP, minConfirmations int) (*Verifier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain rpc: %w", err)
	}
	return NewVerifier(client, toleranceBP, minConfirmations), nil
}

// VerifyPayment checks the transaction against the expected recipient
// and ETH amount. The returned error is non-nil only for Unavailable
// and carries the provider failure for logging.
func (v *Verifier) VerifyPayment(ctx context.Context, txHash, recipient string, expectedEth decimal.Decimal) (Outcome, error) {
	if v.backend == nil {
		return Unavailable, errors.New("chain rpc not connected")
	}

	hash := common.HexToHash(txHash)

	tx, pending, err := v.backend.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return NotFound, nil
		}
		return Unavailable, fmt.Errorf("transaction lookup failed: %w", err)
	}
	if pending {
		// Found in the mempool but not mined; same client action as
		// not found: wait and retry.
		return NotFound, nil
	}

	receipt, err := v.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return NotFound, nil
		}
		return Unavailable, fmt.Errorf("receipt lookup failed: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Unconfirmed, nil
	}

	if v.minConfirmations > 1 {
		head, err := v.backend.BlockNumber(ctx)
		if err != nil {
			return Unavailable, fmt.Errorf("head lookup failed: %w", err)
		}
		// head < mined block happens briefly across load-balanced nodes;
		// count that as zero confirmations, not an underflow.
		mined := receipt.BlockNumber.Uint64()
		if head < mined || head-mined+1 < v.minConfirmations {
			return NotFound, nil
		}
	}

	to := tx.To()
	if to == nil || !strings.EqualFold(to.Hex(), recipient) {
		v.logger.Warn("Payment went to the wrong recipient",
			zap.String("tx_hash", txHash),
			zap.String("expected", recipient))
		return WrongRecipient, nil
	}

	if tx.Value().Cmp(v.minAcceptableWei(expectedEth)) < 0 {
		v.logger.Warn("Payment amount below tolerated minimum",
			zap.String("tx_hash", txHash),
			zap.String("paid_wei", tx.Value().String()),
			zap.String("expected_eth", expectedEth.String()))
		return InsufficientAmount, nil
	}

	return Verified, nil
}

// minAcceptableWei computes expected − expected×tolerance in wei using
// integer math only.
func (v *Verifier) minAcceptableWei(expectedEth decimal.Decimal) *big.Int {
	expectedWei := expectedEth.Shift(18).BigInt()
	tolerance := new(big.Int).Mul(expectedWei, big.NewInt(v.toleranceBP))
	tolerance.Div(tolerance, big.NewInt(10000))
	return new(big.Int).Sub(expectedWei, tolerance)
}
