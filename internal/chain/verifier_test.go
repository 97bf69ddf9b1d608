package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	recipientHex = "0x2222222222222222222222222222222222222222"
	otherHex     = "0x3333333333333333333333333333333333333333"
	hashHex      = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

// fakeBackend serves a single scripted transaction.
type fakeBackend struct {
	tx      *types.Transaction
	pending bool
	txErr   error
	receipt *types.Receipt
	rcptErr error
	head    uint64
	headErr error
}

func (f *fakeBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return f.tx, f.pending, f.txErr
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.rcptErr
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

func paymentTx(to string, wei *big.Int) *types.Transaction {
	addr := common.HexToAddress(to)
	return types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       &addr,
		Value:    wei,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func eth(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal: " + s)
	}
	return v
}

func TestValidTxHash(t *testing.T) {
	assert.True(t, ValidTxHash(hashHex))
	assert.False(t, ValidTxHash("0xshort"))
	assert.False(t, ValidTxHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.False(t, ValidTxHash(hashHex+"ff"))
}

func TestVerifyPaymentVerified(t *testing.T) {
	backend := &fakeBackend{
		tx:      paymentTx(recipientHex, wei("1000000000000000000")),
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, Verified, outcome)
}

func TestVerifyPaymentRecipientCaseInsensitive(t *testing.T) {
	// tx.To().Hex() is EIP-55 mixed case; the configured recipient is
	// stored lowercase. The comparison must not care.
	lower := "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	backend := &fakeBackend{
		tx:      paymentTx(lower, wei("1000000000000000000")),
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, lower, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, Verified, outcome)
}

func TestVerifyPaymentNotFound(t *testing.T) {
	backend := &fakeBackend{txErr: ethereum.NotFound}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, NotFound, outcome)
}

func TestVerifyPaymentPendingTreatedAsNotFound(t *testing.T) {
	backend := &fakeBackend{
		tx:      paymentTx(recipientHex, wei("1000000000000000000")),
		pending: true,
	}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, NotFound, outcome)
}

func TestVerifyPaymentReverted(t *testing.T) {
	backend := &fakeBackend{
		tx:      paymentTx(recipientHex, wei("1000000000000000000")),
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed},
	}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, Unconfirmed, outcome)
}

func TestVerifyPaymentWrongRecipient(t *testing.T) {
	backend := &fakeBackend{
		tx:      paymentTx(otherHex, wei("1000000000000000000")),
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, WrongRecipient, outcome)
}

func TestVerifyPaymentContractCreationRejected(t *testing.T) {
	// A contract-creation transaction has no recipient at all.
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       nil,
		Value:    wei("1000000000000000000"),
		Gas:      53000,
		GasPrice: big.NewInt(1),
	})
	backend := &fakeBackend{
		tx:      tx,
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, WrongRecipient, outcome)
}

func TestVerifyPaymentAmountTolerance(t *testing.T) {
	// 1 ETH expected, 100bp tolerance: the floor is 0.99 ETH exactly.
	cases := []struct {
		name string
		paid *big.Int
		want Outcome
	}{
		{"exact", wei("1000000000000000000"), Verified},
		{"overpaid", wei("1100000000000000000"), Verified},
		{"at floor", wei("990000000000000000"), Verified},
		{"one wei below floor", wei("989999999999999999"), InsufficientAmount},
		{"half", wei("500000000000000000"), InsufficientAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{
				tx:      paymentTx(recipientHex, tc.paid),
				receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
			}
			v := NewVerifier(backend, 100, 1)

			outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, outcome)
		})
	}
}

func TestVerifyPaymentZeroToleranceExactMatch(t *testing.T) {
	backend := &fakeBackend{
		tx:      paymentTx(recipientHex, wei("999999999999999999")),
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	v := NewVerifier(backend, 0, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	require.NoError(t, err)
	assert.Equal(t, InsufficientAmount, outcome)
}

func TestVerifyPaymentFractionalPrice(t *testing.T) {
	// 0.05 ETH with 100bp tolerance floors at 0.0495 ETH.
	backend := &fakeBackend{
		tx:      paymentTx(recipientHex, wei("49500000000000000")),
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("0.05"))
	require.NoError(t, err)
	assert.Equal(t, Verified, outcome)
}

func TestVerifyPaymentConfirmationDepth(t *testing.T) {
	// Mined in block 100; with 3 confirmations required the payment only
	// verifies once the head reaches 102.
	cases := []struct {
		name string
		head uint64
		want Outcome
	}{
		{"just mined", 100, NotFound},
		{"one short", 101, NotFound},
		{"deep enough", 102, Verified},
		{"head behind mined block", 99, NotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{
				tx: paymentTx(recipientHex, wei("1000000000000000000")),
				receipt: &types.Receipt{
					Status:      types.ReceiptStatusSuccessful,
					BlockNumber: big.NewInt(100),
				},
				head: tc.head,
			}
			v := NewVerifier(backend, 100, 3)

			outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, outcome)
		})
	}
}

func TestVerifyPaymentHeadLookupFailure(t *testing.T) {
	backend := &fakeBackend{
		tx: paymentTx(recipientHex, wei("1000000000000000000")),
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(100),
		},
		headErr: assert.AnError,
	}
	v := NewVerifier(backend, 100, 3)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	assert.Error(t, err)
	assert.Equal(t, Unavailable, outcome)
}

func TestVerifyPaymentRPCUnavailable(t *testing.T) {
	backend := &fakeBackend{txErr: assert.AnError}
	v := NewVerifier(backend, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	assert.Error(t, err)
	assert.Equal(t, Unavailable, outcome)
}

func TestVerifyPaymentNoBackend(t *testing.T) {
	v := NewVerifier(nil, 100, 1)

	outcome, err := v.VerifyPayment(context.Background(), hashHex, recipientHex, eth("1"))
	assert.Error(t, err)
	assert.Equal(t, Unavailable, outcome)
}
