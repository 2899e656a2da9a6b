package orchestrator_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liquidityos/lnescrow/chain"
	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/escrow"
	"github.com/liquidityos/lnescrow/lightning"
	"github.com/liquidityos/lnescrow/orchestrator"
	"github.com/liquidityos/lnescrow/store"
)

const (
	owner    = "0x101"
	operator = "0x202"
	treasury = "0x303"
	asset    = "0x404_tok"
	user     = "0x505"
)

func setup(t *testing.T, now int64) (*escrow.Contract, *chain.LocalGateway, *lightning.MockClient, *orchestrator.Orchestrator, *store.Store) {
	t.Helper()

	cfg := domain.VaultConfig{
		Owner:            owner,
		ProtocolOperator: operator,
		ProtocolTreasury: treasury,
		Asset:            asset,
		ExpiryWindow:     3600,
		PaymentLimit:     domain.NewUint256FromUint64(10000),
	}
	contract, err := escrow.NewContract(cfg, func() int64 { return now })
	require.NoError(t, err)

	gw, err := chain.NewLocalGateway(contract, operator, 8)
	require.NoError(t, err)

	mockLN := lightning.NewMockClient()

	s, err := store.Open(filepath.Join(t.TempDir(), "bridge.json"))
	require.NoError(t, err)

	orch := orchestrator.New(gw, mockLN, s, 30*time.Second, 0.5)

	return contract, gw, mockLN, orch, s
}

func lockWithSecret(t *testing.T, c *escrow.Contract, secret string, amount uint64) (domain.Hash, string) {
	t.Helper()
	var preimage domain.Preimage
	copy(preimage[:], secret)
	digest := sha256.Sum256(preimage[:])
	hash, err := domain.CanonicalHash(hex.EncodeToString(digest[:]))
	require.NoError(t, err)

	amt := domain.NewUint256FromUint64(amount)
	c.Credit(user, amt)
	require.NoError(t, c.Lock(user, user, amt, hash))
	return hash, hex.EncodeToString(preimage[:])
}

func seedInvoice(mockLN *lightning.MockClient, hash domain.Hash, preimageHex string, amountSats uint64) {
	mockLN.AddInvoice(lightning.Invoice{
		Label:       "inv-" + domain.HashNoPrefix(hash),
		Status:      "unpaid",
		AmountMsat:  amountSats * 1000,
		PaymentHash: domain.HashNoPrefix(hash),
		Bolt11:      "lnbc_mock_" + domain.HashNoPrefix(hash),
	}, preimageHex)
}

func TestProcessPaymentRequestHappyPath(t *testing.T) {
	contract, _, mockLN, orch, _ := setup(t, 1000)

	hash, preimageHex := lockWithSecret(t, contract, "ln-secret-ln-secret-ln-secret!!!", 5000)
	seedInvoice(mockLN, hash, preimageHex, 5000)

	result, err := orch.ProcessPaymentRequest(context.Background(), domain.HashNoPrefix(hash), nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusClaimed, result.Status)
	require.NotEmpty(t, result.TxHash)

	require.Equal(t, "0", contract.BalanceOf(user).String())
	require.Equal(t, "5000", contract.BalanceOf(treasury).String())
}

func TestProcessPaymentRequestIsIdempotent(t *testing.T) {
	contract, _, mockLN, orch, _ := setup(t, 1000)

	hash, preimageHex := lockWithSecret(t, contract, "idempotence-secret-32-bytes!!!!", 1000)
	seedInvoice(mockLN, hash, preimageHex, 1000)

	_, err := orch.ProcessPaymentRequest(context.Background(), domain.HashNoPrefix(hash), nil, nil)
	require.NoError(t, err)

	result, err := orch.ProcessPaymentRequest(context.Background(), domain.HashNoPrefix(hash), nil, nil)
	require.NoError(t, err)
	require.True(t, result.Skipped)
	require.Equal(t, domain.PaymentStatusClaimed, result.Status)

	// Balances unchanged by the second, skipped call.
	require.Equal(t, "1000", contract.BalanceOf(treasury).String())
}

func TestProcessPaymentRequestRejectsInvalidHash(t *testing.T) {
	_, _, _, orch, _ := setup(t, 1000)

	_, err := orch.ProcessPaymentRequest(context.Background(), "not-a-hash", nil, nil)
	require.Error(t, err)
}

func TestProcessPaymentRequestFailsWhenLockMissing(t *testing.T) {
	_, _, _, orch, _ := setup(t, 1000)

	var preimage domain.Preimage
	copy(preimage[:], "never locked, 32 bytes long!!!!")
	digest := sha256.Sum256(preimage[:])
	hash, err := domain.CanonicalHash(hex.EncodeToString(digest[:]))
	require.NoError(t, err)

	_, err = orch.ProcessPaymentRequest(context.Background(), domain.HashNoPrefix(hash), nil, nil)
	require.ErrorIs(t, err, domain.ErrLockedNotFound)
}

func TestProcessPaymentRequestRejectsAmountMismatch(t *testing.T) {
	contract, _, mockLN, orch, s := setup(t, 1000)

	hash, preimageHex := lockWithSecret(t, contract, "amount-mismatch-secret-32bytes!!", 1000)
	// Invoice reports a different amount than what was locked.
	seedInvoice(mockLN, hash, preimageHex, 999)

	_, err := orch.ProcessPaymentRequest(context.Background(), domain.HashNoPrefix(hash), nil, nil)
	require.ErrorIs(t, err, domain.ErrAmountMismatch)

	rec, ok := s.GetPayment(domain.HashNoPrefix(hash))
	require.True(t, ok)
	require.Equal(t, domain.PaymentStatusLightningFailed, rec.Status)
	require.Equal(t, domain.ErrAmountMismatch.Error(), rec.Lightning.Failure)
}

func TestProcessPaymentRequestFailsInvoiceNotFoundWithoutBolt11(t *testing.T) {
	contract, _, _, orch, _ := setup(t, 1000)

	// No invoice seeded on the Lightning node and no bolt11 supplied, so there
	// is nothing to fall back to: the request fails with invoice_not_found.
	// (The bolt11 fallback itself is not exercised here; the mock has no real
	// BOLT11 encoder.)
	hash, _ := lockWithSecret(t, contract, "bolt11-fallback-secret-32bytes!!", 1000)

	_, err := orch.ProcessPaymentRequest(context.Background(), domain.HashNoPrefix(hash), nil, nil)
	require.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}
