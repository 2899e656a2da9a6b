package monitor_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liquidityos/lnescrow/chain"
	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/escrow"
	"github.com/liquidityos/lnescrow/lightning"
	"github.com/liquidityos/lnescrow/monitor"
	"github.com/liquidityos/lnescrow/store"
)

const (
	owner    = "0x101"
	operator = "0x202"
	treasury = "0x303"
	asset    = "0x404_tok"
	merchant = "0x4e3c0001"
)

func setup(t *testing.T) (*escrow.Contract, *chain.LocalGateway, *lightning.MockClient, *store.Store, *monitor.CreditMonitor) {
	t.Helper()

	cfg := domain.VaultConfig{
		Owner:            owner,
		ProtocolOperator: operator,
		ProtocolTreasury: treasury,
		Asset:            asset,
		ExpiryWindow:     3600,
		PaymentLimit:     domain.NewUint256FromUint64(100000),
	}
	contract, err := escrow.NewContract(cfg, func() int64 { return 1000 })
	require.NoError(t, err)

	gw, err := chain.NewLocalGateway(contract, operator, 8)
	require.NoError(t, err)

	mockLN := lightning.NewMockClient()

	s, err := store.Open(filepath.Join(t.TempDir(), "bridge.json"))
	require.NoError(t, err)

	m := monitor.New(s, mockLN, gw, nil, 15*time.Second, 60*time.Second, 5*time.Minute)
	return contract, gw, mockLN, s, m
}

func TestTickReconcilesAndCreditsPaidInvoice(t *testing.T) {
	_, _, mockLN, s, m := setup(t)

	inv := &domain.InvoiceRecord{
		Label:      "inv-1",
		CreditAddr: merchant,
		AmountSats: 5000,
		Status:     domain.InvoiceStatusUnpaid,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.SaveInvoice(inv))

	mockLN.AddInvoice(lightning.Invoice{
		Label:       "inv-1",
		Status:      "paid",
		AmountMsat:  5000_000,
		PaymentHash: "deadbeef",
		Bolt11:      "lnbc_mock_1",
	}, "")

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-1")
	require.True(t, ok)
	require.Equal(t, domain.InvoiceStatusPaid, got.Status)
	require.Equal(t, domain.CreditStatusCredited, got.Credit.Status)
	require.NotEmpty(t, got.Credit.TxHash)
	require.Equal(t, 1, got.Credit.Attempts)
	require.NotNil(t, got.Credit.AmountUnits)
}

func TestTickSchedulesRetryOnInvalidAddress(t *testing.T) {
	_, _, mockLN, s, m := setup(t)

	inv := &domain.InvoiceRecord{
		Label:      "inv-bad-addr",
		CreditAddr: "not-an-address",
		AmountSats: 1000,
		Status:     domain.InvoiceStatusPaid,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.SaveInvoice(inv))
	_ = mockLN // no reconciliation needed, invoice already locally paid

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-bad-addr")
	require.True(t, ok)
	require.Equal(t, domain.CreditStatusFailed, got.Credit.Status)
	require.Equal(t, "invalid_address", got.Credit.LastError)
	require.False(t, got.Credit.NextRetryAt.IsZero())
}

func TestTickSchedulesRetryOnMissingAmount(t *testing.T) {
	_, _, _, s, m := setup(t)

	inv := &domain.InvoiceRecord{
		Label:      "inv-no-amount",
		CreditAddr: merchant,
		AmountSats: 0,
		Status:     domain.InvoiceStatusPaid,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.SaveInvoice(inv))

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-no-amount")
	require.True(t, ok)
	require.Equal(t, domain.CreditStatusFailed, got.Credit.Status)
	require.Equal(t, "missing_amount", got.Credit.LastError)
}

func TestTickDoesNotRecreditAlreadyCredited(t *testing.T) {
	_, _, _, s, m := setup(t)

	inv := &domain.InvoiceRecord{
		Label:      "inv-done",
		CreditAddr: merchant,
		AmountSats: 1000,
		Status:     domain.InvoiceStatusPaid,
		CreatedAt:  time.Now().UTC(),
		Credit: domain.CreditState{
			Status:     domain.CreditStatusCredited,
			TxHash:     "0xalready",
			Attempts:   1,
			CreditedAt: time.Now().UTC(),
		},
	}
	require.NoError(t, s.SaveInvoice(inv))

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-done")
	require.True(t, ok)
	require.Equal(t, 1, got.Credit.Attempts)
	require.Equal(t, "0xalready", got.Credit.TxHash)
}

func TestTickRewritesStaleProcessingToPending(t *testing.T) {
	_, _, _, s, m := setup(t)

	inv := &domain.InvoiceRecord{
		Label:      "inv-stuck",
		CreditAddr: merchant,
		AmountSats: 2000,
		Status:     domain.InvoiceStatusPaid,
		CreatedAt:  time.Now().UTC(),
		Credit: domain.CreditState{
			Status:        domain.CreditStatusProcessing,
			Attempts:      1,
			LastAttemptAt: time.Now().UTC().Add(-10 * time.Minute),
		},
	}
	require.NoError(t, s.SaveInvoice(inv))

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-stuck")
	require.True(t, ok)
	require.Equal(t, domain.CreditStatusPending, got.Credit.Status)
	require.Equal(t, "stale_processing", got.Credit.LastError)
	require.Equal(t, 1, got.Credit.Attempts)

	// Next iteration re-attempts the now-pending entry.
	m.Tick(context.Background())

	got, ok = s.GetInvoice("inv-stuck")
	require.True(t, ok)
	require.Equal(t, domain.CreditStatusCredited, got.Credit.Status)
	require.Equal(t, 2, got.Credit.Attempts)
}

func TestTickSkipsRetryBeforeBackoffElapses(t *testing.T) {
	_, _, _, s, m := setup(t)

	inv := &domain.InvoiceRecord{
		Label:      "inv-backoff",
		CreditAddr: merchant,
		AmountSats: 1000,
		Status:     domain.InvoiceStatusPaid,
		CreatedAt:  time.Now().UTC(),
		Credit: domain.CreditState{
			Status:      domain.CreditStatusFailed,
			Attempts:    1,
			NextRetryAt: time.Now().UTC().Add(time.Hour),
		},
	}
	require.NoError(t, s.SaveInvoice(inv))

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-backoff")
	require.True(t, ok)
	require.Equal(t, 1, got.Credit.Attempts)
	require.Equal(t, domain.CreditStatusFailed, got.Credit.Status)
}

func TestTickSkipsCreditWhenTagDoesNotMatch(t *testing.T) {
	_, _, _, s, _ := setup(t)

	tagger := lightning.NewDepositDescriptionTagger(lightning.NewMockClient(), []byte("deposit-tag-secret-16b!"))
	m := monitor.New(s, lightning.NewMockClient(), nil, tagger, 15*time.Second, 60*time.Second, 5*time.Minute)

	inv := &domain.InvoiceRecord{
		Label:          "inv-forged-tag",
		CreditAddr:     merchant,
		AmountSats:     5000,
		Status:         domain.InvoiceStatusPaid,
		CreatedAt:      time.Now().UTC(),
		DescriptionTag: "not-a-real-hmac",
		Credit:         domain.CreditState{Status: domain.CreditStatusPending},
	}
	require.NoError(t, s.SaveInvoice(inv))

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-forged-tag")
	require.True(t, ok)
	require.Equal(t, domain.CreditStatusPending, got.Credit.Status)
	require.Equal(t, 0, got.Credit.Attempts)
}

func TestTickCreditsWhenTagMatches(t *testing.T) {
	_, gw, mockLN, s, _ := setup(t)

	secret := []byte("deposit-tag-secret-16b!")
	tagger := lightning.NewDepositDescriptionTagger(mockLN, secret)
	m := monitor.New(s, mockLN, gw, tagger, 15*time.Second, 60*time.Second, 5*time.Minute)

	const validHexAddr = "0x50500000"
	createdAt := time.Now().UTC()
	tag := tagger.Tag(validHexAddr, 5000, createdAt.Unix())

	inv := &domain.InvoiceRecord{
		Label:          "inv-tagged",
		CreditAddr:     validHexAddr,
		AmountSats:     5000,
		Status:         domain.InvoiceStatusPaid,
		CreatedAt:      createdAt,
		DescriptionTag: tag,
	}
	require.NoError(t, s.SaveInvoice(inv))

	m.Tick(context.Background())

	got, ok := s.GetInvoice("inv-tagged")
	require.True(t, ok)
	require.Equal(t, domain.CreditStatusCredited, got.Credit.Status)
	require.Equal(t, 1, got.Credit.Attempts)
}
