package httpapi_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liquidityos/lnescrow/chain"
	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/escrow"
	"github.com/liquidityos/lnescrow/httpapi"
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

func setup(t *testing.T) (*escrow.Contract, http.Handler) {
	t.Helper()
	cfg := domain.VaultConfig{
		Owner:            owner,
		ProtocolOperator: operator,
		ProtocolTreasury: treasury,
		Asset:            asset,
		ExpiryWindow:     3600,
		PaymentLimit:     domain.NewUint256FromUint64(10000),
	}
	contract, err := escrow.NewContract(cfg, func() int64 { return 1000 })
	require.NoError(t, err)

	gw, err := chain.NewLocalGateway(contract, operator, 8)
	require.NoError(t, err)

	srv := httpapi.New("127.0.0.1:0", gw, nil, nil, nil)
	return contract, srv.Handler()
}

func TestHealthReportsOK(t *testing.T) {
	_, handler := setup(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestClaimSucceedsForLockedHash(t *testing.T) {
	contract, handler := setup(t)

	var preimage domain.Preimage
	copy(preimage[:], "operator-http-secret-32-bytes!!")
	digest := sha256.Sum256(preimage[:])
	hash, err := domain.CanonicalHash(hex.EncodeToString(digest[:]))
	require.NoError(t, err)

	contract.Credit(user, domain.NewUint256FromUint64(5000))
	require.NoError(t, contract.Lock(user, user, domain.NewUint256FromUint64(5000), hash))

	body, _ := json.Marshal(map[string]string{
		"payment_hash": domain.HashNoPrefix(hash),
		"preimage_hex": hex.EncodeToString(preimage[:]),
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/claim", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "claimed", resp["status"])
	require.NotEmpty(t, resp["tx_hash"])
}

func TestClaimRejectsInvalidPreimageHex(t *testing.T) {
	_, handler := setup(t)

	body, _ := json.Marshal(map[string]string{
		"payment_hash": "0011223344556677889900112233445566778899001122334455667788990011",
		"preimage_hex": "not-hex",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/claim", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferSucceeds(t *testing.T) {
	_, handler := setup(t)

	body, _ := json.Marshal(map[string]any{
		"recipient_address": "0xmerchant",
		"amount_sats":        2500,
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transfer", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "sent", resp["status"])
	require.NotEmpty(t, resp["tx_hash"])
	require.NotEmpty(t, resp["amount_units"])
}

func TestTransferRejectsZeroAmount(t *testing.T) {
	_, handler := setup(t)

	body, _ := json.Marshal(map[string]any{
		"recipient_address": "0xmerchant",
		"amount_sats":        0,
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transfer", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimRejectsWrongMethod(t *testing.T) {
	_, handler := setup(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/claim", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProcessPaymentReturns503WithoutOrchestrator(t *testing.T) {
	_, handler := setup(t)

	body, _ := json.Marshal(map[string]string{"payment_hash": "ab"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process_payment", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProcessPaymentDrivesOrchestrator(t *testing.T) {
	cfg := domain.VaultConfig{
		Owner:            owner,
		ProtocolOperator: operator,
		ProtocolTreasury: treasury,
		Asset:            asset,
		ExpiryWindow:     3600,
		PaymentLimit:     domain.NewUint256FromUint64(10000),
	}
	contract, err := escrow.NewContract(cfg, func() int64 { return 1000 })
	require.NoError(t, err)
	gw, err := chain.NewLocalGateway(contract, operator, 8)
	require.NoError(t, err)

	mockLN := lightning.NewMockClient()

	var preimage domain.Preimage
	copy(preimage[:], "http-process-payment-secret-32!")
	digest := sha256.Sum256(preimage[:])
	hash, err := domain.CanonicalHash(hex.EncodeToString(digest[:]))
	require.NoError(t, err)

	contract.Credit(user, domain.NewUint256FromUint64(3000))
	require.NoError(t, contract.Lock(user, user, domain.NewUint256FromUint64(3000), hash))

	mockLN.AddInvoice(lightning.Invoice{
		Label:       "inv-http",
		Status:      "unpaid",
		AmountMsat:  3000_000,
		PaymentHash: domain.HashNoPrefix(hash),
		Bolt11:      "lnbc_mock_http",
	}, hex.EncodeToString(preimage[:]))

	s, err := store.Open(filepath.Join(t.TempDir(), "bridge.json"))
	require.NoError(t, err)
	orch := orchestrator.New(gw, mockLN, s, 30*time.Second, 0.5)

	srv := httpapi.New("127.0.0.1:0", gw, orch, nil, nil)
	handler := srv.Handler()

	body, _ := json.Marshal(map[string]string{"payment_hash": domain.HashNoPrefix(hash)})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process_payment", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "claimed", resp["status"])
	require.NotEmpty(t, resp["tx_hash"])
}

func TestDepositInvoiceReturns503WithoutIssuer(t *testing.T) {
	_, handler := setup(t)

	body, _ := json.Marshal(map[string]any{"credit_address": "0x505", "amount_sats": 1000})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/deposit_invoice", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDepositInvoiceIssuesTaggedInvoice(t *testing.T) {
	contract, err := escrow.NewContract(domain.VaultConfig{
		Owner:            owner,
		ProtocolOperator: operator,
		ProtocolTreasury: treasury,
		Asset:            asset,
		ExpiryWindow:     3600,
		PaymentLimit:     domain.NewUint256FromUint64(10000),
	}, func() int64 { return 1000 })
	require.NoError(t, err)
	gw, err := chain.NewLocalGateway(contract, operator, 8)
	require.NoError(t, err)

	mockLN := lightning.NewMockClient()
	issuer := lightning.NewDepositDescriptionTagger(mockLN, []byte("deposit-tag-secret-16b!"))

	srv := httpapi.New("127.0.0.1:0", gw, nil, issuer, nil)
	handler := srv.Handler()

	body, _ := json.Marshal(map[string]any{"credit_address": user, "amount_sats": 2000})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/deposit_invoice", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["bolt11"])
}
