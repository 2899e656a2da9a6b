package lightning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MockClient is an in-memory Client for tests,
// grounded on the teacher's adapters/mock.MockChainWatcher idiom: a guarded
// map plus simulate-event helpers a test or demo calls directly.
type MockClient struct {
	mu         sync.Mutex
	invoices   map[string]Invoice // keyed by payment hash
	byLabel    map[string]string  // label -> payment hash
	pays       map[string][]Pay   // keyed by payment hash
	preimages  map[string]string  // payment hash -> preimage, revealed only on Pay
	seq        int
}

// NewMockClient returns an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{
		invoices:  make(map[string]Invoice),
		byLabel:   make(map[string]string),
		pays:      make(map[string][]Pay),
		preimages: make(map[string]string),
	}
}

// AddInvoice seeds an invoice as if issued by a remote merchant's node.
// preimageHex is the secret the remote node will reveal only once Pay
// succeeds — mirroring a real payer never knowing a receiver's preimage in
// advance.
func (m *MockClient) AddInvoice(inv Invoice, preimageHex string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := strings.ToLower(inv.PaymentHash)
	inv.PaymentHash = hash
	inv.PaymentPreimage = ""
	m.invoices[hash] = inv
	if inv.Label != "" {
		m.byLabel[inv.Label] = hash
	}
	if preimageHex != "" {
		m.preimages[hash] = preimageHex
	}
	slog.Info("💡 [MockLightning] Seeded invoice", "hash", hash, "status", inv.Status)
}

// MarkPaid marks an existing invoice paid and records a matching pay.
func (m *MockClient) MarkPaid(paymentHash string, preimage string, paidMsat uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := strings.ToLower(paymentHash)
	if inv, ok := m.invoices[hash]; ok {
		inv.Status = "paid"
		inv.PaidMsat = paidMsat
		inv.PaymentPreimage = preimage
		m.invoices[hash] = inv
	}
	m.pays[hash] = append(m.pays[hash], Pay{Status: "complete", PaymentPreimage: preimage})
	slog.Info("💡 [MockLightning] Marked invoice paid", "hash", hash)
}

func (m *MockClient) ListInvoicesByHash(ctx context.Context, paymentHash string) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invoices[strings.ToLower(paymentHash)]; ok {
		return []Invoice{inv}, nil
	}
	return nil, nil
}

func (m *MockClient) ListInvoicesByLabel(ctx context.Context, label string) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.byLabel[label]
	if !ok {
		return nil, nil
	}
	return []Invoice{m.invoices[hash]}, nil
}

func (m *MockClient) Invoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	bolt11 := fmt.Sprintf("lnmock1%s%d", req.Label, m.seq)
	return InvoiceResponse{Bolt11: bolt11, ExpiresAt: req.ExpirySeconds}, nil
}

func (m *MockClient) ListPays(ctx context.Context, paymentHash string) ([]Pay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pays[strings.ToLower(paymentHash)], nil
}

// Pay pays a seeded invoice identified by its bolt11 string, matching it
// against the invoices map by scanning for an equal Bolt11 field.
func (m *MockClient) Pay(ctx context.Context, req PayRequest) (PayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, inv := range m.invoices {
		if inv.Bolt11 != req.Bolt11 {
			continue
		}
		preimage := m.preimages[hash]
		inv.Status = "paid"
		inv.PaymentPreimage = preimage
		m.invoices[hash] = inv
		m.pays[hash] = append(m.pays[hash], Pay{Status: "complete", PaymentPreimage: preimage})
		return PayResult{
			PaymentHash:     hash,
			PaymentPreimage: preimage,
			AmountMsat:      inv.AmountMsat,
			AmountSentMsat:  inv.AmountMsat,
			Status:          "complete",
		}, nil
	}
	return PayResult{}, fmt.Errorf("lightning: mock pay: no invoice matches bolt11 %q", req.Bolt11)
}
