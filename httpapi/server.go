// Package httpapi is the operator service: a small, trusted HTTP surface
// for triggering a claim or a merchant credit transfer by hand, plus a
// health check (spec §6.4). No request authentication — the service is
// meant to bind to loopback and be reached only by the operator or another
// trusted process on the same host (spec §9's open question; see
// DESIGN.md). If ever exposed beyond localhost, add mTLS or a shared
// secret at this boundary.
package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/liquidityos/lnescrow/chain"
	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/lightning"
	"github.com/liquidityos/lnescrow/orchestrator"
)

// Processor is the subset of orchestrator.Orchestrator the HTTP surface
// needs: spec §6.4 doesn't name a route for process_payment_request, but
// §4.3 says the orchestrator "receives a request" — POST /process_payment
// is that route, the natural place for it alongside /claim and /transfer.
type Processor interface {
	ProcessPaymentRequest(ctx context.Context, paymentHash string, bolt11, txHashHint *string) (orchestrator.Result, error)
}

// DepositInvoiceIssuer is the subset of lightning.DepositDescriptionTagger
// the HTTP surface needs to hand out tagged deposit invoices (spec §6.8).
type DepositInvoiceIssuer interface {
	IssueDepositInvoice(ctx context.Context, creditAddress string, amountSats uint64, expiry time.Duration) (lightning.InvoiceResponse, error)
}

// Server is the operator HTTP surface: POST /claim, POST /transfer,
// POST /process_payment, POST /deposit_invoice, GET /health. Grounded on the
// retrieval pack's own stdlib-net/http idiom for small admin surfaces (no
// router library pulled in for five routes).
type Server struct {
	gateway chain.Gateway
	process Processor
	issuer  DepositInvoiceIssuer
	ready   func() bool

	httpServer *http.Server
	listener   net.Listener
}

// New builds a Server bound to addr (default 127.0.0.1:<operator_service_port>
// per spec §9's trust-boundary resolution). process and issuer may be nil,
// in which case their routes return 503. ready reports whether the bridge's
// dependencies (store, Lightning client, chain gateway) are up; pass a func
// that always returns true if there is nothing to check.
func New(addr string, gateway chain.Gateway, process Processor, issuer DepositInvoiceIssuer, ready func() bool) *Server {
	s := &Server{gateway: gateway, process: process, issuer: issuer, ready: ready}

	mux := http.NewServeMux()
	mux.HandleFunc("/claim", s.handleClaim)
	mux.HandleFunc("/transfer", s.handleTransfer)
	mux.HandleFunc("/process_payment", s.handleProcessPayment)
	mux.HandleFunc("/deposit_invoice", s.handleDepositInvoice)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the server's http.Handler, for use in tests via
// httptest.NewRecorder rather than a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until ctx is cancelled, then shuts the
// server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return s.httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type claimRequest struct {
	PaymentHash string `json:"payment_hash"`
	PreimageHex string `json:"preimage_hex"`
}

type claimResponse struct {
	Status string `json:"status"`
	TxHash string `json:"tx_hash"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	hash, err := domain.CanonicalHash(req.PaymentHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payment_hash")
		return
	}

	preimageBytes, err := hex.DecodeString(req.PreimageHex)
	if err != nil || len(preimageBytes) != len(domain.Preimage{}) {
		writeError(w, http.StatusBadRequest, "invalid_preimage")
		return
	}
	var preimage domain.Preimage
	copy(preimage[:], preimageBytes)

	txHash, err := s.gateway.SubmitClaim(r.Context(), hash, preimage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "claim_failed")
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{Status: "claimed", TxHash: txHash})
}

type transferRequest struct {
	RecipientAddress string `json:"recipient_address"`
	AmountSats       uint64 `json:"amount_sats"`
}

type transferResponse struct {
	Status      string `json:"status"`
	TxHash      string `json:"tx_hash"`
	AmountUnits string `json:"amount_units"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.RecipientAddress == "" {
		writeError(w, http.StatusBadRequest, "invalid_address")
		return
	}
	if req.AmountSats == 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount")
		return
	}

	txHash, amountUnits, err := s.gateway.SubmitTransfer(r.Context(), req.RecipientAddress, req.AmountSats)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "transfer_failed")
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		Status:      "sent",
		TxHash:      txHash,
		AmountUnits: amountUnits.String(),
	})
}

type processPaymentRequest struct {
	PaymentHash   string  `json:"payment_hash"`
	Bolt11        *string `json:"bolt11,omitempty"`
	TxHashHint    *string `json:"tx_hash_hint,omitempty"`
}

type processPaymentResponse struct {
	Status  string `json:"status"`
	TxHash  string `json:"tx_hash,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

func (s *Server) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.process == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator_unavailable")
		return
	}

	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	result, err := s.process.ProcessPaymentRequest(r.Context(), req.PaymentHash, req.Bolt11, req.TxHashHint)
	if err != nil {
		if f, ok := err.(*orchestrator.Failure); ok && f.Code == orchestrator.CodeInputValidation {
			writeError(w, http.StatusBadRequest, f.Err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, processPaymentResponse{
		Status:  string(result.Status),
		TxHash:  result.TxHash,
		Skipped: result.Skipped,
	})
}

type depositInvoiceRequest struct {
	CreditAddress string `json:"credit_address"`
	AmountSats    uint64 `json:"amount_sats"`
	ExpirySeconds int64  `json:"expiry_seconds,omitempty"`
}

type depositInvoiceResponse struct {
	Bolt11    string `json:"bolt11"`
	ExpiresAt int64  `json:"expires_at"`
}

func (s *Server) handleDepositInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.issuer == nil {
		writeError(w, http.StatusServiceUnavailable, "issuer_unavailable")
		return
	}

	var req depositInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.CreditAddress == "" {
		writeError(w, http.StatusBadRequest, "invalid_address")
		return
	}
	if req.AmountSats == 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	expiry := time.Duration(req.ExpirySeconds) * time.Second
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}

	resp, err := s.issuer.IssueDepositInvoice(r.Context(), req.CreditAddress, req.AmountSats, expiry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invoice_issuance_failed")
		return
	}

	writeJSON(w, http.StatusOK, depositInvoiceResponse{Bolt11: resp.Bolt11, ExpiresAt: resp.ExpiresAt})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ready := s.ready == nil || s.ready()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": ready})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
