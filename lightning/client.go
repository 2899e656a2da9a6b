// Package lightning talks to the Lightning node the escrow bridge pays
// through. The interface is CLN's JSON/REST RPC shape (listinvoices,
// listpays, pay, invoice) rather than LND's gRPC API — see DESIGN.md for
// why the teacher's LND client isn't reused directly.
package lightning

import "context"

// Invoice is the normalized shape of one entry from listinvoices.
type Invoice struct {
	Label                string
	Status               string // unpaid, paid, expired
	AmountMsat           uint64
	AmountReceivedMsat   uint64
	PaidMsat             uint64
	PaymentHash          string
	PaymentPreimage      string
	PaidAt               int64
	Bolt11               string
}

// Pay is the normalized shape of one entry from listpays.
type Pay struct {
	Status          string // complete, completed, paid, succeeded, failed, ...
	PaymentPreimage string
}

// PayResult is the normalized result of a pay call.
type PayResult struct {
	PaymentHash      string
	PaymentPreimage  string
	AmountMsat       uint64
	AmountSentMsat   uint64
	Status           string
	CreatedAt        int64
}

// InvoiceRequest is the input to Invoice issuance.
type InvoiceRequest struct {
	AmountMsat     uint64
	Label          string
	Description    string
	ExpirySeconds  int64
	DescHashOnly   bool
}

// InvoiceResponse is the result of issuing a new invoice.
type InvoiceResponse struct {
	Bolt11    string
	ExpiresAt int64
}

// PayRequest is the input to Pay.
type PayRequest struct {
	Bolt11         string
	RetryForSecs   int64
	MaxFeePercent  float64
}

// Client is the port the orchestrator, credit monitor, and invoice-issuance
// collaborator use to talk to the Lightning node. Small, context-first
// methods, shaped like the teacher's settlement.LightningClient interface
// but re-scoped to the CLN RPC methods spec §6.2 names.
type Client interface {
	// ListInvoicesByHash returns invoices matching payment_hash (usually 0 or 1).
	ListInvoicesByHash(ctx context.Context, paymentHash string) ([]Invoice, error)

	// ListInvoicesByLabel returns invoices matching label (usually 0 or 1).
	ListInvoicesByLabel(ctx context.Context, label string) ([]Invoice, error)

	// Invoice issues a new invoice.
	Invoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error)

	// ListPays returns completed/failed payment attempts matching payment_hash.
	ListPays(ctx context.Context, paymentHash string) ([]Pay, error)

	// Pay pays a bolt11 invoice.
	Pay(ctx context.Context, req PayRequest) (PayResult, error)
}
