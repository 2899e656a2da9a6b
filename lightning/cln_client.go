package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config holds CLN REST connection parameters, following the teacher's
// Config-struct -> New(cfg) -> typed wrapped calls construction idiom.
type Config struct {
	RESTURL        string
	AuthTokenPath  string
	RequestTimeout time.Duration
}

// CLNClient implements Client against Core Lightning's REST plugin.
type CLNClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewCLNClient reads the auth token from cfg.AuthTokenPath and builds a
// client bound to cfg.RESTURL.
func NewCLNClient(cfg Config) (*CLNClient, error) {
	tokenBytes, err := os.ReadFile(cfg.AuthTokenPath)
	if err != nil {
		return nil, fmt.Errorf("lightning: read auth token: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &CLNClient{
		baseURL:    strings.TrimRight(cfg.RESTURL, "/"),
		authToken:  strings.TrimSpace(string(tokenBytes)),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *CLNClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("lightning: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("lightning: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Rune", c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lightning: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("lightning: %s returned %d: %s", path, resp.StatusCode, errBody.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("lightning: decode response for %s: %w", path, err)
	}
	return nil
}

type clnInvoice struct {
	Label              string `json:"label"`
	Status             string `json:"status"`
	AmountMsat         any    `json:"amount_msat,omitempty"`
	AmountReceivedMsat any    `json:"amount_received_msat,omitempty"`
	PaidMsat           any    `json:"paid_msat,omitempty"`
	PaymentHash        string `json:"payment_hash"`
	PaymentPreimage    string `json:"payment_preimage,omitempty"`
	PaidAt             int64  `json:"paid_at,omitempty"`
	Bolt11             string `json:"bolt11"`
}

func normalizeInvoice(w clnInvoice) (Invoice, error) {
	inv := Invoice{
		Label:           w.Label,
		Status:          w.Status,
		PaymentHash:     strings.ToLower(w.PaymentHash),
		PaymentPreimage: w.PaymentPreimage,
		PaidAt:          w.PaidAt,
		Bolt11:          w.Bolt11,
	}
	if v, err := parseMsatField(w.AmountMsat); err == nil {
		inv.AmountMsat = v
	}
	if v, err := parseMsatField(w.AmountReceivedMsat); err == nil {
		inv.AmountReceivedMsat = v
	}
	if v, err := parseMsatField(w.PaidMsat); err == nil {
		inv.PaidMsat = v
	}
	return inv, nil
}

// parseMsatField accepts the msat field in any of the shapes CLN's JSON-RPC
// emits: a bare JSON number, or a string (optionally "<N>msat").
func parseMsatField(raw any) (uint64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("lightning: missing msat field")
	case float64:
		return uint64(v), nil
	case string:
		return ParseMsat(v)
	default:
		return 0, fmt.Errorf("lightning: unsupported msat field type %T", raw)
	}
}

func (c *CLNClient) ListInvoicesByHash(ctx context.Context, paymentHash string) ([]Invoice, error) {
	return c.listInvoices(ctx, map[string]any{"payment_hash": paymentHash})
}

func (c *CLNClient) ListInvoicesByLabel(ctx context.Context, label string) ([]Invoice, error) {
	return c.listInvoices(ctx, map[string]any{"label": label})
}

func (c *CLNClient) listInvoices(ctx context.Context, params map[string]any) ([]Invoice, error) {
	var result struct {
		Invoices []clnInvoice `json:"invoices"`
	}
	if err := c.post(ctx, "/v1/listinvoices", params, &result); err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(result.Invoices))
	for _, w := range result.Invoices {
		inv, err := normalizeInvoice(w)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func (c *CLNClient) Invoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error) {
	params := map[string]any{
		"amount_msat": fmt.Sprintf("%dmsat", req.AmountMsat),
		"label":       req.Label,
		"description": req.Description,
		"expiry":      req.ExpirySeconds,
	}
	if req.DescHashOnly {
		params["deschashonly"] = true
	}

	var result struct {
		Bolt11    string `json:"bolt11"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if err := c.post(ctx, "/v1/invoice", params, &result); err != nil {
		return InvoiceResponse{}, err
	}
	return InvoiceResponse{Bolt11: result.Bolt11, ExpiresAt: result.ExpiresAt}, nil
}

type clnPay struct {
	Status          string `json:"status"`
	PaymentPreimage string `json:"payment_preimage,omitempty"`
}

func (c *CLNClient) ListPays(ctx context.Context, paymentHash string) ([]Pay, error) {
	var result struct {
		Pays []clnPay `json:"pays"`
	}
	if err := c.post(ctx, "/v1/listpays", map[string]any{"payment_hash": paymentHash}, &result); err != nil {
		return nil, err
	}
	out := make([]Pay, 0, len(result.Pays))
	for _, w := range result.Pays {
		out = append(out, Pay{Status: w.Status, PaymentPreimage: w.PaymentPreimage})
	}
	return out, nil
}

func (c *CLNClient) Pay(ctx context.Context, req PayRequest) (PayResult, error) {
	params := map[string]any{
		"bolt11":    req.Bolt11,
		"retry_for": req.RetryForSecs,
	}
	if req.MaxFeePercent > 0 {
		params["maxfeepercent"] = req.MaxFeePercent
	}

	var result struct {
		PaymentHash     string `json:"payment_hash"`
		PaymentPreimage string `json:"payment_preimage"`
		AmountMsat      any    `json:"amount_msat"`
		AmountSentMsat  any    `json:"amount_sent_msat"`
		Status          string `json:"status"`
		CreatedAt       int64  `json:"created_at"`
	}
	if err := c.post(ctx, "/v1/pay", params, &result); err != nil {
		return PayResult{}, err
	}

	amountMsat, _ := parseMsatField(result.AmountMsat)
	amountSentMsat, _ := parseMsatField(result.AmountSentMsat)

	return PayResult{
		PaymentHash:     strings.ToLower(result.PaymentHash),
		PaymentPreimage: result.PaymentPreimage,
		AmountMsat:      amountMsat,
		AmountSentMsat:  amountSentMsat,
		Status:          result.Status,
		CreatedAt:       result.CreatedAt,
	}, nil
}
