package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liquidityos/lnescrow/domain"
)

// Config holds the connection parameters for a real chain node, matching
// the teacher's clients/lnd.Config and clients/tapd.Config shape (a plain
// struct of connection settings passed to New).
type Config struct {
	RPCURL           string
	OperatorPrivKey  string
	EscrowAddress    string
	TokenAddress     string
	TokenDecimals    int
	RequestTimeout   time.Duration
}

// RPCGateway implements Gateway against a StarkNet-shaped JSON-RPC node
// over plain HTTP, following the teacher's Config-struct -> New(cfg) ->
// typed wrapped calls construction idiom (clients/lnd.Client,
// clients/tapd.Client) without their gRPC transport: the escrow entrypoint
// surface (lock_for_ln_payment/claim/refund/get_escrow/get_config, u128
// low/high split amounts, ACCEPTED_ON_L1/L2/SUCCEEDED statuses) is
// StarkNet JSON-RPC, not LND/tapd's gRPC APIs.
type RPCGateway struct {
	cfg        Config
	httpClient *http.Client
	nonce      *NonceLane
}

// New builds an RPCGateway. tokenDecimals must be in [8, 77].
func New(cfg Config) (*RPCGateway, error) {
	if cfg.TokenDecimals < 8 || cfg.TokenDecimals > 77 {
		return nil, fmt.Errorf("chain: token_decimals %d out of range [8,77]", cfg.TokenDecimals)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	g := &RPCGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
	g.nonce = NewNonceLane(g.readOperatorNonce)
	return g, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("chain rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (g *RPCGateway) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return fmt.Errorf("chain: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chain: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chain: rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("chain: decode response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("chain: decode result for %s: %w", method, err)
	}
	return nil
}

type u256Wire struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

func wireFromUint256(u domain.Uint256) u256Wire {
	low, high := u.LowHigh()
	return u256Wire{Low: "0x" + low.Text(16), High: "0x" + high.Text(16)}
}

func uint256FromWire(w u256Wire) (domain.Uint256, error) {
	low, ok := new(big.Int).SetString(trimHexPrefix(w.Low), 16)
	if !ok {
		return domain.Uint256{}, fmt.Errorf("chain: bad low limb %q", w.Low)
	}
	high, ok := new(big.Int).SetString(trimHexPrefix(w.High), 16)
	if !ok {
		return domain.Uint256{}, fmt.Errorf("chain: bad high limb %q", w.High)
	}
	return domain.Uint256FromLowHigh(low, high)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

type escrowPositionWire struct {
	Phase     int      `json:"phase"`
	User      string   `json:"user"`
	Amount    u256Wire `json:"amount"`
	LockedAt  int64    `json:"locked_at"`
	ExpiresAt int64    `json:"expires_at"`
}

func (g *RPCGateway) LoadEscrow(ctx context.Context, hash domain.Hash) (LockedPosition, error) {
	var wire escrowPositionWire
	err := g.call(ctx, "get_escrow", []any{g.cfg.EscrowAddress, wireFromUint256(domain.Uint256FromSHA256Words(hash))}, &wire)
	if err != nil {
		return LockedPosition{}, fmt.Errorf("chain: get_escrow: %w", err)
	}

	phase, err := domain.ParsePhase(wire.Phase)
	if err != nil {
		return LockedPosition{}, err
	}
	if phase != domain.PhaseLocked {
		return LockedPosition{}, domain.ErrNotLockedOnChain
	}

	amount, err := uint256FromWire(wire.Amount)
	if err != nil {
		return LockedPosition{}, err
	}

	return LockedPosition{
		Hash:      hash,
		User:      wire.User,
		Amount:    amount,
		LockedAt:  wire.LockedAt,
		ExpiresAt: wire.ExpiresAt,
	}, nil
}

type submitTxResult struct {
	TxHash string `json:"transaction_hash"`
	Status string `json:"status"`
}

func (g *RPCGateway) readOperatorNonce(ctx context.Context) (uint64, error) {
	var result struct {
		Nonce string `json:"nonce"`
	}
	if err := g.call(ctx, "get_nonce", []any{g.cfg.EscrowAddress}, &result); err != nil {
		return 0, fmt.Errorf("chain: get_nonce: %w", err)
	}
	n, ok := new(big.Int).SetString(trimHexPrefix(result.Nonce), 16)
	if !ok {
		return 0, fmt.Errorf("chain: bad nonce %q", result.Nonce)
	}
	return n.Uint64(), nil
}

func (g *RPCGateway) SubmitClaim(ctx context.Context, hash domain.Hash, preimage domain.Preimage) (string, error) {
	encoded := EncodePreimage(preimage[:])

	var txHash string
	err := g.nonce.WithNonce(ctx, func(ctx context.Context, nonce uint64) error {
		params := []any{
			g.cfg.EscrowAddress,
			wireFromUint256(domain.Uint256FromSHA256Words(hash)),
			encoded,
			nonce,
		}
		var result submitTxResult
		if err := g.call(ctx, "claim", params, &result); err != nil {
			return fmt.Errorf("chain: claim: %w", err)
		}
		txHash = result.TxHash
		if !isSuccessStatus(result.Status) {
			return &ClaimFailed{TxHash: result.TxHash, Status: result.Status}
		}
		return nil
	})
	return txHash, err
}

func (g *RPCGateway) SubmitTransfer(ctx context.Context, recipient string, amountSats uint64) (string, domain.Uint256, error) {
	if amountSats == 0 {
		return "", domain.Uint256{}, domain.ErrAmountZero
	}

	sats := decimal.NewFromInt(int64(amountSats))
	shifted := sats.Shift(int32(g.cfg.TokenDecimals - 8))
	amountUnits, err := domain.NewUint256FromBigInt(shifted.BigInt())
	if err != nil {
		return "", domain.Uint256{}, fmt.Errorf("chain: sats-to-units conversion: %w", err)
	}

	var txHash string
	err = g.nonce.WithNonce(ctx, func(ctx context.Context, nonce uint64) error {
		params := []any{
			g.cfg.TokenAddress,
			recipient,
			wireFromUint256(amountUnits),
			nonce,
		}
		var result submitTxResult
		if err := g.call(ctx, "transfer", params, &result); err != nil {
			return fmt.Errorf("chain: transfer: %w", err)
		}
		txHash = result.TxHash
		if !isSuccessStatus(result.Status) {
			return &ClaimFailed{TxHash: result.TxHash, Status: result.Status}
		}
		return nil
	})
	return txHash, amountUnits, err
}
