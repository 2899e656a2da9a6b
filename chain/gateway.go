// Package chain is the ChainGateway: it loads escrow positions, submits
// claims and token transfers on behalf of the operator, serializes nonce
// assignment through a single lane, and maps chain-level failures to
// typed errors. Two implementations satisfy Gateway: RPCGateway (a real
// JSON-RPC-over-HTTP client) and LocalGateway (wraps an in-process
// escrow.Contract, for tests).
package chain

import (
	"context"
	"fmt"

	"github.com/liquidityos/lnescrow/domain"
)

// LockedPosition is the decoded, caller-facing view of an on-chain escrow
// position: a canonicalized hex user address, a 256-bit sat amount, and the
// lock/expiry timestamps.
type LockedPosition struct {
	Hash      domain.Hash
	User      string
	Amount    domain.Uint256
	LockedAt  int64
	ExpiresAt int64
}

// Gateway is the chain-agnostic port the orchestrator and credit monitor
// talk to. Never call a chain RPC client directly from those packages —
// route everything through this interface, the same discipline the
// teacher's settlement.ChainWatcher/settlement.LightningClient enforce for
// their own callers.
type Gateway interface {
	// LoadEscrow reads the raw position for hash. Returns
	// domain.ErrNotLockedOnChain if the position's phase isn't Locked.
	LoadEscrow(ctx context.Context, hash domain.Hash) (LockedPosition, error)

	// SubmitClaim encodes (hash, preimage) for the escrow entrypoint, assigns
	// a nonce via the gateway's NonceLane, submits one transaction, and waits
	// for inclusion. Returns the transaction hash on success.
	SubmitClaim(ctx context.Context, hash domain.Hash, preimage domain.Preimage) (txHash string, err error)

	// SubmitTransfer converts amountSats to token units and submits a token
	// transfer to recipient, using the same nonce discipline as SubmitClaim.
	SubmitTransfer(ctx context.Context, recipient string, amountSats uint64) (txHash string, amountUnits domain.Uint256, err error)
}

// ClaimFailed reports a claim or token-transfer submission that reached the
// chain but did not reach a success status (ACCEPTED_ON_L1/L2, SUCCEEDED).
type ClaimFailed struct {
	TxHash string
	Status string
}

func (e *ClaimFailed) Error() string {
	return fmt.Sprintf("claim tx %s ended in non-success status %q", e.TxHash, e.Status)
}

// isSuccessStatus reports whether a chain transaction status counts as
// confirmed per spec: ACCEPTED_ON_L1, ACCEPTED_ON_L2, or SUCCEEDED.
func isSuccessStatus(status string) bool {
	switch status {
	case "ACCEPTED_ON_L1", "ACCEPTED_ON_L2", "SUCCEEDED":
		return true
	default:
		return false
	}
}
