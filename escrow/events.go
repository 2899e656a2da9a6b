package escrow

import "github.com/liquidityos/lnescrow/domain"

// Event is the common interface for the three events the contract emits.
// A watcher subscribes via Contract.Events() and type-switches, the same
// fan-out-via-channel idiom the teacher's LndInvoiceSubscriber uses for
// invoice updates.
type Event interface {
	isEvent()
}

// Locked is emitted by a successful lock_for_ln_payment.
type Locked struct {
	User      string
	Amount    domain.Uint256
	Hash      domain.Hash
	ExpiresAt int64
	LockedAt  int64
}

// Claimed is emitted by a successful claim.
type Claimed struct {
	User     string
	Hash     domain.Hash
	Amount   domain.Uint256
	Preimage domain.Preimage
	Claimer  string
}

// Refunded is emitted by a successful refund or operator_refund.
type Refunded struct {
	Hash       domain.Hash
	User       string
	Amount     domain.Uint256
	RefundedAt int64
}

func (Locked) isEvent()   {}
func (Claimed) isEvent()  {}
func (Refunded) isEvent() {}
