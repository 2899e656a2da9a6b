package chain

import (
	"context"
	"strings"
	"sync"
)

// NonceLane is the operator's `with_nonce` serialization primitive: a single
// process-wide counter that guards every operator transaction so concurrent
// submit_claim/submit_transfer calls run one at a time. The lane is a
// sync.Mutex, which does not hand the lane to waiting callers in arrival
// order: when several calls are blocked, the order in which they run is not
// defined.
type NonceLane struct {
	mu        sync.Mutex
	seeded    bool
	next      uint64
	seedNonce func(ctx context.Context) (uint64, error)
}

// NewNonceLane builds an unseeded lane. seedNonce reads the chain's current
// operator nonce; it's called lazily, the first time the lane is used and
// again any time a nonce-desync error invalidates the counter.
func NewNonceLane(seedNonce func(ctx context.Context) (uint64, error)) *NonceLane {
	return &NonceLane{seedNonce: seedNonce}
}

// WithNonce assigns the next nonce to fn and increments the counter before
// fn runs. If fn's error message indicates a nonce desync (contains "nonce"
// together with one of "low"/"used"/"already"/"invalid"/"out of order"),
// the counter is invalidated so the next call reseeds from the chain;
// otherwise the counter stays advanced — the submission attempt is
// considered to have consumed intent, and retrying is the caller's job.
func (l *NonceLane) WithNonce(ctx context.Context, fn func(ctx context.Context, nonce uint64) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.seeded {
		seed, err := l.seedNonce(ctx)
		if err != nil {
			return err
		}
		l.next = seed
		l.seeded = true
	}

	nonce := l.next
	l.next++

	err := fn(ctx, nonce)
	if err != nil && isNonceDesyncError(err) {
		l.seeded = false
	}
	return err
}

func isNonceDesyncError(err error) bool {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "nonce") {
		return false
	}
	for _, marker := range []string{"low", "used", "already", "invalid", "out of order"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
