// Package escrow implements the on-chain hashed-timelock token vault as a
// self-contained Go state machine: an atomic HTLC over fungible tokens with
// four phases (None, Locked, Claimed, Refunded), strict SHA-256 preimage/hash
// binding, expiry enforcement, and per-transition authorization.
//
// This package is the authoritative reference for the state machine the real
// deployed contract (out of scope, per spec §1) is assumed to implement
// bit-for-bit; chain.LocalGateway wraps a *Contract directly so the same
// ChainGateway production interface can be exercised against it in tests and
// local/dev runs.
package escrow

import (
	"crypto/sha256"
	"sync"

	"github.com/liquidityos/lnescrow/domain"
)

// Contract is the escrow vault state machine. All public methods are
// serialized behind a single mutex: the contract never blocks on I/O, so a
// coarse lock introduces no starvation risk, and it is the simplest way to
// guarantee the lock-once and no-concurrent-transition invariants §8 demands.
type Contract struct {
	mu sync.Mutex

	cfg domain.VaultConfig

	positions map[domain.Hash]*domain.EscrowPosition
	balances  map[string]domain.Uint256

	events []Event
	sub    chan Event

	now func() int64
}

// NewContract validates cfg and returns a fresh, empty vault. now is the
// clock source (seconds since epoch); pass a fixed function in tests to get
// deterministic expiry checks.
func NewContract(cfg domain.VaultConfig, now func() int64) (*Contract, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Contract{
		cfg:       cfg,
		positions: make(map[domain.Hash]*domain.EscrowPosition),
		balances:  make(map[string]domain.Uint256),
		sub:       make(chan Event, 64),
		now:       now,
	}, nil
}

func validateConfig(cfg domain.VaultConfig) error {
	if cfg.Owner == "" {
		return domain.ErrOwnerZero
	}
	if cfg.ProtocolOperator == "" {
		return domain.ErrOperatorZero
	}
	if cfg.ProtocolTreasury == "" {
		return domain.ErrTreasuryZero
	}
	if cfg.Asset == "" {
		return domain.ErrAssetZero
	}
	if cfg.ExpiryWindow < 0 || cfg.ExpiryWindow >= domain.MaxExpiryWindowSeconds {
		return domain.ErrExpiryGTWeek
	}
	if cfg.PaymentLimit.IsZero() {
		return domain.ErrLimitZero
	}
	return nil
}

// Credit adds amount to address's balance. Exposed so tests can fund a
// user before locking — this stands in for the
// token's own mint/transfer-in path, which is out of scope (spec §1).
func (c *Contract) Credit(address string, amount domain.Uint256) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] = c.balances[address].Add(amount)
}

// BalanceOf returns address's current token balance.
func (c *Contract) BalanceOf(address string) domain.Uint256 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address]
}

// GetConfig returns the current vault configuration.
func (c *Contract) GetConfig() domain.VaultConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// GetEscrow returns the position for hash, or a zero-value None-phase
// position if nothing was ever locked under it.
func (c *Contract) GetEscrow(hash domain.Hash) domain.EscrowPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getEscrowLocked(hash)
}

func (c *Contract) getEscrowLocked(hash domain.Hash) domain.EscrowPosition {
	if p, ok := c.positions[hash]; ok {
		return *p
	}
	return domain.EscrowPosition{Hash: hash, Phase: domain.PhaseNone}
}

// Events returns the channel new events are published on. The channel is
// buffered (64); a slow consumer does not block contract calls once the
// buffer is full — the event is still recorded in the in-memory log, just
// not delivered live.
func (c *Contract) Events() <-chan Event {
	return c.sub
}

func (c *Contract) emit(ev Event) {
	c.events = append(c.events, ev)
	select {
	case c.sub <- ev:
	default:
	}
}

// Lock implements lock_for_ln_payment. caller must equal user.
func (c *Contract) Lock(caller, user string, amount domain.Uint256, hash domain.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if user == "" {
		return domain.ErrUserZero
	}
	if caller != user {
		return domain.ErrNotUser
	}
	if amount.IsZero() {
		return domain.ErrAmountZero
	}
	if amount.Cmp(c.cfg.PaymentLimit) > 0 {
		return domain.ErrLimitExceeded
	}

	existing := c.getEscrowLocked(hash)
	if existing.Phase != domain.PhaseNone {
		return domain.ErrHashReused
	}

	if err := c.transferFrom(user, amount); err != nil {
		return err
	}

	now := c.now()
	pos := &domain.EscrowPosition{
		Hash:      hash,
		Phase:     domain.PhaseLocked,
		User:      user,
		Amount:    amount,
		LockedAt:  now,
		ExpiresAt: now + c.cfg.ExpiryWindow,
	}
	c.positions[hash] = pos

	c.emit(Locked{
		User:      user,
		Amount:    amount,
		Hash:      hash,
		ExpiresAt: pos.ExpiresAt,
		LockedAt:  pos.LockedAt,
	})

	return nil
}

// transferFrom moves amount from user's balance into the contract's own
// pool (tracked as balances[""]), mirroring the ERC-20-style transfer_from
// call spec §4.1 describes. Any insufficiency fails the call.
func (c *Contract) transferFrom(user string, amount domain.Uint256) error {
	bal := c.balances[user]
	if bal.Cmp(amount) < 0 {
		return domain.ErrTransferFromFail
	}
	c.balances[user] = bal.Sub(amount)
	c.balances[contractPool] = c.balances[contractPool].Add(amount)
	return nil
}

// transfer moves amount out of the contract's own pool to recipient. The
// contract only ever moves what it itself locked, so this cannot underflow.
func (c *Contract) transfer(recipient string, amount domain.Uint256) error {
	pool := c.balances[contractPool]
	if pool.Cmp(amount) < 0 {
		// Unreachable in correct operation: the contract never promises more
		// than it holds. Surfaced as TRANSFER_FAIL rather than a panic so a
		// caller-visible invariant breach still fails the call cleanly.
		return domain.ErrTransferFail
	}
	c.balances[contractPool] = pool.Sub(amount)
	c.balances[recipient] = c.balances[recipient].Add(amount)
	return nil
}

// contractPool is the balances map key standing in for the contract's own
// token holdings.
const contractPool = ""

// Claim implements claim. caller must equal protocol_operator; preimage must
// hash to the locked value bit-for-bit.
func (c *Contract) Claim(caller string, hash domain.Hash, preimage domain.Preimage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.cfg.ProtocolOperator {
		return domain.ErrNotOperator
	}

	pos, ok := c.positions[hash]
	if !ok || pos.Phase != domain.PhaseLocked {
		return domain.ErrNotLocked
	}

	digest := sha256.Sum256(preimage[:])
	computed := domain.Uint256FromSHA256Words(digest)
	locked := domain.Uint256FromSHA256Words(hash)
	if computed.Cmp(locked) != 0 {
		return domain.ErrHashMismatch
	}

	if err := c.transfer(c.cfg.ProtocolTreasury, pos.Amount); err != nil {
		return err
	}

	pos.Phase = domain.PhaseClaimed

	c.emit(Claimed{
		User:     pos.User,
		Hash:     hash,
		Amount:   pos.Amount,
		Preimage: preimage,
		Claimer:  caller,
	})

	return nil
}

// Refund implements refund: anyone may call it once now >= expires_at.
func (c *Contract) Refund(hash domain.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refundLocked(hash, false, "")
}

// OperatorRefund implements operator_refund: caller must be the operator;
// permitted before expiry as a cooperative abort. This intentionally widens
// trust in the operator — see spec §9's Open Question, documented here
// rather than silently assumed.
func (c *Contract) OperatorRefund(caller string, hash domain.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.cfg.ProtocolOperator {
		return domain.ErrNotOperator
	}
	return c.refundLocked(hash, true, caller)
}

func (c *Contract) refundLocked(hash domain.Hash, cooperative bool, caller string) error {
	pos, ok := c.positions[hash]
	if !ok || pos.Phase != domain.PhaseLocked {
		return domain.ErrNotLocked
	}

	if !cooperative && c.now() < pos.ExpiresAt {
		return domain.ErrEscrowActive
	}

	if err := c.transfer(pos.User, pos.Amount); err != nil {
		return err
	}

	pos.Phase = domain.PhaseRefunded

	c.emit(Refunded{
		Hash:       hash,
		User:       pos.User,
		Amount:     pos.Amount,
		RefundedAt: c.now(),
	})

	return nil
}

// TransferOwnership sets a new owner. caller must be the current owner.
func (c *Contract) TransferOwnership(caller, newOwner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return domain.ErrNotOwner
	}
	if newOwner == "" {
		return domain.ErrOwnerZero
	}
	c.cfg.Owner = newOwner
	return nil
}

// UpdateProtocolOperator sets a new operator. caller must be the owner.
func (c *Contract) UpdateProtocolOperator(caller, newOperator string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return domain.ErrNotOwner
	}
	if newOperator == "" {
		return domain.ErrOperatorZero
	}
	c.cfg.ProtocolOperator = newOperator
	return nil
}

// UpdateProtocolTreasury sets a new treasury address. caller must be owner.
func (c *Contract) UpdateProtocolTreasury(caller, newTreasury string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return domain.ErrNotOwner
	}
	if newTreasury == "" {
		return domain.ErrTreasuryZero
	}
	c.cfg.ProtocolTreasury = newTreasury
	return nil
}

// UpdateAsset sets a new token address. caller must be owner.
func (c *Contract) UpdateAsset(caller, newAsset string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return domain.ErrNotOwner
	}
	if newAsset == "" {
		return domain.ErrAssetZero
	}
	c.cfg.Asset = newAsset
	return nil
}

// UpdateExpiryWindow sets a new expiry window in seconds. caller must be
// owner; window must be in [0, MaxExpiryWindowSeconds).
func (c *Contract) UpdateExpiryWindow(caller string, window int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return domain.ErrNotOwner
	}
	if window < 0 || window >= domain.MaxExpiryWindowSeconds {
		return domain.ErrExpiryGTWeek
	}
	c.cfg.ExpiryWindow = window
	return nil
}

// UpdatePaymentLimit sets a new per-lock payment limit. caller must be
// owner; limit must be positive. Not named explicitly among spec §4.1's
// mutator list but implied by VaultConfig.PaymentLimit being owner-mutable
// the same way every other config field is.
func (c *Contract) UpdatePaymentLimit(caller string, limit domain.Uint256) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return domain.ErrNotOwner
	}
	if limit.IsZero() {
		return domain.ErrLimitZero
	}
	c.cfg.PaymentLimit = limit
	return nil
}
