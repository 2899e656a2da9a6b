package domain

// MaxExpiryWindowSeconds is the spec-mandated ceiling on expiry_window: a
// lock's hold time must be strictly less than one week.
const MaxExpiryWindowSeconds = 604800

// EscrowPosition is the on-chain state for a single payment hash. Once a
// position reaches Claimed or Refunded, User/Amount/ExpiresAt/LockedAt are
// frozen and the entry is no longer eligible for any transition.
type EscrowPosition struct {
	Hash      Hash
	Phase     Phase
	User      string // canonicalized on-chain address
	Amount    Uint256
	ExpiresAt int64 // seconds since epoch
	LockedAt  int64 // seconds since epoch
}

// VaultConfig is the escrow contract's mutable configuration, readable via
// get_config and mutated only by Owner.
type VaultConfig struct {
	Owner            string
	ProtocolOperator string
	ProtocolTreasury string
	Asset            string // token contract address
	ExpiryWindow     int64  // seconds; 0 <= window < MaxExpiryWindowSeconds
	PaymentLimit     Uint256
}
