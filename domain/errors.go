package domain

import "errors"

// Escrow contract failure conditions, named exactly per spec.
var (
	ErrOwnerZero        = errors.New("OWNER_ZERO")
	ErrOperatorZero     = errors.New("OPERATOR_ZERO")
	ErrTreasuryZero     = errors.New("TREASURY_ZERO")
	ErrAssetZero        = errors.New("ASSET_ZERO")
	ErrExpiryGTWeek     = errors.New("EXPIRY_GT_WEEK")
	ErrLimitZero        = errors.New("LIMIT_ZERO")
	ErrLimitExceeded    = errors.New("LIMIT_EXCEEDED")
	ErrAmountZero       = errors.New("AMOUNT_ZERO")
	ErrUserZero         = errors.New("USER_ZERO")
	ErrNotUser          = errors.New("NOT_USER")
	ErrNotOperator      = errors.New("NOT_OPERATOR")
	ErrNotOwner         = errors.New("NOT_OWNER")
	ErrHashReused       = errors.New("HASH_REUSED")
	ErrNotLocked        = errors.New("NOT_LOCKED")
	ErrHashMismatch     = errors.New("HASH_MISMATCH")
	ErrEscrowActive     = errors.New("ESCROW_ACTIVE")
	ErrTransferFromFail = errors.New("TRANSFER_FROM_FAIL")
	ErrTransferFail     = errors.New("TRANSFER_FAIL")
)

// Chain gateway failure conditions.
var (
	ErrNotLockedOnChain = errors.New("NOT_LOCKED_ONCHAIN")
)

// Orchestrator / input-validation failure conditions.
var (
	ErrInvalidPaymentHash             = errors.New("invalid_payment_hash")
	ErrLockedNotFound                 = errors.New("locked_not_found")
	ErrAlreadyClaimed                 = errors.New("already_claimed")
	ErrPaymentInflight                = errors.New("payment_inflight")
	ErrInvoiceMissingAmount           = errors.New("invoice_missing_amount")
	ErrFractionalSats                 = errors.New("fractional_sats")
	ErrInvoiceNotFound                = errors.New("invoice_not_found")
	ErrAmountMismatch                 = errors.New("amount_mismatch")
	ErrLightningPaymentHashMismatch   = errors.New("lightning_payment_hash_mismatch")
	ErrLightningPaymentAmountMismatch = errors.New("lightning_payment_amount_mismatch")
	ErrMissingPreimage                = errors.New("missing_preimage")
)

// CreditMonitor failure conditions.
var (
	ErrInvalidAddress = errors.New("invalid_address")
	ErrMissingAmount  = errors.New("missing_amount")
)
