package domain

import "time"

// InvoiceStatus mirrors the Lightning node's own invoice status vocabulary.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusExpired InvoiceStatus = "expired"
)

// CreditStatus is the lifecycle of crediting a paid invoice on-chain.
// Credited is absorbing.
type CreditStatus string

const (
	CreditStatusPending    CreditStatus = "pending"
	CreditStatusProcessing CreditStatus = "processing"
	CreditStatusCredited   CreditStatus = "credited"
	CreditStatusFailed     CreditStatus = "failed"
)

// MonitorState is the CreditMonitor's bookkeeping for one invoice's
// reconciliation against the Lightning node.
type MonitorState struct {
	LastCheckedAt time.Time `json:"last_checked_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	CLNStatus     string    `json:"cln_status,omitempty"`
}

// CreditState is the CreditMonitor's bookkeeping for crediting a paid
// invoice's amount on-chain to the merchant's address.
type CreditState struct {
	Status        CreditStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	AmountSats    uint64       `json:"amount_sats,omitempty"`
	AmountUnits   *Uint256     `json:"amount_units,omitempty"`
	TxHash        string       `json:"tx_hash,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	NextRetryAt   time.Time    `json:"next_retry_at,omitempty"`
	CreditedAt    time.Time    `json:"credited_at,omitempty"`
	LastAttemptAt time.Time    `json:"last_attempt_at,omitempty"`
}

// InvoiceRecord is the off-chain record of a merchant-facing Lightning
// invoice issued by the bridge's credit path, keyed by the Lightning node's
// local invoice label.
type InvoiceRecord struct {
	Label        string        `json:"label"`
	UserIDB64    string        `json:"user_id_b64,omitempty"`
	CreditAddr   string        `json:"credit_address"`
	AmountSats   uint64        `json:"amount_sats,omitempty"`
	AmountMsat   uint64        `json:"amount_msat,omitempty"`
	Bolt11       string        `json:"bolt11"`
	Status       InvoiceStatus `json:"status"`
	PaymentHash  string        `json:"payment_hash,omitempty"`
	PaidAt       time.Time     `json:"paid_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	DescriptionTag string      `json:"description_tag,omitempty"`

	Monitor MonitorState `json:"monitor"`
	Credit  CreditState  `json:"credit"`
}
