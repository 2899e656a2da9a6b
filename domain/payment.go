package domain

import "time"

// PaymentStatus is the lifecycle label of a PaymentRecord.
type PaymentStatus string

const (
	PaymentStatusCreated         PaymentStatus = "created"
	PaymentStatusReceived        PaymentStatus = "received"
	PaymentStatusProcessing      PaymentStatus = "processing"
	PaymentStatusAwaitingClaim   PaymentStatus = "awaiting_claim"
	PaymentStatusClaimQueued     PaymentStatus = "claim_queued"
	PaymentStatusClaimed         PaymentStatus = "claimed"
	PaymentStatusLightningFailed PaymentStatus = "lightning_failed"
	PaymentStatusClaimFailed     PaymentStatus = "claim_failed"
	PaymentStatusError           PaymentStatus = "error"
)

// HistoryEvent is one append-only entry in a PaymentRecord's audit log.
type HistoryEvent struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LightningSubState tracks the Lightning-side leg of a payment.
type LightningSubState struct {
	Status          string `json:"status,omitempty"`
	InvoiceStatus   string `json:"invoice_status,omitempty"`
	AmountSats      uint64 `json:"amount_sats,omitempty"`
	PaymentPreimage string `json:"payment_preimage,omitempty"`
	Failure         string `json:"failure,omitempty"`
	Logged          bool   `json:"-"`
}

// ChainSubState tracks the on-chain claim leg of a payment.
type ChainSubState struct {
	Status    string    `json:"status,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Failure   string    `json:"failure,omitempty"`
	Logged    bool      `json:"-"`
}

// PaymentRecord is the off-chain, persisted record of a single claim
// orchestration, keyed by canonical lowercase hex payment_hash without a 0x
// prefix. History is strictly append-only; Status is the most recent
// terminal-or-progress label. A "claimed" Status is absorbing.
type PaymentRecord struct {
	PaymentHash         string        `json:"payment_hash"`           // 0x-prefixed lowercase
	PaymentHashNoPrefix string        `json:"payment_hash_no_prefix"` // lowercase, no 0x
	Status              PaymentStatus `json:"status"`

	User      string  `json:"user,omitempty"`
	AmountSat Uint256  `json:"amount_sats"`
	ExpiresAt int64    `json:"expires_at,omitempty"`
	LockedAt  int64    `json:"locked_at,omitempty"`

	Bolt11          string    `json:"bolt11,omitempty"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Lightning LightningSubState `json:"lightning"`
	Chain     ChainSubState     `json:"starknet"`

	History []HistoryEvent `json:"history"`
}

// AppendHistory appends an audit-log entry. History is never rewritten or
// truncated, only grown.
func (r *PaymentRecord) AppendHistory(event string, fields map[string]any) {
	r.History = append(r.History, HistoryEvent{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	})
	r.UpdatedAt = time.Now().UTC()
}
