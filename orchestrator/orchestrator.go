// Package orchestrator implements the PaymentOrchestrator: a single public
// operation, ProcessPaymentRequest, that canonicalizes a payment hash, loads
// the matching on-chain lock, reconciles it against the Lightning node,
// pays the invoice, and claims the lock on-chain — all idempotent against
// a processed-hashes set and guarded against concurrent duplicate work by
// an in-flight set.
package orchestrator

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/liquidityos/lnescrow/chain"
	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/lightning"
)

// PaymentStore is the subset of store.Store the orchestrator needs: load
// and persist a single payment record by its canonical hash.
type PaymentStore interface {
	GetPayment(hashNoPrefix string) (*domain.PaymentRecord, bool)
	SavePayment(rec *domain.PaymentRecord) error
}

// Result is the outcome of ProcessPaymentRequest.
type Result struct {
	Status  domain.PaymentStatus
	TxHash  string
	Skipped bool
}

// Orchestrator drives process_payment_request against a chain gateway, a
// Lightning client, and a persisted payment store.
type Orchestrator struct {
	gateway    chain.Gateway
	lightning  lightning.Client
	store      PaymentStore
	inflight   *hashSet
	processed  *hashSet
	payRetry   time.Duration
	maxFeePct  float64
}

// New builds an Orchestrator. payRetryFor and maxFeePercent configure every
// Pay call (spec §6.6's pay_retry_for_seconds/max_fee_percent).
func New(gateway chain.Gateway, lightningClient lightning.Client, store PaymentStore, payRetryFor time.Duration, maxFeePercent float64) *Orchestrator {
	return &Orchestrator{
		gateway:   gateway,
		lightning: lightningClient,
		store:     store,
		inflight:  newHashSet(),
		processed: newHashSet(),
		payRetry:  payRetryFor,
		maxFeePct: maxFeePercent,
	}
}

// ProcessPaymentRequest runs the full lock -> pay -> claim pipeline for one
// payment hash. bolt11 and txHashHint are both optional.
func (o *Orchestrator) ProcessPaymentRequest(ctx context.Context, paymentHash string, bolt11 *string, txHashHint *string) (Result, error) {
	// Step 1: canonicalize.
	hash, err := domain.CanonicalHash(paymentHash)
	if err != nil {
		return Result{}, fail(CodeInputValidation, domain.ErrInvalidPaymentHash)
	}
	hashNoPrefix := domain.HashNoPrefix(hash)

	rec, existed := o.store.GetPayment(hashNoPrefix)
	if !existed {
		now := time.Now().UTC()
		rec = &domain.PaymentRecord{
			PaymentHash:         domain.HashWithPrefix(hash),
			PaymentHashNoPrefix: hashNoPrefix,
			Status:              domain.PaymentStatusCreated,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if bolt11 != nil {
			rec.Bolt11 = *bolt11
		}
		if txHashHint != nil {
			rec.TransactionHash = *txHashHint
		}
	}

	// Step 3 (deduplication gate) runs ahead of step 2's load_escrow: once a
	// hash is processed, the on-chain position has already moved past Locked
	// (into Claimed), so load_escrow would itself fail locked_not_found —
	// checking processed_hashes first is what makes a repeat call actually
	// observe already_claimed, satisfying the idempotence invariant (spec
	// §8: "yields already_claimed without any Lightning or chain
	// submission").
	if o.processed.Contains(hashNoPrefix) {
		rec.AppendHistory("already_claimed", nil)
		_ = o.store.SavePayment(rec)
		return Result{Status: domain.PaymentStatusClaimed, TxHash: rec.TransactionHash, Skipped: true}, nil
	}
	if !o.inflight.InsertIfAbsent(hashNoPrefix) {
		return Result{}, fail(CodeDuplicateWork, domain.ErrPaymentInflight)
	}
	defer o.inflight.Remove(hashNoPrefix)

	// Step 2: load lock.
	lock, err := o.gateway.LoadEscrow(ctx, hash)
	if err != nil {
		return Result{}, o.recordFailure(rec, fail(CodeStateMachine, domain.ErrLockedNotFound))
	}
	rec.User = lock.User
	rec.AmountSat = lock.Amount
	rec.LockedAt = lock.LockedAt
	rec.ExpiresAt = lock.ExpiresAt
	rec.AppendHistory("payment_requested", map[string]any{
		"user":       lock.User,
		"amount":     lock.Amount.String(),
		"locked_at":  lock.LockedAt,
		"expires_at": lock.ExpiresAt,
	})
	rec.Status = domain.PaymentStatusProcessing
	_ = o.store.SavePayment(rec)

	result, procErr := o.process(ctx, rec, hash, lock, bolt11)

	// Step 9: regardless of outcome, make sure any unlogged error is recorded.
	if procErr != nil {
		o.recordFailureIfUnlogged(rec, procErr)
	}
	_ = o.store.SavePayment(rec)

	return result, procErr
}

func (o *Orchestrator) process(ctx context.Context, rec *domain.PaymentRecord, hash domain.Hash, lock chain.LockedPosition, bolt11 *string) (Result, error) {
	// Step 4: invoice reconciliation.
	amountSats, invoiceBolt11, alreadyPaid, err := o.reconcileInvoice(ctx, rec, lock, bolt11)
	if err != nil {
		return Result{}, err
	}

	// Step 5: amount equality.
	if domain.NewUint256FromUint64(amountSats).Cmp(lock.Amount) != 0 {
		rec.Lightning.Status = "failed"
		rec.Lightning.Failure = domain.ErrAmountMismatch.Error()
		rec.Status = domain.PaymentStatusLightningFailed
		return Result{}, fail(CodeInvariantBreach, domain.ErrAmountMismatch)
	}

	// Step 6: pay Lightning.
	var paymentPreimageHex string
	if !alreadyPaid {
		target := invoiceBolt11
		if target == "" && bolt11 != nil {
			target = *bolt11
		}
		payResult, err := o.lightning.Pay(ctx, lightning.PayRequest{
			Bolt11:        target,
			RetryForSecs:  int64(o.payRetry / time.Second),
			MaxFeePercent: o.maxFeePct,
		})
		if err != nil {
			rec.Lightning.Status = "failed"
			rec.Lightning.Failure = err.Error()
			rec.Status = domain.PaymentStatusLightningFailed
			return Result{}, fail(CodeExternalProtocol, err)
		}

		payHash, hashErr := domain.CanonicalHash(payResult.PaymentHash)
		if hashErr != nil || domain.HashNoPrefix(payHash) != rec.PaymentHashNoPrefix {
			return Result{}, fail(CodeInvariantBreach, domain.ErrLightningPaymentHashMismatch)
		}
		if payResult.AmountMsat != 0 && payResult.AmountMsat != lock.Amount.BigInt().Uint64()*1000 {
			return Result{}, fail(CodeInvariantBreach, domain.ErrLightningPaymentAmountMismatch)
		}

		paymentPreimageHex = payResult.PaymentPreimage
		rec.Lightning.Status = "paid"
		rec.Lightning.AmountSats = amountSats
		rec.Lightning.PaymentPreimage = paymentPreimageHex
		rec.Status = domain.PaymentStatusAwaitingClaim
	}

	// Step 7: preimage acquisition.
	if paymentPreimageHex == "" {
		pays, err := o.lightning.ListPays(ctx, rec.PaymentHashNoPrefix)
		if err != nil {
			return Result{}, fail(CodeExternalProtocol, err)
		}
		for _, p := range pays {
			if p.PaymentPreimage != "" {
				paymentPreimageHex = p.PaymentPreimage
				break
			}
		}
		if paymentPreimageHex == "" {
			return Result{}, fail(CodeInvariantBreach, domain.ErrMissingPreimage)
		}
	}

	preimage, err := hexToPreimage(paymentPreimageHex)
	if err != nil {
		return Result{}, fail(CodeInvariantBreach, fmt.Errorf("%w: %v", domain.ErrMissingPreimage, err))
	}

	// Step 8: claim on chain.
	rec.AppendHistory("lightning_succeeded", map[string]any{"preimage": paymentPreimageHex})
	rec.Chain.Status = "claiming"
	rec.Chain.StartedAt = time.Now().UTC()
	rec.Status = domain.PaymentStatusClaimQueued
	_ = o.store.SavePayment(rec)

	txHash, err := o.gateway.SubmitClaim(ctx, hash, preimage)
	rec.Chain.EndedAt = time.Now().UTC()
	if err != nil {
		rec.Chain.Status = "failed"
		rec.Chain.Failure = err.Error()
		rec.Status = domain.PaymentStatusClaimFailed
		rec.AppendHistory("claim_failed", map[string]any{"error": err.Error()})
		return Result{}, fail(CodeExternalProtocol, err)
	}

	rec.Chain.Status = "claimed"
	rec.Chain.TxHash = txHash
	rec.TransactionHash = txHash
	rec.Status = domain.PaymentStatusClaimed
	rec.AppendHistory("claim_confirmed", map[string]any{"tx_hash": txHash})

	o.processed.Insert(rec.PaymentHashNoPrefix)

	return Result{Status: domain.PaymentStatusClaimed, TxHash: txHash}, nil
}

// reconcileInvoice implements step 4: ask the Lightning node for an invoice
// matching the hash, falling back to a caller-supplied bolt11.
func (o *Orchestrator) reconcileInvoice(ctx context.Context, rec *domain.PaymentRecord, lock chain.LockedPosition, bolt11 *string) (amountSats uint64, invoiceBolt11 string, alreadyPaid bool, err error) {
	invoices, err := o.lightning.ListInvoicesByHash(ctx, rec.PaymentHashNoPrefix)
	if err != nil {
		return 0, "", false, fail(CodeExternalProtocol, err)
	}

	if len(invoices) > 0 {
		inv := invoices[0]
		msat := inv.AmountMsat
		if msat == 0 {
			msat = inv.AmountReceivedMsat
		}
		if msat == 0 {
			msat = inv.PaidMsat
		}
		if msat == 0 {
			return 0, "", false, fail(CodeInputValidation, domain.ErrInvoiceMissingAmount)
		}
		sats, ok := lightning.MsatToSats(msat)
		if !ok {
			return 0, "", false, fail(CodeInvariantBreach, domain.ErrFractionalSats)
		}
		rec.Lightning.InvoiceStatus = inv.Status
		return sats, inv.Bolt11, inv.Status == "paid", nil
	}

	if bolt11 != nil && *bolt11 != "" {
		decoded, err := lightning.DecodeBolt11(*bolt11)
		if err != nil {
			return 0, "", false, fail(CodeInputValidation, err)
		}
		if domain.HashNoPrefix(decoded.PaymentHash) != rec.PaymentHashNoPrefix {
			return 0, "", false, fail(CodeInvariantBreach, domain.ErrHashMismatch)
		}
		return decoded.AmountSats, *bolt11, false, nil
	}

	return 0, "", false, fail(CodeStateMachine, domain.ErrInvoiceNotFound)
}

func (o *Orchestrator) recordFailure(rec *domain.PaymentRecord, f *Failure) error {
	// "claimed" is absorbing: a later failed request (e.g. load_escrow after
	// a restart cleared processed_hashes) is logged but doesn't overwrite it.
	if rec.Status != domain.PaymentStatusClaimed {
		rec.Status = domain.PaymentStatusError
	}
	rec.AppendHistory("error", map[string]any{"code": string(f.Code), "error": f.Err.Error()})
	_ = o.store.SavePayment(rec)
	return f
}

func (o *Orchestrator) recordFailureIfUnlogged(rec *domain.PaymentRecord, err error) {
	f, ok := err.(*Failure)
	if !ok {
		return
	}
	if len(rec.History) > 0 {
		switch rec.History[len(rec.History)-1].Event {
		case "error", "claim_failed":
			return
		}
	}
	// A step that already assigned a specific terminal status (lightning
	// pay failure, amount mismatch) has recorded the failure in its own
	// terms; don't downgrade it to the generic "error" status.
	switch rec.Status {
	case domain.PaymentStatusLightningFailed, domain.PaymentStatusClaimFailed:
		rec.AppendHistory("error", map[string]any{"code": string(f.Code), "error": f.Err.Error()})
		return
	}
	rec.Status = domain.PaymentStatusError
	rec.AppendHistory("error", map[string]any{"code": string(f.Code), "error": f.Err.Error()})
}

func hexToPreimage(s string) (domain.Preimage, error) {
	var p domain.Preimage
	b, err := hex.DecodeString(s)
	if err != nil {
		return p, err
	}
	if len(b) != len(p) {
		return p, fmt.Errorf("orchestrator: preimage length %d, want %d", len(b), len(p))
	}
	copy(p[:], b)
	return p, nil
}

