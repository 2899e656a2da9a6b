package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/lightning"
)

// reconcileOne runs the per-invoice steps of one CreditMonitor tick (spec
// §4.4): reconcile against the Lightning node if not yet locally paid, then
// attempt credit issuance, then check for a stale processing entry.
func (m *CreditMonitor) reconcileOne(ctx context.Context, inv *domain.InvoiceRecord, now time.Time) {
	if inv.Status != domain.InvoiceStatusPaid {
		if err := m.reconcileWithNode(ctx, inv, now); err != nil {
			inv.Monitor.LastError = err.Error()
		}
	}

	if inv.Status == domain.InvoiceStatusPaid && m.creditEligible(inv, now) {
		m.issueCredit(ctx, inv, now)
	}

	if rewriteStaleProcessing(inv, now, m.staleThreshold) {
		_ = m.store.SaveInvoice(inv)
	}
}

// reconcileWithNode asks the Lightning node for inv's status by label and
// copies over status, payment_hash, paid_at, and a derived sat amount.
func (m *CreditMonitor) reconcileWithNode(ctx context.Context, inv *domain.InvoiceRecord, now time.Time) error {
	invoices, err := m.lightning.ListInvoicesByLabel(ctx, inv.Label)
	if err != nil {
		return fmt.Errorf("monitor: list invoices by label %q: %w", inv.Label, err)
	}
	inv.Monitor.LastCheckedAt = now

	if len(invoices) == 0 {
		return nil
	}
	remote := invoices[0]
	inv.Monitor.CLNStatus = remote.Status
	inv.Monitor.LastError = ""

	switch remote.Status {
	case "paid":
		inv.Status = domain.InvoiceStatusPaid
	case "expired":
		inv.Status = domain.InvoiceStatusExpired
	}
	if remote.PaymentHash != "" {
		inv.PaymentHash = strings.ToLower(remote.PaymentHash)
	}
	if remote.PaidAt != 0 {
		inv.PaidAt = time.Unix(remote.PaidAt, 0).UTC()
	}

	msat := remote.AmountMsat
	if msat == 0 {
		msat = remote.AmountReceivedMsat
	}
	if msat == 0 {
		msat = remote.PaidMsat
	}
	if msat != 0 {
		if sats, ok := lightning.MsatToSats(msat); ok {
			inv.AmountSats = sats
		}
		inv.AmountMsat = msat
	}

	if err := m.store.SaveInvoice(inv); err != nil {
		return fmt.Errorf("monitor: persist reconciled invoice %q: %w", inv.Label, err)
	}
	return nil
}

// creditEligible reports whether inv is a candidate for issueCredit: not
// already credited, not processing within the stale window, not in a failed
// retry backoff that hasn't elapsed yet, and — when inv carries a
// description tag and the monitor has a TagVerifier — actually issued by
// this bridge (spec §6.8), so a relabeled or forged invoice can't be
// auto-credited.
func (m *CreditMonitor) creditEligible(inv *domain.InvoiceRecord, now time.Time) bool {
	switch inv.Credit.Status {
	case domain.CreditStatusCredited:
		return false
	case domain.CreditStatusProcessing:
		return false
	case domain.CreditStatusFailed:
		if !(inv.Credit.NextRetryAt.IsZero() || !now.Before(inv.Credit.NextRetryAt)) {
			return false
		}
	}

	if m.tagger != nil && inv.DescriptionTag != "" {
		if !m.tagger.VerifyTag(inv.CreditAddr, inv.AmountSats, inv.CreatedAt.Unix(), inv.DescriptionTag) {
			return false
		}
	}

	return true
}

// issueCredit attempts to transfer inv's sat amount to its credit address
// on-chain, recording success or a scheduled retry (spec §4.4 step 2).
func (m *CreditMonitor) issueCredit(ctx context.Context, inv *domain.InvoiceRecord, now time.Time) {
	addr, ok := normalizeAddress(inv.CreditAddr)
	if !ok {
		inv.Credit.Status = domain.CreditStatusFailed
		inv.Credit.LastError = domain.ErrInvalidAddress.Error()
		inv.Credit.NextRetryAt = now.Add(m.retryDelay)
		_ = m.store.SaveInvoice(inv)
		return
	}
	if inv.AmountSats == 0 {
		inv.Credit.Status = domain.CreditStatusFailed
		inv.Credit.LastError = domain.ErrMissingAmount.Error()
		inv.Credit.NextRetryAt = now.Add(m.retryDelay)
		_ = m.store.SaveInvoice(inv)
		return
	}

	inv.Credit.Status = domain.CreditStatusProcessing
	inv.Credit.Attempts++
	inv.Credit.LastAttemptAt = now
	inv.Credit.NextRetryAt = time.Time{}
	_ = m.store.SaveInvoice(inv)

	txHash, amountUnits, err := m.gateway.SubmitTransfer(ctx, addr, inv.AmountSats)
	if err != nil {
		inv.Credit.Status = domain.CreditStatusFailed
		inv.Credit.LastError = err.Error()
		inv.Credit.NextRetryAt = now.Add(m.retryDelay)
		_ = m.store.SaveInvoice(inv)
		return
	}

	inv.Credit.Status = domain.CreditStatusCredited
	inv.Credit.TxHash = txHash
	amountUnitsCopy := amountUnits
	inv.Credit.AmountUnits = &amountUnitsCopy
	inv.Credit.CreditedAt = now
	inv.Credit.LastError = ""
	_ = m.store.SaveInvoice(inv)
}

// rewriteStaleProcessing resets a processing entry stuck past staleThreshold
// back to pending with a stale_processing annotation (spec §4.4 step 3),
// reporting whether it rewrote anything.
func rewriteStaleProcessing(inv *domain.InvoiceRecord, now time.Time, staleThreshold time.Duration) bool {
	if inv.Credit.Status != domain.CreditStatusProcessing {
		return false
	}
	if inv.Credit.LastAttemptAt.IsZero() || now.Sub(inv.Credit.LastAttemptAt) < staleThreshold {
		return false
	}
	inv.Credit.Status = domain.CreditStatusPending
	inv.Credit.LastError = "stale_processing"
	return true
}

// normalizeAddress lowercases and validates a hex on-chain address: must be
// non-empty, 0x-prefixed, and no more than 66 hex characters (spec §6.1).
func normalizeAddress(addr string) (string, bool) {
	if addr == "" {
		return "", false
	}
	lower := strings.ToLower(addr)
	if !strings.HasPrefix(lower, "0x") {
		return "", false
	}
	if len(lower) > 66 {
		return "", false
	}
	for _, r := range lower[2:] {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return "", false
		}
	}
	return lower, true
}
