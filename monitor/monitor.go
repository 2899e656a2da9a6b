// Package monitor implements the CreditMonitor: an infinite, configurably
// spaced loop that reconciles issued Lightning invoices against the node
// and, once one is paid, credits the merchant's on-chain address via
// ChainGateway.SubmitTransfer, with per-invoice retry and stale-processing
// recovery (spec §4.4).
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/liquidityos/lnescrow/chain"
	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/lightning"
)

// InvoiceStore is the subset of store.Store the monitor needs.
type InvoiceStore interface {
	ListInvoices() []*domain.InvoiceRecord
	SaveInvoice(inv *domain.InvoiceRecord) error
}

// TagVerifier checks an invoice description tag against a
// (credit_address, amount_sats, created_at) triple, the way
// lightning.DepositDescriptionTagger does (spec §6.8). Optional: a
// CreditMonitor built without one credits any paid invoice regardless of
// who issued it, matching its pre-tagging behavior.
type TagVerifier interface {
	VerifyTag(creditAddress string, amountSats uint64, createdAt int64, tag string) bool
}

// CreditMonitor runs the polling loop described by spec §4.4. It shares a
// single chain.Gateway and lightning.Client with the rest of the bridge, so
// at most one in-flight RPC runs per tick (spec §5).
type CreditMonitor struct {
	store     InvoiceStore
	lightning lightning.Client
	gateway   chain.Gateway
	tagger    TagVerifier

	interval       time.Duration
	retryDelay     time.Duration
	staleThreshold time.Duration

	sched gocron.Scheduler
}

// New builds a CreditMonitor. interval is the tick period (default 15s per
// spec §6.6's invoice_monitor_interval_ms), retryDelay the failed-credit
// backoff (default 60s), staleThreshold the processing-stuck recovery window
// (default 5m). tagger may be nil to skip description-tag verification.
func New(store InvoiceStore, lightningClient lightning.Client, gateway chain.Gateway, tagger TagVerifier, interval, retryDelay, staleThreshold time.Duration) *CreditMonitor {
	return &CreditMonitor{
		store:          store,
		lightning:      lightningClient,
		gateway:        gateway,
		tagger:         tagger,
		interval:       interval,
		retryDelay:     retryDelay,
		staleThreshold: staleThreshold,
	}
}

// Run schedules the monitor's tick on a gocron.Scheduler and blocks until
// ctx is cancelled, at which point the scheduler is shut down.
func (m *CreditMonitor) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	m.sched = sched

	_, err = sched.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() { m.Tick(ctx) }),
	)
	if err != nil {
		return err
	}

	sched.Start()
	slog.Info("📡 [CreditMonitor] started", "interval", m.interval)

	<-ctx.Done()
	slog.Info("📡 [CreditMonitor] stopping")
	return sched.Shutdown()
}

// Tick runs exactly one reconciliation pass over every invoice in the
// store. Order within a tick is unspecified but sequential, per spec §4.4.
func (m *CreditMonitor) Tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, inv := range m.store.ListInvoices() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.reconcileOne(ctx, inv, now)
	}
}
