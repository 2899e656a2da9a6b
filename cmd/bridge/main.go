// Command bridge is the composition root: it wires config, the persisted
// store, the chain gateway, the Lightning client, the orchestrator, the
// operator HTTP service, and the credit monitor together and runs the
// latter two concurrently, grounded on NYDIG-OSS-lnmux's own
// errgroup.WithContext(ctx) supervisor shape.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liquidityos/lnescrow/chain"
	"github.com/liquidityos/lnescrow/config"
	"github.com/liquidityos/lnescrow/httpapi"
	"github.com/liquidityos/lnescrow/lightning"
	"github.com/liquidityos/lnescrow/monitor"
	"github.com/liquidityos/lnescrow/orchestrator"
	"github.com/liquidityos/lnescrow/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("🛑 [bridge] fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("bridge: load config: %w", err)
	}

	s, err := store.Open(cfg.DataFilePath)
	if err != nil {
		return fmt.Errorf("bridge: open store: %w", err)
	}

	gateway, err := chain.New(chain.Config{
		RPCURL:          cfg.ChainRPCURL,
		OperatorPrivKey: cfg.OperatorPrivateKey,
		EscrowAddress:   cfg.EscrowAddress,
		TokenAddress:    cfg.TokenAddress,
		TokenDecimals:   cfg.TokenDecimals,
		RequestTimeout:  30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("bridge: build chain gateway: %w", err)
	}

	lnClient, err := lightning.NewCLNClient(lightning.Config{
		RESTURL:        cfg.LightningRESTURL,
		AuthTokenPath:  cfg.LightningAuthTokenPath,
		RequestTimeout: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("bridge: build lightning client: %w", err)
	}

	orch := orchestrator.New(
		gateway,
		lnClient,
		s,
		time.Duration(cfg.PayRetryForSeconds)*time.Second,
		cfg.MaxFeePercent,
	)

	issuer := lightning.NewDepositDescriptionTagger(lnClient, []byte(cfg.TagSecret))

	creditMonitor := monitor.New(
		s,
		lnClient,
		gateway,
		issuer,
		time.Duration(cfg.InvoiceMonitorIntervalMS)*time.Millisecond,
		time.Duration(cfg.InvoiceMonitorRetryMS)*time.Millisecond,
		time.Duration(cfg.InvoiceMonitorStaleMS)*time.Millisecond,
	)

	operatorAddr := fmt.Sprintf("127.0.0.1:%d", cfg.OperatorServicePort)
	server := httpapi.New(operatorAddr, gateway, orch, issuer, func() bool { return true })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	group.Go(func() error {
		return creditMonitor.Run(ctx)
	})

	slog.Info("🌉 [bridge] started", "operator_addr", operatorAddr)
	return group.Wait()
}
