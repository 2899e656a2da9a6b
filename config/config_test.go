package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liquidityos/lnescrow/config"
)

func validArgs() []string {
	return []string{
		"--chain-rpc-url=http://localhost:5050",
		"--operator-private-key=0xabc",
		"--escrow-address=0xescrow",
		"--token-address=0xtoken",
		"--lightning-rest-url=http://localhost:3010",
		"--tag-secret=0123456789abcdef",
		"--data-file-path=/tmp/bridge.json",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(validArgs())
	require.NoError(t, err)
	require.Equal(t, 8, cfg.TokenDecimals)
	require.Equal(t, 0.5, cfg.MaxFeePercent)
	require.Equal(t, int64(30), cfg.PayRetryForSeconds)
	require.Equal(t, int64(15000), cfg.InvoiceMonitorIntervalMS)
	require.Equal(t, int64(60000), cfg.InvoiceMonitorRetryMS)
	require.Equal(t, int64(300000), cfg.InvoiceMonitorStaleMS)
}

func TestLoadRejectsShortTagSecret(t *testing.T) {
	args := append(validArgs(), "--tag-secret=tooshort")
	_, err := config.Load(args)
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangeDecimals(t *testing.T) {
	args := append(validArgs(), "--token-decimals=7")
	_, err := config.Load(args)
	require.Error(t, err)
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	_, err := config.Load([]string{"--tag-secret=0123456789abcdef"})
	require.Error(t, err)
}

func TestLoadHonorsOverrides(t *testing.T) {
	args := append(validArgs(), "--token-decimals=18", "--max-fee-percent=1.5")
	cfg, err := config.Load(args)
	require.NoError(t, err)
	require.Equal(t, 18, cfg.TokenDecimals)
	require.Equal(t, 1.5, cfg.MaxFeePercent)
}
