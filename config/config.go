// Package config loads the bridge's environment-style configuration (spec
// §6.6) via struct tags, grounded on the retrieval pack's own
// go-flags-based config loader (lightningnetwork-lnd's config.go): `long`
// flags doubling as `env` variables, with defaults baked into the struct
// tags rather than a second constants block.
package config

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"
)

// Config holds every option spec §6.6 names.
type Config struct {
	ChainRPCURL         string `long:"chain-rpc-url" env:"CHAIN_RPC_URL" description:"JSON-RPC endpoint of the chain node"`
	OperatorPrivateKey  string `long:"operator-private-key" env:"OPERATOR_PRIVATE_KEY" description:"private key the operator signs chain submissions with"`
	EscrowAddress       string `long:"escrow-address" env:"ESCROW_ADDRESS" description:"address of the deployed escrow contract"`
	TokenAddress        string `long:"token-address" env:"TOKEN_ADDRESS" description:"address of the escrow token"`
	TokenDecimals       int    `long:"token-decimals" env:"TOKEN_DECIMALS" default:"8" description:"token decimals, in [8,77]"`

	LightningRESTURL       string `long:"lightning-rest-url" env:"LIGHTNING_REST_URL" description:"Lightning node's REST base URL"`
	LightningAuthTokenPath string `long:"lightning-auth-token-path" env:"LIGHTNING_AUTH_TOKEN_PATH" description:"path to the file containing the node's rune/auth token"`

	TagSecret string `long:"tag-secret" env:"TAG_SECRET" description:"HMAC-SHA256 key (>=16 bytes) used to tag invoice descriptions"`

	MaxFeePercent      float64 `long:"max-fee-percent" env:"MAX_FEE_PERCENT" default:"0.5" description:"maximum Lightning routing fee, as a percent of amount"`
	PayRetryForSeconds int64   `long:"pay-retry-for-seconds" env:"PAY_RETRY_FOR_SECONDS" default:"30" description:"retry_for window passed to the node's pay call"`

	InvoiceMonitorIntervalMS int64 `long:"invoice-monitor-interval-ms" env:"INVOICE_MONITOR_INTERVAL_MS" default:"15000" description:"CreditMonitor tick interval"`
	InvoiceMonitorRetryMS    int64 `long:"invoice-monitor-retry-ms" env:"INVOICE_MONITOR_RETRY_MS" default:"60000" description:"credit issuance retry backoff"`
	InvoiceMonitorStaleMS    int64 `long:"invoice-monitor-stale-ms" env:"INVOICE_MONITOR_STALE_MS" default:"300000" description:"stale-processing recovery window"`

	DataFilePath        string `long:"data-file-path" env:"DATA_FILE_PATH" description:"path to the single persisted JSON document"`
	ListenPort          int    `long:"listen-port" env:"LISTEN_PORT" description:"listen port of the user-facing HTTP surface; the bridge binary does not bind it"`
	OperatorServicePort int    `long:"operator-service-port" env:"OPERATOR_SERVICE_PORT" description:"operator HTTP port (binds 127.0.0.1 by default, spec §9)"`
}

// Load parses argv (pass os.Args[1:]) plus environment variables into a
// Config and validates it.
func Load(argv []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(argv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field and range constraints spec §6.6 requires
// that go-flags' struct tags alone can't express.
func (c *Config) Validate() error {
	if c.TokenDecimals < 8 || c.TokenDecimals > 77 {
		return fmt.Errorf("config: token_decimals %d out of range [8,77]", c.TokenDecimals)
	}
	if len(c.TagSecret) < 16 {
		return fmt.Errorf("config: tag_secret must be at least 16 bytes, got %d", len(c.TagSecret))
	}
	if c.ChainRPCURL == "" {
		return fmt.Errorf("config: chain_rpc_url is required")
	}
	if c.EscrowAddress == "" {
		return fmt.Errorf("config: escrow_address is required")
	}
	if c.TokenAddress == "" {
		return fmt.Errorf("config: token_address is required")
	}
	if c.OperatorPrivateKey == "" {
		return fmt.Errorf("config: operator_private_key is required")
	}
	if c.LightningRESTURL == "" {
		return fmt.Errorf("config: lightning_rest_url is required")
	}
	if c.DataFilePath == "" {
		return fmt.Errorf("config: data_file_path is required")
	}
	if c.MaxFeePercent < 0 {
		return fmt.Errorf("config: max_fee_percent must be non-negative")
	}
	if c.PayRetryForSeconds <= 0 {
		return fmt.Errorf("config: pay_retry_for_seconds must be positive")
	}
	return nil
}
