package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"flashArb/internal/model"
)

const (
	weth = "0x4200000000000000000000000000000000000006"
	dai  = "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("rpc", "", "")
	fs.String("arb-for", "", "")
	fs.String("arb-against", "", "")
	fs.String("min-divergence-bps", "50", "")
	fs.Bool("execute", false, "")
	return fs
}

func TestLoadDefaultsAndFlags(t *testing.T) {
	fs := newFlags()
	if err := fs.Parse([]string{"--rpc", "wss://node.example", "--arb-for", weth, "--arb-against", dai, "--min-divergence-bps", "120.5"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "wss://node.example" || cfg.ArbFor != weth {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if !cfg.MinDivergenceBps.Equal(decimal.RequireFromString("120.5")) {
		t.Fatalf("divergence mismatch: %s", cfg.MinDivergenceBps)
	}
	if !cfg.LiquidityRatio.Equal(decimal.RequireFromString("0.5")) || cfg.PoolFee != 500 || cfg.GasLimit != 400_000 {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
	if cfg.VenueA.Name != "Uniswap V3" || cfg.VenueB.Name != "PancakeSwap V3" {
		t.Fatalf("venue defaults mismatch: %+v %+v", cfg.VenueA, cfg.VenueB)
	}
	if cfg.PollInterval != 2*time.Second || cfg.LockTTL != 2*time.Minute {
		t.Fatalf("duration defaults mismatch: %s %s", cfg.PollInterval, cfg.LockTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ARB_RPC", "https://node.example")
	t.Setenv("ARB_GAS_LIMIT", "250000")
	t.Setenv("ARB_VENUE_B_POOL", "0x2222222222222222222222222222222222222222")
	t.Setenv("PRIVATE_KEY", "0xabc")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "https://node.example" || cfg.GasLimit != 250_000 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.PrivateKey != "0xabc" {
		t.Fatalf("unprefixed PRIVATE_KEY should be accepted")
	}
	if cfg.VenueB.PoolOverride() != common.HexToAddress("0x2222222222222222222222222222222222222222") {
		t.Fatalf("pool override mismatch: %s", cfg.VenueB.PoolOverride().Hex())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arb.yaml")
	content := strings.Join([]string{
		"rpc: wss://base.example",
		"arb-for: " + weth,
		"arb-against: " + dai,
		"liquidity-ratio: 0.25",
		"native-is-arb-for: false",
		"native-price: 2500",
		"execute: true",
		"log-level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.LiquidityRatio.Equal(decimal.RequireFromString("0.25")) || !cfg.NativePrice.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("decimals from file mismatch: %+v", cfg)
	}
	if cfg.NativeIsArbFor || !cfg.Execute || cfg.LogLevel != "debug" {
		t.Fatalf("bools from file mismatch: %+v", cfg)
	}

	err = cfg.Validate()
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("execute without key should fail validation, got %v", err)
	}
	for _, want := range []string{"private-key", "arbitrage-contract"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("validation should mention %s: %v", want, err)
		}
	}
}

func TestLoadRejectsBadDecimal(t *testing.T) {
	t.Setenv("ARB_MAX_AMOUNT", "ten")
	if _, err := Load("", nil); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("", nil)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		cfg.RPCURL = "wss://node.example"
		cfg.ArbFor = weth
		cfg.ArbAgainst = dai
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing rpc", mutate: func(c *Config) { c.RPCURL = "" }, want: "rpc is required"},
		{name: "same tokens", mutate: func(c *Config) { c.ArbAgainst = weth }, want: "must differ"},
		{name: "bad token", mutate: func(c *Config) { c.ArbFor = "weth" }, want: "arb-for must be a token address"},
		{name: "ratio", mutate: func(c *Config) { c.LiquidityRatio = decimal.NewFromInt(2) }, want: "liquidity-ratio"},
		{name: "no venue source", mutate: func(c *Config) { c.VenueA.Factory = "" }, want: "venue-a-factory"},
		{name: "native price", mutate: func(c *Config) { c.NativeIsArbFor = false }, want: "native-price"},
		{name: "negative threshold", mutate: func(c *Config) { c.MinDivergenceBps = decimal.NewFromInt(-1) }, want: "min-divergence-bps"},
		{name: "gas", mutate: func(c *Config) { c.GasLimit = 0 }, want: "gas-limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, model.ErrConfiguration) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q configuration error, got %v", tc.want, err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
}

func TestModelVenue(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	venue := cfg.VenueA.ModelVenue()
	if venue.Factory != common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984") || venue.Name != "Uniswap V3" {
		t.Fatalf("model venue mismatch: %+v", venue)
	}
	if cfg.VenueA.PoolOverride() != (common.Address{}) {
		t.Fatalf("pool override should default to zero")
	}
}
