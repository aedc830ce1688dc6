package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"flashArb/internal/model"
)

// Venue is the raw configuration of one V3 deployment. Pool overrides the
// factory lookup when set.
type Venue struct {
	Name    string
	Factory string
	Router  string
	Quoter  string
	Pool    string
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	ArbFor            string
	ArbAgainst        string
	PoolFee           uint32
	VenueA            Venue
	VenueB            Venue
	ArbitrageContract string

	MinDivergenceBps decimal.Decimal
	LiquidityRatio   decimal.Decimal
	MaxAmount        decimal.Decimal
	FlashFeeBps      decimal.Decimal
	GasLimit         uint64
	GasPriceGwei     decimal.Decimal
	NativeIsArbFor   bool
	NativePrice      decimal.Decimal
	NativeSymbol     string

	Execute    bool
	PrivateKey string
	ChainID    uint64

	PollInterval time.Duration
	BatchSize    uint64
	ForcePoll    bool
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration

	ReportOut     string
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("private-key", "ARB_PRIVATE_KEY", "PRIVATE_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		ArbFor:            v.GetString("arb-for"),
		ArbAgainst:        v.GetString("arb-against"),
		PoolFee:           v.GetUint32("pool-fee"),
		VenueA:            venue(v, "venue-a"),
		VenueB:            venue(v, "venue-b"),
		ArbitrageContract: v.GetString("arbitrage-contract"),
		GasLimit:          v.GetUint64("gas-limit"),
		NativeIsArbFor:    v.GetBool("native-is-arb-for"),
		NativeSymbol:      v.GetString("native-symbol"),
		Execute:           v.GetBool("execute"),
		PrivateKey:        v.GetString("private-key"),
		ChainID:           v.GetUint64("chain-id"),
		PollInterval:      v.GetDuration("poll-interval"),
		BatchSize:         v.GetUint64("batch-size"),
		ForcePoll:         v.GetBool("force-poll"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MaxBackoff:        v.GetDuration("max-backoff"),
		ReportOut:         v.GetString("report-out"),
		PGDSN:             v.GetString("pg-dsn"),
		RedisAddr:         v.GetString("redis-addr"),
		RedisPassword:     v.GetString("redis-password"),
		LockTTL:           v.GetDuration("lock-ttl"),
		LogLevel:          v.GetString("log-level"),
	}

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"min-divergence-bps", &cfg.MinDivergenceBps},
		{"liquidity-ratio", &cfg.LiquidityRatio},
		{"max-amount", &cfg.MaxAmount},
		{"flash-fee-bps", &cfg.FlashFeeBps},
		{"gas-price-gwei", &cfg.GasPriceGwei},
		{"native-price", &cfg.NativePrice},
	}
	for _, d := range decimals {
		value, err := getDecimal(v, d.key)
		if err != nil {
			return Config{}, err
		}
		*d.dst = value
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pool-fee", 500)
	v.SetDefault("venue-a-name", "Uniswap V3")
	v.SetDefault("venue-a-factory", "0x1F98431c8aD98523631AE4a59f267346ea31F984")
	v.SetDefault("venue-a-router", "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	v.SetDefault("venue-a-quoter", "0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	v.SetDefault("venue-b-name", "PancakeSwap V3")
	v.SetDefault("venue-b-factory", "0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865")
	v.SetDefault("venue-b-router", "0x13f4EA83D0bd40E75C8222255bc855a974568Dd4")
	v.SetDefault("venue-b-quoter", "0xB048Bbc1Ee6b733FFfCFb9e9CeF7375518e25997")
	v.SetDefault("min-divergence-bps", "50")
	v.SetDefault("liquidity-ratio", "0.5")
	v.SetDefault("max-amount", "0")
	v.SetDefault("flash-fee-bps", "0")
	v.SetDefault("gas-limit", uint64(400_000))
	v.SetDefault("gas-price-gwei", "0")
	v.SetDefault("native-is-arb-for", true)
	v.SetDefault("native-price", "0")
	v.SetDefault("native-symbol", "ETH")
	v.SetDefault("execute", false)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("batch-size", uint64(500))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("max-backoff", 30*time.Second)
	v.SetDefault("report-out", "./data/cycles.jsonl")
	v.SetDefault("lock-ttl", 2*time.Minute)
	v.SetDefault("log-level", "info")
}

func venue(v *viper.Viper, prefix string) Venue {
	return Venue{
		Name:    v.GetString(prefix + "-name"),
		Factory: v.GetString(prefix + "-factory"),
		Router:  v.GetString(prefix + "-router"),
		Quoter:  v.GetString(prefix + "-quoter"),
		Pool:    v.GetString(prefix + "-pool"),
	}
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", model.ErrConfiguration, key, err)
	}
	return value, nil
}

// Validate checks the settings every command needs. Live execution adds the
// signer and contract requirements.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.RPCURL) == "" {
		problems = append(problems, "rpc is required")
	}
	for key, value := range map[string]string{"arb-for": c.ArbFor, "arb-against": c.ArbAgainst} {
		if !common.IsHexAddress(value) {
			problems = append(problems, fmt.Sprintf("%s must be a token address", key))
		}
	}
	if strings.EqualFold(c.ArbFor, c.ArbAgainst) {
		problems = append(problems, "arb-for and arb-against must differ")
	}
	if c.PoolFee == 0 {
		problems = append(problems, "pool-fee is required")
	}
	for prefix, venue := range map[string]Venue{"venue-a": c.VenueA, "venue-b": c.VenueB} {
		problems = append(problems, venue.problems(prefix, c.Execute)...)
	}
	if c.MinDivergenceBps.IsNegative() {
		problems = append(problems, "min-divergence-bps must not be negative")
	}
	if !c.LiquidityRatio.IsPositive() || c.LiquidityRatio.GreaterThan(decimal.NewFromInt(1)) {
		problems = append(problems, "liquidity-ratio must be in (0, 1]")
	}
	if c.MaxAmount.IsNegative() || c.FlashFeeBps.IsNegative() || c.GasPriceGwei.IsNegative() {
		problems = append(problems, "max-amount, flash-fee-bps and gas-price-gwei must not be negative")
	}
	if c.GasLimit == 0 {
		problems = append(problems, "gas-limit must be greater than zero")
	}
	if !c.NativeIsArbFor && !c.NativePrice.IsPositive() {
		problems = append(problems, "native-price is required unless native-is-arb-for is set")
	}
	if c.Execute {
		if strings.TrimSpace(c.PrivateKey) == "" {
			problems = append(problems, "private-key is required with execute")
		}
		if !common.IsHexAddress(c.ArbitrageContract) {
			problems = append(problems, "arbitrage-contract is required with execute")
		}
	} else if c.ArbitrageContract != "" && !common.IsHexAddress(c.ArbitrageContract) {
		problems = append(problems, "arbitrage-contract must be an address")
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("%w: %s", model.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (v Venue) problems(prefix string, execute bool) []string {
	var out []string
	if strings.TrimSpace(v.Name) == "" {
		out = append(out, prefix+"-name is required")
	}
	if v.Pool == "" && !common.IsHexAddress(v.Factory) {
		out = append(out, prefix+"-factory or "+prefix+"-pool is required")
	}
	if v.Pool != "" && !common.IsHexAddress(v.Pool) {
		out = append(out, prefix+"-pool must be an address")
	}
	if !common.IsHexAddress(v.Quoter) {
		out = append(out, prefix+"-quoter must be an address")
	}
	if execute && !common.IsHexAddress(v.Router) {
		out = append(out, prefix+"-router must be an address")
	}
	return out
}

// ModelVenue converts the raw venue into addresses. Call after Validate.
func (v Venue) ModelVenue() model.Venue {
	return model.Venue{
		Name:    v.Name,
		Factory: address(v.Factory),
		Router:  address(v.Router),
		Quoter:  address(v.Quoter),
	}
}

// PoolOverride returns the configured pool address, or zero.
func (v Venue) PoolOverride() common.Address {
	return address(v.Pool)
}

func address(s string) common.Address {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
