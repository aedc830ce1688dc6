package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "arbbot",
		Short:        "Cross-venue V3 flash-loan arbitrage bot",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Watch both pools and react to every swap",
		RunE:  runBot,
	}
	addPairFlags(runCmd.Flags())
	addTradeFlags(runCmd.Flags())
	addFeedFlags(runCmd.Flags())
	addSinkFlags(runCmd.Flags())
	root.AddCommand(runCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run one evaluation against current prices",
		RunE:  runCheck,
	}
	addPairFlags(checkCmd.Flags())
	addTradeFlags(checkCmd.Flags())
	addSinkFlags(checkCmd.Flags())
	root.AddCommand(checkCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Resolve and print the pair's tokens and pools",
		RunE:  runPools,
	}
	addPairFlags(poolsCmd.Flags())
	poolsCmd.Flags().String("pg-dsn", "", "Postgres DSN; resolved pools are upserted when set")
	root.AddCommand(poolsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPairFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "RPC URL (ws/wss enables log subscriptions)")
	fs.String("arb-for", "", "token being arbitraged (Token0)")
	fs.String("arb-against", "", "flash-loan and profit token (Token1)")
	fs.Uint32("pool-fee", 500, "V3 fee tier")
	for _, prefix := range []string{"venue-a", "venue-b"} {
		fs.String(prefix+"-name", "", prefix+" display name")
		fs.String(prefix+"-factory", "", prefix+" V3 factory")
		fs.String(prefix+"-router", "", prefix+" swap router")
		fs.String(prefix+"-quoter", "", prefix+" QuoterV2")
		fs.String(prefix+"-pool", "", prefix+" pool override (skips factory lookup)")
	}
	fs.Uint64("chain-id", 0, "chain id, 0 queries the node")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addTradeFlags(fs *pflag.FlagSet) {
	fs.String("arbitrage-contract", "", "flash-loan arbitrage contract")
	fs.String("min-divergence-bps", "50", "minimum price divergence in basis points (inclusive)")
	fs.String("liquidity-ratio", "0.5", "share of buy-pool depth to target")
	fs.String("max-amount", "0", "flash-loan cap in the against token, 0 disables")
	fs.String("flash-fee-bps", "0", "flash-loan fee in basis points")
	fs.Uint64("gas-limit", 400_000, "gas limit for executeTrade")
	fs.String("gas-price-gwei", "0", "gas price in gwei, 0 uses eth_gasPrice")
	fs.Bool("native-is-arb-for", true, "price gas with the arb-for token")
	fs.String("native-price", "0", "against-token price of the native coin")
	fs.String("native-symbol", "ETH", "native coin symbol for reports")
	fs.Bool("execute", false, "submit transactions (default is dry run)")
	fs.String("private-key", "", "signer private key (prefer PRIVATE_KEY in .env)")
	fs.String("redis-addr", "", "Redis address for the cross-instance execution lock")
	fs.String("redis-password", "", "Redis password")
	fs.Duration("lock-ttl", 2*time.Minute, "execution lock lease")
}

func addFeedFlags(fs *pflag.FlagSet) {
	fs.Duration("poll-interval", 2*time.Second, "log polling interval for HTTP endpoints")
	fs.Uint64("batch-size", 500, "blocks per eth_getLogs call while polling")
	fs.Bool("force-poll", false, "poll even when the endpoint supports subscriptions")
	fs.Int("max-retries", 5, "maximum retry attempts")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.Duration("max-backoff", 30*time.Second, "longest wait between resubscribe attempts")
}

func addSinkFlags(fs *pflag.FlagSet) {
	fs.String("report-out", "./data/cycles.jsonl", "cycle report JSONL path, empty disables")
	fs.String("pg-dsn", "", "Postgres DSN for cycle history")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
