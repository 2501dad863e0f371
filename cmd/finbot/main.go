package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"finbot/internal/backtest"
	"finbot/internal/data"
	"finbot/internal/exec"
	"finbot/internal/interfaces"
	"finbot/internal/logger"
	"finbot/internal/notify"
	"finbot/internal/portfolio"
	"finbot/internal/runlog"
	"finbot/internal/signals"
	"finbot/internal/store"
	"finbot/internal/types"
	"finbot/internal/universe"
)

var (
	configPath string
	tickerList string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "finbot",
		Short: "Rule-based daily trading simulator",
		Long: `finbot scores daily bars with technical indicators, simulates the
resulting trades against a cash ledger, and reports the equity curve.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&tickerList, "tickers", "t", "", "Comma-separated tickers (skips the index scrape)")

	rootCmd.AddCommand(backtestCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(applyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func backtestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backtest",
		Short: "Run the strategy over history and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Shutdown(ctx)

			series, err := buildSeries(ctx, cfg, time.Now())
			if err != nil {
				return err
			}

			res := backtest.Run(ctx, series, cfg)

			if dir := cfg.Runlog.Dir; dir != "" {
				rec := runlog.Record{Config: runlog.Snapshot(cfg), Summary: res.Summary}
				if err := runlog.Append(dir, rec); err != nil {
					logger.Warn(ctx, "Failed to append run log", "error", err)
				}
				if cfg.Runlog.RetentionDays > 0 {
					_ = runlog.CompressOlder(dir, cfg.Runlog.RetentionDays)
				}
			}

			out, err := json.MarshalIndent(res.Summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Email today's buy list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Shutdown(ctx)

			series, err := buildSeries(ctx, cfg, time.Now())
			if err != nil {
				return err
			}
			dates := signals.UnionCalendar(series)
			if len(dates) == 0 {
				return fmt.Errorf("no trading dates in the fetched history")
			}
			tradeDate := dates[len(dates)-1]
			buys := signals.BuyListForDate(series, tradeDate)

			mailer, err := mailerFromEnv(cfg)
			if err != nil {
				return err
			}
			return mailer.SendBuyList(ctx, buys, tradeDate)
		},
	}
}

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [tickers...]",
		Short: "Buy the given tickers at the latest open and persist the ledger",
		Long: `apply executes user-confirmed buys, typically the reply to a buy list
email. Arguments are parsed leniently: "aapl, msft" and "AAPL MSFT" both work.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Shutdown(ctx)

			wanted := notify.ParseTickers(strings.Join(args, " "))
			if len(wanted) == 0 {
				return fmt.Errorf("no tickers recognized in %q", strings.Join(args, " "))
			}

			series, err := buildSeries(ctx, cfg, time.Now())
			if err != nil {
				return err
			}
			dates := signals.UnionCalendar(series)
			if len(dates) == 0 {
				return fmt.Errorf("no trading dates in the fetched history")
			}
			tradeDate := dates[len(dates)-1]

			port := portfolio.Load(ctx, cfg.Store.Dir, cfg.StartingCash, backtest.CostsFromConfig(cfg))
			fills := exec.ExecuteUserBuys(ctx, series, wanted, tradeDate, port)
			if err := portfolio.Save(cfg.Store.Dir, port); err != nil {
				return fmt.Errorf("persist ledger: %w", err)
			}

			for _, f := range fills {
				fmt.Printf("BUY %s @ %.2f\n", f.Ticker, f.Price)
			}
			fmt.Printf("cash: %.2f\n", port.Cash())
			return nil
		},
	}
}

// setup loads the config and initializes logging and tracing.
func setup(ctx context.Context) (context.Context, *store.Config, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return ctx, nil, err
	}
	if err := logger.Init(); err != nil {
		return ctx, nil, err
	}
	return ctx, cfg, nil
}

// buildSeries resolves the universe, fetches history for the configured
// lookback ending at asOf, and builds the per-ticker signal series.
func buildSeries(ctx context.Context, cfg *store.Config, asOf time.Time) (map[string]*signals.Series, error) {
	tickers, err := resolveUniverse(ctx, cfg)
	if err != nil {
		return nil, err
	}

	years := cfg.Backtest.Years
	if years <= 0 {
		years = 1
	}
	from := asOf.AddDate(-years, 0, 0)

	provider := buildProvider(cfg)
	bars := data.FetchAll(ctx, provider, tickers, from, asOf)
	if len(bars) == 0 {
		return nil, fmt.Errorf("no price history for any of %d tickers", len(tickers))
	}

	series := make(map[string]*signals.Series, len(bars))
	for ticker, candles := range bars {
		if s := signals.Build(ticker, candles, cfg); s != nil {
			series[ticker] = s
		}
	}
	return series, nil
}

func resolveUniverse(ctx context.Context, cfg *store.Config) ([]string, error) {
	if tickerList != "" {
		out := notify.ParseTickers(tickerList)
		if len(out) == 0 {
			return nil, fmt.Errorf("no tickers recognized in --tickers %q", tickerList)
		}
		sort.Strings(out)
		return out, nil
	}

	all, err := universe.NewScraper().SP500(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}
	if n := cfg.Backtest.SampleSize; n > 0 && n < len(all) {
		return universe.Sample(all, n, cfg.Backtest.Seed), nil
	}
	return all, nil
}

func buildProvider(cfg *store.Config) interfaces.PriceProvider {
	var upstream interfaces.PriceProvider
	switch strings.ToUpper(cfg.Data.Source) {
	case "KITE":
		upstream = data.NewKiteProvider(
			os.Getenv("KITE_API_KEY"),
			os.Getenv("KITE_ACCESS_TOKEN"),
			cfg.Data.Exchange,
		)
	default:
		// Offline mode: serve only what the cache already holds.
		upstream = cacheOnly{}
	}
	if cfg.Data.CacheDir != "" {
		return data.NewCachedProvider(upstream, cfg.Data.CacheDir)
	}
	return upstream
}

// cacheOnly is the upstream for STATIC runs. Every miss is an error, so the
// cache decorator serves hits and FetchAll drops the rest.
type cacheOnly struct{}

func (cacheOnly) History(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	return nil, fmt.Errorf("no cached bars for %s", ticker)
}

func mailerFromEnv(cfg *store.Config) (interfaces.Notifier, error) {
	from := os.Getenv("GMAIL_USER")
	password := os.Getenv("GMAIL_APP_PASSWORD")
	if from == "" || password == "" {
		return nil, fmt.Errorf("GMAIL_USER and GMAIL_APP_PASSWORD must be set")
	}
	to := cfg.Email.To
	if to == "" {
		to = from
	}
	return notify.NewMailer(cfg.Email.Host, cfg.Email.Port, from, password, to), nil
}
