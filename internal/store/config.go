package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// knownIndicators is the set of indicator names the signal engine can score.
var knownIndicators = map[string]bool{
	"ma_cross":  true,
	"rsi":       true,
	"macd":      true,
	"bollinger": true,
}

type Config struct {
	StartingCash float64 `yaml:"starting_cash"`
	FeeBps       float64 `yaml:"fee_bps"`
	SlippageBps  float64 `yaml:"slippage_bps"`
	StopPct      float64 `yaml:"stop_pct"`
	TargetPct    float64 `yaml:"target_pct"`

	Signals struct {
		Indicators    []string `yaml:"indicators"`
		BuyThreshold  float64  `yaml:"score_threshold_buy"`
		SellThreshold float64  `yaml:"score_threshold_sell"`
		MACross       struct {
			ShortWindow int `yaml:"short_window"`
			LongWindow  int `yaml:"long_window"`
		} `yaml:"ma_cross"`
		RSI struct {
			Period     int     `yaml:"period"`
			Oversold   float64 `yaml:"oversold"`
			Overbought float64 `yaml:"overbought"`
		} `yaml:"rsi"`
		MACD struct {
			Fast   int `yaml:"fast"`
			Slow   int `yaml:"slow"`
			Signal int `yaml:"signal"`
		} `yaml:"macd"`
		Bollinger struct {
			Period int     `yaml:"period"`
			Std    float64 `yaml:"std"`
		} `yaml:"bollinger"`
		ATR struct {
			Period int `yaml:"period"`
		} `yaml:"atr"`
	} `yaml:"signals"`

	Backtest struct {
		AllocateEqualOnBuy  bool    `yaml:"allocate_equal_on_buy"`
		TopNBuys            int     `yaml:"top_n_buys"`
		MaxDailyExposurePct float64 `yaml:"max_daily_exposure_pct"`
		Years               int     `yaml:"years"`
		SampleSize          int     `yaml:"sample_size"`
		Seed                int64   `yaml:"seed"`
	} `yaml:"backtest"`

	Data struct {
		Source   string `yaml:"source"` // KITE or STATIC
		Exchange string `yaml:"exchange"`
		CacheDir string `yaml:"cache_dir"`
	} `yaml:"data"`

	Store struct {
		Dir string `yaml:"dir"`
	} `yaml:"store"`

	Runlog struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"runlog"`

	Email struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		To   string `yaml:"to"`
	} `yaml:"email"`
}

func (c *Config) Validate() error {
	if c.StartingCash <= 0 {
		return fmt.Errorf("starting_cash must be positive, got %.2f", c.StartingCash)
	}
	if c.FeeBps < 0 || c.SlippageBps < 0 {
		return fmt.Errorf("fee_bps and slippage_bps must be non-negative")
	}
	if c.StopPct < 0 || c.TargetPct < 0 {
		return fmt.Errorf("stop_pct and target_pct must be non-negative")
	}
	if len(c.Signals.Indicators) == 0 {
		return fmt.Errorf("signals.indicators cannot be empty")
	}
	for _, name := range c.Signals.Indicators {
		if !knownIndicators[name] {
			return fmt.Errorf("unknown indicator '%s'", name)
		}
	}
	if c.Signals.BuyThreshold <= c.Signals.SellThreshold {
		return fmt.Errorf("score_threshold_buy (%.2f) must be greater than score_threshold_sell (%.2f)",
			c.Signals.BuyThreshold, c.Signals.SellThreshold)
	}
	if c.Signals.MACross.ShortWindow >= c.Signals.MACross.LongWindow {
		return fmt.Errorf("ma_cross short_window must be smaller than long_window")
	}
	if c.Backtest.TopNBuys <= 0 {
		return fmt.Errorf("backtest.top_n_buys must be positive, got %d", c.Backtest.TopNBuys)
	}
	if c.Backtest.MaxDailyExposurePct <= 0 || c.Backtest.MaxDailyExposurePct > 1 {
		return fmt.Errorf("backtest.max_daily_exposure_pct must be in (0, 1], got %.2f", c.Backtest.MaxDailyExposurePct)
	}
	if c.Data.Source != "KITE" && c.Data.Source != "STATIC" {
		return fmt.Errorf("invalid data.source '%s': must be 'KITE' or 'STATIC'", c.Data.Source)
	}
	return nil
}

// applyDefaults fills unset leaves before validation.
func (c *Config) applyDefaults() {
	if c.StartingCash == 0 {
		c.StartingCash = 1000
	}
	if len(c.Signals.Indicators) == 0 {
		c.Signals.Indicators = []string{"ma_cross", "rsi", "macd", "bollinger"}
	}
	if c.Signals.BuyThreshold == 0 && c.Signals.SellThreshold == 0 {
		c.Signals.BuyThreshold = 0.3
		c.Signals.SellThreshold = -0.3
	}
	if c.Signals.MACross.ShortWindow == 0 {
		c.Signals.MACross.ShortWindow = 20
	}
	if c.Signals.MACross.LongWindow == 0 {
		c.Signals.MACross.LongWindow = 50
	}
	if c.Signals.RSI.Period == 0 {
		c.Signals.RSI.Period = 14
	}
	if c.Signals.RSI.Oversold == 0 {
		c.Signals.RSI.Oversold = 30
	}
	if c.Signals.RSI.Overbought == 0 {
		c.Signals.RSI.Overbought = 70
	}
	if c.Signals.MACD.Fast == 0 {
		c.Signals.MACD.Fast = 12
	}
	if c.Signals.MACD.Slow == 0 {
		c.Signals.MACD.Slow = 26
	}
	if c.Signals.MACD.Signal == 0 {
		c.Signals.MACD.Signal = 9
	}
	if c.Signals.Bollinger.Period == 0 {
		c.Signals.Bollinger.Period = 20
	}
	if c.Signals.Bollinger.Std == 0 {
		c.Signals.Bollinger.Std = 2
	}
	if c.Signals.ATR.Period == 0 {
		c.Signals.ATR.Period = 14
	}
	if c.Backtest.TopNBuys == 0 {
		c.Backtest.TopNBuys = 3
	}
	if c.Backtest.MaxDailyExposurePct == 0 {
		c.Backtest.MaxDailyExposurePct = 1.0
	}
	if c.Backtest.Years == 0 {
		c.Backtest.Years = 1
	}
	if c.Backtest.SampleSize == 0 {
		c.Backtest.SampleSize = 50
	}
	if c.Backtest.Seed == 0 {
		c.Backtest.Seed = 42
	}
	if c.Data.Source == "" {
		c.Data.Source = "STATIC"
	}
	if c.Data.Exchange == "" {
		c.Data.Exchange = "NSE"
	}
	if c.Data.CacheDir == "" {
		c.Data.CacheDir = "data/cache"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "portfolio_store"
	}
	if c.Runlog.Dir == "" {
		c.Runlog.Dir = "logs"
	}
	if c.Email.Host == "" {
		c.Email.Host = "smtp.gmail.com"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 465
	}
}

// Default returns a fully defaulted configuration, handy for tests.
func Default() *Config {
	var c Config
	c.applyDefaults()
	c.Backtest.AllocateEqualOnBuy = true
	return &c
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
