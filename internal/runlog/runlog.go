// Package runlog appends one immutable record per backtest invocation: run id,
// timestamp, the configuration that produced the run, and the summary. Records
// land in daily JSONL files that are never rewritten, only gzip-compacted once
// they age out of the retention window.
package runlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"finbot/internal/backtest"
	"finbot/internal/store"
)

var mu sync.Mutex

// ConfigSnapshot pins the knobs that shaped a run, so old records stay
// interpretable after the live config moves on.
type ConfigSnapshot struct {
	StartingCash        float64  `json:"starting_cash"`
	FeeBps              float64  `json:"fee_bps"`
	SlippageBps         float64  `json:"slippage_bps"`
	StopPct             float64  `json:"stop_pct"`
	TargetPct           float64  `json:"target_pct"`
	BuyThreshold        float64  `json:"score_threshold_buy"`
	SellThreshold       float64  `json:"score_threshold_sell"`
	Indicators          []string `json:"indicators"`
	TopNBuys            int      `json:"top_n_buys"`
	AllocateEqualOnBuy  bool     `json:"allocate_equal_on_buy"`
	MaxDailyExposurePct float64  `json:"max_daily_exposure_pct"`
}

// Record is one run-summary line.
type Record struct {
	RunID   string           `json:"run_id"`
	Time    string           `json:"time"`
	Config  ConfigSnapshot   `json:"config"`
	Summary backtest.Summary `json:"summary"`
}

// Snapshot extracts the run-shaping parameters from a config.
func Snapshot(cfg *store.Config) ConfigSnapshot {
	return ConfigSnapshot{
		StartingCash:        cfg.StartingCash,
		FeeBps:              cfg.FeeBps,
		SlippageBps:         cfg.SlippageBps,
		StopPct:             cfg.StopPct,
		TargetPct:           cfg.TargetPct,
		BuyThreshold:        cfg.Signals.BuyThreshold,
		SellThreshold:       cfg.Signals.SellThreshold,
		Indicators:          cfg.Signals.Indicators,
		TopNBuys:            cfg.Backtest.TopNBuys,
		AllocateEqualOnBuy:  cfg.Backtest.AllocateEqualOnBuy,
		MaxDailyExposurePct: cfg.Backtest.MaxDailyExposurePct,
	}
}

func dailyFilepath(dir string, t time.Time) string {
	return filepath.Join(dir, "runs", t.Format("2006-01-02")+".jsonl")
}

// Append writes one record to today's run file, assigning a run id and
// timestamp when the caller left them empty.
func Append(dir string, rec Record) error {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if rec.Time == "" {
		rec.Time = now.Format(time.RFC3339)
	}

	p := dailyFilepath(dir, now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips run files whose modification time fell out of the
// retention window. Already-compressed files are left alone; a zero or negative
// retention disables compaction.
func CompressOlder(dir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := filepath.Join(dir, "runs")
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := os.Stat(p)
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}

		in, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer in.Close()

		out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		if _, err := io.Copy(gw, in); err != nil {
			_ = gw.Close()
			_ = out.Close()
			return nil
		}
		_ = gw.Close()
		_ = out.Close()
		return os.Remove(p)
	})
}
