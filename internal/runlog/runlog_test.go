package runlog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finbot/internal/backtest"
	"finbot/internal/store"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	dir := t.TempDir()
	cfg := store.Default()

	if err := Append(dir, Record{Config: Snapshot(cfg)}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := Append(dir, Record{Config: Snapshot(cfg), Summary: backtest.Summary{Trades: 3}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	p := dailyFilepath(dir, time.Now().UTC())
	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("Expected the daily run file at %s: %v", p, err)
	}
	defer f.Close()

	var recs []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("Bad JSONL line: %v", err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].RunID == "" || recs[1].RunID == "" {
		t.Error("Expected run ids to be assigned")
	}
	if recs[0].RunID == recs[1].RunID {
		t.Error("Expected distinct run ids")
	}
	if _, err := time.Parse(time.RFC3339, recs[0].Time); err != nil {
		t.Errorf("Expected an RFC3339 timestamp, got %q", recs[0].Time)
	}
	if recs[1].Summary.Trades != 3 {
		t.Errorf("Expected the summary to roundtrip, got %+v", recs[1].Summary)
	}
}

func TestCompressOlderGzipsStaleFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Append(dir, Record{}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	p := dailyFilepath(dir, time.Now().UTC())
	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(p, stale, stale); err != nil {
		t.Fatal(err)
	}

	if err := CompressOlder(dir, 7); err != nil {
		t.Fatalf("CompressOlder failed: %v", err)
	}

	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Error("Expected the stale plain file to be removed")
	}
	gz, err := os.Open(p + ".gz")
	if err != nil {
		t.Fatalf("Expected a gzip alongside: %v", err)
	}
	defer gz.Close()
	gr, err := gzip.NewReader(gz)
	if err != nil {
		t.Fatalf("Bad gzip file: %v", err)
	}
	defer gr.Close()
	var rec Record
	if err := json.NewDecoder(gr).Decode(&rec); err != nil {
		t.Fatalf("Expected the record to survive compression: %v", err)
	}
	if rec.RunID == "" {
		t.Error("Expected a run id in the compressed record")
	}
}

func TestCompressOlderKeepsFreshFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Append(dir, Record{}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := CompressOlder(dir, 7); err != nil {
		t.Fatalf("CompressOlder failed: %v", err)
	}
	p := dailyFilepath(dir, time.Now().UTC())
	if _, err := os.Stat(p); err != nil {
		t.Errorf("Expected today's file untouched: %v", err)
	}
	if _, err := os.Stat(p + ".gz"); !os.IsNotExist(err) {
		t.Error("Expected no gzip for a fresh file")
	}
}

func TestCompressOlderDisabled(t *testing.T) {
	if err := CompressOlder(filepath.Join(t.TempDir(), "absent"), 0); err != nil {
		t.Errorf("Expected nil for disabled retention, got %v", err)
	}
}
