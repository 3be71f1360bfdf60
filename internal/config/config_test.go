package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "./data/state" || cfg.Journal != "./data/journal.jsonl" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AMM_STATE_DIR", "/tmp/state")
	t.Setenv("AMM_PG_DSN", "postgres://local")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/tmp/state" || cfg.PGDSN != "postgres://local" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "amm.yaml")
	if err := os.WriteFile(path, []byte("in: ops.jsonl\nbatch-size: 7\nretry-backoff: 2s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadReplay(path, nil)
	if err != nil {
		t.Fatalf("load replay: %v", err)
	}
	if cfg.In != "ops.jsonl" || cfg.BatchSize != 7 || cfg.RetryBackoff != 2*time.Second {
		t.Fatalf("unexpected replay config %+v", cfg)
	}
	if !cfg.CheckpointEnabled || cfg.MaxRetries != 5 {
		t.Fatalf("unexpected replay defaults %+v", cfg)
	}
}

func TestLoadReplayValidates(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := LoadReplay("", nil); err == nil {
		t.Fatalf("expected error without input")
	}

	t.Setenv("AMM_IN", "ops.jsonl")
	t.Setenv("AMM_FROM", "10")
	t.Setenv("AMM_TO", "5")
	if _, err := LoadReplay("", nil); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestLoadAggregate(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AMM_WINDOW", "1h")
	t.Setenv("AMM_RECOMPUTE_FROM", "2024-01-01T00:00:00Z")

	cfg, err := LoadAggregate("", nil)
	if err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	if cfg.Window != time.Hour || cfg.RecomputeFrom != 1704067200 {
		t.Fatalf("unexpected aggregate config %+v", cfg)
	}
	if cfg.Input != cfg.Journal {
		t.Fatalf("expected input to default to the journal, got %q", cfg.Input)
	}

	t.Setenv("AMM_WINDOW", "500ms")
	if _, err := LoadAggregate("", nil); err == nil {
		t.Fatalf("expected error for sub-second window")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]uint64{
		"":                     0,
		"1700000000":           1700000000,
		"1970-01-01T00:01:00Z": 60,
	}
	for input, want := range cases {
		got, err := ParseTimestamp(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q = %d, want %d", input, got, want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}

// chdir switches the working directory for the duration of the test, like
// testing.T.Chdir (Go 1.24+), which the local toolchain does not provide.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}
