package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
trading:
  start_date: "2024-01-02"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Trading.Symbol != "SOXL" {
		t.Errorf("symbol = %q, want default SOXL", cfg.Trading.Symbol)
	}
	if cfg.Trading.Divisions != 7 {
		t.Errorf("divisions = %d, want 7", cfg.Trading.Divisions)
	}
	if cfg.Trading.Variant != VariantSimple {
		t.Errorf("variant = %q, want simple", cfg.Trading.Variant)
	}
	if cfg.Broker.Retry.MinDelay != 5*time.Second {
		t.Errorf("retry min delay = %v, want 5s", cfg.Broker.Retry.MinDelay)
	}
	if cfg.Scheduler.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", cfg.Scheduler.Timezone)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
trading:
  symbol: TQQQ
  start_date: "2023-06-01"
  divisions: 10
  variant: anti_drawdown
broker:
  retry:
    max_attempts: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Trading.Symbol != "TQQQ" || cfg.Trading.Divisions != 10 {
		t.Errorf("trading = %+v", cfg.Trading)
	}
	if cfg.Trading.Variant != VariantAntiDrawdown {
		t.Errorf("variant = %q", cfg.Trading.Variant)
	}
	if cfg.Broker.Retry.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want 5", cfg.Broker.Retry.MaxAttempts)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidVariant(t *testing.T) {
	path := writeConfig(t, `
trading:
  start_date: "2024-01-02"
  variant: martingale
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for unknown variant")
	}
	if !strings.Contains(err.Error(), "variant") {
		t.Errorf("error = %v, want variant mention", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
	msg := err.Error()
	for _, key := range []string{"trading.symbol", "trading.start_date", "database.path", "scheduler.timezone"} {
		if !strings.Contains(msg, key) {
			t.Errorf("validation error missing %q: %v", key, msg)
		}
	}
}

func TestTradingConfig_Helpers(t *testing.T) {
	tc := TradingConfig{StartDate: "2024-01-02", EndDate: "", FeeRatePct: 0.25}

	start, err := tc.StartTime()
	if err != nil {
		t.Fatalf("StartTime: %v", err)
	}
	if start.Year() != 2024 || start.Month() != time.January || start.Day() != 2 {
		t.Errorf("start = %v", start)
	}

	end, err := tc.EndTime()
	if err != nil {
		t.Fatalf("EndTime: %v", err)
	}
	if !end.IsZero() {
		t.Errorf("empty end date should give zero time, got %v", end)
	}

	if got := tc.FeeRate(); got != 0.0025 {
		t.Errorf("fee rate = %f, want 0.0025", got)
	}

	tc.StartDate = "02/01/2024"
	if _, err := tc.StartTime(); err == nil {
		t.Error("expected parse error for bad start date")
	}
}
