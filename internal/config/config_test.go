package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Shops.Names) != 3 {
		t.Errorf("default shops = %v", cfg.Shops.Names)
	}
	if cfg.Ledger.DeleteBatch != 500 {
		t.Errorf("default delete batch = %d", cfg.Ledger.DeleteBatch)
	}
	if cfg.Ledger.PollInterval != 2*time.Second {
		t.Errorf("default poll interval = %v", cfg.Ledger.PollInterval)
	}
}

func TestLoadShopListFromEnv(t *testing.T) {
	t.Setenv("ORDERPULSE_SHOPS", "가게하나, 가게둘 ,,가게셋")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"가게하나", "가게둘", "가게셋"}
	if len(cfg.Shops.Names) != len(want) {
		t.Fatalf("shops = %v, want %v", cfg.Shops.Names, want)
	}
	for i := range want {
		if cfg.Shops.Names[i] != want[i] {
			t.Errorf("shops[%d] = %q, want %q", i, cfg.Shops.Names[i], want[i])
		}
	}
}

func TestValidateRejectsEmptyShopList(t *testing.T) {
	cfg := &Config{}
	cfg.Ledger.DeleteBatch = 500
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty shop list")
	}
}
