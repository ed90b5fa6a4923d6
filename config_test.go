package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ROOM_TYPE", "")
	t.Setenv("MAX_CLIENTS", "")
	t.Setenv("SERVER_ADDR", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoomType != RoomFree || cfg.MaxClients != 25 || cfg.ServerAddr != ":2567" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Monetized() {
		t.Error("free room should not be monetized")
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	for _, k := range []string{"ROOM_TYPE", "NIMIQ_HOT_ADDRESS", "NIMIQ_LUNA_TRANSACTION_FEE", "NIMIQ_LUNA_PRIZE", "MAX_CLIENTS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	path := filepath.Join(t.TempDir(), "room.env")
	content := "ROOM_TYPE=earn\nNIMIQ_HOT_ADDRESS=NQ00 HOT\nNIMIQ_LUNA_TRANSACTION_FEE=138\nNIMIQ_LUNA_PRIZE=1000\nMAX_CLIENTS=8\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoomType != RoomEarn || cfg.HotAddress != "NQ00 HOT" || cfg.Prize != 1000 || cfg.MaxClients != 8 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("room type", func(t *testing.T) {
		t.Setenv("ROOM_TYPE", "casino")
		if _, err := LoadConfig(); !errors.Is(err, ErrInvalidRoomType) {
			t.Errorf("expected ErrInvalidRoomType, got %v", err)
		}
	})
	t.Run("max clients", func(t *testing.T) {
		t.Setenv("ROOM_TYPE", "free")
		t.Setenv("MAX_CLIENTS", "lots")
		if _, err := LoadConfig(); err == nil {
			t.Error("expected parse error")
		}
	})
	t.Run("negative lunas", func(t *testing.T) {
		t.Setenv("ROOM_TYPE", "free")
		t.Setenv("NIMIQ_LUNA_PRIZE", "-5")
		if _, err := LoadConfig(); err == nil {
			t.Error("expected error for negative amount")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid paid", func(c *Config) {}, nil},
		{"earn needs no cold wallet", func(c *Config) { c.RoomType = RoomEarn; c.ColdAddress = ""; c.EntryFee = 0 }, nil},
		{"missing hot address", func(c *Config) { c.HotAddress = "" }, ErrMissingSetting},
		{"missing prize", func(c *Config) { c.Prize = 0 }, ErrMissingSetting},
		{"missing fee", func(c *Config) { c.TransactionFee = 0 }, ErrMissingSetting},
		{"missing cold address", func(c *Config) { c.ColdAddress = "" }, ErrMissingSetting},
		{"missing entry fee", func(c *Config) { c.EntryFee = 0 }, ErrMissingSetting},
		{"missing game fee", func(c *Config) { c.ColdGameFee = 0 }, ErrMissingSetting},
		{"bad room type", func(c *Config) { c.RoomType = "X" }, ErrInvalidRoomType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := paidConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigPrizeRatio(t *testing.T) {
	cfg := paidConfig()

	// (5*1000 + 7*138) / (10000 + 7*138) = 0.54
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid ratio rejected: %v", err)
	}

	cfg.Prize = 2000
	// (10000 + 966) / 10966 = 1.0
	if err := cfg.Validate(); err == nil {
		t.Error("prize ratio above 0.9 should be rejected")
	}
}

func TestConfigFreeRoomSkipsWalletChecks(t *testing.T) {
	cfg := Config{RoomType: RoomFree, MaxClients: 1}
	if err := cfg.Validate(); err != nil {
		t.Errorf("free room: %v", err)
	}
	cfg.MaxClients = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero max clients should be rejected")
	}
}
