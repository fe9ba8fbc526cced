package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Region != "" {
		t.Errorf("Region = %q; want empty", cfg.Region)
	}
	if cfg.ServerID != "" {
		t.Errorf("ServerID = %q; want empty", cfg.ServerID)
	}
	if cfg.SecurityPolicy != "TransferSecurityPolicy-2020-06" {
		t.Errorf("SecurityPolicy = %q", cfg.SecurityPolicy)
	}
	if cfg.PollIntervalSeconds != 5 {
		t.Errorf("PollIntervalSeconds = %d; want 5", cfg.PollIntervalSeconds)
	}
	if cfg.PollTimeoutMinutes != 10 {
		t.Errorf("PollTimeoutMinutes = %d; want 10", cfg.PollTimeoutMinutes)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Region:              "eu-central-1",
		ServerID:            "s-1234567890abcdef0",
		SecurityPolicy:      "TransferSecurityPolicy-2022-03",
		PollIntervalSeconds: 2,
		PollTimeoutMinutes:  3,
	}

	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip = %+v; want %+v", loaded, cfg)
	}
}

func TestSave_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	if err := Save(&Config{}, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config.toml permissions = %o; want 600", perm)
	}
}

func TestSet_ValidValues(t *testing.T) {
	cfg := &Config{}

	tests := []struct {
		key   string
		value string
	}{
		{"region", "us-west-2"},
		{"server_id", "s-1234567890abcdef0"},
		{"security_policy", "TransferSecurityPolicy-2020-06"},
		{"poll_interval_seconds", "15"},
		{"poll_timeout_minutes", "30"},
	}
	for _, tc := range tests {
		if err := cfg.Set(tc.key, tc.value); err != nil {
			t.Errorf("Set(%q, %q): %v", tc.key, tc.value, err)
		}
	}

	if cfg.Region != "us-west-2" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.ServerID != "s-1234567890abcdef0" {
		t.Errorf("ServerID = %q", cfg.ServerID)
	}
	if cfg.PollIntervalSeconds != 15 {
		t.Errorf("PollIntervalSeconds = %d", cfg.PollIntervalSeconds)
	}
	if cfg.PollTimeoutMinutes != 30 {
		t.Errorf("PollTimeoutMinutes = %d", cfg.PollTimeoutMinutes)
	}
}

func TestSet_InvalidValues(t *testing.T) {
	cfg := &Config{}

	tests := []struct {
		key   string
		value string
	}{
		{"region", "US-WEST-2"},
		{"region", "not a region"},
		{"server_id", "srv-123"},
		{"server_id", "s-123"},
		{"security_policy", "SomeOtherPolicy"},
		{"poll_interval_seconds", "0"},
		{"poll_interval_seconds", "abc"},
		{"poll_timeout_minutes", "-1"},
	}
	for _, tc := range tests {
		if err := cfg.Set(tc.key, tc.value); err == nil {
			t.Errorf("Set(%q, %q) succeeded; want error", tc.key, tc.value)
		}
	}
}

func TestSet_UnknownKey(t *testing.T) {
	cfg := &Config{}
	err := cfg.Set("no_such_key", "x")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "valid keys") {
		t.Errorf("error %q should list valid keys", err)
	}
}

func TestSet_EmptyClearsRegionAndServer(t *testing.T) {
	cfg := &Config{Region: "us-west-2", ServerID: "s-1234567890abcdef0"}

	if err := cfg.Set("region", ""); err != nil {
		t.Errorf("clear region: %v", err)
	}
	if err := cfg.Set("server_id", ""); err != nil {
		t.Errorf("clear server_id: %v", err)
	}
	if cfg.Region != "" || cfg.ServerID != "" {
		t.Errorf("not cleared: %+v", cfg)
	}
}

func TestValidKeys_Sorted(t *testing.T) {
	keys := ValidKeys()
	want := []string{
		"poll_interval_seconds",
		"poll_timeout_minutes",
		"region",
		"security_policy",
		"server_id",
	}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys; want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q; want %q", i, keys[i], want[i])
		}
	}
}

func TestDefaultConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("LAKEGATE_CONFIG_DIR", "/tmp/lakegate-test")
	if got := DefaultConfigDir(); got != "/tmp/lakegate-test" {
		t.Errorf("DefaultConfigDir = %q; want /tmp/lakegate-test", got)
	}
}
