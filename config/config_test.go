package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetConfigDir(dir)
	t.Cleanup(func() { SetConfigDir("") })
	return dir
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	tempConfigDir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Size != 256 {
		t.Fatalf("queue size = %d, want 256", cfg.Queue.Size)
	}
	if cfg.Guard.Action != "warn" {
		t.Fatalf("guard action = %q, want warn", cfg.Guard.Action)
	}
}

func TestLoadAppliesDefaultsToPartialConfig(t *testing.T) {
	dir := tempConfigDir(t)
	yaml := `
channels:
  mattermost:
    baseUrl: https://chat.example.com
    botToken: token123
    allowedUsers: ["alice"]
    mentionOnly: true
webhook:
  port: 8090
  signingSecret: shh
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	mm := cfg.MattermostConfig()
	if mm == nil || mm.BaseURL != "https://chat.example.com" || !mm.MentionOnly {
		t.Fatalf("mattermost section not parsed: %+v", mm)
	}
	if cfg.SlackConfig() != nil {
		t.Fatal("slack section should be nil when absent")
	}
	if cfg.Webhook.Port != 8090 || cfg.Webhook.SigningSecret != "shh" {
		t.Fatalf("webhook section not parsed: %+v", cfg.Webhook)
	}
	if cfg.Queue.Size != 256 {
		t.Fatalf("queue default not applied, got %d", cfg.Queue.Size)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tempConfigDir(t)

	cfg := DefaultConfig()
	cfg.Webhook.Port = 9000
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Webhook.Port != 9000 {
		t.Fatalf("port = %d, want 9000", loaded.Webhook.Port)
	}
}
