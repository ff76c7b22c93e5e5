package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_JSON5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	raw := `{
  // comments are allowed
  account: "jack",
  composer: {
    temperature: 0.5,
    moods: ["calm"],
    bannedTopics: ["politics", "religion"],
  },
}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Account != "jack" {
		t.Errorf("account = %q, want jack", cfg.Account)
	}
	if cfg.Composer.Temperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", cfg.Composer.Temperature)
	}
	if len(cfg.Composer.Moods) != 1 || cfg.Composer.Moods[0] != "calm" {
		t.Errorf("moods = %v, want [calm]", cfg.Composer.Moods)
	}
	// untouched fields keep their defaults
	if cfg.Composer.MaxTokens != 3300 {
		t.Errorf("maxTokens = %d, want 3300", cfg.Composer.MaxTokens)
	}
	if cfg.Collector.IdleLimit != 10 {
		t.Errorf("idleLimit = %d, want 10", cfg.Collector.IdleLimit)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := "account: jill\ncomposer:\n  temperature: 1.2\n  variant: emulate\n"
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Account != "jill" || cfg.Composer.Variant != "emulate" {
		t.Errorf("unexpected config: account=%q variant=%q", cfg.Account, cfg.Composer.Variant)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoad_AtLeastOneRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(`{retry: {maxRetries: 0}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxRetries != 1 {
		t.Errorf("maxRetries = %d, want 1", cfg.Retry.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults ok", func(c *Config) {}, ""},
		{"temperature too high", func(c *Config) { c.Composer.Temperature = 2.5 }, "temperature"},
		{"negative temperature", func(c *Config) { c.Composer.Temperature = -0.1 }, "temperature"},
		{"no moods", func(c *Config) { c.Composer.Moods = nil }, "moods"},
		{"tiny budget", func(c *Config) { c.Composer.MaxTokens = 50 }, "maxTokens"},
		{"bad variant", func(c *Config) { c.Composer.Variant = "remix" }, "variant"},
		{"bad tokenizer", func(c *Config) { c.Composer.Tokenizer = "bpe" }, "tokenizer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json5")
	cfg := Default()
	cfg.Account = "roundtrip"
	cfg.Composer.BannedTopics = []string{"war"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Account != "roundtrip" || len(got.Composer.BannedTopics) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestNormalizeAccount(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"@Jack", "jack"},
		{"  elon_musk ", "elon_musk"},
		{"we.ird-name!", "weirdname"},
		{"@", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAccount(tt.in); got != tt.want {
			t.Errorf("NormalizeAccount(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveSecret_EnvWins(t *testing.T) {
	t.Setenv("PARROT_"+SecretOpenAIKey, "from-env")
	if got := ResolveSecret(SecretOpenAIKey, "from-file"); got != "from-env" {
		t.Errorf("got %q, want from-env", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("absolute path changed: %q", got)
	}
}
