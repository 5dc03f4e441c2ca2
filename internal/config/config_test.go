package config

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STRICT_STARTUP",
		"X_API_KEY", "X_API_SECRET", "X_ACCESS_TOKEN", "X_ACCESS_TOKEN_SECRET",
		"X_USERNAME", "X_API_BASE_URL", "X_RATE_LIMIT_RPS",
		"CACHE_FILE", "GENERATION_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL",
		"GEMINI_BASE_URL", "GENERATION_MAX_RETRIES",
		"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model",
		"ARK_TEMPERATURE", "ARK_TOP_P", "ARK_MAX_TOKENS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":3001" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if !cfg.Server.StrictStartup {
		t.Fatal("expected strict startup by default")
	}
	if cfg.Cache.Path != "cached-tweets.json" {
		t.Fatalf("unexpected cache path: %s", cfg.Cache.Path)
	}
	if cfg.Generation.Provider != ProviderGemini {
		t.Fatalf("unexpected provider: %s", cfg.Generation.Provider)
	}
	if cfg.Generation.MaxRetries != 2 {
		t.Fatalf("unexpected max retries: %d", cfg.Generation.MaxRetries)
	}
	if cfg.X.BaseURL != "https://api.twitter.com" {
		t.Fatalf("unexpected X base url: %s", cfg.X.BaseURL)
	}
	if cfg.X.RateLimit != 1 {
		t.Fatalf("unexpected rate limit: %v", cfg.X.RateLimit)
	}
	if cfg.AI.Enabled() {
		t.Fatal("ark should be disabled without credentials")
	}
}

func TestLoadServerAddr(t *testing.T) {
	cases := []struct {
		port    string
		want    string
		wantErr bool
	}{
		{port: "8080", want: ":8080"},
		{port: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		{port: "80 80", wantErr: true},
	}

	for _, tc := range cases {
		clearEnv(t)
		t.Setenv("PORT", tc.port)

		cfg, err := loadServerConfig()
		if tc.wantErr {
			if err == nil {
				t.Fatalf("PORT=%q: expected error", tc.port)
			}
			continue
		}
		if err != nil {
			t.Fatalf("PORT=%q: unexpected error %v", tc.port, err)
		}
		if cfg.Addr != tc.want {
			t.Fatalf("PORT=%q: got %s want %s", tc.port, cfg.Addr, tc.want)
		}
	}
}

func TestXConfigValidateNamesMissingVariables(t *testing.T) {
	cfg := XConfig{APIKey: "k", AccessToken: "t"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, name := range []string{"X_API_SECRET", "X_ACCESS_TOKEN_SECRET"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not name %s", err, name)
		}
	}
	if strings.Contains(err.Error(), "X_API_KEY,") || strings.Contains(err.Error(), "X_USERNAME") {
		t.Fatalf("error %q names a variable that is set or optional", err)
	}

	full := XConfig{APIKey: "k", APISecret: "s", AccessToken: "t", AccessTokenSecret: "ts"}
	if err := full.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"GENERATION_PROVIDER":    "openai",
		"GENERATION_MAX_RETRIES": "three",
		"X_RATE_LIMIT_RPS":       "0",
		"STRICT_STARTUP":         "maybe",
		"ARK_TEMPERATURE":        "hot",
	}

	for key, value := range cases {
		clearEnv(t)
		t.Setenv(key, value)
		if _, err := Load(); err == nil {
			t.Fatalf("%s=%q: expected error", key, value)
		}
	}
}

func TestLoadNegativeRetriesClampToZero(t *testing.T) {
	clearEnv(t)
	t.Setenv("GENERATION_MAX_RETRIES", "-4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Generation.MaxRetries != 0 {
		t.Fatalf("expected 0 retries, got %d", cfg.Generation.MaxRetries)
	}
}
