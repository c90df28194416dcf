package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() err=%v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr=%q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL=%v, want %v", cfg.CacheTTL, DefaultCacheTTL)
	}
	if cfg.RefreshDelay != DefaultRefreshDelay {
		t.Errorf("RefreshDelay=%v, want %v", cfg.RefreshDelay, DefaultRefreshDelay)
	}
	if cfg.LLMAPIBase != DefaultLLMBase {
		t.Errorf("LLMAPIBase=%q, want %q", cfg.LLMAPIBase, DefaultLLMBase)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("JIRA_HOST", "https://example.atlassian.net")
	t.Setenv("JIRA_EMAIL", "dev@example.com")
	t.Setenv("JIRA_TOKEN", "secret")
	t.Setenv("PIOJ_CACHE_TTL", "30m")
	t.Setenv("PIOJ_REFRESH_DELAY", "750ms")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() err=%v", err)
	}
	if !cfg.JiraConfigured() {
		t.Error("JiraConfigured()=false with host and token set")
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL=%v, want 30m", cfg.CacheTTL)
	}
	if cfg.RefreshDelay != 750*time.Millisecond {
		t.Errorf("RefreshDelay=%v, want 750ms", cfg.RefreshDelay)
	}
}

func TestFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("PIOJ_CACHE_TTL", "not-a-duration")
	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv() expected error for bad duration")
	}
}

func TestRequireJira(t *testing.T) {
	var cfg Config
	if err := cfg.RequireJira(); err == nil {
		t.Error("RequireJira() nil error with nothing set")
	}

	cfg.JiraHost = "https://example.atlassian.net"
	if err := cfg.RequireJira(); err == nil {
		t.Error("RequireJira() nil error without token")
	}

	cfg.JiraToken = "secret"
	if err := cfg.RequireJira(); err != nil {
		t.Errorf("RequireJira() err=%v with host and token set", err)
	}
}

func TestLLMConfigured(t *testing.T) {
	var cfg Config
	if cfg.LLMConfigured() {
		t.Error("LLMConfigured()=true without key")
	}
	cfg.LLMAPIKey = "sk-test"
	if !cfg.LLMConfigured() {
		t.Error("LLMConfigured()=false with key")
	}
}
