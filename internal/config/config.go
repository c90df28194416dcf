// Package config assembles the process configuration from environment
// variables. Jira credentials are intentionally env-only so they never
// land in the database or in definition files.
package config

import (
	"fmt"
	"time"

	"github.com/pioj/pioj/internal/platform/env"
)

// Defaults for the optional knobs.
const (
	DefaultAddr         = ":8734"
	DefaultDBPath       = "pioj.db"
	DefaultCacheTTL     = time.Hour
	DefaultRefreshDelay = 2 * time.Second
	DefaultLLMBase      = "https://api.openai.com/v1"
	DefaultLLMModel     = "gpt-4o-mini"
)

// Config carries everything the server and CLI need at startup.
type Config struct {
	// Jira connection. Host and Token are required for any command
	// that talks to the tracker; Email switches auth from bearer to
	// basic.
	JiraHost            string
	JiraEmail           string
	JiraToken           string
	JiraEstimationField string
	JiraSprintField     string

	// HTTP server.
	Addr string

	// Storage.
	DBPath   string
	CacheTTL time.Duration

	// Refresh-all pacing: minimum start-to-start delay between
	// consecutive workstream resolutions.
	RefreshDelay time.Duration

	// Optional LLM summarizer. Disabled when APIKey is empty.
	LLMAPIKey  string
	LLMAPIBase string
	LLMModel   string
}

// FromEnv reads the full configuration. Missing Jira credentials are
// not an error here; commands that need them call RequireJira.
func FromEnv() (Config, error) {
	cfg := Config{
		JiraHost:            env.String("JIRA_HOST", ""),
		JiraEmail:           env.String("JIRA_EMAIL", ""),
		JiraToken:           env.String("JIRA_TOKEN", ""),
		JiraEstimationField: env.String("JIRA_ESTIMATION_FIELD", ""),
		JiraSprintField:     env.String("JIRA_SPRINT_FIELD", ""),
		Addr:                env.String("PIOJ_ADDR", DefaultAddr),
		DBPath:              env.String("PIOJ_DB", DefaultDBPath),
		LLMAPIKey:           env.String("LLM_API_KEY", ""),
		LLMAPIBase:          env.String("LLM_API_BASE", DefaultLLMBase),
		LLMModel:            env.String("LLM_MODEL", DefaultLLMModel),
	}

	var err error
	if cfg.CacheTTL, err = env.Duration("PIOJ_CACHE_TTL", DefaultCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshDelay, err = env.Duration("PIOJ_REFRESH_DELAY", DefaultRefreshDelay); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// JiraConfigured reports whether the tracker connection is usable.
func (c Config) JiraConfigured() bool {
	return c.JiraHost != "" && c.JiraToken != ""
}

// LLMConfigured reports whether the summarizer is usable.
func (c Config) LLMConfigured() bool {
	return c.LLMAPIKey != ""
}

// RequireJira returns an error naming whichever credential is missing.
func (c Config) RequireJira() error {
	if c.JiraHost == "" {
		return fmt.Errorf("JIRA_HOST is not set")
	}
	if c.JiraToken == "" {
		return fmt.Errorf("JIRA_TOKEN is not set")
	}
	return nil
}
