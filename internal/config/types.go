package config

import (
	"strings"
	"time"
)

// Config is the main configuration carrier for the pipeline service.
type Config struct {
	App           AppConfig           `toml:"app"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
	Risk          RiskConfig          `toml:"risk"`
	Portfolio     PortfolioConfig     `toml:"portfolio"`
	Collaborators CollaboratorsConfig `toml:"collaborators"`
	Ledger        LedgerConfig        `toml:"ledger"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// PipelineConfig is the orchestrator surface: per-stage timeouts, per-stage
// retry budgets, shared backoff, and the idempotency retention window.
type PipelineConfig struct {
	RegimeTimeoutSeconds    int `toml:"regime_timeout_seconds"`
	EventTimeoutSeconds     int `toml:"event_timeout_seconds"`
	RegimeMaxRetries        int `toml:"regime_max_retries"`
	EventMaxRetries         int `toml:"event_max_retries"`
	RetryBackoffMS          int `toml:"retry_backoff_ms"`
	RetryBackoffMaxMS       int `toml:"retry_backoff_max_ms"`
	DecisionCacheTTLMinutes int `toml:"decision_cache_ttl_minutes"`
}

func (p PipelineConfig) RegimeTimeout() time.Duration {
	return time.Duration(p.RegimeTimeoutSeconds) * time.Second
}

func (p PipelineConfig) EventTimeout() time.Duration {
	return time.Duration(p.EventTimeoutSeconds) * time.Second
}

func (p PipelineConfig) Backoff() time.Duration {
	return time.Duration(p.RetryBackoffMS) * time.Millisecond
}

func (p PipelineConfig) BackoffMax() time.Duration {
	return time.Duration(p.RetryBackoffMaxMS) * time.Millisecond
}

func (p PipelineConfig) CacheTTL() time.Duration {
	return time.Duration(p.DecisionCacheTTLMinutes) * time.Minute
}

// RiskConfig carries the portfolio limits as plain fractions of book value.
type RiskConfig struct {
	SectorLimit          float64            `toml:"sector_limit"`
	SectorOverrides      map[string]float64 `toml:"sector_overrides"`
	CorrelationThreshold float64            `toml:"correlation_threshold"`
	CVaRBudget           float64            `toml:"cvar_budget"`
	CVaRConfidence       float64            `toml:"cvar_confidence"`
}

type PortfolioConfig struct {
	SnapshotPath string `toml:"snapshot_path"`
	Watch        bool   `toml:"watch"`
}

type CollaboratorsConfig struct {
	Regime RegimeCollaborator `toml:"regime"`
	Events EventCollaborator  `toml:"events"`
}

type RegimeCollaborator struct {
	BaseURL      string `toml:"base_url"`
	APIToken     string `toml:"api_token"`
	LookbackDays int    `toml:"lookback_days"`
}

type EventCollaborator struct {
	BaseURL         string   `toml:"base_url"`
	APIToken        string   `toml:"api_token"`
	VetoKinds       []string `toml:"veto_kinds"`
	VetoWindowHours int      `toml:"veto_window_hours"`
}

func (e EventCollaborator) VetoWindow() time.Duration {
	return time.Duration(e.VetoWindowHours) * time.Hour
}

// LedgerConfig selects the persistent audit store. Empty path keeps the
// ledger in memory.
type LedgerConfig struct {
	Path string `toml:"path"`
}

func (l LedgerConfig) Persistent() bool { return strings.TrimSpace(l.Path) != "" }

// keySet tracks which field paths were explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
