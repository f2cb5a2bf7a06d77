package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9985"

	defaultRegimeTimeoutSeconds = 10
	defaultEventTimeoutSeconds  = 20
	defaultMaxRetries           = 2
	defaultRetryBackoffMS       = 250
	defaultRetryBackoffMaxMS    = 5000
	defaultCacheTTLMinutes      = 240

	defaultSectorLimit          = 0.10
	defaultCorrelationThreshold = 0.05
	defaultCVaRBudget           = 0.02
	defaultCVaRConfidence       = 0.95

	defaultSnapshotPath = "configs/portfolio.yaml"
	defaultLookbackDays = 30
	defaultVetoWindowH  = 48
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Portfolio.applyDefaults(keys)
	c.Collaborators.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("pipeline.regime_timeout_seconds", &p.RegimeTimeoutSeconds, defaultRegimeTimeoutSeconds),
		intFieldDefault("pipeline.event_timeout_seconds", &p.EventTimeoutSeconds, defaultEventTimeoutSeconds),
		intFieldDefault("pipeline.regime_max_retries", &p.RegimeMaxRetries, defaultMaxRetries),
		intFieldDefault("pipeline.event_max_retries", &p.EventMaxRetries, defaultMaxRetries),
		intFieldDefault("pipeline.retry_backoff_ms", &p.RetryBackoffMS, defaultRetryBackoffMS),
		intFieldDefault("pipeline.retry_backoff_max_ms", &p.RetryBackoffMaxMS, defaultRetryBackoffMaxMS),
		intFieldDefault("pipeline.decision_cache_ttl_minutes", &p.DecisionCacheTTLMinutes, defaultCacheTTLMinutes),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.sector_limit", &r.SectorLimit, defaultSectorLimit),
		floatFieldDefault("risk.correlation_threshold", &r.CorrelationThreshold, defaultCorrelationThreshold),
		floatFieldDefault("risk.cvar_budget", &r.CVaRBudget, defaultCVaRBudget),
		floatFieldDefault("risk.cvar_confidence", &r.CVaRConfidence, defaultCVaRConfidence),
	)
}

func (p *PortfolioConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("portfolio.snapshot_path", &p.SnapshotPath, defaultSnapshotPath),
	)
}

func (c *CollaboratorsConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("collaborators.regime.lookback_days", &c.Regime.LookbackDays, defaultLookbackDays),
		intFieldDefault("collaborators.events.veto_window_hours", &c.Events.VetoWindowHours, defaultVetoWindowH),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
