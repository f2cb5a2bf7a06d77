package config

import (
	"fmt"
	"strings"
)

// validate performs basic sanity checks after defaults are applied.
func validate(c *Config) error {
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Portfolio.validate(); err != nil {
		return err
	}
	return c.Collaborators.validate()
}

func (p *PipelineConfig) validate() error {
	if p.RegimeTimeoutSeconds <= 0 || p.EventTimeoutSeconds <= 0 {
		return fmt.Errorf("pipeline stage timeouts must be > 0")
	}
	if p.RegimeMaxRetries < 0 || p.EventMaxRetries < 0 {
		return fmt.Errorf("pipeline retry counts must be >= 0")
	}
	if p.DecisionCacheTTLMinutes <= 0 {
		return fmt.Errorf("pipeline.decision_cache_ttl_minutes must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.SectorLimit <= 0 || r.SectorLimit > 1 {
		return fmt.Errorf("risk.sector_limit must be in (0,1]")
	}
	for sector, v := range r.SectorOverrides {
		if v <= 0 || v > 1 {
			return fmt.Errorf("risk.sector_overrides.%s must be in (0,1]", sector)
		}
	}
	if r.CorrelationThreshold <= 0 {
		return fmt.Errorf("risk.correlation_threshold must be > 0")
	}
	if r.CVaRBudget <= 0 {
		return fmt.Errorf("risk.cvar_budget must be > 0")
	}
	if r.CVaRConfidence <= 0 || r.CVaRConfidence >= 1 {
		return fmt.Errorf("risk.cvar_confidence must be in (0,1)")
	}
	return nil
}

func (p *PortfolioConfig) validate() error {
	if strings.TrimSpace(p.SnapshotPath) == "" {
		return fmt.Errorf("portfolio.snapshot_path cannot be empty")
	}
	return nil
}

func (c *CollaboratorsConfig) validate() error {
	if strings.TrimSpace(c.Regime.BaseURL) == "" {
		return fmt.Errorf("collaborators.regime.base_url cannot be empty")
	}
	if strings.TrimSpace(c.Events.BaseURL) == "" {
		return fmt.Errorf("collaborators.events.base_url cannot be empty")
	}
	if c.Regime.LookbackDays <= 0 {
		return fmt.Errorf("collaborators.regime.lookback_days must be > 0")
	}
	if c.Events.VetoWindowHours <= 0 {
		return fmt.Errorf("collaborators.events.veto_window_hours must be > 0")
	}
	return nil
}
