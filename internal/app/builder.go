package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"tribune/internal/assessment"
	"tribune/internal/config"
	"tribune/internal/decision"
	"tribune/internal/ledger"
	"tribune/internal/orchestrator"
	"tribune/internal/portfolio"
	"tribune/internal/riskgate"
	"tribune/internal/signal"
	pipelinehttp "tribune/internal/transport/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// build wires the dependency graph: ledger, portfolio provider, adapters,
// risk gate, context store, orchestrator, HTTP server.
func build(cfg *config.Config) (*App, error) {
	led, err := buildLedger(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	book, err := portfolio.NewFileProvider(cfg.Portfolio.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("loading portfolio snapshot: %w", err)
	}

	regimeAdapter, err := assessment.NewRegimeAdapter(&assessment.HTTPRegimeClient{
		BaseURL:  cfg.Collaborators.Regime.BaseURL,
		APIToken: cfg.Collaborators.Regime.APIToken,
		Client:   &http.Client{Timeout: cfg.Pipeline.RegimeTimeout() + time.Second},
	}, cfg.Collaborators.Regime.LookbackDays)
	if err != nil {
		return nil, err
	}
	eventAdapter, err := assessment.NewEventRiskAdapter(&assessment.HTTPEventClient{
		BaseURL:  cfg.Collaborators.Events.BaseURL,
		APIToken: cfg.Collaborators.Events.APIToken,
		Client:   &http.Client{Timeout: cfg.Pipeline.EventTimeout() + time.Second},
	}, cfg.Collaborators.Events.VetoKinds, cfg.Collaborators.Events.VetoWindow())
	if err != nil {
		return nil, err
	}

	gate, err := riskgate.New(buildLimits(cfg.Risk))
	if err != nil {
		return nil, err
	}

	store := signal.NewStore(led, uuid.NewString)
	cache := decision.NewCache(cfg.Pipeline.CacheTTL())
	orch := orchestrator.New(orchestrator.Config{
		RegimeTimeout: cfg.Pipeline.RegimeTimeout(),
		EventTimeout:  cfg.Pipeline.EventTimeout(),
		RegimeRetry: orchestrator.RetryPolicy{
			MaxRetries: cfg.Pipeline.RegimeMaxRetries,
			Backoff:    cfg.Pipeline.Backoff(),
			MaxBackoff: cfg.Pipeline.BackoffMax(),
		},
		EventRetry: orchestrator.RetryPolicy{
			MaxRetries: cfg.Pipeline.EventMaxRetries,
			Backoff:    cfg.Pipeline.Backoff(),
			MaxBackoff: cfg.Pipeline.BackoffMax(),
		},
	}, store, regimeAdapter, eventAdapter, gate, book, led, cache)

	server, err := pipelinehttp.NewServer(cfg.App.HTTPAddr, orch)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:    cfg,
		led:    led,
		book:   book,
		orch:   orch,
		server: server,
	}, nil
}

func buildLedger(cfg config.LedgerConfig) (ledger.Ledger, error) {
	if !cfg.Persistent() {
		return ledger.NewMemoryLedger(), nil
	}
	return ledger.NewGormLedger(cfg.Path)
}

func buildLimits(cfg config.RiskConfig) riskgate.Limits {
	// Viper lowercases map keys; sector names in the book are upper-case.
	overrides := make(map[string]decimal.Decimal, len(cfg.SectorOverrides))
	for sector, v := range cfg.SectorOverrides {
		overrides[strings.ToUpper(sector)] = decimal.NewFromFloat(v)
	}
	return riskgate.Limits{
		SectorLimit:          decimal.NewFromFloat(cfg.SectorLimit),
		SectorOverrides:      overrides,
		CorrelationThreshold: decimal.NewFromFloat(cfg.CorrelationThreshold),
		CVaRBudget:           decimal.NewFromFloat(cfg.CVaRBudget),
		CVaRConfidence:       cfg.CVaRConfidence,
	}
}
