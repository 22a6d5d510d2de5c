// Package app wires the batch orchestrator and the session guardian from
// configuration. Both the HTTP server and the terminal client build on it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kursadbilgin/extraction-orchestrator/internal/config"
	"github.com/kursadbilgin/extraction-orchestrator/internal/dataset"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"github.com/kursadbilgin/extraction-orchestrator/internal/provider"
	"github.com/kursadbilgin/extraction-orchestrator/internal/service"
	"github.com/kursadbilgin/extraction-orchestrator/internal/session"
	"go.uber.org/zap"
)

type Core struct {
	Guardian     *session.Guardian
	Handshake    *session.Handshake
	Prompt       *session.Prompt
	Extractor    *provider.HTTPExtractor
	Presenter    *dataset.Presenter
	Orchestrator *service.Orchestrator
}

// Options carries the optional collaborators. A nil Store keeps the session
// state in memory; a nil Runs disables batch history.
type Options struct {
	Store   session.Store
	Runs    service.BatchRunStore
	Metrics *observability.Metrics
}

func NewCore(cfg *config.Config, logger *zap.Logger, opts Options) (*Core, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore()
	}

	guardian, err := session.NewGuardian(store, session.HubConfig{
		VerifyURL:     cfg.HubVerifyURL,
		SystemID:      cfg.SystemID,
		PublicBaseURL: cfg.PublicBaseURL,
	}, opts.Metrics, logger.Named("session"))
	if err != nil {
		return nil, fmt.Errorf("session guardian: %w", err)
	}

	extractorCfg := provider.ExtractorConfig{
		ExtractorURL: cfg.ExtractorBaseURL(),
		BackendURL:   cfg.BackendAPIURL,
		Timeout:      cfg.RequestTimeout(),
	}
	if name, value, ok := cfg.SessionCookiePair(); ok {
		extractorCfg.SessionCookie = &http.Cookie{Name: name, Value: value}
	}

	extractor, err := provider.NewHTTPExtractor(extractorCfg, guardian, opts.Metrics, logger.Named("extractor"))
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}

	handshake, err := session.NewHandshake(extractor, guardian, opts.Metrics, logger.Named("handshake"))
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	poller, err := service.NewPoller(extractor, cfg.PollInterval(), opts.Metrics, logger.Named("poller"))
	if err != nil {
		return nil, fmt.Errorf("poller: %w", err)
	}

	consolidator, err := service.NewConsolidator(extractor, cfg.ConsolidateConcurrency, opts.Metrics, logger.Named("consolidator"))
	if err != nil {
		return nil, fmt.Errorf("consolidator: %w", err)
	}

	presenter := dataset.NewPresenter()
	orchestrator, err := service.NewOrchestrator(extractor, poller, consolidator, presenter, opts.Runs, opts.Metrics, logger.Named("orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &Core{
		Guardian:     guardian,
		Handshake:    handshake,
		Prompt:       session.NewPrompt(guardian, logger.Named("prompt")),
		Extractor:    extractor,
		Presenter:    presenter,
		Orchestrator: orchestrator,
	}, nil
}

// Start runs the recovery prompt until ctx is done.
func (c *Core) Start(ctx context.Context) {
	go c.Prompt.Run(ctx)
}

func (c *Core) Close() {
	c.Orchestrator.Close()
}
