// Package app wires configuration into a running discovery service: stores,
// LLM stages, scrapers, pipeline orchestrator, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/api"
	"github.com/salescout/discovery/internal/artifact"
	"github.com/salescout/discovery/internal/config"
	"github.com/salescout/discovery/internal/crawl"
	"github.com/salescout/discovery/internal/crawl/scrape"
	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/importer"
	"github.com/salescout/discovery/internal/intent"
	"github.com/salescout/discovery/internal/llm"
	"github.com/salescout/discovery/internal/logging"
	"github.com/salescout/discovery/internal/metrics"
	"github.com/salescout/discovery/internal/notify"
	"github.com/salescout/discovery/internal/pipeline"
	"github.com/salescout/discovery/internal/ranking"
	"github.com/salescout/discovery/internal/search"
	"github.com/salescout/discovery/internal/store/memory"
	"github.com/salescout/discovery/internal/store/postgres"
)

// App holds the assembled service.
type App struct {
	Cfg          config.Config
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	Orchestrator *pipeline.Orchestrator
	Server       *api.Server

	// Memory is the in-memory store when db.provider is "memory", for
	// seeding projects in local runs. Nil otherwise.
	Memory *memory.Store

	closers []func()
}

// New builds the full dependency graph from cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Cfg: cfg, Logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	projects, products, err := a.buildStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	artifacts, err := a.buildArtifacts(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	client := llm.NewClient(llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLMTimeout(),
	})

	fetcher := scrape.NewFetcher(scrape.FetchConfig{
		UserAgent:       cfg.Crawl.UserAgent,
		Timeout:         time.Duration(cfg.Crawl.TimeoutSeconds) * time.Second,
		DomainRPS:       cfg.Crawl.DomainRPS,
		HeadlessEnabled: cfg.Crawl.HeadlessEnabled,
		HeadlessTimeout: time.Duration(cfg.Crawl.HeadlessTimeout) * time.Second,
	})
	a.closers = append(a.closers, fetcher.Close)

	factory := crawl.NewFactory(
		scrape.NewLazada(fetcher, logger.Named("lazada")),
		scrape.NewTiki(fetcher, logger.Named("tiki")),
	)
	dispatcher := crawl.NewDispatcher(crawl.DispatcherConfig{
		GlobalBudget:      cfg.Crawl.GlobalBudget,
		ExcludedPlatforms: cfg.Crawl.ExcludedPlatforms,
	}, factory, logger.Named("crawl"))

	a.Registry = prometheus.NewRegistry()
	m := metrics.New(a.Registry)

	orch, err := pipeline.NewOrchestrator(pipeline.Config{
		ExcludedPlatforms: cfg.Crawl.ExcludedPlatforms,
		CompletionTopic:   cfg.Notify.Topic,
	}, pipeline.Deps{
		Projects:  projects,
		Parser:    intent.NewParser(client, logger.Named("intent")),
		Extractor: intent.NewExtractor(client, logger.Named("criteria")),
		Validator: intent.NewValidator(client, logger.Named("criteria")),
		Searcher: search.NewAgent(client, search.Config{
			AnalyzeRetries: cfg.Search.AnalyzeRetries,
			AnalyzeBackoff: cfg.AnalyzeBackoff(),
			LinkRetries:    cfg.Search.LinkRetries,
			LinkBackoff:    cfg.LinkBackoff(),
		}, logger.Named("search")),
		Crawler:   dispatcher,
		Ranker:    ranking.NewAgent(client, logger.Named("ranking")),
		Importer:  importer.New(products, discovery.SystemClock{}, logger.Named("importer")),
		Notifier:  notifier,
		Artifacts: artifacts,
		Metrics:   m,
		Logger:    logger.Named("pipeline"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	a.Orchestrator = orch

	a.Server = api.NewServer(orch, api.Config{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}, a.Registry, logger.Named("api"))
	return a, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) buildStores(ctx context.Context) (discovery.ProjectStore, discovery.ProductStore, error) {
	switch a.Cfg.DB.Provider {
	case "postgres":
		st, err := postgres.New(ctx, a.Cfg.DB.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		return st, st, nil
	case "memory", "":
		st := memory.New()
		a.Memory = st
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown db provider %q", a.Cfg.DB.Provider)
	}
}

func (a *App) buildNotifier(ctx context.Context) (discovery.Publisher, error) {
	switch a.Cfg.Notify.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, a.Cfg.Notify.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		p, err := notify.NewPubSub(client)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	case "memory":
		return notify.NewMemory(), nil
	case "noop", "":
		return notify.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", a.Cfg.Notify.Provider)
	}
}

func (a *App) buildArtifacts(ctx context.Context) (discovery.ArtifactStore, error) {
	switch a.Cfg.Artifact.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return artifact.NewGCS(client, a.Cfg.Artifact.Bucket)
	case "local":
		return artifact.NewLocal(a.Cfg.Artifact.Dir)
	case "memory":
		return artifact.NewMemory(), nil
	case "noop", "":
		return artifact.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown artifact provider %q", a.Cfg.Artifact.Provider)
	}
}
