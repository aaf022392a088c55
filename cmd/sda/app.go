package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/santoshnarayanan/sda/internal/chunker"
	"github.com/santoshnarayanan/sda/internal/config"
	"github.com/santoshnarayanan/sda/internal/db"
	dbRedis "github.com/santoshnarayanan/sda/internal/db/redis"
	"github.com/santoshnarayanan/sda/internal/domain"
	logpkg "github.com/santoshnarayanan/sda/internal/logger"
	"github.com/santoshnarayanan/sda/internal/metrics"
	chromemrepo "github.com/santoshnarayanan/sda/internal/repository/chromem"
	collectionrepo "github.com/santoshnarayanan/sda/internal/repository/collection"
	"github.com/santoshnarayanan/sda/internal/repository/embcache"
	pointrepo "github.com/santoshnarayanan/sda/internal/repository/point"
	"github.com/santoshnarayanan/sda/internal/repository/qdrant"
	searchrepo "github.com/santoshnarayanan/sda/internal/repository/search"
	chiTransport "github.com/santoshnarayanan/sda/internal/transport/chi"
	"github.com/santoshnarayanan/sda/internal/transport/ollama"
	openaiTransport "github.com/santoshnarayanan/sda/internal/transport/openai"
	"github.com/santoshnarayanan/sda/internal/usecase/answer"
	collectionuc "github.com/santoshnarayanan/sda/internal/usecase/collection"
	embeddinguc "github.com/santoshnarayanan/sda/internal/usecase/embedding"
	healthuc "github.com/santoshnarayanan/sda/internal/usecase/health"
	ingestuc "github.com/santoshnarayanan/sda/internal/usecase/ingest"
	"github.com/santoshnarayanan/sda/internal/usecase/retrieval"
)

// cacheStore is what the embedding cache needs from the key-value side of the index.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// app is the composition root: every shared client is built here once and injected.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	collections *collectionuc.Service
	embed       *embeddinguc.Service
	ingest      *ingestuc.Service
	retrieval   *retrieval.Service
	answer      *answer.Service
	health      *healthuc.Service

	closers []func()
}

// loadConfig resolves the environment and config directory (flags win over ENV and CONFIG_DIR)
// and loads the YAML configuration.
func loadConfig(g *globalOptions) (config.Config, string, error) {
	boot, err := config.LoadBootstrap()
	if err != nil {
		return config.Config{}, "", err
	}
	env := boot.Env
	if g.env != "" {
		env = g.env
	}
	dir := boot.ConfigDir
	if g.configDir != "" {
		dir = g.configDir
	}
	cfg, err := config.Load(env, dir)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, env, nil
}

// newApp wires the index backend, the embedding chain and the use cases.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	metrics.Register()

	backend, pinger, cache, err := a.openIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.collections = collectionuc.New(backend)

	a.embed = embeddinguc.NewService(a.embedderFactory(cache), embeddinguc.Options{
		Dimensions:          cfg.Embedding.Dimensions,
		DocumentInstruction: cfg.Embedding.DocumentInstruction,
		QueryInstruction:    cfg.Embedding.QueryInstruction,
	})

	docs, err := chunker.NewSplitter(chunker.Profile(cfg.Chunking.Document))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("document splitter: %w", err)
	}
	chat, err := chunker.NewSplitter(chunker.Profile(cfg.Chunking.Chat))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("chat splitter: %w", err)
	}

	a.ingest = ingestuc.New(a.collections, a.embed, docs, chat, ingestuc.Options{
		BatchSize:    cfg.Ingest.BatchSize,
		Workers:      cfg.Ingest.Workers,
		MaxFileBytes: cfg.Ingest.MaxFileBytes,
	}, logger)
	a.retrieval = retrieval.New(a.collections, a.embed, cfg.Retrieval.CandidateMultiplier, logger)

	// Pass a nil interface, not a typed nil pointer, when generation is off.
	var generator answer.Generator
	checks := map[string]healthuc.Checker{"embedding": a.embed}
	if cfg.Generation.Model != "" {
		gen := openaiTransport.NewGenerator(openaiTransport.GeneratorConfig{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		})
		generator = gen
		checks["generation"] = gen
	}
	a.answer = answer.New(a.retrieval, generator, cfg.Retrieval.MaxChunks, logger)
	a.health = healthuc.New(pinger, checks)

	return a, nil
}

// openIndex selects the vector index backend by driver.
func (a *app) openIndex(ctx context.Context) (collectionuc.Backend, healthuc.IndexPinger, cacheStore, error) {
	cfg := a.cfg.Index
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		// Valkey with the search module speaks the same FT.* dialect.
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:        cfg.Addrs,
			Password:     cfg.Password,
			WriteTimeout: time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return collectionuc.Backend{}, nil, nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		a.closers = append(a.closers, store.Close)

		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			return collectionuc.Backend{}, nil, nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		a.logger.Info("Connected to index", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))

		keys := db.Keys{Prefix: cfg.KeyPrefix}
		return collectionuc.Backend{
			Collections: collectionrepo.New(store, keys, cfg.FilterFields).WithHNSW(collectionrepo.HNSWConfig{
				M:           cfg.HNSWM,
				EFConstruct: cfg.HNSWEFConstruct,
			}),
			Points: pointrepo.New(store, keys),
			Search: searchrepo.New(store, keys),
		}, store, store, nil

	case config.DriverQdrant:
		client, err := qdrant.NewClient(cfg.URL, qdrant.WithAPIKey(cfg.APIKey))
		if err != nil {
			return collectionuc.Backend{}, nil, nil, err
		}
		repo := qdrant.New(client)
		a.logger.Info("Using Qdrant index", zap.String("url", cfg.URL))
		return collectionuc.Backend{Collections: repo, Points: repo, Search: repo}, client, nil, nil

	case config.DriverMemory:
		repo := chromemrepo.NewInMemory()
		a.logger.Info("Using in-memory index")
		return collectionuc.Backend{Collections: repo, Points: repo, Search: repo}, repo, nil, nil
	}
	return collectionuc.Backend{}, nil, nil, fmt.Errorf("unknown index driver %q", cfg.Driver)
}

// embedderFactory builds the provider chain: provider -> cache -> instrumented.
// Instruction prefixes are applied outermost by the embedding service, so cache keys include them.
func (a *app) embedderFactory(cache cacheStore) embeddinguc.Factory {
	cfg := a.cfg.Embedding
	return func() (domain.Embedder, error) {
		var base domain.Embedder
		switch cfg.Provider {
		case config.ProviderOllama:
			base = ollama.NewEmbedder(cfg.Model, cfg.BaseURL, cfg.Dimensions)
		case config.ProviderOpenAI:
			base = openaiTransport.NewEmbedder(&openaiTransport.Config{
				APIKey:     cfg.APIKey,
				BaseURL:    cfg.BaseURL,
				Model:      cfg.Model,
				Dimensions: cfg.Dimensions,
				Provider:   cfg.Provider,
				Logger:     a.logger,
			})
		default:
			return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
		}

		if cfg.Cache && cache != nil {
			prefix := db.Keys{Prefix: a.cfg.Index.KeyPrefix}.EmbeddingCache(cfg.Provider, cfg.Model)
			base = embcache.New(base, cache, prefix,
				time.Duration(cfg.CacheTTLHours)*time.Hour, metrics.EmbeddingCacheTotal, a.logger)
		}

		a.logger.Info("Embedder created",
			zap.String("provider", cfg.Provider),
			zap.String("model", cfg.Model),
			zap.Int("dimensions", cfg.Dimensions),
			zap.Bool("cache", cfg.Cache && cache != nil),
		)
		return embeddinguc.NewInstrumentedEmbedder(base, cfg.Provider, cfg.Model, cfg.RequestsPerSecond, a.logger), nil
	}
}

// server builds the HTTP API over the app's use cases.
func (a *app) server() *chiTransport.Server {
	return chiTransport.NewServer(a.ingest, a.retrieval, a.answer, a.health, chiTransport.Options{
		DefaultTopK:    a.cfg.Retrieval.DefaultTopK,
		MaxChunks:      a.cfg.Retrieval.MaxChunks,
		MaxUploadBytes: a.cfg.HTTP.MaxUploadBytes,
	}, a.logger)
}

// Close releases backend connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// bootstrap loads config, builds the logger and the app. logEnv overrides the logger flavour
// (the one-shot commands use "cli").
func bootstrap(ctx context.Context, g *globalOptions, logEnv string) (*app, error) {
	cfg, env, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	if logEnv == "" {
		logEnv = env
	}
	level := cfg.Logging.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger, err := logpkg.NewLogger(logEnv, level)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	a.closers = append([]func(){func() { _ = logger.Sync() }}, a.closers...)
	return a, nil
}
