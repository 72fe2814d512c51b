package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tariff-cli/internal/invoice"
	"github.com/sells-group/tariff-cli/internal/pipeline"
	"github.com/sells-group/tariff-cli/internal/resilience"
	"github.com/sells-group/tariff-cli/internal/store"
	"github.com/sells-group/tariff-cli/internal/tariff"
	"github.com/sells-group/tariff-cli/pkg/anthropic"
)

// env bundles the wired pipeline with the resources it owns.
type env struct {
	Analyzer  *pipeline.Analyzer
	Extractor *invoice.Extractor
	Detector  *invoice.CountryDetector
	Store     store.RateStore
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close rate store", zap.Error(err))
	}
}

// initAnalyzer wires the full analysis pipeline from config: rate store,
// extraction cascade, and tariff resolver.
func initAnalyzer(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var client anthropic.Client
	if cfg.Anthropic.Key != "" {
		client = anthropic.NewClient(cfg.Anthropic.Key)
	}

	pat := invoice.NewPatternExtractor()
	var strategies []invoice.Strategy
	if client != nil {
		u := invoice.NewUnderstander(client, cfg.Anthropic.Model,
			time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)
		strategies = append(strategies, invoice.BreakerStrategy{
			Inner: invoice.UnderstandingStrategy{U: u},
			CB: resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
				cfg.Anthropic.BreakerThreshold, cfg.Anthropic.BreakerResetSecs)),
		})
	} else {
		zap.L().Info("no anthropic key configured, text understanding disabled")
	}
	strategies = append(strategies,
		invoice.OCRPatternStrategy{P: pat},
		invoice.PatternStrategy{P: pat},
	)

	opts := []tariff.ResolverOption{
		tariff.WithRateLimit(cfg.Tariff.RateLimitPerSec, cfg.Tariff.RateLimitBurst),
		tariff.WithRetry(resilience.FromRetryConfig(cfg.Tariff.MaxRetries, 0)),
		tariff.WithTimeout(time.Duration(cfg.Tariff.TimeoutSecs) * time.Second),
	}
	if client != nil {
		opts = append(opts, tariff.WithInference(client, cfg.Anthropic.Model))
	}

	detector := invoice.NewCountryDetector()
	if cfg.Pipeline.CountryFile != "" {
		detector, err = invoice.NewCountryDetectorFromFile(cfg.Pipeline.CountryFile)
		if err != nil {
			return nil, err
		}
	}
	extractor := invoice.NewExtractor(strategies...)
	analyzer := pipeline.New(
		detector,
		extractor,
		tariff.NewResolver(st, opts...),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
	)

	return &env{Analyzer: analyzer, Extractor: extractor, Detector: detector, Store: st}, nil
}

// initStore opens the configured rate store backend and runs migrations.
func initStore(ctx context.Context) (store.RateStore, error) {
	var (
		st  store.RateStore
		err error
	)
	switch cfg.Store.Driver {
	case "memory", "":
		st = store.NewMemoryWithReferenceData()
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	zap.L().Info("rate store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}
