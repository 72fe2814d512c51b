// Package pipeline orchestrates invoice analysis end to end: country
// detection, structured extraction, per-item tariff resolution, and the
// final rollup.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tariff-cli/internal/invoice"
	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/internal/tariff"
)

// Analyzer runs the full analysis for one invoice document.
type Analyzer struct {
	detector    *invoice.CountryDetector
	extractor   *invoice.Extractor
	resolver    *tariff.Resolver
	concurrency int
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithConcurrency bounds parallel per-item tariff resolution. Values below 1
// mean sequential processing.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		a.concurrency = n
	}
}

// New creates an Analyzer from its three stages.
func New(detector *invoice.CountryDetector, extractor *invoice.Extractor, resolver *tariff.Resolver, opts ...Option) *Analyzer {
	a := &Analyzer{
		detector:    detector,
		extractor:   extractor,
		resolver:    resolver,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze processes one invoice document. The only error it returns is
// invoice.ErrEmptyInput; every downstream fault degrades to a partial result
// instead of aborting.
func (a *Analyzer) Analyze(ctx context.Context, in invoice.Input) (*model.AnalysisResult, error) {
	id := uuid.New().String()
	log := zap.L().With(zap.String("analysis_id", id))
	log.Info("pipeline: starting invoice analysis")

	inv, err := a.extractor.Extract(ctx, in)
	if err != nil {
		return nil, err
	}

	// Detected country takes precedence over whatever the extractor pulled
	// from the document body; the extractor's value is the fallback.
	detection := a.detector.Detect(in.Text)
	country := detection.Country
	if country == "Unknown" && inv.CountryOfOrigin != "" {
		country = inv.CountryOfOrigin
	}
	log.Info("pipeline: detected country of origin",
		zap.String("country", country),
		zap.String("method", string(detection.Method)),
		zap.String("confidence", string(detection.Confidence)),
	)

	analyses := a.resolveItems(ctx, inv.LineItems, country)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ta := tariff.Aggregate(analyses, country)
	log.Info("pipeline: analysis complete",
		zap.Int("items", len(analyses)),
		zap.Float64("total_tariff_cost", ta.TotalTariffCost),
	)

	return &model.AnalysisResult{
		ID:              id,
		VendorName:      inv.VendorName,
		CountryOfOrigin: country,
		LineItems:       inv.LineItems,
		TotalAmount:     inv.TotalAmount,
		Country:         detection,
		Tariff:          ta,
	}, nil
}

// resolveItems resolves each line item, optionally in parallel, and returns
// the analyses in original item order.
func (a *Analyzer) resolveItems(ctx context.Context, items []model.LineItem, country string) []model.ItemAnalysis {
	if len(items) == 0 {
		return nil
	}

	analyses := make([]model.ItemAnalysis, len(items))
	if a.concurrency <= 1 {
		for i, item := range items {
			analyses[i] = a.resolver.Resolve(ctx, item, country)
		}
		return analyses
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, item := range items {
		g.Go(func() error {
			analyses[i] = a.resolver.Resolve(gctx, item, country)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors
	return analyses
}
