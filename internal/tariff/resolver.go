// Package tariff resolves duty rates for invoice line items and aggregates
// per-item costs into an analysis.
package tariff

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/internal/resilience"
	"github.com/sells-group/tariff-cli/internal/store"
	"github.com/sells-group/tariff-cli/pkg/anthropic"
)

const htsSystemPrompt = `You are an expert at identifying HTS codes for products based on their descriptions. Only return valid HTS codes or 'unknown' if you're not confident.`

const htsUserPrompt = `You are an expert at identifying Harmonized Tariff Schedule (HTS) codes for products.

Please analyze the following product description and determine the most likely HTS code.
Consider the country of origin (%s) as this may affect the classification.

Product Description: %s

IMPORTANT INSTRUCTIONS:
1. Return ONLY the HTS code in the format XXXX.XX.XX (e.g., 8542.31.00)
2. If you are not confident about the code, return "unknown"
3. Do not make up or guess HTS codes - accuracy is critical
4. Do not include any explanation or additional text

Return ONLY the HTS code or the word "unknown".`

// htsSearchRE finds an HTS-shaped code anywhere in a model response.
var htsSearchRE = regexp.MustCompile(`[0-9]{4}\.[0-9]{2}(?:\.[0-9]{2})?`)

// unknownAnswers are response forms that mean "no code found". Anything in
// this set maps to an empty code; a code is never invented.
var unknownAnswers = map[string]bool{
	"unknown":          true,
	"none":             true,
	"null":             true,
	"n/a":              true,
	"not found":        true,
	"cannot determine": true,
}

// Resolver resolves the tariff rate for a single line item: infers a missing
// HTS code from the product description, then looks up the (code, country)
// pair in the rate store.
type Resolver struct {
	store   store.RateStore
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	timeout time.Duration
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithInference enables HTS code inference through the given client.
func WithInference(client anthropic.Client, mdl string) ResolverOption {
	return func(r *Resolver) {
		r.client = client
		r.model = mdl
	}
}

// WithRateLimit caps inference calls at n per second.
func WithRateLimit(perSecond float64, burst int) ResolverOption {
	return func(r *Resolver) {
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry overrides the retry policy for inference calls.
func WithRetry(cfg resilience.RetryConfig) ResolverOption {
	return func(r *Resolver) {
		r.retry = cfg
	}
}

// WithTimeout bounds each inference call.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// NewResolver creates a Resolver over the given rate store.
func NewResolver(st store.RateStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:   st,
		retry:   resilience.DefaultRetryConfig(),
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the tariff analysis for one line item. Rate lookups and
// inference never fail the item: a missing or unresolvable rate yields cost
// 0 with the N/A record.
func (r *Resolver) Resolve(ctx context.Context, item model.LineItem, country string) model.ItemAnalysis {
	htsCode := strings.TrimSpace(item.HTSCode)
	if htsCode == "" && item.Product != "" && r.client != nil {
		htsCode = r.inferHTSCode(ctx, item.Product, country)
		if htsCode != "" {
			zap.L().Info("tariff: inferred HTS code",
				zap.String("product", item.Product),
				zap.String("hts_code", htsCode),
			)
		} else {
			zap.L().Warn("tariff: no HTS code found for item", zap.String("product", item.Product))
		}
	}
	item.HTSCode = htsCode

	// TotalPrice is settled at the extraction boundary, where an absent
	// field is still observable and gets derived from quantity and unit
	// price. By the time an item reaches the resolver a zero total is a
	// real zero, not a missing value, so it is never overwritten here.
	rec, err := r.store.FetchRate(ctx, htsCode, country)
	if err != nil {
		zap.L().Warn("tariff: rate lookup failed",
			zap.String("hts_code", htsCode),
			zap.String("country", country),
			zap.Error(err),
		)
		rec = model.EmptyRateRecord(htsCode, country)
	}

	ratePct, ok := model.ParseRate(rec.CurrentRate)
	if !ok {
		zap.L().Warn("tariff: invalid current rate value, using 0",
			zap.String("current_rate", rec.CurrentRate),
			zap.String("hts_code", htsCode),
		)
	}

	return model.ItemAnalysis{
		Item:         item,
		Rate:         *rec,
		TariffCost:   item.TotalPrice * (ratePct / 100),
		HTSCodeFound: htsCode != "",
	}
}

// inferHTSCode asks the understanding service for the most likely code.
// Every failure mode (limiter, transport, malformed answer) returns "".
func (r *Resolver) inferHTSCode(ctx context.Context, product, country string) string {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return ""
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := resilience.DoVal(callCtx, r.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return r.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     r.model,
			MaxTokens: 64,
			System:    htsSystemPrompt,
			Messages: []anthropic.Message{
				{Role: "user", Content: fmt.Sprintf(htsUserPrompt, country, product)},
			},
		})
	})
	if err != nil {
		zap.L().Warn("tariff: HTS inference call failed",
			zap.String("product", product),
			zap.Error(err),
		)
		return ""
	}

	answer := strings.TrimSpace(resp.Text())
	if unknownAnswers[strings.ToLower(answer)] {
		return ""
	}
	if code := htsSearchRE.FindString(answer); code != "" {
		return code
	}
	zap.L().Warn("tariff: inference returned invalid HTS code format",
		zap.String("answer", answer),
	)
	return ""
}
