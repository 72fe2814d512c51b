package invoice

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/internal/resilience"
)

// ErrEmptyInput is returned by Extract when the document text is empty or
// whitespace-only. It is the only error the cascade ever returns.
var ErrEmptyInput = eris.New("invoice: empty input text")

// Input carries the raw document text plus, when a separate OCR pass ran,
// its alternate rendering of the same document.
type Input struct {
	Text    string
	OCRText string
}

// Strategy is one extraction approach. A nil result or a non-nil error both
// mean the strategy produced nothing usable; the cascade moves on.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, in Input) (*model.StructuredInvoice, error)
}

// Valid reports whether a strategy result is acceptable: a non-empty vendor
// name and at least one line item. Strategies that parse JSON enforce
// per-item key presence at their own boundary.
func Valid(inv *model.StructuredInvoice) bool {
	return inv != nil && inv.VendorName != "" && len(inv.LineItems) > 0
}

// Extractor runs strategies in priority order and returns the first valid
// result. The last strategy is the fallback and its result is returned
// without validation. Strategy faults are absorbed: when every stage errors
// the caller gets a minimal invoice, never an error, except for empty input.
type Extractor struct {
	strategies []Strategy
}

// NewExtractor builds a cascade over the given strategies, tried in order.
func NewExtractor(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Extract runs the cascade over in.
func (e *Extractor) Extract(ctx context.Context, in Input) (*model.StructuredInvoice, error) {
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.OCRText) == "" {
		return nil, ErrEmptyInput
	}

	for i, s := range e.strategies {
		inv, err := s.Attempt(ctx, in)
		if err != nil {
			zap.L().Warn("invoice: extraction strategy failed",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		if inv == nil {
			zap.L().Debug("invoice: strategy produced no result",
				zap.String("strategy", s.Name()),
			)
			continue
		}
		if !Valid(inv) {
			// The last stage is the structural fallback: whatever it
			// produced stands, even with no line items.
			if i < len(e.strategies)-1 {
				zap.L().Debug("invoice: strategy result rejected",
					zap.String("strategy", s.Name()),
				)
				continue
			}
			zap.L().Warn("invoice: fallback result did not validate, returning it anyway",
				zap.String("strategy", s.Name()),
			)
			return inv, nil
		}
		zap.L().Info("invoice: extraction succeeded",
			zap.String("strategy", s.Name()),
			zap.Int("line_items", len(inv.LineItems)),
		)
		return inv, nil
	}

	zap.L().Warn("invoice: all extraction strategies failed, returning minimal invoice")
	return model.MinimalInvoice(), nil
}

// UnderstandingStrategy adapts an Understander to the cascade.
type UnderstandingStrategy struct {
	U *Understander
}

func (s UnderstandingStrategy) Name() string { return "text_understanding" }

func (s UnderstandingStrategy) Attempt(ctx context.Context, in Input) (*model.StructuredInvoice, error) {
	return s.U.Understand(ctx, in.Text)
}

// OCRPatternStrategy runs the pattern extractor over the alternate OCR
// rendering of the document. It only engages when that rendering is strictly
// longer than the original text; a shorter one recovered less of the
// document and the original stays the better source.
type OCRPatternStrategy struct {
	P *PatternExtractor
}

func (s OCRPatternStrategy) Name() string { return "ocr_pattern_matching" }

func (s OCRPatternStrategy) Attempt(_ context.Context, in Input) (*model.StructuredInvoice, error) {
	if strings.TrimSpace(in.OCRText) == "" {
		return nil, eris.New("invoice: no OCR text available")
	}
	if len(in.OCRText) <= len(in.Text) {
		return nil, eris.New("invoice: OCR text no richer than original")
	}
	return s.P.Extract(in.OCRText), nil
}

// BreakerStrategy wraps a strategy in a circuit breaker so a flapping
// external service is skipped for a cooldown window instead of retried on
// every document. An open circuit reads as a strategy failure and the
// cascade falls through.
type BreakerStrategy struct {
	Inner Strategy
	CB    *resilience.CircuitBreaker
}

func (s BreakerStrategy) Name() string { return s.Inner.Name() }

func (s BreakerStrategy) Attempt(ctx context.Context, in Input) (*model.StructuredInvoice, error) {
	var inv *model.StructuredInvoice
	err := s.CB.Execute(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.Inner.Attempt(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// PatternStrategy runs the pattern extractor over the raw document text.
type PatternStrategy struct {
	P *PatternExtractor
}

func (s PatternStrategy) Name() string { return "pattern_matching" }

func (s PatternStrategy) Attempt(_ context.Context, in Input) (*model.StructuredInvoice, error) {
	return s.P.Extract(in.Text), nil
}
