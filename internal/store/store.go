// Package store persists tariff rate records keyed by (HTS code, country).
package store

import (
	"context"

	"github.com/sells-group/tariff-cli/internal/model"
)

// RateFilter specifies criteria for listing rate records.
type RateFilter struct {
	HTSCode string `json:"hts_code,omitempty"`
	Country string `json:"country,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// RateStore defines the rate-lookup collaborator. FetchRate never fails on a
// missing pair: implementations return the N/A record instead.
type RateStore interface {
	FetchRate(ctx context.Context, htsCode, country string) (*model.TariffRateRecord, error)
	PutRate(ctx context.Context, rec model.TariffRateRecord) error
	PutRates(ctx context.Context, recs []model.TariffRateRecord) (int64, error)
	ListRates(ctx context.Context, filter RateFilter) ([]model.TariffRateRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
