package store

import (
	"context"
	"strings"
	"sync"

	"github.com/sells-group/tariff-cli/internal/model"
)

// referenceRates is the built-in dataset used when no database is
// configured. Flat-rolled steel (7208.39.00) from China carries Section 301
// tariffs; the same product from Mexico is duty-free under USMCA.
var referenceRates = []model.TariffRateRecord{
	{
		HTSCode:     "7208.39.00",
		Country:     "China",
		CurrentRate: "25%",
		HistoricalRates: []model.HistoricalRate{
			{Date: "2023-01-01", Rate: "10%"},
			{Date: "2023-06-01", Rate: "25%"},
		},
		BoundRate:   "30%",
		AppliedRate: "25%",
		Source:      "USITC",
		Notes:       "Subject to Section 301 tariffs",
	},
	{
		HTSCode:     "7208.39.00",
		Country:     "Mexico",
		CurrentRate: "0%",
		HistoricalRates: []model.HistoricalRate{
			{Date: "2020-01-01", Rate: "0%"},
			{Date: "2020-07-01", Rate: "0%"},
		},
		BoundRate:   "10%",
		AppliedRate: "0%",
		Source:      "USITC",
		Notes:       "Free trade under USMCA",
	},
}

// MemoryStore is an in-process RateStore. It backs tests and the default
// no-database configuration.
type MemoryStore struct {
	mu    sync.RWMutex
	rates map[string]model.TariffRateRecord
	order []string
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{rates: make(map[string]model.TariffRateRecord)}
}

// NewMemoryWithReferenceData returns a MemoryStore seeded with the built-in
// reference dataset.
func NewMemoryWithReferenceData() *MemoryStore {
	s := NewMemory()
	for _, r := range referenceRates {
		s.put(r)
	}
	return s
}

func rateKey(htsCode, country string) string {
	return strings.TrimSpace(htsCode) + "|" + strings.TrimSpace(country)
}

func (s *MemoryStore) put(rec model.TariffRateRecord) {
	key := rateKey(rec.HTSCode, rec.Country)
	if _, exists := s.rates[key]; !exists {
		s.order = append(s.order, key)
	}
	s.rates[key] = rec
}

func (s *MemoryStore) FetchRate(_ context.Context, htsCode, country string) (*model.TariffRateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.rates[rateKey(htsCode, country)]; ok {
		out := rec
		return &out, nil
	}
	return model.EmptyRateRecord(htsCode, country), nil
}

func (s *MemoryStore) PutRate(_ context.Context, rec model.TariffRateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(rec)
	return nil
}

func (s *MemoryStore) PutRates(_ context.Context, recs []model.TariffRateRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.put(rec)
	}
	return int64(len(recs)), nil
}

func (s *MemoryStore) ListRates(_ context.Context, filter RateFilter) ([]model.TariffRateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.TariffRateRecord
	for _, key := range s.order {
		rec := s.rates[key]
		if filter.HTSCode != "" && rec.HTSCode != filter.HTSCode {
			continue
		}
		if filter.Country != "" && rec.Country != filter.Country {
			continue
		}
		out = append(out, rec)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
