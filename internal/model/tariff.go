package model

import (
	"strconv"
	"strings"
)

// RateNotAvailable is the sentinel rate string for a missing (HTS, country)
// entry. It parses to 0.
const RateNotAvailable = "N/A"

// HistoricalRate is one dated rate entry from the rate source.
type HistoricalRate struct {
	Date string `json:"date" yaml:"date"`
	Rate string `json:"rate" yaml:"rate"`
}

// TariffRateRecord is the rate-lookup collaborator's answer for one
// (HTS code, country) pair. CurrentRate is a percentage string ("25%") or
// RateNotAvailable; bound/applied rates and history are source metadata.
type TariffRateRecord struct {
	HTSCode         string           `json:"hts_code" yaml:"hts_code"`
	Country         string           `json:"country" yaml:"country"`
	CurrentRate     string           `json:"current_rate" yaml:"current_rate"`
	HistoricalRates []HistoricalRate `json:"historical_rates,omitempty" yaml:"historical_rates,omitempty"`
	BoundRate       string           `json:"bound_rate,omitempty" yaml:"bound_rate,omitempty"`
	AppliedRate     string           `json:"applied_rate,omitempty" yaml:"applied_rate,omitempty"`
	Source          string           `json:"source,omitempty" yaml:"source,omitempty"`
	Notes           string           `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// EmptyRateRecord returns the record used when the rate source has no data
// for the pair.
func EmptyRateRecord(htsCode, country string) *TariffRateRecord {
	return &TariffRateRecord{
		HTSCode:     htsCode,
		Country:     country,
		CurrentRate: RateNotAvailable,
	}
}

// ParseRate normalizes a rate string to a percentage value. A trailing "%"
// is stripped, RateNotAvailable maps to 0. The second return is false when
// the string was malformed (the value is still 0); callers log and continue.
func ParseRate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == RateNotAvailable {
		return 0, true
	}
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ItemAnalysis pairs one line item with its resolved rate and computed cost.
type ItemAnalysis struct {
	Item         LineItem         `json:"item"`
	Rate         TariffRateRecord `json:"tariff_rate"`
	TariffCost   float64          `json:"tariff_cost"`
	HTSCodeFound bool             `json:"hts_code_found"`
}

// ItemSummary is the compact per-item view inside the summary block.
type ItemSummary struct {
	Product      string  `json:"product"`
	HTSCode      *string `json:"hts_code"`
	TariffRate   string  `json:"tariff_rate"`
	TariffCost   float64 `json:"tariff_cost"`
	HTSCodeFound bool    `json:"hts_code_found"`
}

// Summary rolls up a tariff analysis.
type Summary struct {
	TotalItems      int           `json:"total_items"`
	TotalTariffCost float64       `json:"total_tariff_cost"`
	CountryOfOrigin string        `json:"country_of_origin"`
	AnalysisDate    string        `json:"analysis_date"`
	ItemsAnalyzed   []ItemSummary `json:"items_analyzed"`
}

// TariffAnalysis holds the ordered per-item analyses and their rollup.
// Invariant: TotalTariffCost equals the sum of Items[i].TariffCost.
type TariffAnalysis struct {
	Items           []ItemAnalysis `json:"items"`
	TotalTariffCost float64        `json:"total_tariff_cost"`
	Summary         Summary        `json:"summary"`
}

// AnalysisResult is the full response for one analyzed invoice. Built once
// per request and never mutated afterwards.
type AnalysisResult struct {
	ID              string           `json:"id"`
	VendorName      string           `json:"vendor_name"`
	CountryOfOrigin string           `json:"country_of_origin"`
	LineItems       []LineItem       `json:"line_items"`
	TotalAmount     float64          `json:"total_amount"`
	Country         CountryDetection `json:"country_detection"`
	Tariff          TariffAnalysis   `json:"tariff_analysis"`
}
