package tariff

import (
	"strconv"
	"time"

	"github.com/sells-group/tariff-cli/internal/model"
)

// Aggregate rolls per-item analyses up into a TariffAnalysis, preserving
// item order. TotalTariffCost is always the exact sum of the item costs.
func Aggregate(items []model.ItemAnalysis, country string) model.TariffAnalysis {
	if items == nil {
		items = []model.ItemAnalysis{}
	}

	var total float64
	summaries := make([]model.ItemSummary, 0, len(items))
	for _, ia := range items {
		total += ia.TariffCost

		var htsCode *string
		if ia.Item.HTSCode != "" {
			code := ia.Item.HTSCode
			htsCode = &code
		}
		ratePct, _ := model.ParseRate(ia.Rate.CurrentRate)
		summaries = append(summaries, model.ItemSummary{
			Product:      ia.Item.Product,
			HTSCode:      htsCode,
			TariffRate:   FormatRate(ratePct),
			TariffCost:   ia.TariffCost,
			HTSCodeFound: ia.HTSCodeFound,
		})
	}

	return model.TariffAnalysis{
		Items:           items,
		TotalTariffCost: total,
		Summary: model.Summary{
			TotalItems:      len(items),
			TotalTariffCost: total,
			CountryOfOrigin: country,
			AnalysisDate:    time.Now().UTC().Format(time.RFC3339),
			ItemsAnalyzed:   summaries,
		},
	}
}

// FormatRate renders a normalized percentage back as a rate string.
func FormatRate(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}
