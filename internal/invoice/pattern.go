package invoice

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tariff-cli/internal/model"
)

// numberRE matches a contiguous run of digits, commas, and periods — the
// numeric tokens of a tabular invoice line.
var numberRE = regexp.MustCompile(`[\d,.]+`)

// htsLabelRE captures an HTS code following an explicit label, as seen in
// itemized invoice blocks.
var htsLabelRE = regexp.MustCompile(`(?i)hts\s*code\s*:?\s*([0-9.]+)`)

// itemHeaders are the recognized header tuples; a line containing every
// token of any tuple starts the line-items section.
var itemHeaders = [][]string{
	{"Item", "Quantity", "Price"},
	{"Description", "Quantity", "Price"},
	{"Product", "Quantity", "Price"},
	{"Service", "Quantity", "Price"},
	{"Qty", "Price", "Amount"},
	{"Quantity", "Unit Price", "Total"},
}

// sectionTerminators end the line-items section when any appears in a line
// (case-insensitive).
var sectionTerminators = []string{"total amount", "payment terms", "page", "subtotal", "tax"}

// aggressiveSkipTerms exclude a line from the aggressive pass.
var aggressiveSkipTerms = []string{"total", "amount", "invoice", "date"}

// vendorIndicators label the vendor name explicitly.
var vendorIndicators = []string{
	"Billed To:", "From:", "Bill To:", "Sold By:", "Vendor:",
	"Supplier:", "Merchant:", "Company:", "Business:",
	"Invoice from",
}

// companySuffixes mark a line as a probable company name.
var companySuffixes = []string{
	"LLC", "Inc", "Corp", "Corporation", "Ltd", "Limited",
	"Company", "Co", "Group", "Enterprises", "Solutions",
	"Services", "Systems", "Technologies", "International",
}

// totalIndicators label the invoice total.
var totalIndicators = []string{
	"Total Amount:", "Total:", "Amount Due:", "Balance Due:",
	"Grand Total:", "Invoice Total:", "Total Invoice:",
}

// PatternExtractor extracts a structured invoice from text using regex
// heuristics: a strict tabular pass under a recognized header, with an
// aggressive per-line fallback when the strict pass finds nothing. It always
// produces a structurally valid result and is therefore the cascade's final
// stage.
type PatternExtractor struct{}

// NewPatternExtractor returns a stateless pattern extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract parses the text into a StructuredInvoice. Never fails: absent
// fields stay at their zero values and LineItems may be empty.
func (p *PatternExtractor) Extract(text string) *model.StructuredInvoice {
	lines := Lines(text)

	inv := &model.StructuredInvoice{
		VendorName:  extractVendorName(lines),
		LineItems:   extractLineItems(lines),
		TotalAmount: extractTotalAmount(lines),
	}
	return inv
}

// extractLineItems runs the strict pass and, only when it yields nothing,
// the aggressive fallback. The seen set is per-call state shared by both
// passes so a dedup key emitted by either pass suppresses later duplicates.
func extractLineItems(lines []string) []model.LineItem {
	seen := make(map[string]struct{})
	items := strictPass(lines, seen)
	if len(items) == 0 {
		items = aggressivePass(lines, seen)
	}
	return items
}

// strictPass locates a header line, then parses each subsequent line as a
// tabular item row until a terminator ends the section.
func strictPass(lines []string, seen map[string]struct{}) []model.LineItem {
	var items []model.LineItem
	inSection := false

	for _, line := range lines {
		if matchesHeader(line) {
			inSection = true
			continue
		}
		if !inSection || line == "" {
			continue
		}
		if containsAnyFold(line, sectionTerminators) {
			inSection = false
			continue
		}

		item := parseStrictLine(line)
		if item == nil {
			// An itemized block may carry the HTS code on its own labeled
			// line; attach it to the item just emitted.
			if m := htsLabelRE.FindStringSubmatch(line); m != nil && len(items) > 0 && items[len(items)-1].HTSCode == "" {
				items[len(items)-1].HTSCode = strings.Trim(m[1], ".")
			}
			continue
		}
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		seen[item.Key()] = struct{}{}
		items = append(items, *item)
	}
	return items
}

// parseStrictLine parses a tabular row: product text followed by at least
// three numeric tokens read as quantity, unit price, total price.
func parseStrictLine(line string) *model.LineItem {
	parts := numberRE.FindAllString(line, -1)
	if len(parts) < 3 {
		return nil
	}

	idx := strings.Index(line, parts[0])
	product := strings.TrimSpace(line[:idx])
	if product == "" {
		return nil
	}

	qty, err := strconv.Atoi(strings.ReplaceAll(parts[0], ",", ""))
	if err != nil {
		return nil
	}
	unit, err := strconv.ParseFloat(strings.ReplaceAll(parts[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	total, err := strconv.ParseFloat(strings.ReplaceAll(parts[2], ",", ""), 64)
	if err != nil {
		return nil
	}

	item := &model.LineItem{
		Product:    product,
		Quantity:   float64(qty),
		UnitPrice:  unit,
		TotalPrice: total,
	}
	if m := htsLabelRE.FindStringSubmatch(line); m != nil {
		item.HTSCode = strings.Trim(m[1], ".")
	}
	return item
}

// aggressivePass treats any line with two numeric tokens as a candidate
// item. Token 0 is read as quantity and token 1 as unit price positionally;
// invoices that list price before quantity will be misread — the ordering is
// a documented heuristic, kept as-is.
func aggressivePass(lines []string, seen map[string]struct{}) []model.LineItem {
	var items []model.LineItem

	for _, line := range lines {
		if line == "" || containsAnyFold(line, aggressiveSkipTerms) {
			continue
		}

		parts := numberRE.FindAllString(line, -1)
		if len(parts) < 2 {
			continue
		}

		product := line
		for _, part := range parts {
			product = strings.ReplaceAll(product, part, "")
		}
		product = strings.TrimSpace(product)
		if len(product) <= 2 {
			continue
		}

		qty, err := strconv.Atoi(strings.ReplaceAll(parts[0], ",", ""))
		if err != nil {
			continue
		}
		unit, err := strconv.ParseFloat(strings.ReplaceAll(parts[1], ",", ""), 64)
		if err != nil {
			continue
		}

		item := model.LineItem{
			Product:    product,
			Quantity:   float64(qty),
			UnitPrice:  unit,
			TotalPrice: float64(qty) * unit, // always derived in this pass
		}
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		seen[item.Key()] = struct{}{}
		items = append(items, item)
		zap.L().Debug("pattern: aggressive pass matched line",
			zap.String("product", item.Product),
		)
	}
	return items
}

// extractVendorName tries explicit indicator labels, then company-suffix
// heuristics, then a capitalization heuristic.
func extractVendorName(lines []string) string {
	for _, line := range lines {
		for _, ind := range vendorIndicators {
			i := strings.Index(line, ind)
			if i < 0 {
				continue
			}
			name := strings.TrimSpace(line[i+len(ind):])
			name = strings.TrimRight(name, ".,;:")
			if name != "" {
				return name
			}
		}
	}

	for _, line := range lines {
		if len(line) < 3 || containsAnyFold(line, []string{"invoice", "date", "page", "total"}) {
			continue
		}
		for _, suffix := range companySuffixes {
			if !strings.Contains(line, suffix) {
				continue
			}
			words := strings.Fields(line)
			for i, w := range words {
				if strings.Contains(w, suffix) {
					name := strings.Join(words[:i+1], " ")
					return strings.TrimRight(name, ".,;:")
				}
			}
		}
	}

	for _, line := range lines {
		if len(line) < 3 || containsAnyFold(line, []string{"invoice", "date", "page", "total"}) {
			continue
		}
		words := strings.Fields(line)
		if len(words) >= 2 && allTitleCased(words) {
			return strings.TrimRight(line, ".,;:")
		}
	}

	return "Unknown Vendor"
}

// allTitleCased reports whether every word starts with an uppercase letter.
func allTitleCased(words []string) bool {
	for _, w := range words {
		if w == "" {
			continue
		}
		c := rune(w[0])
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// extractTotalAmount finds a labeled total. Amounts without a decimal point
// are read as cents.
func extractTotalAmount(lines []string) float64 {
	for _, line := range lines {
		for _, ind := range totalIndicators {
			i := strings.Index(line, ind)
			if i < 0 {
				continue
			}
			raw := strings.TrimSpace(line[i+len(ind):])
			raw = keepNumeric(raw)
			raw = strings.ReplaceAll(raw, ",", "")
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				zap.L().Warn("pattern: unparsable total amount", zap.String("line", line))
				continue
			}
			if !strings.Contains(raw, ".") {
				v /= 100 // no decimal point: assume cents
			}
			return v
		}
	}
	return 0.0
}

// keepNumeric strips everything but digits, commas, and periods.
func keepNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchesHeader reports whether the line contains every token of any
// recognized header tuple.
func matchesHeader(line string) bool {
	for _, tuple := range itemHeaders {
		all := true
		for _, tok := range tuple {
			if !strings.Contains(line, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// containsAnyFold reports whether the lowercased line contains any term.
func containsAnyFold(line string, terms []string) bool {
	lower := strings.ToLower(line)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
