package invoice

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tariff-cli/internal/model"
)

// originPatterns label text that explicitly states where goods come from.
// Tried in order; the capture group is the trailing text after the label.
var originPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)country\s*of\s*origin\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)origin\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)made\s*in\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)manufactured\s*in\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)produced\s*in\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)shipped\s*from\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)exported\s*from\s*:?\s*(.+)`),
}

// contextPatterns tie a country mention to shipping/customs context. Lower
// confidence than an explicit origin label.
var contextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)shipping\s*address\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)customs\s*declaration\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)port\s*of\s*loading\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)export\s*declaration\s*:?\s*(.+)`),
}

// countryAliases maps one canonical country name to its surface forms.
type countryAliases struct {
	Name  string
	Forms []string
}

// defaultAliases is the ordered alias table; the first canonical country
// whose alias appears in a candidate string wins. Short aliases like "US"
// and "HK" are matched as substrings in the labeled stages and as whole
// words in the direct-scan stage; that asymmetry is a known precision/recall
// trade-off, not a bug.
var defaultAliases = []countryAliases{
	{"China", []string{"China", "PRC", "People's Republic of China", "Mainland China"}},
	{"Mexico", []string{"Mexico", "Mexican"}},
	{"Canada", []string{"Canada", "Canadian"}},
	{"Japan", []string{"Japan", "Japanese"}},
	{"Germany", []string{"Germany", "German", "Deutschland"}},
	{"United States", []string{"United States", "USA", "US", "America", "American"}},
	{"UK", []string{"United Kingdom", "UK", "Great Britain", "British", "England"}},
	{"France", []string{"France", "French"}},
	{"Italy", []string{"Italy", "Italian"}},
	{"Spain", []string{"Spain", "Spanish"}},
	{"Brazil", []string{"Brazil", "Brazilian"}},
	{"India", []string{"India", "Indian"}},
	{"South Korea", []string{"South Korea", "Korea", "Korean", "Republic of Korea"}},
	{"Taiwan", []string{"Taiwan", "Chinese Taipei", "Republic of China"}},
	{"Vietnam", []string{"Vietnam", "Vietnamese"}},
	{"Thailand", []string{"Thailand", "Thai"}},
	{"Malaysia", []string{"Malaysia", "Malaysian"}},
	{"Indonesia", []string{"Indonesia", "Indonesian"}},
	{"Philippines", []string{"Philippines", "Filipino"}},
	{"Singapore", []string{"Singapore", "Singaporean"}},
	{"Hong Kong", []string{"Hong Kong", "HK"}},
}

// CountryDetector infers a country of origin from invoice text via three
// escalating techniques: explicit origin labels, direct country-name scan,
// and shipping/customs context. First hit wins.
type CountryDetector struct {
	table   []countryAliases
	wordRes map[string][]*regexp.Regexp
}

// NewCountryDetector builds a detector over the default alias table.
func NewCountryDetector() *CountryDetector {
	return newDetector(defaultAliases)
}

// NewCountryDetectorFromFile builds a detector whose alias table is read
// from a YAML file mapping canonical names to lists of surface forms.
// Entries are ordered by canonical name for determinism.
func NewCountryDetectorFromFile(path string) (*CountryDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "country: read alias file %s", path)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "country: parse alias file %s", path)
	}
	if len(raw) == 0 {
		return nil, eris.Errorf("country: alias file %s is empty", path)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	table := make([]countryAliases, 0, len(names))
	for _, name := range names {
		table = append(table, countryAliases{Name: name, Forms: raw[name]})
	}
	return newDetector(table), nil
}

func newDetector(table []countryAliases) *CountryDetector {
	d := &CountryDetector{
		table:   table,
		wordRes: make(map[string][]*regexp.Regexp, len(table)),
	}
	for _, ca := range table {
		res := make([]*regexp.Regexp, 0, len(ca.Forms))
		for _, form := range ca.Forms {
			res = append(res, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(form)+`\b`))
		}
		d.wordRes[ca.Name] = res
	}
	return d
}

// Detect runs the three techniques in strict order and returns the first
// match with its confidence and method tag.
func (d *CountryDetector) Detect(text string) model.CountryDetection {
	lines := Lines(text)

	if c := d.fromOriginLabels(lines); c != "" {
		return model.CountryDetection{
			Country:    c,
			Confidence: model.ConfidenceHigh,
			Method:     model.MethodPatternMatching,
		}
	}

	if c := d.fromCountryNames(lines); c != "" {
		return model.CountryDetection{
			Country:    c,
			Confidence: model.ConfidenceMedium,
			Method:     model.MethodCountryNameMatching,
		}
	}

	if c := d.fromContext(lines); c != "" {
		return model.CountryDetection{
			Country:    c,
			Confidence: model.ConfidenceLow,
			Method:     model.MethodContextAnalysis,
		}
	}

	return model.UnknownCountry()
}

// fromOriginLabels matches labeled origin patterns and resolves the captured
// tail against the alias table (case-insensitive substring).
func (d *CountryDetector) fromOriginLabels(lines []string) string {
	for _, line := range lines {
		for _, re := range originPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if c := d.aliasIn(m[1]); c != "" {
				return c
			}
		}
	}
	return ""
}

// fromCountryNames scans every line for a whole-word alias occurrence,
// independent of any label.
func (d *CountryDetector) fromCountryNames(lines []string) string {
	for _, line := range lines {
		for _, ca := range d.table {
			for _, re := range d.wordRes[ca.Name] {
				if re.MatchString(line) {
					return ca.Name
				}
			}
		}
	}
	return ""
}

// fromContext matches shipping/customs/port/export labels and resolves the
// captured tail against the alias table.
func (d *CountryDetector) fromContext(lines []string) string {
	for _, line := range lines {
		for _, re := range contextPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if c := d.aliasIn(m[1]); c != "" {
				zap.L().Debug("country: matched from context",
					zap.String("line", line),
					zap.String("country", c),
				)
				return c
			}
		}
	}
	return ""
}

// aliasIn returns the first canonical country whose alias appears in s as a
// case-insensitive substring, or "".
func (d *CountryDetector) aliasIn(s string) string {
	lower := strings.ToLower(s)
	for _, ca := range d.table {
		for _, form := range ca.Forms {
			if strings.Contains(lower, strings.ToLower(form)) {
				return ca.Name
			}
		}
	}
	return ""
}
