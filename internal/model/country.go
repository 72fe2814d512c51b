package model

// Confidence qualifies how reliable a detected country of origin is, based
// on which detection technique produced it.
type Confidence string

// Confidence levels, highest first.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DetectionMethod identifies the technique that produced a country match.
type DetectionMethod string

const (
	MethodPatternMatching     DetectionMethod = "pattern_matching"
	MethodCountryNameMatching DetectionMethod = "country_name_matching"
	MethodContextAnalysis     DetectionMethod = "context_analysis"
	MethodNotFound            DetectionMethod = "not_found"
)

// CountryDetection is the outcome of country-of-origin detection.
type CountryDetection struct {
	Country    string          `json:"country"`
	Confidence Confidence      `json:"confidence"`
	Method     DetectionMethod `json:"method"`
}

// UnknownCountry is the detection result when no technique matched.
func UnknownCountry() CountryDetection {
	return CountryDetection{
		Country:    "Unknown",
		Confidence: ConfidenceLow,
		Method:     MethodNotFound,
	}
}
