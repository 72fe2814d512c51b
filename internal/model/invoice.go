package model

import (
	"fmt"
	"regexp"
)

// LineItem is one priced product entry on an invoice.
//
// Identity for deduplication is the (product, quantity, unit price) triple;
// two items sharing that triple are the same logical item and the first
// occurrence wins. TotalPrice is intentionally excluded from the key.
type LineItem struct {
	Product         string  `json:"product"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	TotalPrice      float64 `json:"total_price"`
	HTSCode         string  `json:"hts_code,omitempty"`
	CountryOfOrigin string  `json:"country_of_origin,omitempty"`
}

// Key returns the deduplication key for the item.
func (li LineItem) Key() string {
	return fmt.Sprintf("%s_%v_%v", li.Product, li.Quantity, li.UnitPrice)
}

// StructuredInvoice is the shape every extraction strategy produces. A
// strategy that cannot fill a field leaves its zero value; the validator
// decides whether the result is acceptable.
type StructuredInvoice struct {
	VendorName      string     `json:"vendor_name"`
	CountryOfOrigin string     `json:"country_of_origin,omitempty"`
	LineItems       []LineItem `json:"line_items"`
	TotalAmount     float64    `json:"total_amount"`
}

// MinimalInvoice returns the fallback document used when every strategy
// faults: structurally valid, carrying no extracted data.
func MinimalInvoice() *StructuredInvoice {
	return &StructuredInvoice{
		VendorName:  "Unknown",
		LineItems:   []LineItem{},
		TotalAmount: 0.0,
	}
}

// InvoiceDocument is the request-scoped view of one invoice: the immutable
// raw text plus everything derived from it during extraction.
type InvoiceDocument struct {
	RawText     string
	VendorName  string
	Country     CountryDetection
	LineItems   []LineItem
	TotalAmount float64
}

var htsCodeRE = regexp.MustCompile(`^[0-9]{4}\.[0-9]{2}(?:\.[0-9]{2})?$`)

// ValidHTSCode reports whether s is a well-formed HTS code (NNNN.NN or
// NNNN.NN.NN).
func ValidHTSCode(s string) bool {
	return htsCodeRE.MatchString(s)
}
