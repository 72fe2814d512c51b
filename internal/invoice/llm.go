package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/pkg/anthropic"
)

const understandSystemPrompt = `You are an expert at understanding invoices. You will be given raw OCR or extracted text from a vendor invoice.
Your job is to extract and return structured data including:
- Vendor Name (the company selling the goods/services)
- Country of Origin (where the goods are manufactured or produced)
- Line items with: Product Description, Quantity, Unit Price, Total Price, HTS Code if stated
- Total Amount

Return your output as a structured JSON object in this format:

{
  "vendor_name": "...",
  "country_of_origin": "...",
  "line_items": [
    {
      "product": "...",
      "quantity": ...,
      "unit_price": ...,
      "total_price": ...,
      "hts_code": "..."
    }
  ],
  "total_amount": ...
}`

const understandUserPrompt = `Please analyze this invoice and extract the vendor name and line items.
For each line item, identify the product name, quantity, unit price, and total price.

Invoice text:
%s

Return only a valid JSON object with the extracted information.`

// invoiceResponseSchema encodes the validity contract for an understanding
// response: a non-empty vendor name and a line_items array of which at least
// one element carries all four required keys. Numeric types are deliberately
// unconstrained; models sometimes return numbers as strings and those are
// coerced after validation.
const invoiceResponseSchema = `{
	"type": "object",
	"required": ["vendor_name", "line_items"],
	"properties": {
		"vendor_name": {"type": "string", "minLength": 1},
		"line_items": {
			"type": "array",
			"contains": {
				"type": "object",
				"required": ["product", "quantity", "unit_price", "total_price"]
			}
		}
	}
}`

var invoiceSchema = jsonschema.MustCompileString("invoice-response.json", invoiceResponseSchema)

var (
	fencedJSONRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	looseJSONRE  = regexp.MustCompile(`(?s)\{.*\}`)
)

// Understander sends invoice text to the external understanding service and
// validates the JSON it returns. A response that cannot be located, parsed,
// or schema-validated fails the strategy; it is never surfaced as a hard
// error by the cascade.
type Understander struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// NewUnderstander wires an understanding strategy over the given client.
func NewUnderstander(client anthropic.Client, mdl string, timeout time.Duration) *Understander {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Understander{client: client, model: mdl, timeout: timeout}
}

// Understand extracts a structured invoice from text via the understanding
// service. Returns an error when the service is unreachable or the response
// fails validation; callers treat any error as "strategy failed".
func (u *Understander) Understand(ctx context.Context, text string) (*model.StructuredInvoice, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	temp := 0.1 // low temperature for deterministic extraction
	resp, err := u.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       u.model,
		MaxTokens:   2048,
		System:      understandSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(understandUserPrompt, text)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "understand: create message")
	}

	raw := ExtractJSON(resp.Text())
	if raw == "" {
		return nil, eris.New("understand: no JSON object in response")
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, eris.Wrap(err, "understand: parse response JSON")
	}
	if err := invoiceSchema.Validate(doc); err != nil {
		zap.L().Debug("understand: response failed schema validation", zap.Error(err))
		return nil, eris.Wrap(err, "understand: response shape")
	}

	inv := decodeInvoice(doc.(map[string]any))
	zap.L().Info("understand: extracted invoice",
		zap.String("vendor", inv.VendorName),
		zap.Int("line_items", len(inv.LineItems)),
	)
	return inv, nil
}

// ExtractJSON pulls a JSON object out of free text: a fenced code block
// first, then a greedy brace match.
func ExtractJSON(text string) string {
	if m := fencedJSONRE.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if strings.HasPrefix(candidate, "{") {
			return candidate
		}
	}
	if m := looseJSONRE.FindString(text); m != "" {
		return m
	}
	return ""
}

// decodeInvoice converts a schema-validated response map into the shared
// invoice shape, coercing numerics that arrived as strings.
func decodeInvoice(m map[string]any) *model.StructuredInvoice {
	inv := &model.StructuredInvoice{
		LineItems: []model.LineItem{},
	}
	inv.VendorName, _ = m["vendor_name"].(string)
	inv.CountryOfOrigin, _ = m["country_of_origin"].(string)
	inv.TotalAmount = toFloat(m["total_amount"])

	rawItems, _ := m["line_items"].([]any)
	for _, ri := range rawItems {
		im, ok := ri.(map[string]any)
		if !ok {
			continue
		}
		item := model.LineItem{
			Quantity:  toFloat(im["quantity"]),
			UnitPrice: toFloat(im["unit_price"]),
		}
		item.Product, _ = im["product"].(string)
		if hts, ok := im["hts_code"].(string); ok && model.ValidHTSCode(hts) {
			item.HTSCode = hts
		}
		if c, ok := im["country_of_origin"].(string); ok {
			item.CountryOfOrigin = c
		}
		// Derive the total only when the model left the field out. An
		// explicit zero is a statement about the item and is honored.
		if rawTotal, ok := im["total_price"]; ok && rawTotal != nil {
			item.TotalPrice = toFloat(rawTotal)
		} else {
			item.TotalPrice = item.Quantity * item.UnitPrice
		}
		inv.LineItems = append(inv.LineItems, item)
	}
	return inv
}

// toFloat coerces a decoded JSON value to float64. Strings are parsed after
// stripping currency symbols and thousands separators.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
