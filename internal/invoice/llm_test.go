package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const fencedInvoiceResponse = "Here is the extracted invoice:\n```json\n{\n  \"vendor_name\": \"Acme Imports Inc\",\n  \"country_of_origin\": \"China\",\n  \"line_items\": [\n    {\"product\": \"Steel Coil\", \"quantity\": 10, \"unit_price\": 2.5, \"total_price\": 25.0, \"hts_code\": \"7208.39.00\"}\n  ],\n  \"total_amount\": 25.0\n}\n```\nLet me know if you need anything else."

func newTestUnderstander(client *mockAnthropicClient) *Understander {
	return NewUnderstander(client, "test-model", time.Minute)
}

func TestUnderstand_FencedResponse(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(fencedInvoiceResponse), nil)

	inv, err := newTestUnderstander(client).Understand(context.Background(), "some invoice text")
	require.NoError(t, err)
	assert.Equal(t, "Acme Imports Inc", inv.VendorName)
	assert.Equal(t, "China", inv.CountryOfOrigin)
	assert.Equal(t, 25.0, inv.TotalAmount)
	require.Len(t, inv.LineItems, 1)
	item := inv.LineItems[0]
	assert.Equal(t, "Steel Coil", item.Product)
	assert.Equal(t, "7208.39.00", item.HTSCode)
	assert.Equal(t, 10.0, item.Quantity)
	assert.Equal(t, 25.0, item.TotalPrice)
	client.AssertExpectations(t)
}

func TestUnderstand_BareJSONInProse(t *testing.T) {
	resp := `The invoice resolves to {"vendor_name": "Global Traders", "line_items": [{"product": "Bolts", "quantity": 5, "unit_price": 1, "total_price": 5}]} as requested.`
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(resp), nil)

	inv, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Global Traders", inv.VendorName)
	require.Len(t, inv.LineItems, 1)
}

func TestUnderstand_CoercesStringNumbers(t *testing.T) {
	resp := `{"vendor_name": "Acme", "line_items": [{"product": "Coil", "quantity": "10", "unit_price": "$1,250.00", "total_price": "12500"}], "total_amount": "$12,500.00"}`
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(resp), nil)

	inv, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 12500.0, inv.TotalAmount)
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, 10.0, inv.LineItems[0].Quantity)
	assert.Equal(t, 1250.0, inv.LineItems[0].UnitPrice)
	assert.Equal(t, 12500.0, inv.LineItems[0].TotalPrice)
}

func TestUnderstand_DerivesMissingTotal(t *testing.T) {
	// The second item omits total_price entirely: it is derived from the
	// factors. The schema is satisfied by the first, complete item.
	resp := `{"vendor_name": "Acme", "line_items": [
		{"product": "Coil", "quantity": 4, "unit_price": 2.5, "total_price": 10},
		{"product": "Bolts", "quantity": 2, "unit_price": 3}
	]}`
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(resp), nil)

	inv, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, 6.0, inv.LineItems[1].TotalPrice)
}

func TestUnderstand_KeepsExplicitZeroTotal(t *testing.T) {
	resp := `{"vendor_name": "Acme", "line_items": [{"product": "Sample kit", "quantity": 2, "unit_price": 50, "total_price": 0}]}`
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(resp), nil)

	inv, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.NoError(t, err)
	assert.Zero(t, inv.LineItems[0].TotalPrice)
}

func TestUnderstand_RejectsMissingVendor(t *testing.T) {
	resp := `{"line_items": [{"product": "Coil", "quantity": 1, "unit_price": 1, "total_price": 1}]}`
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(resp), nil)

	_, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "understand: response shape")
}

func TestUnderstand_RejectsNoCompleteLineItem(t *testing.T) {
	// Items present but none carries all four required keys.
	resp := `{"vendor_name": "Acme", "line_items": [{"product": "Coil", "quantity": 1}]}`
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(resp), nil)

	_, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "understand: response shape")
}

func TestUnderstand_NoJSONInResponse(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I could not find any invoice data in that text."), nil)

	_, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestUnderstand_TransportError(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("429 rate limited"))

	_, err := newTestUnderstander(client).Understand(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "understand: create message")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced json block",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "fenced without language tag",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "fenced non-json falls back to braces",
			in:   "```\nnot json here\n``` but also {\"b\": 2} inline",
			want: `{"b": 2}`,
		},
		{
			name: "greedy brace spans nested objects",
			in:   `prefix {"a": {"b": 2}} suffix`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "no object at all",
			in:   "plain prose without braces",
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}
