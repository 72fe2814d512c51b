package tariff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/internal/resilience"
	"github.com/sells-group/tariff-cli/internal/store"
)

func TestResolve_KnownRate(t *testing.T) {
	r := NewResolver(store.NewMemoryWithReferenceData())

	ia := r.Resolve(context.Background(), model.LineItem{
		Product:    "Flat-rolled steel",
		Quantity:   1,
		UnitPrice:  100.00,
		TotalPrice: 100.00,
		HTSCode:    "7208.39.00",
	}, "China")

	assert.Equal(t, "25%", ia.Rate.CurrentRate)
	assert.InDelta(t, 25.00, ia.TariffCost, 1e-9)
	assert.True(t, ia.HTSCodeFound)
}

func TestResolve_ZeroRateCountry(t *testing.T) {
	r := NewResolver(store.NewMemoryWithReferenceData())

	ia := r.Resolve(context.Background(), model.LineItem{
		Product:    "Flat-rolled steel",
		Quantity:   1,
		UnitPrice:  100.00,
		TotalPrice: 100.00,
		HTSCode:    "7208.39.00",
	}, "Mexico")

	assert.Equal(t, "0%", ia.Rate.CurrentRate)
	assert.Zero(t, ia.TariffCost)
	assert.True(t, ia.HTSCodeFound)
}

func TestResolve_MissingRate(t *testing.T) {
	r := NewResolver(store.NewMemoryWithReferenceData())

	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Widget A", Quantity: 10, UnitPrice: 2.50, TotalPrice: 25.00, HTSCode: "9999.99.99",
	}, "Germany")

	assert.Equal(t, model.RateNotAvailable, ia.Rate.CurrentRate)
	assert.Zero(t, ia.TariffCost)
	assert.True(t, ia.HTSCodeFound)
}

func TestResolve_NoCodeNoInference(t *testing.T) {
	r := NewResolver(store.NewMemoryWithReferenceData())

	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Widget A", Quantity: 10, UnitPrice: 2.50, TotalPrice: 25.00,
	}, "China")

	assert.False(t, ia.HTSCodeFound)
	assert.Empty(t, ia.Item.HTSCode)
	assert.Zero(t, ia.TariffCost)
	assert.Equal(t, model.RateNotAvailable, ia.Rate.CurrentRate)
}

func TestResolve_HonorsZeroTotalPrice(t *testing.T) {
	r := NewResolver(store.NewMemoryWithReferenceData())

	// A zero total with nonzero quantity and unit price is an extraction
	// layer decision, not a missing field: no cost is fabricated from the
	// factors.
	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Flat-rolled steel", Quantity: 4, UnitPrice: 25.00, TotalPrice: 0, HTSCode: "7208.39.00",
	}, "China")

	assert.Zero(t, ia.Item.TotalPrice)
	assert.Zero(t, ia.TariffCost)
	assert.Equal(t, "25%", ia.Rate.CurrentRate)
}

func TestResolve_MalformedRate(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.PutRate(context.Background(), model.TariffRateRecord{
		HTSCode: "8471.30.01", Country: "Vietnam", CurrentRate: "abc",
	}))
	r := NewResolver(st)

	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Laptop", Quantity: 1, UnitPrice: 500, TotalPrice: 500, HTSCode: "8471.30.01",
	}, "Vietnam")

	assert.Zero(t, ia.TariffCost)
	assert.True(t, ia.HTSCodeFound)
}

func TestResolve_InfersHTSCode(t *testing.T) {
	st := store.NewMemoryWithReferenceData()
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("7208.39.00"), nil)

	r := NewResolver(st, WithInference(client, "test-model"))

	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Flat-rolled steel coil", Quantity: 1, UnitPrice: 100, TotalPrice: 100,
	}, "China")

	assert.Equal(t, "7208.39.00", ia.Item.HTSCode)
	assert.True(t, ia.HTSCodeFound)
	assert.InDelta(t, 25.00, ia.TariffCost, 1e-9)
	client.AssertExpectations(t)
}

func TestResolve_InferenceUnknown(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("Unknown"), nil)

	r := NewResolver(store.NewMemoryWithReferenceData(), WithInference(client, "test-model"))

	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Mystery item", Quantity: 1, UnitPrice: 10, TotalPrice: 10,
	}, "China")

	assert.False(t, ia.HTSCodeFound)
	assert.Empty(t, ia.Item.HTSCode)
	assert.Zero(t, ia.TariffCost)
}

func TestResolve_InferenceInvalidFormat(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("probably chapter 72 somewhere"), nil)

	r := NewResolver(store.NewMemoryWithReferenceData(), WithInference(client, "test-model"))

	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Steel thing", Quantity: 1, UnitPrice: 10, TotalPrice: 10,
	}, "China")

	assert.False(t, ia.HTSCodeFound)
}

func TestResolve_InferenceError(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("api unavailable"))

	r := NewResolver(store.NewMemoryWithReferenceData(),
		WithInference(client, "test-model"),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)

	ia := r.Resolve(context.Background(), model.LineItem{
		Product: "Widget A", Quantity: 10, UnitPrice: 2.50, TotalPrice: 25.00,
	}, "China")

	assert.False(t, ia.HTSCodeFound)
	assert.Zero(t, ia.TariffCost)
}
