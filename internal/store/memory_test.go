package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tariff-cli/internal/model"
)

func TestMemory_FetchRate_Seeded(t *testing.T) {
	st := NewMemoryWithReferenceData()
	ctx := context.Background()

	rec, err := st.FetchRate(ctx, "7208.39.00", "China")
	require.NoError(t, err)
	assert.Equal(t, "25%", rec.CurrentRate)
	assert.Equal(t, "USITC", rec.Source)
	assert.Len(t, rec.HistoricalRates, 2)

	rec, err = st.FetchRate(ctx, "7208.39.00", "Mexico")
	require.NoError(t, err)
	assert.Equal(t, "0%", rec.CurrentRate)
}

func TestMemory_FetchRate_Missing(t *testing.T) {
	st := NewMemoryWithReferenceData()

	rec, err := st.FetchRate(context.Background(), "9999.99.99", "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, model.RateNotAvailable, rec.CurrentRate)
	assert.Equal(t, "9999.99.99", rec.HTSCode)
	assert.Equal(t, "Atlantis", rec.Country)
}

func TestMemory_PutRate_Overwrite(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.PutRate(ctx, model.TariffRateRecord{
		HTSCode: "8471.30.01", Country: "Vietnam", CurrentRate: "10%",
	}))
	require.NoError(t, st.PutRate(ctx, model.TariffRateRecord{
		HTSCode: "8471.30.01", Country: "Vietnam", CurrentRate: "15%",
	}))

	rec, err := st.FetchRate(ctx, "8471.30.01", "Vietnam")
	require.NoError(t, err)
	assert.Equal(t, "15%", rec.CurrentRate)

	recs, err := st.ListRates(ctx, RateFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMemory_ListRates_Filter(t *testing.T) {
	st := NewMemoryWithReferenceData()
	ctx := context.Background()

	recs, err := st.ListRates(ctx, RateFilter{Country: "China"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "China", recs[0].Country)

	recs, err = st.ListRates(ctx, RateFilter{HTSCode: "7208.39.00"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestMemory_PutRates_Bulk(t *testing.T) {
	st := NewMemory()

	n, err := st.PutRates(context.Background(), []model.TariffRateRecord{
		{HTSCode: "7208.39.00", Country: "China", CurrentRate: "25%"},
		{HTSCode: "7208.39.00", Country: "Mexico", CurrentRate: "0%"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
