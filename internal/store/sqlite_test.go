package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tariff-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_PutAndFetchRate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.PutRate(ctx, model.TariffRateRecord{
		HTSCode:     "7208.39.00",
		Country:     "China",
		CurrentRate: "25%",
		HistoricalRates: []model.HistoricalRate{
			{Date: "2023-01-01", Rate: "10%"},
			{Date: "2023-06-01", Rate: "25%"},
		},
		BoundRate:   "30%",
		AppliedRate: "25%",
		Source:      "USITC",
		Notes:       "Subject to Section 301 tariffs",
	})
	require.NoError(t, err)

	rec, err := st.FetchRate(ctx, "7208.39.00", "China")
	require.NoError(t, err)
	assert.Equal(t, "25%", rec.CurrentRate)
	assert.Equal(t, "30%", rec.BoundRate)
	require.Len(t, rec.HistoricalRates, 2)
	assert.Equal(t, "10%", rec.HistoricalRates[0].Rate)
}

func TestSQLite_FetchRate_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec, err := st.FetchRate(context.Background(), "0101.21.00", "France")
	require.NoError(t, err)
	assert.Equal(t, model.RateNotAvailable, rec.CurrentRate)
	assert.Empty(t, rec.HistoricalRates)
}

func TestSQLite_PutRate_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutRate(ctx, model.TariffRateRecord{
		HTSCode: "7208.39.00", Country: "China", CurrentRate: "10%",
	}))
	require.NoError(t, st.PutRate(ctx, model.TariffRateRecord{
		HTSCode: "7208.39.00", Country: "China", CurrentRate: "25%",
	}))

	rec, err := st.FetchRate(ctx, "7208.39.00", "China")
	require.NoError(t, err)
	assert.Equal(t, "25%", rec.CurrentRate)

	recs, err := st.ListRates(ctx, RateFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSQLite_PutRates_Bulk(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.PutRates(ctx, []model.TariffRateRecord{
		{HTSCode: "7208.39.00", Country: "China", CurrentRate: "25%"},
		{HTSCode: "7208.39.00", Country: "Mexico", CurrentRate: "0%"},
		{HTSCode: "8471.30.01", Country: "Vietnam", CurrentRate: "10%"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	recs, err := st.ListRates(ctx, RateFilter{HTSCode: "7208.39.00"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSQLite_ListRates_CountryFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.PutRates(ctx, []model.TariffRateRecord{
		{HTSCode: "7208.39.00", Country: "China", CurrentRate: "25%"},
		{HTSCode: "8471.30.01", Country: "China", CurrentRate: "7.5%"},
		{HTSCode: "7208.39.00", Country: "Mexico", CurrentRate: "0%"},
	})
	require.NoError(t, err)

	recs, err := st.ListRates(ctx, RateFilter{Country: "China"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, "China", rec.Country)
	}
}
