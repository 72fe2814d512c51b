package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tariff-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_FetchRate_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT hts_code, country, current_rate`).
		WithArgs("0101.21.00", "France").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.FetchRate(context.Background(), "0101.21.00", "France")
	require.NoError(t, err)
	assert.Equal(t, model.RateNotAvailable, rec.CurrentRate)
	assert.Equal(t, "0101.21.00", rec.HTSCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchRate_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	bound, applied := "30%", "25%"
	source, notes := "USITC", "Subject to Section 301 tariffs"
	mock.ExpectQuery(`SELECT hts_code, country, current_rate`).
		WithArgs("7208.39.00", "China").
		WillReturnRows(pgxmock.NewRows([]string{
			"hts_code", "country", "current_rate", "historical_rates", "bound_rate", "applied_rate", "source", "notes",
		}).AddRow(
			"7208.39.00", "China", "25%",
			[]byte(`[{"date":"2023-01-01","rate":"10%"},{"date":"2023-06-01","rate":"25%"}]`),
			&bound, &applied, &source, &notes,
		))

	rec, err := s.FetchRate(context.Background(), "7208.39.00", "China")
	require.NoError(t, err)
	assert.Equal(t, "25%", rec.CurrentRate)
	assert.Equal(t, "30%", rec.BoundRate)
	require.Len(t, rec.HistoricalRates, 2)
	assert.Equal(t, "25%", rec.HistoricalRates[1].Rate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutRate_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "7208.39.00", "Mexico", "0%",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutRate(context.Background(), model.TariffRateRecord{
		HTSCode: "7208.39.00", Country: "Mexico", CurrentRate: "0%",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutRates_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	n, err := s.PutRates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
