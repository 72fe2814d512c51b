package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tariff-cli/internal/db"
	"github.com/sells-group/tariff-cli/internal/model"
)

// PostgresStore implements RateStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot lookup path.
var preparedStatements = map[string]string{
	"fetch_rate": `SELECT hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes FROM tariff_rates WHERE hts_code = $1 AND country = $2`,
	"put_rate": `INSERT INTO tariff_rates (id, hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (hts_code, country) DO UPDATE SET
			current_rate = EXCLUDED.current_rate,
			historical_rates = EXCLUDED.historical_rates,
			bound_rate = EXCLUDED.bound_rate,
			applied_rate = EXCLUDED.applied_rate,
			source = EXCLUDED.source,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare the hot statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, mainly for tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk rate loads).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tariff_rates (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	hts_code         TEXT NOT NULL,
	country          TEXT NOT NULL,
	current_rate     TEXT NOT NULL DEFAULT 'N/A',
	historical_rates JSONB,
	bound_rate       TEXT,
	applied_rate     TEXT,
	source           TEXT,
	notes            TEXT,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(hts_code, country)
);

CREATE INDEX IF NOT EXISTS idx_tariff_rates_hts_code ON tariff_rates(hts_code);
CREATE INDEX IF NOT EXISTS idx_tariff_rates_country ON tariff_rates(country);
CREATE INDEX IF NOT EXISTS idx_tariff_rates_pair ON tariff_rates(hts_code, country);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FetchRate(ctx context.Context, htsCode, country string) (*model.TariffRateRecord, error) {
	var rec model.TariffRateRecord
	var historyJSON []byte
	var boundRate, appliedRate, source, notes *string

	err := s.pool.QueryRow(ctx,
		`SELECT hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes
		 FROM tariff_rates WHERE hts_code = $1 AND country = $2`,
		htsCode, country,
	).Scan(&rec.HTSCode, &rec.Country, &rec.CurrentRate, &historyJSON, &boundRate, &appliedRate, &source, &notes)
	if err == pgx.ErrNoRows {
		return model.EmptyRateRecord(htsCode, country), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fetch rate %s/%s", htsCode, country)
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &rec.HistoricalRates); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal historical rates")
		}
	}
	if boundRate != nil {
		rec.BoundRate = *boundRate
	}
	if appliedRate != nil {
		rec.AppliedRate = *appliedRate
	}
	if source != nil {
		rec.Source = *source
	}
	if notes != nil {
		rec.Notes = *notes
	}
	return &rec, nil
}

func (s *PostgresStore) PutRate(ctx context.Context, rec model.TariffRateRecord) error {
	historyJSON, err := json.Marshal(rec.HistoricalRates)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal historical rates")
	}

	_, err = s.pool.Exec(ctx,
		preparedStatements["put_rate"],
		uuid.New().String(), rec.HTSCode, rec.Country, rec.CurrentRate,
		historyJSON, rec.BoundRate, rec.AppliedRate, rec.Source, rec.Notes,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put rate %s/%s", rec.HTSCode, rec.Country)
}

// PutRates bulk-upserts rate records through a temp table and COPY; much
// faster than row-at-a-time inserts for full dataset loads.
func (s *PostgresStore) PutRates(ctx context.Context, recs []model.TariffRateRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		historyJSON, err := json.Marshal(rec.HistoricalRates)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal historical rates %s/%s", rec.HTSCode, rec.Country)
		}
		rows = append(rows, []any{
			uuid.New().String(), rec.HTSCode, rec.Country, rec.CurrentRate,
			historyJSON, rec.BoundRate, rec.AppliedRate, rec.Source, rec.Notes, now,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tariff_rates",
		Columns:      []string{"id", "hts_code", "country", "current_rate", "historical_rates", "bound_rate", "applied_rate", "source", "notes", "updated_at"},
		ConflictKeys: []string{"hts_code", "country"},
		UpdateCols:   []string{"current_rate", "historical_rates", "bound_rate", "applied_rate", "source", "notes", "updated_at"},
	}, rows)
}

func (s *PostgresStore) ListRates(ctx context.Context, filter RateFilter) ([]model.TariffRateRecord, error) {
	query := `SELECT hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes
		FROM tariff_rates WHERE true`
	args := []any{}
	argIdx := 1

	if filter.HTSCode != "" {
		query += fmt.Sprintf(` AND hts_code = $%d`, argIdx)
		args = append(args, filter.HTSCode)
		argIdx++
	}
	if filter.Country != "" {
		query += fmt.Sprintf(` AND country = $%d`, argIdx)
		args = append(args, filter.Country)
		argIdx++
	}
	query += ` ORDER BY hts_code, country`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rates")
	}
	defer rows.Close()

	var recs []model.TariffRateRecord
	for rows.Next() {
		var rec model.TariffRateRecord
		var historyJSON []byte
		var boundRate, appliedRate, source, notes *string

		if err := rows.Scan(&rec.HTSCode, &rec.Country, &rec.CurrentRate, &historyJSON, &boundRate, &appliedRate, &source, &notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rate")
		}
		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &rec.HistoricalRates); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal historical rates")
			}
		}
		if boundRate != nil {
			rec.BoundRate = *boundRate
		}
		if appliedRate != nil {
			rec.AppliedRate = *appliedRate
		}
		if source != nil {
			rec.Source = *source
		}
		if notes != nil {
			rec.Notes = *notes
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list rates iterate")
}
