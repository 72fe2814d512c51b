package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tariff-cli/internal/model"
)

// SQLiteStore implements RateStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tariff_rates (
	id               TEXT PRIMARY KEY,
	hts_code         TEXT NOT NULL,
	country          TEXT NOT NULL,
	current_rate     TEXT NOT NULL DEFAULT 'N/A',
	historical_rates TEXT,
	bound_rate       TEXT,
	applied_rate     TEXT,
	source           TEXT,
	notes            TEXT,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(hts_code, country)
);

CREATE INDEX IF NOT EXISTS idx_tariff_rates_hts_code ON tariff_rates(hts_code);
CREATE INDEX IF NOT EXISTS idx_tariff_rates_country ON tariff_rates(country);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FetchRate(ctx context.Context, htsCode, country string) (*model.TariffRateRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes
		 FROM tariff_rates WHERE hts_code = ? AND country = ?`,
		htsCode, country,
	)

	rec, err := scanRate(row)
	if err == sql.ErrNoRows {
		return model.EmptyRateRecord(htsCode, country), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: fetch rate %s/%s", htsCode, country)
	}
	return rec, nil
}

func (s *SQLiteStore) PutRate(ctx context.Context, rec model.TariffRateRecord) error {
	historyJSON, err := json.Marshal(rec.HistoricalRates)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal historical rates")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tariff_rates (id, hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(hts_code, country) DO UPDATE SET
			current_rate = excluded.current_rate,
			historical_rates = excluded.historical_rates,
			bound_rate = excluded.bound_rate,
			applied_rate = excluded.applied_rate,
			source = excluded.source,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		uuid.New().String(), rec.HTSCode, rec.Country, rec.CurrentRate,
		string(historyJSON), rec.BoundRate, rec.AppliedRate, rec.Source, rec.Notes,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put rate %s/%s", rec.HTSCode, rec.Country)
}

func (s *SQLiteStore) PutRates(ctx context.Context, recs []model.TariffRateRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tariff_rates (id, hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(hts_code, country) DO UPDATE SET
			current_rate = excluded.current_rate,
			historical_rates = excluded.historical_rates,
			bound_rate = excluded.bound_rate,
			applied_rate = excluded.applied_rate,
			source = excluded.source,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare put rates")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range recs {
		historyJSON, err := json.Marshal(rec.HistoricalRates)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal historical rates")
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), rec.HTSCode, rec.Country, rec.CurrentRate,
			string(historyJSON), rec.BoundRate, rec.AppliedRate, rec.Source, rec.Notes, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: put rate %s/%s", rec.HTSCode, rec.Country)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit put rates")
	}
	return int64(len(recs)), nil
}

func (s *SQLiteStore) ListRates(ctx context.Context, filter RateFilter) ([]model.TariffRateRecord, error) {
	query := `SELECT hts_code, country, current_rate, historical_rates, bound_rate, applied_rate, source, notes
		FROM tariff_rates WHERE 1=1`
	var args []any

	if filter.HTSCode != "" {
		query += ` AND hts_code = ?`
		args = append(args, filter.HTSCode)
	}
	if filter.Country != "" {
		query += ` AND country = ?`
		args = append(args, filter.Country)
	}
	query += ` ORDER BY hts_code, country`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rates")
	}
	defer rows.Close()

	var recs []model.TariffRateRecord
	for rows.Next() {
		rec, err := scanRate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rate")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list rates iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRate(row scannable) (*model.TariffRateRecord, error) {
	var rec model.TariffRateRecord
	var historyJSON, boundRate, appliedRate, source, notes sql.NullString

	err := row.Scan(&rec.HTSCode, &rec.Country, &rec.CurrentRate, &historyJSON, &boundRate, &appliedRate, &source, &notes)
	if err != nil {
		return nil, err
	}

	if historyJSON.Valid && historyJSON.String != "" && historyJSON.String != "null" {
		if err := json.Unmarshal([]byte(historyJSON.String), &rec.HistoricalRates); err != nil {
			return nil, eris.Wrap(err, "unmarshal historical rates")
		}
	}
	rec.BoundRate = boundRate.String
	rec.AppliedRate = appliedRate.String
	rec.Source = source.String
	rec.Notes = notes.String
	return &rec, nil
}
