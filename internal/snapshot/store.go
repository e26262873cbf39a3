package snapshot

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmc-dx/rmrp/internal/shared/errors"
)

// Store provides access to the append-only bed status report log.
type Store interface {
	// Insert appends report rows. Rows are never updated or deleted.
	Insert(ctx context.Context, records []Record) error

	// LatestForDay returns the most recent report row per ward for the
	// given calendar day. An empty day yields an empty slice, not an
	// error.
	LatestForDay(ctx context.Context, day time.Time) ([]Record, error)
}

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a bed status store on a connection pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert appends report rows in a single transaction
func (s *PostgresStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO wardops.bed_status_reports (
			id, ward_code, report_date, reported_at,
			admissions, discharges, in_use, appointments, checkups
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.ID, string(r.Ward), r.ReportDate, r.ReportedAt,
			r.Admissions, r.Discharges, r.InUse, r.Appointments, r.Checkups,
		)
		if err != nil {
			return errors.Wrap(err, "failed to insert bed status report")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit bed status reports")
	}

	return nil
}

// LatestForDay returns the most recent report row per ward on a day
func (s *PostgresStore) LatestForDay(ctx context.Context, day time.Time) ([]Record, error) {
	query := `
		SELECT DISTINCT ON (ward_code)
			id, ward_code, report_date, reported_at,
			admissions, discharges, in_use, appointments, checkups
		FROM wardops.bed_status_reports
		WHERE report_date = $1
		ORDER BY ward_code, reported_at DESC`

	rows, err := s.pool.Query(ctx, query, day)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query bed status reports")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.ID, &r.Ward, &r.ReportDate, &r.ReportedAt,
			&r.Admissions, &r.Discharges, &r.InUse, &r.Appointments, &r.Checkups,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan bed status report")
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
