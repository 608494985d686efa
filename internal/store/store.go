// Package store persists students and import runs in PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

// Averages are stored as NUMERIC(5,2).
const averageScale = 2

var (
	// ErrDuplicateStudent is returned when a name or external id is taken.
	ErrDuplicateStudent = errors.New("student already exists")

	// ErrAverageOutOfRange is returned when an average does not fit NUMERIC(5,2).
	ErrAverageOutOfRange = errors.New("average out of range")
)

// Constraint names from the students migration.
const (
	constraintName       = "students_name_key"
	constraintExternalID = "students_external_id_key"
)

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open creates a pool and verifies the connection.
func Open(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return pool, nil
}

// Postgres implements core.Store and core.Reader.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a store on an open pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var (
	_ core.Store  = (*Postgres)(nil)
	_ core.Reader = (*Postgres)(nil)
)

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// LoadExistingKeys reads every stored name and external id.
func (p *Postgres) LoadExistingKeys(ctx context.Context) (*core.Snapshot, error) {
	rows, err := p.pool.Query(ctx, `SELECT name, external_id FROM students`)
	if err != nil {
		return nil, errors.Wrap(err, "query student keys")
	}
	defer rows.Close()

	var (
		names []string
		ids   []int64
	)
	for rows.Next() {
		var (
			name string
			id   int64
		)
		if err := rows.Scan(&name, &id); err != nil {
			return nil, errors.Wrap(err, "scan student key")
		}
		names = append(names, name)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate student keys")
	}

	return core.NewSnapshot(names, ids), nil
}

// Persist inserts one student and returns its id. Each call is its own
// statement; a failure leaves earlier inserts in place.
func (p *Postgres) Persist(ctx context.Context, rec core.StudentRecord) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO students (name, external_id, start_year, current_average, graduation_average, graduated)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.Name,
		rec.ExternalID,
		rec.StartYear,
		toAverage(rec.CurrentAverage),
		toAverage(rec.GraduationAverage),
		rec.Graduated,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err, rec)
	}
	return id, nil
}

// ListStudents returns students newest first.
func (p *Postgres) ListStudents(ctx context.Context, limit, offset int) ([]core.Student, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, external_id, start_year, current_average, graduation_average, graduated, created_at
		FROM students
		ORDER BY id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "query students")
	}
	defer rows.Close()

	var out []core.Student
	for rows.Next() {
		var (
			s          core.Student
			current    decimal.NullDecimal
			graduation decimal.NullDecimal
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.ExternalID, &s.StartYear,
			&current, &graduation, &s.Graduated, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan student")
		}
		s.CurrentAverage = fromAverage(current)
		s.GraduationAverage = fromAverage(graduation)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate students")
	}
	return out, nil
}

// RecordImport stores an import run.
func (p *Postgres) RecordImport(ctx context.Context, run core.ImportRun) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO imports (id, file_name, total_rows, accepted, rejected, inserted, failed, client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID,
		run.FileName,
		run.TotalRows,
		run.Accepted,
		run.Rejected,
		run.Inserted,
		run.Failed,
		optionalText(run.ClientIP),
		optionalText(run.UserAgent),
		run.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert import run")
	}
	return nil
}

// ListImports returns the most recent import runs.
func (p *Postgres) ListImports(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, file_name, total_rows, accepted, rejected, inserted, failed, client_ip, user_agent, created_at
		FROM imports
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query imports")
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ImportRun, error) {
		var (
			run       core.ImportRun
			clientIP  pgtype.Text
			userAgent pgtype.Text
		)
		err := row.Scan(&run.ID, &run.FileName, &run.TotalRows, &run.Accepted, &run.Rejected,
			&run.Inserted, &run.Failed, &clientIP, &userAgent, &run.CreatedAt)
		run.ClientIP = clientIP.String
		run.UserAgent = userAgent.String
		return run, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan imports")
	}
	return runs, nil
}

// mapWriteError turns constraint violations into store errors that name
// the offending value.
func mapWriteError(err error, rec core.StudentRecord) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.Wrap(err, "insert student")
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		switch pgErr.ConstraintName {
		case constraintName:
			return errors.Wrapf(ErrDuplicateStudent, "name %q", rec.Name)
		case constraintExternalID:
			return errors.Wrapf(ErrDuplicateStudent, "external_id %d", rec.ExternalID)
		default:
			return ErrDuplicateStudent
		}
	case "22003": // numeric_value_out_of_range
		return ErrAverageOutOfRange
	}
	return errors.Wrap(err, "insert student")
}

// toAverage rounds an average to the stored scale. nil stays NULL.
func toAverage(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f).Round(averageScale))
}

func fromAverage(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
