package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tabula_tables (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tabula_columns (
		id TEXT PRIMARY KEY,
		table_id TEXT NOT NULL REFERENCES tabula_tables (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		position INTEGER NOT NULL DEFAULT 0,
		options TEXT NOT NULL DEFAULT '[]',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (table_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS tabula_rows (
		id TEXT PRIMARY KEY,
		table_id TEXT NOT NULL REFERENCES tabula_tables (id) ON DELETE CASCADE,
		seq BIGSERIAL,
		data TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tabula_rows_table ON tabula_rows (table_id, seq)`,
}

// PostgresStore persists to PostgreSQL through a pgx connection pool. Row
// data is kept as JSON text so that cell order survives a round trip.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "store dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres dsn")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres")
	}

	s := &PostgresStore{pool: pool, logger: logger}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to create schema")
		}
	}
	logger.Info("postgres store ready",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database))
	return s, nil
}

func (s *PostgresStore) CreateTable(ctx context.Context, table *models.Table) error {
	prepareTable(table)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tabula_tables (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		table.ID, table.Name, table.Description, table.CreatedAt, table.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create table")
	}
	return nil
}

func (s *PostgresStore) GetTable(ctx context.Context, id string) (*models.Table, error) {
	var t models.Table
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM tabula_tables WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("table", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get table")
	}
	return &t, nil
}

func (s *PostgresStore) ListTables(ctx context.Context) ([]*models.Table, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM tabula_tables ORDER BY created_at, name`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list tables")
	}
	defer rows.Close()

	tables := make([]*models.Table, 0)
	for rows.Next() {
		var t models.Table
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan table")
		}
		tables = append(tables, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "error iterating tables")
	}
	return tables, nil
}

// DeleteTable relies on ON DELETE CASCADE for columns and rows.
func (s *PostgresStore) DeleteTable(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tabula_tables WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete table")
	}
	if tag.RowsAffected() == 0 {
		return notFound("table", id)
	}
	return nil
}

func (s *PostgresStore) CreateColumn(ctx context.Context, column *models.Column) error {
	if err := prepareColumn(column); err != nil {
		return err
	}
	options, err := encodeOptions(column.Options)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.requireTable(ctx, tx, column.TableID); err != nil {
			return err
		}
		if err := s.checkColumnName(ctx, tx, column.TableID, column.Name, column.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO tabula_columns (id, table_id, name, type, required, position, options, description, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			column.ID, column.TableID, column.Name, string(column.Type), column.Required, column.Order,
			options, column.Description, column.CreatedAt, column.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create column")
		}
		return nil
	})
}

func (s *PostgresStore) GetColumn(ctx context.Context, id string) (*models.Column, error) {
	c, err := pgScanColumn(s.pool.QueryRow(ctx, `SELECT `+columnFields+` FROM tabula_columns WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("column", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get column")
	}
	return c, nil
}

func (s *PostgresStore) ListColumns(ctx context.Context, tableID string) ([]*models.Column, error) {
	if err := s.requireTable(ctx, s.pool, tableID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+columnFields+` FROM tabula_columns WHERE table_id = $1 ORDER BY position, name`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list columns")
	}
	defer rows.Close()

	cols := make([]*models.Column, 0)
	for rows.Next() {
		c, err := pgScanColumn(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan column")
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "error iterating columns")
	}
	return cols, nil
}

func (s *PostgresStore) UpdateColumn(ctx context.Context, column *models.Column) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		existing, err := pgScanColumn(tx.QueryRow(ctx,
			`SELECT `+columnFields+` FROM tabula_columns WHERE id = $1 FOR UPDATE`, column.ID))
		if stderrors.Is(err, pgx.ErrNoRows) {
			return notFound("column", column.ID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to get column")
		}

		column.TableID = existing.TableID
		column.CreatedAt = existing.CreatedAt
		if err := prepareColumn(column); err != nil {
			return err
		}
		if err := s.checkColumnName(ctx, tx, column.TableID, column.Name, column.ID); err != nil {
			return err
		}
		options, err := encodeOptions(column.Options)
		if err != nil {
			return err
		}
		column.UpdatedAt = now()

		_, err = tx.Exec(ctx,
			`UPDATE tabula_columns SET name = $1, type = $2, required = $3, position = $4, options = $5, description = $6, updated_at = $7
			 WHERE id = $8`,
			column.Name, string(column.Type), column.Required, column.Order, options, column.Description,
			column.UpdatedAt, column.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to update column")
		}
		return nil
	})
}

func (s *PostgresStore) DeleteColumn(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tabula_columns WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete column")
	}
	if tag.RowsAffected() == 0 {
		return notFound("column", id)
	}
	return nil
}

func (s *PostgresStore) CreateRow(ctx context.Context, row *models.Row) error {
	return s.CreateRows(ctx, []*models.Row{row})
}

// CreateRows sends all inserts as one batch inside a transaction.
func (s *PostgresStore) CreateRows(ctx context.Context, rows []*models.Row) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	tables := make(map[string]struct{})
	for _, r := range rows {
		if err := prepareRow(r); err != nil {
			return err
		}
		tables[r.TableID] = struct{}{}
		data, err := jsonpool.Marshal(r.Data)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row data")
		}
		batch.Queue(
			`INSERT INTO tabula_rows (id, table_id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			r.ID, r.TableID, string(data), r.CreatedAt, r.UpdatedAt)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for tableID := range tables {
			if err := s.requireTable(ctx, tx, tableID); err != nil {
				return err
			}
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return errors.Wrap(err, errors.ErrorTypeQuery, fmt.Sprintf("failed to create row %d", i))
			}
		}
		if err := results.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create rows")
		}
		s.logger.Debug("inserted rows", zap.Int("rows", batch.Len()))
		return nil
	})
}

func (s *PostgresStore) GetRow(ctx context.Context, id string) (*models.Row, error) {
	r, err := pgScanRow(s.pool.QueryRow(ctx,
		`SELECT id, table_id, data, created_at, updated_at FROM tabula_rows WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("row", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get row")
	}
	return r, nil
}

func (s *PostgresStore) ListRows(ctx context.Context, tableID string) ([]*models.Row, error) {
	if err := s.requireTable(ctx, s.pool, tableID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, table_id, data, created_at, updated_at FROM tabula_rows WHERE table_id = $1 ORDER BY seq`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list rows")
	}
	defer rows.Close()

	out := make([]*models.Row, 0)
	for rows.Next() {
		r, err := pgScanRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to scan row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "error iterating rows")
	}
	return out, nil
}

func (s *PostgresStore) UpdateRow(ctx context.Context, row *models.Row) error {
	if row.Data == nil {
		row.Data = models.NewRowData()
	}
	data, err := jsonpool.Marshal(row.Data)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row data")
	}
	row.UpdatedAt = now()

	tag, err := s.pool.Exec(ctx,
		`UPDATE tabula_rows SET data = $1, updated_at = $2 WHERE id = $3`,
		string(data), row.UpdatedAt, row.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to update row")
	}
	if tag.RowsAffected() == 0 {
		return notFound("row", row.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteRow(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tabula_rows WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete row")
	}
	if tag.RowsAffected() == 0 {
		return notFound("row", id)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) requireTable(ctx context.Context, q pgQuerier, tableID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tabula_tables WHERE id = $1)`, tableID).Scan(&exists); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to look up table")
	}
	if !exists {
		return notFound("table", tableID)
	}
	return nil
}

func (s *PostgresStore) checkColumnName(ctx context.Context, q pgQuerier, tableID, name, exceptID string) error {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tabula_columns WHERE table_id = $1 AND name = $2 AND id <> $3)`,
		tableID, name, exceptID).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to check column name")
	}
	if exists {
		return duplicateColumn(tableID, name)
	}
	return nil
}

func pgScanColumn(row pgx.Row) (*models.Column, error) {
	var (
		c                models.Column
		colType, options string
	)
	if err := row.Scan(&c.ID, &c.TableID, &c.Name, &colType, &c.Required, &c.Order,
		&options, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Type = models.ColumnType(colType)
	opts, err := decodeOptions(options)
	if err != nil {
		return nil, err
	}
	c.Options = opts
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func pgScanRow(row pgx.Row) (*models.Row, error) {
	var (
		r    models.Row
		data string
	)
	if err := row.Scan(&r.ID, &r.TableID, &data, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	rd := models.NewRowData()
	if err := jsonpool.Unmarshal([]byte(data), rd); err != nil {
		return nil, fmt.Errorf("decode row %s: %w", r.ID, err)
	}
	r.Data = rd
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}
