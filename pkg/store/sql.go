package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// dialect holds the per-driver differences of SQLStore. Both supported
// drivers use ? placeholders.
type dialect struct {
	driverName string
	schema     []string
	configure  func(db *sql.DB)
}

var sqliteDialect = dialect{
	driverName: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tabula_tables (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tabula_columns (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			required INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			options TEXT NOT NULL DEFAULT '[]',
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (table_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS tabula_rows (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tabula_columns_table ON tabula_columns (table_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tabula_rows_table ON tabula_rows (table_id, seq)`,
	},
	configure: func(db *sql.DB) {
		// A single writer avoids SQLITE_BUSY under concurrent catalog calls.
		db.SetMaxOpenConns(1)
	},
}

var mysqlDialect = dialect{
	driverName: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tabula_tables (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		) CHARACTER SET utf8mb4`,
		`CREATE TABLE IF NOT EXISTS tabula_columns (
			id VARCHAR(36) PRIMARY KEY,
			table_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			required BOOLEAN NOT NULL DEFAULT FALSE,
			position INT NOT NULL DEFAULT 0,
			options TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			UNIQUE KEY uq_tabula_columns_name (table_id, name),
			KEY idx_tabula_columns_table (table_id)
		) CHARACTER SET utf8mb4`,
		`CREATE TABLE IF NOT EXISTS tabula_rows (
			id VARCHAR(36) PRIMARY KEY,
			table_id VARCHAR(36) NOT NULL,
			seq BIGINT NOT NULL,
			data LONGTEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			KEY idx_tabula_rows_table (table_id, seq)
		) CHARACTER SET utf8mb4`,
	},
	configure: func(db *sql.DB) {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)
	},
}

// SQLStore persists to SQLite or MySQL through database/sql. Timestamps are
// stored as Unix nanoseconds; row data and column options as JSON text.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens dsn with driver ("sqlite" or "mysql") and creates the
// schema if needed.
func NewSQLStore(ctx context.Context, driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	var d dialect
	switch driver {
	case DriverSQLite:
		d = sqliteDialect
	case DriverMySQL:
		d = mysqlDialect
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported sql driver %q", driver)
	}
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "store dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, fmt.Sprintf("open %s", driver))
	}
	d.configure(db)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, fmt.Sprintf("connect %s", driver))
	}

	s := &SQLStore{db: db, dialect: d, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("sql store ready")
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create schema")
		}
	}
	s.logger.Debug("schema migrated", zap.Int("statements", len(s.dialect.schema)))
	return nil
}

func (s *SQLStore) CreateTable(ctx context.Context, table *models.Table) error {
	prepareTable(table)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tabula_tables (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		table.ID, table.Name, table.Description, table.CreatedAt.UnixNano(), table.UpdatedAt.UnixNano())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create table")
	}
	return nil
}

func (s *SQLStore) GetTable(ctx context.Context, id string) (*models.Table, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM tabula_tables WHERE id = ?`, id)
	t, err := scanTable(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound("table", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get table")
	}
	return t, nil
}

func (s *SQLStore) ListTables(ctx context.Context) ([]*models.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM tabula_tables ORDER BY created_at, name`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list tables")
	}
	defer rows.Close()

	tables := make([]*models.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan table")
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "error iterating tables")
	}
	return tables, nil
}

func (s *SQLStore) DeleteTable(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tabula_tables WHERE id = ?`, id)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete table")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("table", id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tabula_columns WHERE table_id = ?`, id); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete columns")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tabula_rows WHERE table_id = ?`, id); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete rows")
		}
		return nil
	})
}

func (s *SQLStore) CreateColumn(ctx context.Context, column *models.Column) error {
	if err := prepareColumn(column); err != nil {
		return err
	}
	options, err := encodeOptions(column.Options)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireTable(ctx, tx, column.TableID); err != nil {
			return err
		}
		if err := checkColumnName(ctx, tx, column.TableID, column.Name, column.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tabula_columns (id, table_id, name, type, required, position, options, description, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			column.ID, column.TableID, column.Name, string(column.Type), column.Required, column.Order,
			options, column.Description, column.CreatedAt.UnixNano(), column.UpdatedAt.UnixNano())
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create column")
		}
		return nil
	})
}

func (s *SQLStore) GetColumn(ctx context.Context, id string) (*models.Column, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columnFields+` FROM tabula_columns WHERE id = ?`, id)
	c, err := scanColumn(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound("column", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get column")
	}
	return c, nil
}

func (s *SQLStore) ListColumns(ctx context.Context, tableID string) ([]*models.Column, error) {
	if err := requireTable(ctx, s.db, tableID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columnFields+` FROM tabula_columns WHERE table_id = ? ORDER BY position, name`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list columns")
	}
	defer rows.Close()

	cols := make([]*models.Column, 0)
	for rows.Next() {
		c, err := scanColumn(rows)
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

func (s *SQLStore) UpdateColumn(ctx context.Context, column *models.Column) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanColumn(tx.QueryRowContext(ctx,
			`SELECT `+columnFields+` FROM tabula_columns WHERE id = ?`, column.ID))
		if stderrors.Is(err, sql.ErrNoRows) {
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
		if err := checkColumnName(ctx, tx, column.TableID, column.Name, column.ID); err != nil {
			return err
		}
		options, err := encodeOptions(column.Options)
		if err != nil {
			return err
		}
		column.UpdatedAt = now()

		_, err = tx.ExecContext(ctx,
			`UPDATE tabula_columns SET name = ?, type = ?, required = ?, position = ?, options = ?, description = ?, updated_at = ?
			 WHERE id = ?`,
			column.Name, string(column.Type), column.Required, column.Order, options, column.Description,
			column.UpdatedAt.UnixNano(), column.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to update column")
		}
		return nil
	})
}

func (s *SQLStore) DeleteColumn(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tabula_columns WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete column")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("column", id)
	}
	return nil
}

func (s *SQLStore) CreateRow(ctx context.Context, row *models.Row) error {
	return s.CreateRows(ctx, []*models.Row{row})
}

// CreateRows inserts rows in one transaction. Sequence numbers continue from
// the highest one stored for each table.
func (s *SQLStore) CreateRows(ctx context.Context, rows []*models.Row) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if err := prepareRow(r); err != nil {
			return err
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		next := make(map[string]int64)
		for _, r := range rows {
			seq, ok := next[r.TableID]
			if !ok {
				if err := requireTable(ctx, tx, r.TableID); err != nil {
					return err
				}
				var last sql.NullInt64
				if err := tx.QueryRowContext(ctx,
					`SELECT MAX(seq) FROM tabula_rows WHERE table_id = ?`, r.TableID).Scan(&last); err != nil {
					return errors.Wrap(err, errors.ErrorTypeQuery, "failed to read row sequence")
				}
				seq = last.Int64
			}
			seq++
			next[r.TableID] = seq

			data, err := jsonpool.Marshal(r.Data)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row data")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO tabula_rows (id, table_id, seq, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
				r.ID, r.TableID, seq, string(data), r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano())
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create row")
			}
		}
		return nil
	})
}

func (s *SQLStore) GetRow(ctx context.Context, id string) (*models.Row, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, table_id, data, created_at, updated_at FROM tabula_rows WHERE id = ?`, id)
	r, err := scanRow(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound("row", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get row")
	}
	return r, nil
}

func (s *SQLStore) ListRows(ctx context.Context, tableID string) ([]*models.Row, error) {
	if err := requireTable(ctx, s.db, tableID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, table_id, data, created_at, updated_at FROM tabula_rows WHERE table_id = ? ORDER BY seq`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list rows")
	}
	defer rows.Close()

	out := make([]*models.Row, 0)
	for rows.Next() {
		r, err := scanRow(rows)
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

func (s *SQLStore) UpdateRow(ctx context.Context, row *models.Row) error {
	if row.Data == nil {
		row.Data = models.NewRowData()
	}
	data, err := jsonpool.Marshal(row.Data)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row data")
	}
	row.UpdatedAt = now()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tabula_rows SET data = ?, updated_at = ? WHERE id = ?`,
		string(data), row.UpdatedAt.UnixNano(), row.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to update row")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("row", row.ID)
	}
	return nil
}

func (s *SQLStore) DeleteRow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tabula_rows WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to delete row")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("row", id)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to commit transaction")
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

const columnFields = `id, table_id, name, type, required, position, options, description, created_at, updated_at`

func requireTable(ctx context.Context, q querier, tableID string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tabula_tables WHERE id = ?`, tableID).Scan(&n); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to look up table")
	}
	if n == 0 {
		return notFound("table", tableID)
	}
	return nil
}

func checkColumnName(ctx context.Context, q querier, tableID, name, exceptID string) error {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tabula_columns WHERE table_id = ? AND name = ? AND id <> ?`,
		tableID, name, exceptID).Scan(&n)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to check column name")
	}
	if n > 0 {
		return duplicateColumn(tableID, name)
	}
	return nil
}

func scanTable(sc scanner) (*models.Table, error) {
	var (
		t                models.Table
		created, updated int64
	)
	if err := sc.Scan(&t.ID, &t.Name, &t.Description, &created, &updated); err != nil {
		return nil, err
	}
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return &t, nil
}

func scanColumn(sc scanner) (*models.Column, error) {
	var (
		c                models.Column
		colType, options string
		created, updated int64
	)
	if err := sc.Scan(&c.ID, &c.TableID, &c.Name, &colType, &c.Required, &c.Order,
		&options, &c.Description, &created, &updated); err != nil {
		return nil, err
	}
	c.Type = models.ColumnType(colType)
	opts, err := decodeOptions(options)
	if err != nil {
		return nil, err
	}
	c.Options = opts
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)
	return &c, nil
}

func scanRow(sc scanner) (*models.Row, error) {
	var (
		r                models.Row
		data             string
		created, updated int64
	)
	if err := sc.Scan(&r.ID, &r.TableID, &data, &created, &updated); err != nil {
		return nil, err
	}
	rd := models.NewRowData()
	if err := jsonpool.Unmarshal([]byte(data), rd); err != nil {
		return nil, fmt.Errorf("decode row %s: %w", r.ID, err)
	}
	r.Data = rd
	r.CreatedAt = fromNanos(created)
	r.UpdatedAt = fromNanos(updated)
	return &r, nil
}

func encodeOptions(options []string) (string, error) {
	if options == nil {
		options = []string{}
	}
	b, err := jsonpool.Marshal(options)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "failed to encode column options")
	}
	return string(b), nil
}

func decodeOptions(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var opts []string
	if err := jsonpool.Unmarshal([]byte(s), &opts); err != nil {
		return nil, fmt.Errorf("decode column options: %w", err)
	}
	if len(opts) == 0 {
		return nil, nil
	}
	return opts, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
