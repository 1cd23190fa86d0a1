// Package store persists tables, columns and rows for the catalog. All
// implementations are safe for concurrent use.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Supported drivers for Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Store is the persistence collaborator of the catalog service.
//
// Create methods assign an ID and timestamps when they are unset. Lookups of
// missing entities return a not_found error; a duplicate column name within
// a table returns a conflict error.
type Store interface {
	// Tables
	CreateTable(ctx context.Context, table *models.Table) error
	GetTable(ctx context.Context, id string) (*models.Table, error)
	ListTables(ctx context.Context) ([]*models.Table, error)
	// DeleteTable removes the table with its columns and rows.
	DeleteTable(ctx context.Context, id string) error

	// Columns
	CreateColumn(ctx context.Context, column *models.Column) error
	GetColumn(ctx context.Context, id string) (*models.Column, error)
	// ListColumns returns the columns of a table by ascending Order.
	ListColumns(ctx context.Context, tableID string) ([]*models.Column, error)
	UpdateColumn(ctx context.Context, column *models.Column) error
	DeleteColumn(ctx context.Context, id string) error

	// Rows
	CreateRow(ctx context.Context, row *models.Row) error
	CreateRows(ctx context.Context, rows []*models.Row) error
	GetRow(ctx context.Context, id string) (*models.Row, error)
	// ListRows returns the rows of a table in creation order.
	ListRows(ctx context.Context, tableID string) ([]*models.Row, error)
	UpdateRow(ctx context.Context, row *models.Row) error
	DeleteRow(ctx context.Context, id string) error

	Close() error
}

// Open creates a store for driver. dsn is ignored by the memory driver.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("driver", driver))

	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverMySQL:
		return NewSQLStore(ctx, strings.ToLower(driver), dsn, logger)
	case DriverPostgres, "postgresql":
		return NewPostgresStore(ctx, dsn, logger)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported store driver %q", driver)
	}
}

func notFound(kind, id string) error {
	return errors.Newf(errors.ErrorTypeNotFound, "%s %s not found", kind, id).
		WithDetail(kind+"_id", id)
}

func duplicateColumn(tableID, name string) error {
	return errors.Newf(errors.ErrorTypeConflict, "column %q already exists", name).
		WithDetail("table_id", tableID).
		WithDetail("column", name)
}

func now() time.Time {
	return time.Now().UTC()
}

func prepareTable(t *models.Table) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	ts := now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = ts
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
}

func prepareColumn(c *models.Column) error {
	if c.TableID == "" {
		return errors.New(errors.ErrorTypeValidation, "column has no table")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New(errors.ErrorTypeValidation, "column name is empty")
	}
	if !c.Type.Valid() {
		return errors.Newf(errors.ErrorTypeValidation, "invalid column type %q", c.Type)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	ts := now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = ts
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return nil
}

func prepareRow(r *models.Row) error {
	if r.TableID == "" {
		return errors.New(errors.ErrorTypeValidation, "row has no table")
	}
	if r.Data == nil {
		r.Data = models.NewRowData()
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	ts := now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = ts
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return nil
}

func cloneColumn(c *models.Column) *models.Column {
	out := *c
	if c.Options != nil {
		out.Options = append([]string(nil), c.Options...)
	}
	return &out
}

func cloneRow(r *models.Row) *models.Row {
	out := *r
	out.Data = r.Data.Clone()
	return &out
}
