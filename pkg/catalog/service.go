// Package catalog manages tables, their inferred columns and their rows on
// top of a store.Store. It is the write path for the schema engine: imports
// infer and commit columns, then populate and persist rows, and column type
// changes are validated against the stored cells before they are applied.
package catalog

import (
	"context"
	"io"
	"sync"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/export"
	"github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/ajitpratap0/tabula/pkg/observability"
	"github.com/ajitpratap0/tabula/pkg/schema"
	"github.com/ajitpratap0/tabula/pkg/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Service coordinates the engine and the store.
type Service struct {
	store  store.Store
	engine *schema.Engine
	logger *zap.Logger
	tracer *observability.ComponentTracer

	// locks serialises schema changes per table
	locks sync.Map
}

// ImportOptions controls how an import treats fields the table lacks.
type ImportOptions struct {
	// AddNewColumns appends newly discovered fields as columns. When false
	// an existing table keeps its columns and new fields are dropped.
	AddNewColumns bool
}

// ImportResult summarises an import.
type ImportResult struct {
	Columns     []models.Column         `json:"columns"`
	Report      *models.InferenceReport `json:"report"`
	Quality     models.QualityReport    `json:"quality"`
	Changes     []schema.SchemaChange   `json:"changes"`
	RowsCreated int                     `json:"rows_created"`
}

// NewService creates a catalog over st. A nil engine selects the default
// rules.
func NewService(st store.Store, engine *schema.Engine, log *zap.Logger) *Service {
	log = logger.OrNop(log).Named("catalog")
	if engine == nil {
		engine = schema.NewEngine(schema.EngineConfig{}, log)
	}
	return &Service{
		store:  st,
		engine: engine,
		logger: log,
		tracer: observability.NewComponentTracer("catalog"),
	}
}

// Engine returns the schema engine the service uses.
func (s *Service) Engine() *schema.Engine { return s.engine }

func (s *Service) tableLock(tableID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(tableID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return observability.WithTrace(ctx, logger.FromContext(ctx, s.logger))
}

// CreateTable creates an empty table.
func (s *Service) CreateTable(ctx context.Context, name, description string) (*models.Table, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "table name is required")
	}
	table := &models.Table{Name: name, Description: description}
	err := s.tracer.Trace(ctx, "create_table", func(ctx context.Context) error {
		return s.store.CreateTable(ctx, table)
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("created table", zap.String("table_id", table.ID), zap.String("name", name))
	return table, nil
}

// GetTable returns a table by ID.
func (s *Service) GetTable(ctx context.Context, id string) (*models.Table, error) {
	return s.store.GetTable(ctx, id)
}

// ListTables returns every table.
func (s *Service) ListTables(ctx context.Context) ([]*models.Table, error) {
	return s.store.ListTables(ctx)
}

// Columns returns the table's columns in display order.
func (s *Service) Columns(ctx context.Context, tableID string) ([]models.Column, error) {
	cols, err := s.store.ListColumns(ctx, tableID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Column, len(cols))
	for i, c := range cols {
		out[i] = *c
	}
	return out, nil
}

// Rows returns the table's rows in creation order.
func (s *Service) Rows(ctx context.Context, tableID string) ([]*models.Row, error) {
	return s.store.ListRows(ctx, tableID)
}

// DeleteTable removes a table with its columns and rows.
func (s *Service) DeleteTable(ctx context.Context, id string) error {
	mu := s.tableLock(id)
	mu.Lock()
	defer mu.Unlock()

	err := s.tracer.Trace(ctx, "delete_table", func(ctx context.Context) error {
		return s.store.DeleteTable(ctx, id)
	})
	if err != nil {
		return err
	}
	s.locks.Delete(id)
	s.log(ctx).Info("deleted table", zap.String("table_id", id))
	return nil
}

// ImportSources infers columns from batch, commits them and stores one row
// per record.
//
// A table without columns takes every proposed column. A table that
// already has columns keeps them; with AddNewColumns set, fields it lacks
// are appended after the existing columns. Rows are populated against the
// committed columns only.
func (s *Service) ImportSources(ctx context.Context, tableID string, batch models.SourceBatch, opts ImportOptions) (*ImportResult, error) {
	ctx = logger.WithValue(ctx, logger.TableKey, tableID)
	ctx, span := s.tracer.StartSpan(ctx, "import_sources")
	defer span.End()
	span.SetAttribute("tabula.table_id", tableID)
	span.SetAttribute("tabula.records", batch.TotalRecords())

	result, err := s.importSources(ctx, tableID, batch, opts)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.AddEvent("rows_written",
		attribute.Int("columns", len(result.Columns)),
		attribute.Int("rows", result.RowsCreated))
	return result, nil
}

func (s *Service) importSources(ctx context.Context, tableID string, batch models.SourceBatch, opts ImportOptions) (*ImportResult, error) {
	if batch.TotalRecords() == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "batch contains no records")
	}

	table, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	mu := s.tableLock(tableID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.Columns(ctx, tableID)
	if err != nil {
		return nil, err
	}

	proposed, report := s.engine.Builder.Build(batch)
	changes := schema.DiffColumns(current, proposed)

	var toCreate []models.Column
	switch {
	case len(current) == 0:
		toCreate = proposed
	case opts.AddNewColumns:
		toCreate = schema.Added(changes)
	}

	committed := current
	next := nextOrder(current)
	for i := range toCreate {
		col := toCreate[i]
		col.ID = ""
		col.TableID = tableID
		col.Order = next
		next++
		if err := s.store.CreateColumn(ctx, &col); err != nil {
			return nil, errors.Wrap(err, errors.TypeOf(err), "failed to create column").
				WithDetail("column", col.Name)
		}
		committed = append(committed, col)
	}

	populated := s.engine.Populator.Populate(batch, committed)
	rows := make([]*models.Row, len(populated))
	for i, p := range populated {
		rows[i] = &models.Row{TableID: tableID, Data: p.Data}
	}
	if err := s.store.CreateRows(ctx, rows); err != nil {
		return nil, err
	}
	metrics.RowsWritten.WithLabelValues(table.Name).Add(float64(len(rows)))

	quality := s.engine.Quality.Score(batch, committed)

	s.log(ctx).Info("imported sources",
		zap.String("table_id", tableID),
		zap.Strings("sources", batch.SourceNames()),
		zap.Int("columns_created", len(toCreate)),
		zap.Int("rows", len(rows)),
		zap.Float64("quality", quality.OverallScore))

	return &ImportResult{
		Columns:     committed,
		Report:      report,
		Quality:     quality,
		Changes:     changes,
		RowsCreated: len(rows),
	}, nil
}

// UpdateCell coerces value to the named column's type and stores it in the
// row.
func (s *Service) UpdateCell(ctx context.Context, rowID, column string, value interface{}) (*models.Row, error) {
	row, err := s.store.GetRow(ctx, rowID)
	if err != nil {
		return nil, err
	}
	col, err := s.columnByName(ctx, row.TableID, column)
	if err != nil {
		return nil, err
	}

	if row.Data == nil {
		row.Data = models.NewRowData()
	}
	row.Data.Set(col.Name, s.engine.Coercer.Coerce(value, col.Type))

	err = s.tracer.Trace(ctx, "update_cell", func(ctx context.Context) error {
		return s.store.UpdateRow(ctx, row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Export writes the table to w in format.
func (s *Service) Export(ctx context.Context, tableID string, format export.Format, w io.Writer) error {
	return s.tracer.Trace(ctx, "export", func(ctx context.Context) error {
		table, err := s.store.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		cols, err := s.Columns(ctx, tableID)
		if err != nil {
			return err
		}
		rows, err := s.store.ListRows(ctx, tableID)
		if err != nil {
			return err
		}
		return export.Write(w, format, table, cols, rows)
	})
}

func (s *Service) columnByName(ctx context.Context, tableID, name string) (*models.Column, error) {
	cols, err := s.store.ListColumns(ctx, tableID)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeNotFound, "column %q not found", name).
		WithDetail("table_id", tableID)
}

func nextOrder(cols []models.Column) int {
	next := 0
	for _, c := range cols {
		if c.Order >= next {
			next = c.Order + 1
		}
	}
	return next
}
