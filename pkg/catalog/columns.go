package catalog

import (
	"context"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
)

// DefaultSelectOptions seeds a select column that has no options.
var DefaultSelectOptions = []string{"Active", "Pending", "Completed", "Archived"}

// AddColumn appends a column to a table. Select columns without options
// receive the defaults.
func (s *Service) AddColumn(ctx context.Context, tableID, name string, colType models.ColumnType, options []string) (*models.Column, error) {
	mu := s.tableLock(tableID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.Columns(ctx, tableID)
	if err != nil {
		return nil, err
	}

	col := &models.Column{
		TableID:     tableID,
		Name:        name,
		Type:        colType,
		Order:       nextOrder(current),
		Options:     withDefaultOptions(colType, options),
		Description: s.engine.Rules.Describe(name),
	}
	err = s.tracer.Trace(ctx, "add_column", func(ctx context.Context) error {
		return s.store.CreateColumn(ctx, col)
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("added column",
		zap.String("table_id", tableID),
		zap.String("column", name),
		zap.String("type", string(colType)))
	return col, nil
}

// DeleteColumn removes a column and its cells. A table keeps at least one
// column.
func (s *Service) DeleteColumn(ctx context.Context, columnID string) error {
	col, unlock, err := s.lockColumn(ctx, columnID)
	if err != nil {
		return err
	}
	defer unlock()

	cols, err := s.store.ListColumns(ctx, col.TableID)
	if err != nil {
		return err
	}
	if len(cols) <= 1 {
		return errors.New(errors.ErrorTypeConflict, "cannot delete the last column of a table").
			WithDetail("column", col.Name)
	}

	return s.tracer.Trace(ctx, "delete_column", func(ctx context.Context) error {
		if err := s.store.DeleteColumn(ctx, columnID); err != nil {
			return err
		}
		updated, err := s.rewriteRows(ctx, col.TableID, func(data *models.RowData) bool {
			if _, ok := data.Get(col.Name); !ok {
				return false
			}
			data.Delete(col.Name)
			return true
		})
		if err != nil {
			return err
		}
		s.log(ctx).Info("deleted column",
			zap.String("table_id", col.TableID),
			zap.String("column", col.Name),
			zap.Int("rows_updated", updated))
		return nil
	})
}

// RenameColumn renames a column and moves its cells to the new key.
func (s *Service) RenameColumn(ctx context.Context, columnID, name string) (*models.Column, error) {
	col, unlock, err := s.lockColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if col.Name == name {
		return col, nil
	}

	old := col.Name
	col.Name = name
	err = s.tracer.Trace(ctx, "rename_column", func(ctx context.Context) error {
		if err := s.store.UpdateColumn(ctx, col); err != nil {
			return err
		}
		_, err := s.rewriteRows(ctx, col.TableID, func(data *models.RowData) bool {
			if _, ok := data.Get(old); !ok {
				return false
			}
			data.Rename(old, name)
			return true
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// ValidateColumnType checks whether the column's stored cells allow a change
// to proposed. It never modifies the column.
func (s *Service) ValidateColumnType(ctx context.Context, columnID string, proposed models.ColumnType) (models.EvolutionResult, error) {
	col, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return models.EvolutionResult{}, err
	}
	return s.validateColumnType(ctx, col, proposed)
}

func (s *Service) validateColumnType(ctx context.Context, col *models.Column, proposed models.ColumnType) (models.EvolutionResult, error) {
	ctx, span := s.tracer.StartSpan(ctx, "validate_column_type")
	defer span.End()
	span.SetAttribute("tabula.column", col.Name)
	span.SetAttribute("tabula.proposed_type", string(proposed))

	rows, err := s.store.ListRows(ctx, col.TableID)
	if err != nil {
		span.Fail(err)
		return models.EvolutionResult{}, err
	}
	values := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		if row.Data == nil {
			continue
		}
		if v, ok := row.Data.Get(col.Name); ok && v != nil {
			values = append(values, v)
		}
	}

	result, err := s.engine.Evolution.Validate(values, col.Type, proposed)
	if err != nil {
		span.Fail(err)
		return result, err
	}
	span.SetAttribute("tabula.allowed", result.Allowed)
	return result, nil
}

// ChangeColumnType validates and applies a type change. A rejected change
// returns the validation result together with a conflict error and leaves
// the column untouched.
func (s *Service) ChangeColumnType(ctx context.Context, columnID string, proposed models.ColumnType) (*models.Column, models.EvolutionResult, error) {
	col, unlock, err := s.lockColumn(ctx, columnID)
	if err != nil {
		return nil, models.EvolutionResult{}, err
	}
	defer unlock()

	result, err := s.validateColumnType(ctx, col, proposed)
	if err != nil {
		return nil, result, err
	}
	if !result.Allowed {
		return nil, result, errors.New(errors.ErrorTypeConflict, result.Message).
			WithDetail("column", col.Name).
			WithDetail("proposed_type", string(proposed))
	}

	previous := col.Type
	col.Type = proposed
	switch proposed {
	case models.ColumnTypeSelect, models.ColumnTypeMultiSelect:
		col.Options = withDefaultOptions(proposed, col.Options)
	default:
		col.Options = nil
	}

	err = s.tracer.Trace(ctx, "change_column_type", func(ctx context.Context) error {
		return s.store.UpdateColumn(ctx, col)
	})
	if err != nil {
		return nil, result, err
	}
	s.log(ctx).Info("changed column type",
		zap.String("column", col.Name),
		zap.String("from", string(previous)),
		zap.String("to", string(proposed)))
	return col, result, nil
}

// lockColumn takes the lock of the column's table and returns the column as
// read under that lock. The first read only resolves the table.
func (s *Service) lockColumn(ctx context.Context, columnID string) (*models.Column, func(), error) {
	col, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return nil, nil, err
	}

	mu := s.tableLock(col.TableID)
	mu.Lock()

	col, err = s.store.GetColumn(ctx, columnID)
	if err != nil {
		mu.Unlock()
		return nil, nil, err
	}
	return col, mu.Unlock, nil
}

// rewriteRows applies fn to every row's data and saves the rows fn reports
// as changed.
func (s *Service) rewriteRows(ctx context.Context, tableID string, fn func(*models.RowData) bool) (int, error) {
	rows, err := s.store.ListRows(ctx, tableID)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, row := range rows {
		if row.Data == nil || !fn(row.Data) {
			continue
		}
		if err := s.store.UpdateRow(ctx, row); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func withDefaultOptions(t models.ColumnType, options []string) []string {
	if len(options) > 0 {
		return options
	}
	switch t {
	case models.ColumnTypeSelect:
		return append([]string(nil), DefaultSelectOptions...)
	case models.ColumnTypeMultiSelect:
		return []string{}
	default:
		return options
	}
}
