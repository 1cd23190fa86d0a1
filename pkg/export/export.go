// Package export renders a table's columns and rows as CSV, JSON or
// newline-delimited JSON.
//
// Only cells named by a column are written, in column order. Keys left in
// row data by earlier schema versions are ignored.
package export

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	stringpool "github.com/ajitpratap0/tabula/pkg/strings"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// ParseFormat accepts csv, json or jsonl in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatJSONL:
		return f, nil
	default:
		return "", errors.Newf(errors.ErrorTypeValidation, "unsupported export format %q", s)
	}
}

// Write encodes the table in format.
func Write(w io.Writer, format Format, table *models.Table, columns []models.Column, rows []*models.Row) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, columns, rows)
	case FormatJSON:
		return WriteJSON(w, table, columns, rows)
	case FormatJSONL:
		return WriteJSONL(w, columns, rows)
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unsupported export format %q", format)
	}
}

// WriteCSV writes a header of ID, the column names and Created At, then one
// record per row. Lists and objects are JSON encoded.
func WriteCSV(w io.Writer, columns []models.Column, rows []*models.Row) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(columns)+2)
	header = append(header, "ID")
	header = append(header, models.ColumnNames(columns)...)
	header = append(header, "Created At")
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv header")
	}

	record := make([]string, len(header))
	for _, row := range rows {
		record[0] = row.ID
		for i, col := range columns {
			record[i+1] = ""
			if row.Data == nil {
				continue
			}
			if v, ok := row.Data.Get(col.Name); ok {
				record[i+1] = cellString(v)
			}
		}
		record[len(record)-1] = formatTime(row.CreatedAt)
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv row").
				WithDetail("row_id", row.ID)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush csv")
	}
	return nil
}

type jsonTable struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type jsonColumn struct {
	Name     string            `json:"name"`
	Type     models.ColumnType `json:"type"`
	Required bool              `json:"required"`
	Options  []string          `json:"options,omitempty"`
}

type jsonRow struct {
	ID        string          `json:"id"`
	Data      *models.RowData `json:"data"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type jsonDocument struct {
	Table   jsonTable    `json:"table"`
	Columns []jsonColumn `json:"columns"`
	Rows    []jsonRow    `json:"rows"`
}

// WriteJSON writes one indented document holding the table, its columns
// and its rows.
func WriteJSON(w io.Writer, table *models.Table, columns []models.Column, rows []*models.Row) error {
	if table == nil {
		return errors.New(errors.ErrorTypeValidation, "table is required")
	}

	doc := jsonDocument{
		Table: jsonTable{
			ID:          table.ID,
			Name:        table.Name,
			Description: table.Description,
			CreatedAt:   formatTime(table.CreatedAt),
		},
		Columns: make([]jsonColumn, len(columns)),
		Rows:    make([]jsonRow, len(rows)),
	}
	for i, col := range columns {
		doc.Columns[i] = jsonColumn{Name: col.Name, Type: col.Type, Required: col.Required, Options: col.Options}
	}
	for i, row := range rows {
		doc.Rows[i] = newJSONRow(row, columns)
	}

	enc := jsonpool.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode table")
	}
	return nil
}

// WriteJSONL writes one row object per line.
func WriteJSONL(w io.Writer, columns []models.Column, rows []*models.Row) error {
	enc, err := jsonpool.NewStreamingEncoder(w, false)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to start jsonl stream")
	}
	for _, row := range rows {
		if err := enc.Encode(newJSONRow(row, columns)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row").
				WithDetail("row_id", row.ID)
		}
	}
	return enc.Close()
}

func newJSONRow(row *models.Row, columns []models.Column) jsonRow {
	data := models.NewRowData()
	if row.Data != nil {
		for _, col := range columns {
			if v, ok := row.Data.Get(col.Name); ok {
				data.Set(col.Name, v)
			}
		}
	}
	return jsonRow{
		ID:        row.ID,
		Data:      data,
		CreatedAt: formatTime(row.CreatedAt),
		UpdatedAt: formatTime(row.UpdatedAt),
	}
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case []string:
		if s, err := jsonpool.MarshalString(val); err == nil {
			return s
		}
	case time.Time:
		return formatTime(val)
	}
	return stringpool.ValueToString(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
