package models

import (
	"strings"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
)

// ColumnType is the semantic type declared for a column.
type ColumnType string

const (
	ColumnTypeText        ColumnType = "text"
	ColumnTypeNumber      ColumnType = "number"
	ColumnTypeDate        ColumnType = "date"
	ColumnTypeBoolean     ColumnType = "boolean"
	ColumnTypeURL         ColumnType = "url"
	ColumnTypeJSON        ColumnType = "json"
	ColumnTypeSelect      ColumnType = "select"
	ColumnTypeMultiSelect ColumnType = "multi_select"
)

var allColumnTypes = []ColumnType{
	ColumnTypeText,
	ColumnTypeNumber,
	ColumnTypeDate,
	ColumnTypeBoolean,
	ColumnTypeURL,
	ColumnTypeJSON,
	ColumnTypeSelect,
	ColumnTypeMultiSelect,
}

// AllColumnTypes lists every valid column type in declaration order.
func AllColumnTypes() []ColumnType {
	out := make([]ColumnType, len(allColumnTypes))
	copy(out, allColumnTypes)
	return out
}

// ParseColumnType validates s as a column type. Matching is case-insensitive.
func ParseColumnType(s string) (ColumnType, error) {
	candidate := ColumnType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range allColumnTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "invalid column type %q", s)
}

// Valid reports whether t is one of the declared column types.
func (t ColumnType) Valid() bool {
	for _, known := range allColumnTypes {
		if known == t {
			return true
		}
	}
	return false
}

// IsInferable reports whether the inferencer may produce t. select and
// multi_select are manual overrides only.
func (t ColumnType) IsInferable() bool {
	return t.Valid() && t != ColumnTypeSelect && t != ColumnTypeMultiSelect
}

// Table owns an ordered set of columns and an unordered set of rows.
type Table struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Column is the schema metadata for one named, typed slot in a table.
// Names are unique within a table.
type Column struct {
	ID          string     `json:"id,omitempty"`
	TableID     string     `json:"table_id,omitempty"`
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Required    bool       `json:"required"`
	Order       int        `json:"order"`
	Options     []string   `json:"options,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// Row holds the cell values of one table row keyed by column name.
type Row struct {
	ID        string    `json:"id"`
	TableID   string    `json:"table_id"`
	Data      *RowData  `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ColumnNames returns the names of cols in slice order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
