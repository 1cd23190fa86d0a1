package schema

import (
	"sort"

	"github.com/ajitpratap0/tabula/pkg/models"
)

// ChangeType represents the type of schema change
type ChangeType string

const (
	ChangeTypeAddField       ChangeType = "ADD_FIELD"
	ChangeTypeRemoveField    ChangeType = "REMOVE_FIELD"
	ChangeTypeModifyType     ChangeType = "MODIFY_TYPE"
	ChangeTypeModifyRequired ChangeType = "MODIFY_REQUIRED"
)

// SchemaChange represents a single difference between two column lists
type SchemaChange struct {
	Type      ChangeType     `json:"type"`
	Field     string         `json:"field"`
	OldColumn *models.Column `json:"old_column,omitempty"`
	NewColumn *models.Column `json:"new_column,omitempty"`
}

// DiffColumns compares the committed columns of a table with a freshly
// proposed list. Changes are sorted by type, then field.
func DiffColumns(current, proposed []models.Column) []SchemaChange {
	changes := []SchemaChange{}

	oldColumns := make(map[string]*models.Column, len(current))
	newColumns := make(map[string]*models.Column, len(proposed))

	for i := range current {
		oldColumns[current[i].Name] = &current[i]
	}
	for i := range proposed {
		newColumns[proposed[i].Name] = &proposed[i]
	}

	// Check for removed columns
	for name, oldColumn := range oldColumns {
		if _, exists := newColumns[name]; !exists {
			changes = append(changes, SchemaChange{
				Type:      ChangeTypeRemoveField,
				Field:     name,
				OldColumn: oldColumn,
			})
		}
	}

	// Check for added or modified columns
	for name, newColumn := range newColumns {
		oldColumn, exists := oldColumns[name]
		if !exists {
			changes = append(changes, SchemaChange{
				Type:      ChangeTypeAddField,
				Field:     name,
				NewColumn: newColumn,
			})
			continue
		}

		if oldColumn.Type != newColumn.Type {
			changes = append(changes, SchemaChange{
				Type:      ChangeTypeModifyType,
				Field:     name,
				OldColumn: oldColumn,
				NewColumn: newColumn,
			})
		}

		if oldColumn.Required != newColumn.Required {
			changes = append(changes, SchemaChange{
				Type:      ChangeTypeModifyRequired,
				Field:     name,
				OldColumn: oldColumn,
				NewColumn: newColumn,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Type != changes[j].Type {
			return changes[i].Type < changes[j].Type
		}
		return changes[i].Field < changes[j].Field
	})

	return changes
}

// Added returns the proposed columns of ADD_FIELD changes in proposal order.
func Added(changes []SchemaChange) []models.Column {
	var added []models.Column
	for _, c := range changes {
		if c.Type == ChangeTypeAddField && c.NewColumn != nil {
			added = append(added, *c.NewColumn)
		}
	}
	sort.SliceStable(added, func(i, j int) bool { return added[i].Order < added[j].Order })
	return added
}
