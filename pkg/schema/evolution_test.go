package schema

import (
	"testing"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEvolutionValidate(t *testing.T) {
	logger, _ := zap.NewProduction()
	v := NewEvolutionValidator(nil, logger)

	tests := []struct {
		name      string
		values    []interface{}
		current   models.ColumnType
		proposed  models.ColumnType
		allowed   bool
		message   string
		conflicts []string
	}{
		{
			name:     "empty column",
			values:   []interface{}{nil, "", "   "},
			current:  models.ColumnTypeNumber,
			proposed: models.ColumnTypeDate,
			allowed:  true,
			message:  MessageEmptyColumn,
		},
		{
			name:      "current type self check fails",
			values:    []interface{}{"10", "abc"},
			current:   models.ColumnTypeNumber,
			proposed:  models.ColumnTypeText,
			allowed:   false,
			message:   "Cannot change to text: 1 values would be incompatible",
			conflicts: []string{"abc"},
		},
		{
			name:     "consistent column allows any change",
			values:   []interface{}{"10", "20"},
			current:  models.ColumnTypeNumber,
			proposed: models.ColumnTypeURL,
			allowed:  true,
			message:  MessageSafeChange,
		},
		{
			name:     "typed values are stringified",
			values:   []interface{}{int64(3), 2.5, true},
			current:  models.ColumnTypeText,
			proposed: models.ColumnTypeNumber,
			allowed:  true,
			message:  MessageSafeChange,
		},
		{
			name:      "conflicts are capped",
			values:    []interface{}{"a", "b", "c", "d", "5"},
			current:   models.ColumnTypeNumber,
			proposed:  models.ColumnTypeText,
			allowed:   false,
			message:   "Cannot change to text: 4 values would be incompatible",
			conflicts: []string{"a", "b", "c"},
		},
		{
			name:      "url column",
			values:    []interface{}{"https://a.io", " b.io "},
			current:   models.ColumnTypeURL,
			proposed:  models.ColumnTypeText,
			allowed:   false,
			message:   "Cannot change to text: 1 values would be incompatible",
			conflicts: []string{"b.io"},
		},
		{
			name:     "stored dates",
			values:   []interface{}{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2024-02-01"},
			current:  models.ColumnTypeDate,
			proposed: models.ColumnTypeText,
			allowed:  true,
			message:  MessageSafeChange,
		},
		{
			name:     "boolean column",
			values:   []interface{}{true, "No", "1"},
			current:  models.ColumnTypeBoolean,
			proposed: models.ColumnTypeSelect,
			allowed:  true,
			message:  MessageSafeChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(tt.values, tt.current, tt.proposed)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, result.Allowed)
			assert.Equal(t, tt.message, result.Message)
			assert.Equal(t, tt.conflicts, result.SampleConflicts)
		})
	}
}

func TestEvolutionChecksCurrentTypeOnly(t *testing.T) {
	v := NewEvolutionValidator(nil, nil)

	// Text data moving to number passes because only the current type is
	// checked.
	result, err := v.Validate([]interface{}{"hello", "world"}, models.ColumnTypeText, models.ColumnTypeNumber)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestEvolutionCheckProposedType(t *testing.T) {
	v := NewEvolutionValidator(nil, nil)
	v.CheckProposedType = true

	result, err := v.Validate([]interface{}{"hello", "42"}, models.ColumnTypeText, models.ColumnTypeNumber)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{"hello"}, result.SampleConflicts)
}

func TestEvolutionRejectsUnknownType(t *testing.T) {
	v := NewEvolutionValidator(nil, nil)

	_, err := v.Validate([]interface{}{"1"}, models.ColumnTypeNumber, models.ColumnType("currency"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestDiffColumns(t *testing.T) {
	current := []models.Column{
		{Name: "caption", Type: models.ColumnTypeText, Required: true},
		{Name: "likes", Type: models.ColumnTypeText},
		{Name: "gone", Type: models.ColumnTypeText},
	}
	proposed := []models.Column{
		{Name: "caption", Type: models.ColumnTypeText, Required: false, Order: 0},
		{Name: "likes", Type: models.ColumnTypeNumber, Order: 1},
		{Name: "views", Type: models.ColumnTypeNumber, Order: 3},
		{Name: "author", Type: models.ColumnTypeText, Order: 2},
	}

	changes := DiffColumns(current, proposed)
	require.Len(t, changes, 5)

	var kinds []ChangeType
	var fields []string
	for _, c := range changes {
		kinds = append(kinds, c.Type)
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []ChangeType{
		ChangeTypeAddField, ChangeTypeAddField,
		ChangeTypeModifyRequired, ChangeTypeModifyType,
		ChangeTypeRemoveField,
	}, kinds)
	assert.Equal(t, []string{"author", "views", "caption", "likes", "gone"}, fields)

	added := Added(changes)
	assert.Equal(t, []string{"author", "views"}, models.ColumnNames(added))

	assert.Empty(t, DiffColumns(current, current))
}
