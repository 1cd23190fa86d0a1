package schema

import (
	"testing"
	"time"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceNullForEveryType(t *testing.T) {
	c := NewCoercer(nil, nil)
	for _, ct := range models.AllColumnTypes() {
		assert.Nil(t, c.Coerce(nil, ct), ct)
		assert.Nil(t, c.Coerce("", ct), ct)
	}
}

func TestCoerceNumber(t *testing.T) {
	c := NewCoercer(nil, nil)

	tests := []struct {
		name string
		raw  interface{}
		want interface{}
	}{
		{"thousands separator", "1,234", int64(1234)},
		{"whitespace", " 12 345 ", int64(12345)},
		{"decimal", "1,234.50", 1234.5},
		{"native int passes through", 42, 42},
		{"native float passes through", 2.5, 2.5},
		{"json integer", jsonpool.Number("7"), int64(7)},
		{"json float", jsonpool.Number("7.25"), 7.25},
		{"json exponent", jsonpool.Number("1e3"), 1000.0},
		{"exponent text kept", "1e5", "1e5"},
		{"garbage kept", "abc", "abc"},
		{"bool kept", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Coerce(tt.raw, models.ColumnTypeNumber))
		})
	}
}

func TestTryCoerceReportsFailure(t *testing.T) {
	c := NewCoercer(nil, nil)

	v, err := c.TryCoerce("abc", models.ColumnTypeNumber)
	assert.Error(t, err)
	assert.Equal(t, "abc", v)

	v, err = c.TryCoerce("yesterday", models.ColumnTypeDate)
	assert.Error(t, err)
	assert.Equal(t, "yesterday", v)

	v, err = c.TryCoerce("10", models.ColumnTypeNumber)
	assert.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestCoerceFailureIsCounted(t *testing.T) {
	c := NewCoercer(nil, nil)
	counter := metrics.CoercionsTotal.WithLabelValues(string(models.ColumnTypeNumber), metrics.OutcomeFailed)

	before := testutil.ToFloat64(counter)
	c.Coerce("not a number", models.ColumnTypeNumber)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestCoerceDate(t *testing.T) {
	c := NewCoercer(nil, nil)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00.123456Z", time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T12:30:00+02:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := c.Coerce(tt.raw, models.ColumnTypeDate)
			ts, ok := got.(time.Time)
			require.True(t, ok, "got %T", got)
			assert.True(t, tt.want.Equal(ts))
			assert.Equal(t, time.UTC, ts.Location())
		})
	}

	assert.Equal(t, "15/01/2024", c.Coerce("15/01/2024", models.ColumnTypeDate))
	assert.Equal(t, int64(1700000000), c.Coerce(int64(1700000000), models.ColumnTypeDate))
}

func TestCoerceBoolean(t *testing.T) {
	c := NewCoercer(nil, nil)

	tests := []struct {
		raw  interface{}
		want bool
	}{
		{true, true},
		{false, false},
		{"TRUE", true},
		{"yes", true},
		{"1", true},
		{"On", true},
		{"no", false},
		{"maybe", false},
		{1, true},
		{0, false},
		{0.0, false},
		{jsonpool.Number("2"), true},
		{[]interface{}{}, false},
		{map[string]interface{}{"a": 1}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Coerce(tt.raw, models.ColumnTypeBoolean), "%v", tt.raw)
	}
}

func TestCoerceURL(t *testing.T) {
	c := NewCoercer(nil, nil)

	assert.Equal(t, "https://example.com", c.Coerce("example.com", models.ColumnTypeURL))
	assert.Equal(t, "http://example.com", c.Coerce("http://example.com", models.ColumnTypeURL))
	assert.Equal(t, "https://example.com/a", c.Coerce("https://example.com/a", models.ColumnTypeURL))
	assert.Equal(t, "123", c.Coerce(123, models.ColumnTypeURL))
}

func TestCoercePassThrough(t *testing.T) {
	c := NewCoercer(nil, nil)
	nested := map[string]interface{}{"a": []interface{}{1}}

	for _, ct := range []models.ColumnType{
		models.ColumnTypeText, models.ColumnTypeJSON, models.ColumnTypeSelect, models.ColumnTypeMultiSelect,
	} {
		assert.Equal(t, 5, c.Coerce(5, ct))
		assert.Equal(t, nested, c.Coerce(nested, ct))
	}
}
