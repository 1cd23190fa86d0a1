package schema

import (
	"testing"

	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	f := NewFlattener("", nil)

	tests := []struct {
		name   string
		record interface{}
		want   models.FlatRecord
	}{
		{
			name:   "nested map",
			record: map[string]interface{}{"a": map[string]interface{}{"b": 1}},
			want:   models.FlatRecord{"a.b": 1},
		},
		{
			name:   "multi element list gets indices",
			record: map[string]interface{}{"a": []interface{}{1, 2}},
			want:   models.FlatRecord{"a.0": 1, "a.1": 2},
		},
		{
			name:   "single element list collapses",
			record: map[string]interface{}{"a": []interface{}{1}},
			want:   models.FlatRecord{"a": 1},
		},
		{
			name:   "single element list of maps collapses",
			record: map[string]interface{}{"tags": []interface{}{map[string]interface{}{"name": "go"}}},
			want:   models.FlatRecord{"tags.name": "go"},
		},
		{
			name:   "empty containers contribute nothing",
			record: map[string]interface{}{"a": map[string]interface{}{}, "b": []interface{}{}, "c": "x"},
			want:   models.FlatRecord{"c": "x"},
		},
		{
			name:   "null is kept as a leaf",
			record: map[string]interface{}{"a": nil},
			want:   models.FlatRecord{"a": nil},
		},
		{
			name:   "root scalar",
			record: "opaque",
			want:   models.FlatRecord{"": "opaque"},
		},
		{
			name:   "root list",
			record: []interface{}{map[string]interface{}{"x": 1}, map[string]interface{}{"x": 2}},
			want:   models.FlatRecord{"0.x": 1, "1.x": 2},
		},
		{
			name:   "typed containers are walked",
			record: map[string]interface{}{"m": map[string]int{"k": 3}, "s": []string{"p", "q"}},
			want:   models.FlatRecord{"m.k": 3, "s.0": "p", "s.1": "q"},
		},
		{
			name:   "unknown values are opaque scalars",
			record: map[string]interface{}{"fn": struct{ X int }{1}},
			want:   models.FlatRecord{"fn": struct{ X int }{1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Flatten(tt.record))
		})
	}
}

func TestFlattenEdgeList(t *testing.T) {
	f := NewFlattener("", nil)
	record := map[string]interface{}{
		"edge_media_to_caption": map[string]interface{}{
			"edges": []interface{}{
				map[string]interface{}{"node": map[string]interface{}{"text": "first"}},
				"not a wrapper",
				map[string]interface{}{"cursor": "abc"},
				map[string]interface{}{"node": map[string]interface{}{"text": "last"}},
			},
		},
	}

	got := f.Flatten(record)
	assert.Equal(t, models.FlatRecord{
		"edge_media_to_caption.edges.0.text": "first",
		"edge_media_to_caption.edges.3.text": "last",
	}, got)
}

func TestFlattenEdgeListSingleNodeKeepsIndex(t *testing.T) {
	f := NewFlattener("", nil)
	record := map[string]interface{}{
		"edges": []interface{}{map[string]interface{}{"node": map[string]interface{}{"text": "hi"}}},
	}
	assert.Equal(t, models.FlatRecord{"edges.0.text": "hi"}, f.Flatten(record))
}

func TestFlattenCustomDelimiter(t *testing.T) {
	f := NewFlattener("__", nil)
	got := f.Flatten(map[string]interface{}{"a": map[string]interface{}{"b": []interface{}{1, 2}}})
	assert.Equal(t, models.FlatRecord{"a__b__0": 1, "a__b__1": 2}, got)
	assert.Equal(t, "__", f.Delimiter())
}

type dropRule struct{}

func (dropRule) Name() string { return "drop" }
func (dropRule) Match(key string, _ interface{}) bool { return key == "secret" }
func (dropRule) Flatten(*Flattener, string, interface{}, models.FlatRecord) {}

func TestFlattenCustomRule(t *testing.T) {
	f := NewFlattener("", []StructuralRule{dropRule{}, EdgeListRule{}})
	got := f.Flatten(map[string]interface{}{"secret": "x", "public": "y"})
	assert.Equal(t, models.FlatRecord{"public": "y"}, got)
}

func TestFlattenDeterministic(t *testing.T) {
	f := NewFlattener("", nil)
	record := map[string]interface{}{
		"owner": map[string]interface{}{"username": "a", "id": 1},
		"items": []interface{}{1, map[string]interface{}{"z": true}},
	}

	first := f.Flatten(record)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, f.Flatten(record))
	}
	assert.Equal(t, []string{"items.0", "items.1.z", "owner.id", "owner.username"}, first.Keys())
}
