package schema

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/ajitpratap0/tabula/pkg/models"
)

// DefaultDelimiter separates path segments in flattened field names.
const DefaultDelimiter = "."

// StructuralRule recognises a special shape under a map key and flattens it
// itself instead of the generic traversal. Rules are checked in order before
// the value is walked.
type StructuralRule interface {
	Name() string
	Match(key string, value interface{}) bool
	Flatten(f *Flattener, path string, value interface{}, out models.FlatRecord)
}

// EdgeListRule unrolls paginated feeds of the form
// {"edges": [{"node": {...}}, ...]}. Each node is flattened under the
// element index; elements without a node are dropped.
type EdgeListRule struct{}

// Name implements StructuralRule.
func (EdgeListRule) Name() string { return "edge_list" }

// Match implements StructuralRule.
func (EdgeListRule) Match(key string, value interface{}) bool {
	if key != "edges" {
		return false
	}
	list, ok := asList(value)
	return ok && len(list) > 0
}

// Flatten implements StructuralRule.
func (EdgeListRule) Flatten(f *Flattener, path string, value interface{}, out models.FlatRecord) {
	list, _ := asList(value)
	for i, edge := range list {
		m, ok := asMap(edge)
		if !ok {
			continue
		}
		node, ok := m["node"]
		if !ok {
			continue
		}
		f.FlattenInto(f.Join(path, strconv.Itoa(i)), node, out)
	}
}

// DefaultStructuralRules returns the built-in rule set.
func DefaultStructuralRules() []StructuralRule {
	return []StructuralRule{EdgeListRule{}}
}

// Flattener turns a nested record into a map from delimited path to scalar.
// It holds no mutable state and is safe for concurrent use.
type Flattener struct {
	delimiter string
	rules     []StructuralRule
}

// NewFlattener creates a flattener. An empty delimiter selects
// DefaultDelimiter and nil rules select DefaultStructuralRules.
func NewFlattener(delimiter string, rules []StructuralRule) *Flattener {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if rules == nil {
		rules = DefaultStructuralRules()
	}
	return &Flattener{delimiter: delimiter, rules: rules}
}

// Delimiter returns the path separator.
func (f *Flattener) Delimiter() string {
	return f.delimiter
}

// Flatten returns the flat field map of record.
func (f *Flattener) Flatten(record interface{}) models.FlatRecord {
	out := make(models.FlatRecord)
	f.FlattenInto("", record, out)
	return out
}

// FlattenInto walks value rooted at path and writes its leaves into out.
// Structural rules use it to recurse.
func (f *Flattener) FlattenInto(path string, value interface{}, out models.FlatRecord) {
	if m, ok := asMap(value); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			child := f.Join(path, k)
			v := m[k]
			if rule := f.match(k, v); rule != nil {
				rule.Flatten(f, child, v, out)
				continue
			}
			f.FlattenInto(child, v, out)
		}
		return
	}

	if list, ok := asList(value); ok {
		switch len(list) {
		case 0:
		case 1:
			f.FlattenInto(path, list[0], out)
		default:
			for i, item := range list {
				f.FlattenInto(f.Join(path, strconv.Itoa(i)), item, out)
			}
		}
		return
	}

	out[path] = value
}

// Join appends segment to path.
func (f *Flattener) Join(path, segment string) string {
	if path == "" {
		return segment
	}
	return path + f.delimiter + segment
}

func (f *Flattener) match(key string, value interface{}) StructuralRule {
	for _, rule := range f.rules {
		if rule.Match(key, value) {
			return rule
		}
	}
	return nil
}

// asMap returns v as a generic map. Typed maps with string keys are
// converted; anything else reports false.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asList returns v as a generic slice. Byte slices are scalars.
func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []byte, nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
