// Package models provides the data model shared by the inference engine,
// the row stores and the catalog service.
//
// Records arrive as arbitrary nested JSON-like values grouped by the source
// that produced them. The engine turns them into flat field maps, proposes
// typed columns and converts records into rows keyed by column name.
package models

import (
	"sort"
)

// Record is one raw item captured from an ingestion source. It is a nested
// structure of maps, slices and scalars and is never modified once captured.
type Record = map[string]interface{}

// SourceBatch maps a source name to the records it produced. A source may
// map to an empty or nil slice; that contributes nothing.
type SourceBatch map[string][]Record

// SourceNames returns the source names in ascending order. All engine
// components walk sources in this order so their output is deterministic.
func (b SourceBatch) SourceNames() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalRecords counts records across every source.
func (b SourceBatch) TotalRecords() int {
	total := 0
	for _, records := range b {
		total += len(records)
	}
	return total
}

// FlatRecord maps a delimited field path to a scalar value.
type FlatRecord map[string]interface{}

// Keys returns the field paths in ascending order.
func (f FlatRecord) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Present reports whether the path exists and holds a non-nil value.
func (f FlatRecord) Present(path string) bool {
	v, ok := f[path]
	return ok && v != nil
}
