package models

import (
	"bytes"
	"fmt"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
)

// RowData is the cell map of a row. Keys keep insertion order so that rows
// serialise in column order.
type RowData struct {
	keys   []string
	values map[string]interface{}
}

// NewRowData returns an empty RowData.
func NewRowData() *RowData {
	return &RowData{values: make(map[string]interface{})}
}

// Set stores v under key, appending key if it is new.
func (d *RowData) Set(key string, v interface{}) {
	if d.values == nil {
		d.values = make(map[string]interface{})
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Get returns the value stored under key.
func (d *RowData) Get(key string) (interface{}, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Delete removes key.
func (d *RowData) Delete(key string) {
	if d == nil {
		return
	}
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Rename moves the value under from to to, keeping its position.
func (d *RowData) Rename(from, to string) {
	if d == nil || from == to {
		return
	}
	v, ok := d.values[from]
	if !ok {
		return
	}
	if _, clash := d.values[to]; clash {
		d.Delete(to)
	}
	delete(d.values, from)
	d.values[to] = v
	for i, k := range d.keys {
		if k == from {
			d.keys[i] = to
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (d *RowData) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of keys.
func (d *RowData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Map returns a copy of the data as a plain map.
func (d *RowData) Map() map[string]interface{} {
	out := make(map[string]interface{}, d.Len())
	if d == nil {
		return out
	}
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (d *RowData) Clone() *RowData {
	c := NewRowData()
	for _, k := range d.Keys() {
		c.Set(k, d.values[k])
	}
	return c
}

// Unknown returns the keys that do not name one of columns. Row data is only
// softly validated against the schema, so callers decide what to do with them.
func (d *RowData) Unknown(columns []Column) []string {
	names := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		names[c.Name] = struct{}{}
	}
	var unknown []string
	for _, k := range d.Keys() {
		if _, ok := names[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	return unknown
}

// MarshalJSON writes the keys in insertion order.
func (d *RowData) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := jsonpool.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := jsonpool.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping document key order. Numbers decode
// as json.Number.
func (d *RowData) UnmarshalJSON(data []byte) error {
	d.keys = nil
	d.values = make(map[string]interface{})

	dec := jsonpool.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(jsonpool.Delim); !ok || delim != '{' {
		return fmt.Errorf("row data must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		d.Set(key, v)
	}

	_, err = dec.Token()
	return err
}
