// Package strings provides pooled string building and the value
// stringification rules shared by the inference engine.
package strings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
	"unsafe"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
)

// BytesToString converts byte slice to string without allocation
// WARNING: The returned string shares memory with the byte slice.
// Do not modify the byte slice after calling this function.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Builder is an append-only byte buffer used for pooled formatting.
type Builder struct {
	buf []byte
}

// NewBuilder creates a new string builder
func NewBuilder(capacity int) *Builder {
	return &Builder{
		buf: make([]byte, 0, capacity),
	}
}

// WriteString appends a string to the builder
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteByte appends a single byte
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Write implements io.Writer interface
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the built string using zero-copy conversion. The result is
// only valid until the builder is reset.
func (b *Builder) String() string {
	return BytesToString(b.buf)
}

// Len returns the length of the built string
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset resets the builder for reuse
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

var builderPool = &sync.Pool{
	New: func() interface{} {
		return NewBuilder(1024)
	},
}

// GetBuilder retrieves a pooled builder
func GetBuilder() *Builder {
	builder := builderPool.Get().(*Builder)
	builder.Reset()
	return builder
}

// PutBuilder returns a builder to the pool
func PutBuilder(builder *Builder) {
	if builder == nil || cap(builder.buf) > 64*1024 {
		return
	}
	builder.Reset()
	builderPool.Put(builder)
}

// Clone returns a copy of s that does not share memory with a builder.
func Clone(s string) string {
	return strings.Clone(s)
}

// Sprintf provides a pooled alternative to fmt.Sprintf
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}

	builder := GetBuilder()
	defer PutBuilder(builder)

	fmt.Fprintf(builder, format, args...)
	return Clone(builder.String())
}

// Concat concatenates strings using a pooled builder
func Concat(parts ...string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}

	builder := GetBuilder()
	defer PutBuilder(builder)

	for _, s := range parts {
		builder.WriteString(s)
	}
	return Clone(builder.String())
}

// TitleWords replaces underscores with spaces and upper-cases the first
// letter of every word.
func TitleWords(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = Concat(string(unicode.ToUpper(r)), strings.ToLower(w[size:]))
	}
	return strings.Join(words, " ")
}

// ValueToString converts a cell or field value to its textual form.
// nil becomes the empty string, times are RFC3339 and nested maps and
// slices are JSON encoded.
func ValueToString(value interface{}) string {
	if value == nil {
		return ""
	}

	// Fast path for common types - avoid reflection and fmt overhead
	switch v := value.(type) {
	case string:
		return v
	case jsonpool.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case map[string]interface{}, []interface{}:
		if s, err := jsonpool.MarshalString(v); err == nil {
			return s
		}
	}
	return Sprintf("%v", value)
}
