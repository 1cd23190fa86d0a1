package schema

import (
	"strings"
	"time"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	stringpool "github.com/ajitpratap0/tabula/pkg/strings"
)

// IsNumeric reports whether v is a native number, or a string made only of
// digits once thousands separators, decimal points and signs are removed.
func (r *Rules) IsNumeric(v interface{}) bool {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case jsonpool.Number:
		return true
	case string:
		return isDigits(strings.NewReplacer(",", "", ".", "", "-", "").Replace(val))
	default:
		return false
	}
}

// IsURL reports whether v is a string containing one of the URL schemes.
func (r *Rules) IsURL(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return containsAny(s, r.URLSchemes)
}

// IsBoolean reports whether v is a bool or its text is one of the boolean
// literals, ignoring case.
func (r *Rules) IsBoolean(v interface{}) bool {
	if _, ok := v.(bool); ok {
		return true
	}
	s := strings.ToLower(stringpool.ValueToString(v))
	for _, lit := range r.BooleanLiterals {
		if s == lit {
			return true
		}
	}
	return false
}

// IsDateLike reports whether v is a time or a string carrying one of the
// date markers.
func (r *Rules) IsDateLike(v interface{}) bool {
	switch val := v.(type) {
	case time.Time:
		return true
	case string:
		return containsAny(val, r.DateMarkers)
	default:
		return false
	}
}

// IsValidFor applies the predicate belonging to t. Types without a
// predicate accept every value.
func (r *Rules) IsValidFor(v interface{}, t models.ColumnType) bool {
	switch t {
	case models.ColumnTypeNumber:
		return r.IsNumeric(v)
	case models.ColumnTypeURL:
		return r.IsURL(v)
	case models.ColumnTypeBoolean:
		return r.IsBoolean(v)
	case models.ColumnTypeDate:
		return r.IsDateLike(v)
	default:
		return true
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// isEmpty reports whether v counts as missing for sampling purposes.
func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
