package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	log "github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/models"
	stringpool "github.com/ajitpratap0/tabula/pkg/strings"
	"go.uber.org/zap"
)

// Coercer converts raw values into a column's declared type. It never fails
// a batch: Coerce hands back the raw value when conversion is impossible.
type Coercer struct {
	logger *zap.Logger
	rules  *Rules
}

// NewCoercer creates a new value coercer
func NewCoercer(rules *Rules, logger *zap.Logger) *Coercer {
	return &Coercer{
		logger: log.OrNop(logger),
		rules:  orDefault(rules),
	}
}

// Coerce converts raw to t. On failure the raw value is returned unchanged
// and a warning is logged.
func (c *Coercer) Coerce(raw interface{}, t models.ColumnType) interface{} {
	v, err := c.TryCoerce(raw, t)
	switch {
	case err != nil:
		metrics.CoercionsTotal.WithLabelValues(string(t), metrics.OutcomeFailed).Inc()
		c.logger.Warn("failed to coerce value",
			zap.String("type", string(t)),
			zap.Any("value", raw),
			zap.Error(err))
		return raw
	case v == nil:
		metrics.CoercionsTotal.WithLabelValues(string(t), metrics.OutcomeNull).Inc()
	default:
		metrics.CoercionsTotal.WithLabelValues(string(t), metrics.OutcomeOK).Inc()
	}
	return v
}

// TryCoerce converts raw to t and reports failure. nil and the empty string
// become nil for every type. On error the returned value is raw.
func (c *Coercer) TryCoerce(raw interface{}, t models.ColumnType) (interface{}, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	switch t {
	case models.ColumnTypeNumber:
		return c.toNumber(raw)
	case models.ColumnTypeDate:
		return c.toDate(raw)
	case models.ColumnTypeBoolean:
		return c.toBoolean(raw), nil
	case models.ColumnTypeURL:
		return c.toURL(raw), nil
	default:
		return raw, nil
	}
}

func (c *Coercer) toNumber(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	case jsonpool.Number:
		return parseNumber(v.String(), ".eE", raw)
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if r == ',' || unicode.IsSpace(r) {
				return -1
			}
			return r
		}, v)
		return parseNumber(cleaned, ".", raw)
	default:
		return raw, fmt.Errorf("cannot convert %T to number", raw)
	}
}

// parseNumber parses s as a float when it contains any of floatMarks,
// otherwise as an integer. Text only treats a decimal point as a float
// mark, so "1e5" stays raw; JSON numbers also accept exponents.
func parseNumber(s, floatMarks string, raw interface{}) (interface{}, error) {
	if strings.ContainsAny(s, floatMarks) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return raw, err
		}
		return f, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return raw, err
	}
	return n, nil
}

func (c *Coercer) toDate(raw interface{}) (interface{}, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	for _, layout := range c.rules.DateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return raw, fmt.Errorf("unrecognised date %q", s)
}

func (c *Coercer) toBoolean(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		lower := strings.ToLower(v)
		for _, lit := range c.rules.TruthyLiterals {
			if lower == lit {
				return true
			}
		}
		return false
	case jsonpool.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

func (c *Coercer) toURL(raw interface{}) string {
	s, ok := raw.(string)
	if !ok {
		return stringpool.ValueToString(raw)
	}
	if hasAnyPrefix(s, c.rules.URLSchemes) {
		return s
	}
	return c.rules.DefaultScheme + s
}
