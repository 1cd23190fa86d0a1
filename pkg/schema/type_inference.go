package schema

import (
	"strings"

	log "github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
)

// Inference rule names reported alongside the inferred type.
const (
	RuleURLName      = "name:url"
	RuleNumberName   = "name:number"
	RuleDateName     = "name:date"
	RuleBooleanName  = "name:boolean"
	RuleJSONName     = "name:json"
	RuleNoSamples    = "samples:empty"
	RuleNumericValue = "samples:numeric"
	RuleURLValue     = "samples:url"
	RuleBooleanValue = "samples:boolean"
	RuleDateValue    = "samples:date"
	RuleTextFallback = "samples:text"
)

// TypeInferencer decides the semantic type of a field from its name and a
// small sample of values. Name heuristics run before value sniffing because
// small samples are unreliable.
type TypeInferencer struct {
	logger *zap.Logger
	rules  *Rules
}

// InferredType is the result of InferTypeDetailed.
type InferredType struct {
	Type models.ColumnType `json:"type"`
	Rule string            `json:"rule"`
	// Ratio is the fraction of non-empty samples matching the value rule.
	// It is zero for name rules.
	Ratio float64 `json:"ratio,omitempty"`
}

// NewTypeInferencer creates a new type inferencer
func NewTypeInferencer(rules *Rules, logger *zap.Logger) *TypeInferencer {
	return &TypeInferencer{
		logger: log.OrNop(logger),
		rules:  orDefault(rules),
	}
}

// InferType returns the semantic type for a field. Only the first
// TypeSampleLimit samples are considered. The result is never select or
// multi_select.
func (e *TypeInferencer) InferType(name string, samples []interface{}) models.ColumnType {
	return e.InferTypeDetailed(name, samples).Type
}

// InferTypeDetailed is InferType that also reports which rule decided.
func (e *TypeInferencer) InferTypeDetailed(name string, samples []interface{}) InferredType {
	if t, rule, ok := e.inferFromName(name); ok {
		e.logger.Debug("inferred type from field name",
			zap.String("field", name),
			zap.String("type", string(t)),
			zap.String("rule", rule))
		return InferredType{Type: t, Rule: rule}
	}

	if len(samples) > e.rules.TypeSampleLimit {
		samples = samples[:e.rules.TypeSampleLimit]
	}
	nonEmpty := make([]interface{}, 0, len(samples))
	for _, s := range samples {
		if !isEmpty(s) {
			nonEmpty = append(nonEmpty, s)
		}
	}

	result := e.inferFromValues(nonEmpty)
	e.logger.Debug("inferred type from samples",
		zap.String("field", name),
		zap.String("type", string(result.Type)),
		zap.String("rule", result.Rule),
		zap.Int("samples", len(nonEmpty)))
	return result
}

func (e *TypeInferencer) inferFromName(name string) (models.ColumnType, string, bool) {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, e.rules.URLKeywords):
		return models.ColumnTypeURL, RuleURLName, true
	case containsAny(lower, e.rules.NumberKeywords):
		return models.ColumnTypeNumber, RuleNumberName, true
	case containsAny(lower, e.rules.DateKeywords):
		return models.ColumnTypeDate, RuleDateName, true
	case hasAnyPrefix(lower, e.rules.BooleanPrefixes):
		return models.ColumnTypeBoolean, RuleBooleanName, true
	case containsAny(lower, e.rules.JSONKeywords):
		return models.ColumnTypeJSON, RuleJSONName, true
	}
	return "", "", false
}

func (e *TypeInferencer) inferFromValues(values []interface{}) InferredType {
	if len(values) == 0 {
		return InferredType{Type: models.ColumnTypeText, Rule: RuleNoSamples}
	}

	checks := []struct {
		predicate func(interface{}) bool
		threshold float64
		colType   models.ColumnType
		rule      string
	}{
		{e.rules.IsNumeric, e.rules.NumericRatio, models.ColumnTypeNumber, RuleNumericValue},
		{e.rules.IsURL, e.rules.URLRatio, models.ColumnTypeURL, RuleURLValue},
		{e.rules.IsBoolean, e.rules.BooleanRatio, models.ColumnTypeBoolean, RuleBooleanValue},
		{e.rules.IsDateLike, e.rules.DateRatio, models.ColumnTypeDate, RuleDateValue},
	}

	for _, c := range checks {
		if r := ratio(values, c.predicate); r >= c.threshold {
			return InferredType{Type: c.colType, Rule: c.rule, Ratio: r}
		}
	}
	return InferredType{Type: models.ColumnTypeText, Rule: RuleTextFallback}
}

func ratio(values []interface{}, predicate func(interface{}) bool) float64 {
	matched := 0
	for _, v := range values {
		if predicate(v) {
			matched++
		}
	}
	return float64(matched) / float64(len(values))
}
