package schema

import (
	"reflect"
	"strings"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	log "github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
)

// Quality issue messages.
const (
	IssueLowCompleteness  = "Low data completeness"
	IssueInconsistent     = "Inconsistent data types across sources"
	IssueInvalidFormats   = "Invalid data formats detected"
	completenessThreshold = 0.5
	consistencyThreshold  = 0.7
	validityThreshold     = 0.8
)

// Score weights.
const (
	CompletenessWeight = 0.4
	ConsistencyWeight  = 0.3
	ValidityWeight     = 0.3
)

// Value kinds used by the consistency score.
const (
	KindNull   = "null"
	KindBool   = "bool"
	KindInt    = "int"
	KindFloat  = "float"
	KindString = "string"
	KindMap    = "map"
	KindList   = "list"
	KindOther  = "other"
)

// QualityScorer measures completeness, cross-source consistency and
// validity of a batch against a column list.
type QualityScorer struct {
	logger    *zap.Logger
	rules     *Rules
	flattener *Flattener
}

// NewQualityScorer creates a new quality scorer
func NewQualityScorer(rules *Rules, flattener *Flattener, logger *zap.Logger) *QualityScorer {
	if flattener == nil {
		flattener = NewFlattener("", nil)
	}
	return &QualityScorer{
		logger:    log.OrNop(logger),
		rules:     orDefault(rules),
		flattener: flattener,
	}
}

// Score computes the quality report. An empty batch scores zero everywhere
// with no issues.
func (q *QualityScorer) Score(batch models.SourceBatch, columns []models.Column) models.QualityReport {
	report := models.QualityReport{Issues: []string{}}

	total := batch.TotalRecords()
	if total == 0 {
		return report
	}

	sources := batch.SourceNames()
	flats := make(map[string][]models.FlatRecord, len(sources))
	for _, source := range sources {
		records := batch[source]
		flat := make([]models.FlatRecord, len(records))
		for i, record := range records {
			flat[i] = q.flattener.Flatten(record)
		}
		flats[source] = flat
	}

	report.Completeness = q.completeness(sources, flats, columns, total)
	report.Consistency = q.consistency(sources, flats, columns)
	report.Validity = q.validity(sources, flats, columns)
	report.OverallScore = report.Completeness*CompletenessWeight +
		report.Consistency*ConsistencyWeight +
		report.Validity*ValidityWeight

	if report.Completeness < completenessThreshold {
		report.Issues = append(report.Issues, IssueLowCompleteness)
	}
	if report.Consistency < consistencyThreshold {
		report.Issues = append(report.Issues, IssueInconsistent)
	}
	if report.Validity < validityThreshold {
		report.Issues = append(report.Issues, IssueInvalidFormats)
	}

	metrics.QualityScore.WithLabelValues("completeness").Set(report.Completeness)
	metrics.QualityScore.WithLabelValues("consistency").Set(report.Consistency)
	metrics.QualityScore.WithLabelValues("validity").Set(report.Validity)
	metrics.QualityScore.WithLabelValues("overall").Set(report.OverallScore)

	q.logger.Debug("scored data quality",
		zap.Float64("completeness", report.Completeness),
		zap.Float64("consistency", report.Consistency),
		zap.Float64("validity", report.Validity),
		zap.Strings("issues", report.Issues))

	return report
}

func (q *QualityScorer) completeness(sources []string, flats map[string][]models.FlatRecord, columns []models.Column, total int) float64 {
	cells := len(columns) * total
	if cells == 0 {
		return 0
	}
	filled := 0
	for _, source := range sources {
		for _, flat := range flats[source] {
			for _, col := range columns {
				if flat.Present(col.Name) {
					filled++
				}
			}
		}
	}
	return float64(filled) / float64(cells)
}

// consistency scores each column 1 when at most one source carries it and
// 1/len(kinds) otherwise, where kinds is the union of value kinds seen.
func (q *QualityScorer) consistency(sources []string, flats map[string][]models.FlatRecord, columns []models.Column) float64 {
	if len(columns) == 0 {
		return 0
	}
	sum := 0.0
	for _, col := range columns {
		carrying := 0
		kinds := make(map[string]struct{})
		for _, source := range sources {
			seen := false
			for _, flat := range head(flats[source], q.rules.QualitySampleLimit) {
				if v, ok := flat[col.Name]; ok {
					kinds[KindOf(v)] = struct{}{}
					seen = true
				}
			}
			if seen {
				carrying++
			}
		}
		if carrying <= 1 {
			sum += 1
		} else {
			sum += 1 / float64(len(kinds))
		}
	}
	return sum / float64(len(columns))
}

func (q *QualityScorer) validity(sources []string, flats map[string][]models.FlatRecord, columns []models.Column) float64 {
	sum := 0.0
	scored := 0
	for _, col := range columns {
		valid, checked := 0, 0
		for _, source := range sources {
			for _, flat := range head(flats[source], q.rules.QualitySampleLimit) {
				v, ok := flat[col.Name]
				if !ok || v == nil {
					continue
				}
				checked++
				if q.rules.IsValidFor(v, col.Type) {
					valid++
				}
			}
		}
		if checked > 0 {
			sum += float64(valid) / float64(checked)
			scored++
		}
	}
	if scored == 0 {
		return 0
	}
	return sum / float64(scored)
}

// KindOf classifies a value for the consistency score.
func KindOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string:
		return KindString
	case jsonpool.Number:
		if strings.ContainsAny(val.String(), ".eE") {
			return KindFloat
		}
		return KindInt
	case map[string]interface{}:
		return KindMap
	case []interface{}:
		return KindList
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Map:
		return KindMap
	case reflect.Slice, reflect.Array:
		return KindList
	}
	return KindOther
}
