package schema

import (
	"strings"

	log "github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
)

// Resolution strategies reported by Resolve.
const (
	ResolvedExact     = "exact"
	ResolvedAlias     = "alias"
	ResolvedSubstring = "substring"
	ResolvedNone      = "none"
)

// Populator converts source records into typed row data for a committed
// column list.
type Populator struct {
	logger    *zap.Logger
	rules     *Rules
	flattener *Flattener
	coercer   *Coercer
}

// NewPopulator creates a table populator. A nil flattener or coercer selects
// the default.
func NewPopulator(rules *Rules, flattener *Flattener, coercer *Coercer, logger *zap.Logger) *Populator {
	rules = orDefault(rules)
	logger = log.OrNop(logger)
	if flattener == nil {
		flattener = NewFlattener("", nil)
	}
	if coercer == nil {
		coercer = NewCoercer(rules, logger)
	}
	return &Populator{
		logger:    logger,
		rules:     rules,
		flattener: flattener,
		coercer:   coercer,
	}
}

// Populate returns one row per record, sources in name order and records in
// input order. Every column gets a cell; unresolved columns hold nil.
func (p *Populator) Populate(batch models.SourceBatch, columns []models.Column) []models.PopulatedRow {
	timer := metrics.NewTimer("populate")
	defer timer.ObserveDuration()

	rows := make([]models.PopulatedRow, 0, batch.TotalRecords())
	for _, source := range batch.SourceNames() {
		for _, record := range batch[source] {
			rows = append(rows, models.PopulatedRow{
				Source:   source,
				Original: record,
				Data:     p.PopulateRecord(source, record, columns),
			})
		}
	}

	p.logger.Debug("populated rows",
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(columns)))
	return rows
}

// PopulateRecord converts a single record from source.
func (p *Populator) PopulateRecord(source string, record models.Record, columns []models.Column) *models.RowData {
	flat := p.flattener.Flatten(record)
	keys := flat.Keys()

	data := models.NewRowData()
	for _, col := range columns {
		raw, _ := p.resolve(flat, keys, source, col.Name)
		data.Set(col.Name, p.coercer.Coerce(raw, col.Type))
	}
	return data
}

// Resolve finds the value feeding column in a flattened record of source and
// names the strategy that matched.
func (p *Populator) Resolve(flat models.FlatRecord, source, column string) (interface{}, string) {
	return p.resolve(flat, flat.Keys(), source, column)
}

// resolve tries an exact path, then the source alias table, then a
// case-insensitive substring match in either direction over sorted keys.
// The substring match is a permissive fallback and may pick an unrelated
// field.
func (p *Populator) resolve(flat models.FlatRecord, keys []string, source, column string) (interface{}, string) {
	if v, ok := flat[column]; ok {
		return v, ResolvedExact
	}

	for _, alias := range p.rules.Aliases(source, column) {
		if v, ok := flat[alias]; ok {
			return v, ResolvedAlias
		}
	}

	lowerColumn := strings.ToLower(column)
	if lowerColumn == "" {
		return nil, ResolvedNone
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		lowerKey := strings.ToLower(key)
		if strings.Contains(lowerKey, lowerColumn) || strings.Contains(lowerColumn, lowerKey) {
			return flat[key], ResolvedSubstring
		}
	}
	return nil, ResolvedNone
}
