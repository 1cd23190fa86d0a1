package schema

import (
	"sort"

	log "github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/models"
	stringpool "github.com/ajitpratap0/tabula/pkg/strings"
	"go.uber.org/zap"
)

// Builder aggregates flattened records from every source into ranked column
// candidates and an inference report.
type Builder struct {
	logger     *zap.Logger
	rules      *Rules
	flattener  *Flattener
	inferencer *TypeInferencer
}

// NewBuilder creates a schema builder. A nil flattener selects the default.
func NewBuilder(rules *Rules, flattener *Flattener, logger *zap.Logger) *Builder {
	rules = orDefault(rules)
	logger = log.OrNop(logger)
	if flattener == nil {
		flattener = NewFlattener("", nil)
	}
	return &Builder{
		logger:     logger,
		rules:      rules,
		flattener:  flattener,
		inferencer: NewTypeInferencer(rules, logger),
	}
}

// fieldStats accumulates what is known about one field path.
type fieldStats struct {
	samples []interface{}
	present int
	sources map[string]struct{}
}

// Build proposes columns for batch. Sources are walked in name order and the
// first InferenceSampleLimit records of each are sampled for field discovery
// and type samples. Availability is measured over every record of every
// source. Columns are sorted by availability descending, then name.
func (b *Builder) Build(batch models.SourceBatch) ([]models.Column, *models.InferenceReport) {
	timer := metrics.NewTimer("build_schema")
	defer timer.ObserveDuration()

	sources := batch.SourceNames()
	total := batch.TotalRecords()
	stats := make(map[string]*fieldStats)

	flats := make(map[string][]models.FlatRecord, len(sources))
	for _, source := range sources {
		records := batch[source]
		flat := make([]models.FlatRecord, len(records))
		for i, record := range records {
			flat[i] = b.flattener.Flatten(record)
		}
		flats[source] = flat
		metrics.RecordsFlattened.WithLabelValues(source).Add(float64(len(records)))
	}

	// Discover fields and collect samples from the sampled records.
	for _, source := range sources {
		for _, flat := range head(flats[source], b.rules.InferenceSampleLimit) {
			for _, key := range flat.Keys() {
				st, ok := stats[key]
				if !ok {
					st = &fieldStats{sources: make(map[string]struct{})}
					stats[key] = st
				}
				value := flat[key]
				st.samples = append(st.samples, value)
				if value != nil {
					st.sources[source] = struct{}{}
				}
			}
		}
	}

	// Availability counts every record.
	for _, source := range sources {
		for _, flat := range flats[source] {
			for key, value := range flat {
				if st, ok := stats[key]; ok && value != nil {
					st.present++
				}
			}
		}
	}

	report := &models.InferenceReport{
		TotalRecords:  total,
		Sources:       sources,
		Fields:        make(map[string]*models.FieldReport, len(stats)),
		FieldCoverage: make(map[string]float64, len(stats)),
	}
	columns := make([]models.Column, 0, len(stats))
	availability := make(map[string]float64, len(stats))

	for name, st := range stats {
		avail := 0.0
		if total > 0 {
			avail = float64(st.present) / float64(total)
		}
		availability[name] = avail

		samples := st.samples
		if len(samples) > b.rules.TypeSampleLimit {
			samples = samples[:b.rules.TypeSampleLimit]
		}
		colType := b.inferencer.InferType(name, samples)
		description := b.rules.Describe(name)

		columns = append(columns, models.Column{
			Name:        name,
			Type:        colType,
			Required:    avail > b.rules.RequiredThreshold,
			Description: description,
		})

		report.FieldCoverage[name] = avail
		report.Fields[name] = &models.FieldReport{
			Name:         name,
			Availability: avail,
			SampleValues: b.reportSamples(samples),
			InferredType: colType,
			Sources:      sortedSet(st.sources),
			Description:  description,
		}
		metrics.ColumnsInferred.WithLabelValues(string(colType)).Inc()
	}

	sort.Slice(columns, func(i, j int) bool {
		ai, aj := availability[columns[i].Name], availability[columns[j].Name]
		if ai != aj {
			return ai > aj
		}
		return columns[i].Name < columns[j].Name
	})
	for i := range columns {
		columns[i].Order = i
	}

	b.logger.Info("built schema",
		zap.Int("sources", len(sources)),
		zap.Int("records", total),
		zap.Int("columns", len(columns)))

	return columns, report
}

// reportSamples stringifies the non-empty values among the first
// ReportSampleLimit samples.
func (b *Builder) reportSamples(samples []interface{}) []string {
	if len(samples) > b.rules.ReportSampleLimit {
		samples = samples[:b.rules.ReportSampleLimit]
	}
	out := make([]string, 0, len(samples))
	for _, s := range samples {
		if isEmpty(s) {
			continue
		}
		out = append(out, stringpool.ValueToString(s))
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
