package models

// FieldReport describes one discovered field in an InferenceReport.
type FieldReport struct {
	Name         string     `json:"name"`
	Availability float64    `json:"availability"`
	SampleValues []string   `json:"sample_values"`
	InferredType ColumnType `json:"inferred_type"`
	Sources      []string   `json:"sources"`
	Description  string     `json:"description"`
}

// InferenceReport summarises a schema build over a SourceBatch.
type InferenceReport struct {
	TotalRecords  int                     `json:"total_records"`
	Sources       []string                `json:"sources"`
	Fields        map[string]*FieldReport `json:"fields"`
	FieldCoverage map[string]float64      `json:"field_coverage"`
}

// PopulatedRow is one record converted to typed cells. Original is the
// untouched source record.
type PopulatedRow struct {
	Source   string   `json:"source"`
	Original Record   `json:"original_data"`
	Data     *RowData `json:"data"`
}

// EvolutionResult is the advisory outcome of checking a column type change.
type EvolutionResult struct {
	Allowed         bool     `json:"allowed"`
	Message         string   `json:"message"`
	SampleConflicts []string `json:"sample_conflicts,omitempty"`
}

// QualityReport scores a batch against a schema. All scores lie in [0,1].
type QualityReport struct {
	Completeness float64  `json:"completeness"`
	Consistency  float64  `json:"consistency"`
	Validity     float64  `json:"validity"`
	OverallScore float64  `json:"overall_score"`
	Issues       []string `json:"issues"`
}
