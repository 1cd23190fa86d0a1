package schema

import (
	"testing"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestQualityCompleteness(t *testing.T) {
	q := NewQualityScorer(nil, nil, nil)
	columns := []models.Column{
		{Name: "a", Type: models.ColumnTypeText},
		{Name: "b", Type: models.ColumnTypeText},
	}
	batch := models.SourceBatch{
		"s": {{"a": "x", "b": "y"}, {"a": "z"}},
	}

	report := q.Score(batch, columns)
	assert.Equal(t, 0.75, report.Completeness)
	assert.Equal(t, 1.0, report.Consistency)
	assert.Equal(t, 1.0, report.Validity)
	assert.InDelta(t, 0.4*0.75+0.3+0.3, report.OverallScore, 1e-9)
	assert.Empty(t, report.Issues)
}

func TestQualityConsistencyAcrossSources(t *testing.T) {
	q := NewQualityScorer(nil, nil, nil)
	columns := []models.Column{
		{Name: "likes", Type: models.ColumnTypeNumber},
		{Name: "only_one", Type: models.ColumnTypeText},
	}
	batch := models.SourceBatch{
		"ig": {{"likes": 5, "only_one": "x"}},
		"tt": {{"likes": "5"}},
		"yt": {{"likes": jsonpool.Number("6")}},
	}

	report := q.Score(batch, columns)
	// likes: kinds {int, string} across three sources -> 0.5; only_one -> 1
	assert.InDelta(t, 0.75, report.Consistency, 1e-9)
}

func TestQualityNullCountsAsKind(t *testing.T) {
	q := NewQualityScorer(nil, nil, nil)
	columns := []models.Column{{Name: "bio", Type: models.ColumnTypeText}}
	batch := models.SourceBatch{
		"a": {{"bio": "x"}},
		"b": {{"bio": nil}},
	}

	report := q.Score(batch, columns)
	assert.Equal(t, 0.5, report.Consistency)
	assert.Equal(t, 0.5, report.Completeness)
	assert.Contains(t, report.Issues, IssueInconsistent)
	assert.NotContains(t, report.Issues, IssueLowCompleteness)
}

func TestQualityValidity(t *testing.T) {
	q := NewQualityScorer(nil, nil, nil)
	columns := []models.Column{
		{Name: "link", Type: models.ColumnTypeURL},
		{Name: "never", Type: models.ColumnTypeNumber},
	}
	batch := models.SourceBatch{
		"s": {
			{"link": "https://a.io"},
			{"link": "a.io"},
			{"link": nil},
		},
	}

	report := q.Score(batch, columns)
	// "never" has no samples and is left out of the mean
	assert.Equal(t, 0.5, report.Validity)
	assert.Equal(t, []string{IssueLowCompleteness, IssueInvalidFormats}, report.Issues)
}

func TestQualityEmptyBatch(t *testing.T) {
	q := NewQualityScorer(nil, nil, nil)
	report := q.Score(models.SourceBatch{"s": nil}, []models.Column{{Name: "a"}})
	assert.Equal(t, models.QualityReport{Issues: []string{}}, report)
}

func TestQualityNoColumns(t *testing.T) {
	q := NewQualityScorer(nil, nil, nil)
	report := q.Score(models.SourceBatch{"s": {{"a": 1}}}, nil)
	assert.Equal(t, 0.0, report.Completeness)
	assert.Equal(t, 0.0, report.Consistency)
	assert.Equal(t, 0.0, report.Validity)
	assert.Len(t, report.Issues, 3)
}

func TestQualitySamplesFirstRecordsOnly(t *testing.T) {
	q := NewQualityScorer(nil, nil, nil)
	columns := []models.Column{{Name: "n", Type: models.ColumnTypeNumber}}

	records := make([]models.Record, 0, 15)
	for i := 0; i < QualitySampleLimit; i++ {
		records = append(records, models.Record{"n": i})
	}
	for i := 0; i < 5; i++ {
		records = append(records, models.Record{"n": "bad"})
	}

	report := q.Score(models.SourceBatch{"s": records}, columns)
	assert.Equal(t, 1.0, report.Validity)
	assert.Equal(t, 1.0, report.Completeness)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindBool, KindOf(false))
	assert.Equal(t, KindInt, KindOf(3))
	assert.Equal(t, KindInt, KindOf(uint8(3)))
	assert.Equal(t, KindFloat, KindOf(3.5))
	assert.Equal(t, KindInt, KindOf(jsonpool.Number("3")))
	assert.Equal(t, KindFloat, KindOf(jsonpool.Number("3.0")))
	assert.Equal(t, KindString, KindOf("3"))
	assert.Equal(t, KindMap, KindOf(map[string]interface{}{}))
	assert.Equal(t, KindList, KindOf([]string{}))
	assert.Equal(t, KindOther, KindOf(struct{}{}))
}
