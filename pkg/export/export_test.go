package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func fixture() (*models.Table, []models.Column, []*models.Row) {
	table := &models.Table{ID: "t1", Name: "posts", Description: "scraped", CreatedAt: created}
	columns := []models.Column{
		{Name: "caption", Type: models.ColumnTypeText},
		{Name: "likes", Type: models.ColumnTypeNumber, Required: true},
		{Name: "tags", Type: models.ColumnTypeMultiSelect, Options: []string{"a", "b"}},
		{Name: "meta", Type: models.ColumnTypeJSON},
	}

	first := models.NewRowData()
	first.Set("likes", 10)
	first.Set("caption", "hello, world")
	first.Set("tags", []string{"a", "b"})
	first.Set("meta", map[string]interface{}{"k": "v"})
	first.Set("stale", "dropped")

	second := models.NewRowData()
	second.Set("caption", "no likes")

	rows := []*models.Row{
		{ID: "r1", TableID: "t1", Data: first, CreatedAt: created, UpdatedAt: created},
		{ID: "r2", TableID: "t1", Data: second, CreatedAt: created},
	}
	return table, columns, rows
}

func TestWriteCSV(t *testing.T) {
	_, columns, rows := fixture()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, columns, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"ID", "caption", "likes", "tags", "meta", "Created At"}, records[0])
	assert.Equal(t, []string{"r1", "hello, world", "10", `["a","b"]`, `{"k":"v"}`, "2024-05-01T09:30:00Z"}, records[1])
	assert.Equal(t, []string{"r2", "no likes", "", "", "", "2024-05-01T09:30:00Z"}, records[2])
}

func TestWriteJSON(t *testing.T) {
	table, columns, rows := fixture()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, table, columns, rows))

	var doc map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal(buf.Bytes(), &doc))

	tbl := doc["table"].(map[string]interface{})
	assert.Equal(t, "posts", tbl["name"])
	assert.Equal(t, "2024-05-01T09:30:00Z", tbl["created_at"])

	cols := doc["columns"].([]interface{})
	require.Len(t, cols, 4)
	assert.Equal(t, map[string]interface{}{"name": "likes", "type": "number", "required": true}, cols[1])

	out := doc["rows"].([]interface{})
	require.Len(t, out, 2)
	firstRow := out[0].(map[string]interface{})
	data := firstRow["data"].(map[string]interface{})
	assert.NotContains(t, data, "stale")
	assert.Equal(t, jsonpool.Number("10"), data["likes"])
	assert.Equal(t, "", out[1].(map[string]interface{})["updated_at"])

	var ordered struct {
		Rows []struct {
			Data *models.RowData `json:"data"`
		} `json:"rows"`
	}
	require.NoError(t, jsonpool.Unmarshal(buf.Bytes(), &ordered))
	assert.Equal(t, []string{"caption", "likes", "tags", "meta"}, ordered.Rows[0].Data.Keys())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestWrite(t *testing.T) {
	table, columns, rows := fixture()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, table, columns, rows))
	assert.NotZero(t, buf.Len())

	assert.True(t, errors.IsType(Write(&buf, "xml", table, columns, rows), errors.ErrorTypeValidation))
	assert.True(t, errors.IsType(WriteJSON(&buf, nil, columns, rows), errors.ErrorTypeValidation))
}

func TestWriteJSONL(t *testing.T) {
	_, columns, rows := fixture()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSONL, nil, columns, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first struct {
		ID   string          `json:"id"`
		Data *models.RowData `json:"data"`
	}
	require.NoError(t, jsonpool.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "r1", first.ID)
	assert.Equal(t, []string{"caption", "likes", "tags", "meta"}, first.Data.Keys())
	assert.NotContains(t, lines[0], "stale")

	f, err := ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)
}
