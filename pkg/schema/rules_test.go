package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/tabula/pkg/errors"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesAreCopies(t *testing.T) {
	r := DefaultRules()
	r.URLKeywords[0] = "changed"
	r.SourceAliases["tiktok"]["likes"][0] = "changed"

	fresh := DefaultRules()
	assert.Equal(t, "url", fresh.URLKeywords[0])
	assert.Equal(t, "diggCount", fresh.SourceAliases["tiktok"]["likes"][0])
	require.NoError(t, fresh.Validate())
}

func TestLoadRulesOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
numeric_ratio: 0.9
url_keywords: [href]
source_aliases:
  twitter:
    likes: [favorite_count]
field_descriptions:
  favorite_count: Number of favourites
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadRules(path)
	require.NoError(t, err)

	assert.Equal(t, 0.9, r.NumericRatio)
	assert.Equal(t, []string{"href"}, r.URLKeywords)
	assert.Equal(t, NumberKeywords, r.NumberKeywords)
	assert.Equal(t, []string{"favorite_count"}, r.Aliases("twitter", "likes"))
	assert.Equal(t, []string{"diggCount", "likes", "like_count"}, r.Aliases("tiktok", "likes"))
	assert.Equal(t, "Number of favourites", r.Describe("favorite_count"))
	assert.Equal(t, "Number of likes", r.Describe("likes"))
	assert.Equal(t, "Éclair Name", r.Describe("éclair_name"))
}

func TestLoadRulesValidation(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("url_ratio: 1.5\n"), 0o600))
	_, err := LoadRules(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("type_sample_limit: 0\n"), 0o600))
	_, err = LoadRules(zero)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("url_keywords: {"), 0o600))
	_, err = LoadRules(broken)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidityPredicates(t *testing.T) {
	r := DefaultRules()

	assert.True(t, r.IsNumeric("1,234.5"))
	assert.True(t, r.IsNumeric("-12"))
	assert.True(t, r.IsNumeric(int64(3)))
	assert.True(t, r.IsNumeric(jsonpool.Number("3")))
	assert.False(t, r.IsNumeric(""))
	assert.False(t, r.IsNumeric("12a"))
	assert.False(t, r.IsNumeric(true))

	assert.True(t, r.IsURL("see https://x.io"))
	assert.False(t, r.IsURL("x.io"))
	assert.False(t, r.IsURL(42))

	assert.True(t, r.IsBoolean("False"))
	assert.True(t, r.IsBoolean(0))
	assert.True(t, r.IsBoolean(true))
	assert.False(t, r.IsBoolean("on"))

	assert.True(t, r.IsDateLike("12:30"))
	assert.True(t, r.IsDateLike("Mon GMT"))
	assert.False(t, r.IsDateLike("yesterday"))
	assert.False(t, r.IsDateLike(20240101))

	assert.True(t, r.IsValidFor("anything", models.ColumnTypeJSON))
	assert.False(t, r.IsValidFor("abc", models.ColumnTypeNumber))
}

func TestEngineSharesRules(t *testing.T) {
	rules := DefaultRules()
	e := NewEngine(EngineConfig{Rules: rules, Delimiter: "/", CheckProposedType: true}, nil)

	assert.Same(t, rules, e.Rules)
	assert.Equal(t, "/", e.Flattener.Delimiter())
	assert.True(t, e.Evolution.CheckProposedType)
	assert.Equal(t, models.FlatRecord{"a/b": 1}, e.Flattener.Flatten(map[string]interface{}{"a": map[string]interface{}{"b": 1}}))
}
