package ingest

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/errors"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int64
		want  []models.Record
	}{
		{
			name:  "array",
			input: `[{"a": 1}, {"a": "x"}]`,
			want:  []models.Record{{"a": jsonpool.Number("1")}, {"a": "x"}},
		},
		{
			name:  "single object",
			input: `  {"caption": "hi"}`,
			want:  []models.Record{{"caption": "hi"}},
		},
		{
			name:  "jsonl",
			input: "{\"a\": true}\n{\"a\": false}\n",
			want:  []models.Record{{"a": true}, {"a": false}},
		},
		{
			name:  "scalar elements are wrapped",
			input: `["x", 2]`,
			want:  []models.Record{{ScalarKey: "x"}, {ScalarKey: jsonpool.Number("2")}},
		},
		{
			name:  "limit",
			input: "{\"n\": 1}\n{\"n\": 2}\n{\"n\": 3}",
			limit: 2,
			want:  []models.Record{{"n": jsonpool.Number("1")}, {"n": jsonpool.Number("2")}},
		},
		{
			name:  "empty",
			input: "   \n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecords(strings.NewReader(tt.input), tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRecordsInvalid(t *testing.T) {
	_, err := DecodeRecords(strings.NewReader("{\"a\": 1}\n{\"a\" 1}"), 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestDecodeBatch(t *testing.T) {
	batch, ok, err := DecodeBatch([]byte(`{"instagram": [{"likes": 1}], "tiktok": [{"plays": 2}, {"plays": 3}]}`), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"instagram", "tiktok"}, batch.SourceNames())
	assert.Len(t, batch["tiktok"], 2)

	_, ok, err = DecodeBatch([]byte(`{"likes": 1, "tags": []}`), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = DecodeBatch([]byte(`[{"a": 1}]`), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	in := map[string]interface{}{
		"tags":   []string{"a", "b"},
		"counts": map[string]int{"likes": 3},
		"raw":    []byte("bytes"),
		"n":      jsonpool.Number("4"),
	}
	got := Normalize(in).(map[string]interface{})

	assert.Equal(t, []interface{}{"a", "b"}, got["tags"])
	assert.Equal(t, map[string]interface{}{"likes": 3}, got["counts"])
	assert.Equal(t, []byte("bytes"), got["raw"])
	assert.Equal(t, jsonpool.Number("4"), got["n"])
}

func TestSourceNameFromPath(t *testing.T) {
	assert.Equal(t, "tiktok", SourceNameFromPath("exports/tiktok.jsonl.gz"))
	assert.Equal(t, "instagram", SourceNameFromPath("instagram.json"))
	assert.Equal(t, "posts", SourceNameFromPath("/data/posts.NDJSON"))
	assert.Equal(t, "notes.txt", SourceNameFromPath("notes.txt"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := compression.NewWriter(f, compression.FromPath(path), compression.Default)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("batch document", func(t *testing.T) {
		path := filepath.Join(dir, "batch.json")
		writeFile(t, path, `{"instagram": [{"likes": 10}], "tiktok": [{"plays": 5}]}`)

		batch, err := NewFileSource(path, 0, zaptest.NewLogger(t)).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"instagram", "tiktok"}, batch.SourceNames())
	})

	t.Run("record file", func(t *testing.T) {
		path := filepath.Join(dir, "posts.json")
		writeFile(t, path, `[{"likes": 10}, {"likes": 11}]`)

		batch, err := NewFileSource(path, 1, nil).Load(ctx)
		require.NoError(t, err)
		require.Contains(t, batch, "posts")
		assert.Len(t, batch["posts"], 1)
	})

	t.Run("compressed directory", func(t *testing.T) {
		sub := filepath.Join(dir, "exports")
		require.NoError(t, os.Mkdir(sub, 0o755))
		writeFile(t, filepath.Join(sub, "instagram.jsonl.gz"), "{\"likes\": 1}\n{\"likes\": 2}\n")
		writeFile(t, filepath.Join(sub, "tiktok.json.zst"), `[{"plays": 3}]`)
		writeFile(t, filepath.Join(sub, "README.md"), "ignored")

		batch, err := NewFileSource(sub, 0, nil).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"instagram", "tiktok"}, batch.SourceNames())
		assert.Len(t, batch["instagram"], 2)
		assert.Equal(t, jsonpool.Number("3"), batch["tiktok"][0]["plays"])
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(dir, "nope.json"), 0, nil).Load(ctx)
		assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

		_, err = NewFileSource("", 0, nil).Load(ctx)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

type fakeObjectStore struct {
	objects map[string]string
}

func (f *fakeObjectStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeObjectStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	if compression.FromPath(key) == compression.None {
		return io.NopCloser(strings.NewReader(content)), nil
	}
	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, compression.FromPath(key), compression.Default)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

func TestLoadObjects(t *testing.T) {
	store := &fakeObjectStore{objects: map[string]string{
		"posts/instagram/part-1.json":    `[{"likes": 1}, {"likes": 2}]`,
		"posts/instagram/part-2.json.gz": `[{"likes": 3}]`,
		"posts/tiktok.jsonl":             "{\"plays\": 1}\n",
		"posts/instagram/":               "",
		"posts/readme.txt":               "skip",
		"other/facebook.json":            `[{"x": 1}]`,
	}}

	cfg := ObjectConfig{Bucket: "b", Prefix: "posts/"}
	batch, err := loadObjects(context.Background(), store, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"instagram", "tiktok"}, batch.SourceNames())
	assert.Len(t, batch["instagram"], 3)

	cfg.Limit = 2
	batch, err = loadObjects(context.Background(), store, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, batch["instagram"], 2)
}

func TestObjectSourceName(t *testing.T) {
	assert.Equal(t, "instagram", objectSourceName("posts/", "posts/instagram/a.json"))
	assert.Equal(t, "instagram", objectSourceName("posts", "posts/instagram/a.json"))
	assert.Equal(t, "tiktok", objectSourceName("", "tiktok.jsonl.gz"))
}

func TestNormalizeBSON(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)

	doc := primitive.M{
		"_id":     oid,
		"posted":  primitive.NewDateTimeFromTime(when),
		"price":   dec,
		"likes":   int32(7),
		"tags":    primitive.A{"a", "b"},
		"author":  primitive.D{{Key: "name", Value: "kim"}},
		"payload": primitive.Binary{Data: []byte("hi")},
		"missing": primitive.Null{},
	}
	got := normalizeBSON(doc).(map[string]interface{})

	assert.Equal(t, oid.Hex(), got["_id"])
	assert.Equal(t, "2024-03-01T12:00:00Z", got["posted"])
	assert.Equal(t, "12.50", got["price"])
	assert.Equal(t, int32(7), got["likes"])
	assert.Equal(t, []interface{}{"a", "b"}, got["tags"])
	assert.Equal(t, map[string]interface{}{"name": "kim"}, got["author"])
	assert.Equal(t, "aGk=", got["payload"])
	assert.Nil(t, got["missing"])
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	src, err := New(ctx, config.SourceConfig{Kind: "file", Path: "x.json"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	src, err = New(ctx, config.SourceConfig{Kind: "mongo", URI: "mongodb://localhost", Database: "db"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mongo:db", src.Name())

	_, err = New(ctx, config.SourceConfig{Kind: "s3"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(ctx, config.SourceConfig{Kind: "ftp"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestMongoSourceRequiresCollections(t *testing.T) {
	src := NewMongoSource(MongoConfig{URI: "mongodb://localhost", Database: "db"}, nil)
	_, err := src.Load(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestMongoSourceIntegration(t *testing.T) {
	uri := os.Getenv("TABULA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TABULA_TEST_MONGO_URI not set")
	}
	src := NewMongoSource(MongoConfig{
		URI:         uri,
		Database:    "tabula_test",
		Collections: []string{"posts"},
		Limit:       10,
	}, zaptest.NewLogger(t))

	batch, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(batch["posts"]), 10)
}
