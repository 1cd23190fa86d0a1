// Package ingest loads source records into a models.SourceBatch. Each
// backend maps its own notion of a source (a file, a collection, an object
// prefix) onto a source name.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/errors"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
)

// Source produces a batch of records grouped by source name.
type Source interface {
	Name() string
	Load(ctx context.Context) (models.SourceBatch, error)
}

// ScalarKey holds a top-level array element that is not an object.
const ScalarKey = "value"

// New builds the source described by cfg.
func New(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("source_kind", cfg.Kind))

	switch cfg.Kind {
	case "file":
		return NewFileSource(cfg.Path, cfg.Limit, logger), nil
	case "mongo":
		return NewMongoSource(MongoConfig{
			URI:         cfg.URI,
			Database:    cfg.Database,
			Collections: cfg.Collections,
			Limit:       cfg.Limit,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "s3":
		return NewS3Source(ctx, ObjectConfig{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Limit:    cfg.Limit,
		}, logger)
	case "gcs":
		return NewGCSSource(ctx, ObjectConfig{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Endpoint: cfg.Endpoint,
			Limit:    cfg.Limit,
		}, logger)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported source kind %q", cfg.Kind)
	}
}

// Normalize converts typed containers into the generic map and slice shapes
// the engine walks. json.Number and other scalars are returned unchanged.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, string, bool, jsonpool.Number, []byte:
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

// DecodeRecords reads a JSON array, a single object, or a stream of
// objects (JSONL). Array elements that are not objects are wrapped under
// ScalarKey. At most limit records are returned when limit > 0.
func DecodeRecords(r io.Reader, limit int64) ([]models.Record, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []models.Record
	add := func(v interface{}) bool {
		records = append(records, toRecord(v))
		return limit <= 0 || int64(len(records)) < limit
	}

	if first == '[' {
		var items []interface{}
		if err := jsonpool.NewDecoder(br).Decode(&items); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode record array")
		}
		for _, item := range items {
			if !add(item) {
				break
			}
		}
		return records, nil
	}

	dec := jsonpool.NewDecoder(br)
	for {
		var v interface{}
		err := dec.Decode(&v)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to decode record %d", len(records)+1))
		}
		if !add(v) {
			break
		}
	}
	return records, nil
}

// DecodeBatch reads a batch document of the form {"source": [records...]}.
// ok is false when data is not shaped like one, in which case the caller
// should treat it as plain records.
func DecodeBatch(data []byte, limit int64) (batch models.SourceBatch, ok bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false, nil
	}

	var doc map[string]interface{}
	if err := jsonpool.Unmarshal(trimmed, &doc); err != nil {
		// Possibly JSONL; let the record decoder decide.
		return nil, false, nil
	}
	if len(doc) == 0 {
		return nil, false, nil
	}
	for _, v := range doc {
		if _, isList := v.([]interface{}); !isList {
			return nil, false, nil
		}
	}

	batch = make(models.SourceBatch, len(doc))
	for source, v := range doc {
		items := v.([]interface{})
		records := make([]models.Record, 0, len(items))
		for _, item := range items {
			if limit > 0 && int64(len(records)) >= limit {
				break
			}
			records = append(records, toRecord(item))
		}
		batch[source] = records
	}
	return batch, true, nil
}

// SourceNameFromPath derives a source name from a file or object name by
// dropping the directory, compression suffix and format suffix:
// "exports/tiktok.jsonl.gz" becomes "tiktok".
func SourceNameFromPath(path string) string {
	base := filepath.Base(compression.TrimExt(path))
	for _, ext := range []string{".jsonl", ".ndjson", ".json"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

func isRecordFile(path string) bool {
	base := strings.ToLower(compression.TrimExt(path))
	return strings.HasSuffix(base, ".json") ||
		strings.HasSuffix(base, ".jsonl") ||
		strings.HasSuffix(base, ".ndjson")
}

func toRecord(v interface{}) models.Record {
	if m, ok := Normalize(v).(map[string]interface{}); ok {
		return m
	}
	return models.Record{ScalarKey: Normalize(v)}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case 0xEF:
			// UTF-8 byte order mark
			if _, err := br.Discard(2); err != nil {
				return 0, err
			}
			continue
		}
		return b, br.UnreadByte()
	}
}
