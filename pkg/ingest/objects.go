package ingest

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
)

// ObjectConfig locates record objects in a bucket.
type ObjectConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	Limit    int64
}

// objectStore is the listing and reading surface shared by the bucket
// backends.
type objectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// objectSourceName maps an object key to its source. Keys under a
// sub-directory of the prefix belong to that directory
// ("posts/instagram/part-1.json" with prefix "posts/" is "instagram"),
// everything else is named after the object.
func objectSourceName(prefix, key string) string {
	rel := strings.TrimPrefix(key, prefix)
	rel = strings.TrimPrefix(rel, "/")
	if i := strings.Index(rel, "/"); i > 0 {
		return rel[:i]
	}
	return SourceNameFromPath(path.Base(rel))
}

// loadObjects reads every record object under cfg.Prefix.
func loadObjects(ctx context.Context, store objectStore, cfg ObjectConfig, logger *zap.Logger) (models.SourceBatch, error) {
	keys, err := store.List(ctx, cfg.Prefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list objects").
			WithDetail("bucket", cfg.Bucket).
			WithDetail("prefix", cfg.Prefix)
	}
	sort.Strings(keys)

	batch := make(models.SourceBatch)
	for _, key := range keys {
		if strings.HasSuffix(key, "/") || !isRecordFile(key) {
			continue
		}
		source := objectSourceName(cfg.Prefix, key)
		remaining := int64(0)
		if cfg.Limit > 0 {
			remaining = cfg.Limit - int64(len(batch[source]))
			if remaining <= 0 {
				continue
			}
		}

		records, err := readObject(ctx, store, key, remaining)
		if err != nil {
			return nil, err
		}
		batch[source] = append(batch[source], records...)
		logger.Debug("read object",
			zap.String("key", key),
			zap.String("source", source),
			zap.Int("records", len(records)))
	}
	return batch, nil
}

func readObject(ctx context.Context, store objectStore, key string, limit int64) ([]models.Record, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open object").
			WithDetail("key", key)
	}
	defer body.Close()

	r, err := compression.NewReader(body, compression.FromPath(key))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open decompressor").
			WithDetail("key", key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read object").
			WithDetail("key", key)
	}
	records, err := DecodeRecords(bytes.NewReader(data), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode object").
			WithDetail("key", key)
	}
	return records, nil
}
