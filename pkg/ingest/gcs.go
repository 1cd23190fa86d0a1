package ingest

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSSource reads record objects from a Google Cloud Storage bucket.
// Credentials come from the application default chain unless an endpoint
// is set, which targets an unauthenticated emulator.
type GCSSource struct {
	config ObjectConfig
	client *storage.Client
	logger *zap.Logger
}

// NewGCSSource creates a storage client for cfg.
func NewGCSSource(ctx context.Context, cfg ObjectConfig, logger *zap.Logger) (*GCSSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "gcs source requires a bucket")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	return &GCSSource{
		config: cfg,
		client: client,
		logger: logger.With(zap.String("bucket", cfg.Bucket)),
	}, nil
}

// Name returns the bucket URL.
func (s *GCSSource) Name() string { return "gs://" + s.config.Bucket + "/" + s.config.Prefix }

// Load reads every record object under the prefix.
func (s *GCSSource) Load(ctx context.Context) (models.SourceBatch, error) {
	return loadObjects(ctx, gcsObjectStore{bucket: s.client.Bucket(s.config.Bucket)}, s.config, s.logger)
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}

type gcsObjectStore struct {
	bucket *storage.BucketHandle
}

func (o gcsObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := o.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (o gcsObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return o.bucket.Object(key).NewReader(ctx)
}
