package ingest

import (
	"bytes"
	"context"
	"io"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Source reads record objects from an S3 bucket (or an S3-compatible
// endpoint such as MinIO).
type S3Source struct {
	config ObjectConfig
	store  *s3ObjectStore
	logger *zap.Logger
}

// NewS3Source loads the default AWS credential chain and creates a client.
func NewS3Source(ctx context.Context, cfg ObjectConfig, logger *zap.Logger) (*S3Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "s3 source requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Source{
		config: cfg,
		store: &s3ObjectStore{
			client:     client,
			downloader: manager.NewDownloader(client),
			bucket:     cfg.Bucket,
		},
		logger: logger.With(zap.String("bucket", cfg.Bucket)),
	}, nil
}

// Name returns the bucket URL.
func (s *S3Source) Name() string { return "s3://" + s.config.Bucket + "/" + s.config.Prefix }

// Load reads every record object under the prefix.
func (s *S3Source) Load(ctx context.Context) (models.SourceBatch, error) {
	return loadObjects(ctx, s.store, s.config, s.logger)
}

type s3ObjectStore struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
}

func (o *s3ObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(o.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(o.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Open downloads the object with concurrent ranged gets and returns the
// buffered body.
func (o *s3ObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := o.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}
