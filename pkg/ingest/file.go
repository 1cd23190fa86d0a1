package ingest

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.uber.org/zap"
)

// FileSource reads records from a local file or a directory of files.
//
// A single file holding an object whose values are all arrays is read as a
// batch document keyed by source name. Any other file is one source named
// after the file. A directory contributes one source per record file.
// Compressed files (.gz, .zst, .lz4, ...) are decompressed transparently.
type FileSource struct {
	path   string
	limit  int64
	logger *zap.Logger
}

// NewFileSource creates a source for path. limit caps records per source.
func NewFileSource(path string, limit int64, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, limit: limit, logger: logger}
}

// Name returns the configured path.
func (s *FileSource) Name() string { return s.path }

// Load reads the file or directory.
func (s *FileSource) Load(ctx context.Context) (models.SourceBatch, error) {
	if s.path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "file source requires a path")
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat source path").
			WithDetail("path", s.path)
	}

	if !info.IsDir() {
		return s.loadFile(s.path, true)
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read source directory").
			WithDetail("path", s.path)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isRecordFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	batch := make(models.SourceBatch, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "file load cancelled")
		}
		part, err := s.loadFile(filepath.Join(s.path, name), false)
		if err != nil {
			return nil, err
		}
		for source, records := range part {
			batch[source] = append(batch[source], records...)
		}
	}

	s.logger.Debug("loaded directory",
		zap.String("path", s.path),
		zap.Int("sources", len(batch)),
		zap.Int("records", batch.TotalRecords()))
	return batch, nil
}

func (s *FileSource) loadFile(path string, allowBatch bool) (models.SourceBatch, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if allowBatch {
		batch, ok, err := DecodeBatch(data, s.limit)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode batch document").
				WithDetail("path", path)
		}
		if ok {
			s.logger.Debug("loaded batch document",
				zap.String("path", path),
				zap.Int("sources", len(batch)))
			return batch, nil
		}
	}

	records, err := DecodeRecords(bytes.NewReader(data), s.limit)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithDetail("path", path)
		}
		return nil, err
	}
	return models.SourceBatch{SourceNameFromPath(path): records}, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open source file").
			WithDetail("path", path)
	}
	defer f.Close()

	r, err := compression.NewReader(f, compression.FromPath(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open decompressor").
			WithDetail("path", path)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read source file").
			WithDetail("path", path)
	}
	return data, nil
}
