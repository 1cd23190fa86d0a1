// Package testutil holds fixtures and suites shared by tabula tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/models"
)

// TestLogger returns a logger that writes through t.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// IntegrationTest skips t in short mode.
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// IntegrationTestSuite provides a context and a scratch directory for
// end-to-end tests.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "tabula-test-*")
	s.Require().NoError(err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the scratch directory
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// WriteBatch writes batch as a batch document under the scratch directory
// and returns its path.
func (s *IntegrationTestSuite) WriteBatch(name string, batch models.SourceBatch) string {
	return WriteBatch(s.T(), s.tempDir, name, batch)
}

// WriteBatch writes batch to dir/name as a {"source": [records]} document.
func WriteBatch(t *testing.T, dir, name string, batch models.SourceBatch) string {
	t.Helper()
	data, err := jsonpool.Marshal(map[string][]models.Record(batch))
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// SocialBatch returns posts from three platforms that name the same
// concepts differently, nest some of them and disagree on value formats.
func SocialBatch() models.SourceBatch {
	return models.SourceBatch{
		"instagram": {
			{
				"id":                    "ig1",
				"caption":               "Sunset over the bay",
				"like_count":            1204,
				"taken_at":              "2024-03-01T18:00:00Z",
				"is_video":              false,
				"display_url":           "https://cdn.example.com/ig1.jpg",
				"edge_media_to_comment": map[string]interface{}{"count": 12},
			},
			{
				"id":                    "ig2",
				"caption":               "Morning run",
				"like_count":            "1,532",
				"taken_at":              "2024-03-02T07:30:00Z",
				"is_video":              true,
				"display_url":           "https://cdn.example.com/ig2.mp4",
				"edge_media_to_comment": map[string]interface{}{"count": 3},
			},
		},
		"tiktok": {
			{
				"id":           "tt1",
				"text":         "Dance challenge",
				"diggCount":    88000,
				"createTime":   "2024-03-03",
				"commentCount": 410,
				"hashtags":     []interface{}{"dance", "fyp"},
			},
		},
		"youtube": {
			{
				"id":           "yt1",
				"title":        "Building a bookshelf",
				"likeCount":    "950",
				"publishedAt":  "2024-02-28T12:00:00Z",
				"commentCount": "77",
				"url":          "https://youtube.com/watch?v=yt1",
			},
		},
	}
}
