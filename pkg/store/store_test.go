package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "tabula.db")

	s, err := NewSQLStore(ctx, DriverSQLite, dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "tabula.db")

	s, err := NewSQLStore(ctx, DriverSQLite, dsn, nil)
	require.NoError(t, err)
	table := &models.Table{Name: "posts"}
	require.NoError(t, s.CreateTable(ctx, table))
	require.NoError(t, s.Close())

	reopened, err := NewSQLStore(ctx, DriverSQLite, dsn, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetTable(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, "posts", got.Name)
}

func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("TABULA_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TABULA_TEST_MYSQL_DSN not set")
	}
	s, err := NewSQLStore(context.Background(), DriverMySQL, dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TABULA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TABULA_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "SQLite", filepath.Join(t.TempDir(), "open.db"), nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "oracle", "dsn", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(ctx, DriverPostgres, "", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

// testStore runs the behaviour every Store implementation shares. It creates
// its own table so it can run against a shared database.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	table := &models.Table{Name: "posts", Description: "scraped posts"}
	require.NoError(t, s.CreateTable(ctx, table))
	require.NotEmpty(t, table.ID)
	assert.False(t, table.CreatedAt.IsZero())

	t.Run("tables", func(t *testing.T) {
		got, err := s.GetTable(ctx, table.ID)
		require.NoError(t, err)
		assert.Equal(t, "posts", got.Name)
		assert.Equal(t, "scraped posts", got.Description)

		tables, err := s.ListTables(ctx)
		require.NoError(t, err)
		var ids []string
		for _, tb := range tables {
			ids = append(ids, tb.ID)
		}
		assert.Contains(t, ids, table.ID)

		_, err = s.GetTable(ctx, "missing")
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("columns", func(t *testing.T) {
		likes := &models.Column{TableID: table.ID, Name: "likes", Type: models.ColumnTypeNumber, Order: 1, Required: true}
		caption := &models.Column{TableID: table.ID, Name: "caption", Type: models.ColumnTypeText, Order: 0}
		require.NoError(t, s.CreateColumn(ctx, likes))
		require.NoError(t, s.CreateColumn(ctx, caption))

		dup := &models.Column{TableID: table.ID, Name: "likes", Type: models.ColumnTypeText}
		err := s.CreateColumn(ctx, dup)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

		orphan := &models.Column{TableID: "missing", Name: "x", Type: models.ColumnTypeText}
		err = s.CreateColumn(ctx, orphan)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

		bad := &models.Column{TableID: table.ID, Name: "x", Type: "money"}
		err = s.CreateColumn(ctx, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

		cols, err := s.ListColumns(ctx, table.ID)
		require.NoError(t, err)
		require.Len(t, cols, 2)
		assert.Equal(t, "caption", cols[0].Name)
		assert.Equal(t, "likes", cols[1].Name)
		assert.True(t, cols[1].Required)

		likes.Type = models.ColumnTypeSelect
		likes.Options = []string{"Active", "Pending"}
		require.NoError(t, s.UpdateColumn(ctx, likes))

		got, err := s.GetColumn(ctx, likes.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ColumnTypeSelect, got.Type)
		assert.Equal(t, []string{"Active", "Pending"}, got.Options)
		assert.Equal(t, table.ID, got.TableID)

		got.Name = "caption"
		err = s.UpdateColumn(ctx, got)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

		require.NoError(t, s.DeleteColumn(ctx, caption.ID))
		_, err = s.GetColumn(ctx, caption.ID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
		assert.True(t, errors.IsType(s.DeleteColumn(ctx, caption.ID), errors.ErrorTypeNotFound))
	})

	t.Run("rows", func(t *testing.T) {
		var rows []*models.Row
		for i, caption := range []string{"first", "second", "third"} {
			data := models.NewRowData()
			data.Set("caption", caption)
			data.Set("likes", i)
			rows = append(rows, &models.Row{TableID: table.ID, Data: data})
		}
		require.NoError(t, s.CreateRows(ctx, rows))

		extra := models.NewRowData()
		extra.Set("caption", "fourth")
		fourth := &models.Row{TableID: table.ID, Data: extra}
		require.NoError(t, s.CreateRow(ctx, fourth))

		listed, err := s.ListRows(ctx, table.ID)
		require.NoError(t, err)
		require.Len(t, listed, 4)
		var captions []interface{}
		for _, r := range listed {
			v, _ := r.Data.Get("caption")
			captions = append(captions, v)
		}
		assert.Equal(t, []interface{}{"first", "second", "third", "fourth"}, captions)
		assert.Equal(t, []string{"caption", "likes"}, listed[0].Data.Keys())

		got, err := s.GetRow(ctx, rows[1].ID)
		require.NoError(t, err)
		got.Data.Set("caption", "edited")
		require.NoError(t, s.UpdateRow(ctx, got))

		again, err := s.GetRow(ctx, rows[1].ID)
		require.NoError(t, err)
		v, _ := again.Data.Get("caption")
		assert.Equal(t, "edited", v)

		require.NoError(t, s.DeleteRow(ctx, rows[0].ID))
		listed, err = s.ListRows(ctx, table.ID)
		require.NoError(t, err)
		assert.Len(t, listed, 3)

		assert.True(t, errors.IsType(s.DeleteRow(ctx, rows[0].ID), errors.ErrorTypeNotFound))
		assert.True(t, errors.IsType(s.UpdateRow(ctx, &models.Row{ID: "missing"}), errors.ErrorTypeNotFound))

		orphan := &models.Row{TableID: "missing"}
		assert.True(t, errors.IsType(s.CreateRow(ctx, orphan), errors.ErrorTypeNotFound))
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, s.DeleteTable(ctx, table.ID))

		_, err := s.GetTable(ctx, table.ID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
		_, err = s.ListRows(ctx, table.ID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
		assert.True(t, errors.IsType(s.DeleteTable(ctx, table.ID), errors.ErrorTypeNotFound))
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	table := &models.Table{Name: "t"}
	require.NoError(t, s.CreateTable(ctx, table))
	col := &models.Column{TableID: table.ID, Name: "tags", Type: models.ColumnTypeMultiSelect, Options: []string{"a"}}
	require.NoError(t, s.CreateColumn(ctx, col))

	got, err := s.GetColumn(ctx, col.ID)
	require.NoError(t, err)
	got.Options[0] = "changed"

	again, err := s.GetColumn(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Options)
}
