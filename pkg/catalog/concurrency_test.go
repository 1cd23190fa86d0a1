package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/ajitpratap0/tabula/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// pausingStore holds the first GetColumn call armed after arm() until
// release is closed.
type pausingStore struct {
	store.Store
	armed   atomic.Bool
	paused  chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		Store:   store.NewMemoryStore(),
		paused:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *pausingStore) arm() { p.armed.Store(true) }

func (p *pausingStore) GetColumn(ctx context.Context, id string) (*models.Column, error) {
	if p.armed.CompareAndSwap(true, false) {
		close(p.paused)
		<-p.release
	}
	return p.Store.GetColumn(ctx, id)
}

func TestChangeColumnTypeSeesConcurrentRename(t *testing.T) {
	ctx := context.Background()
	st := newPausingStore()
	svc := NewService(st, nil, zaptest.NewLogger(t))

	table, err := svc.CreateTable(ctx, "scores", "")
	require.NoError(t, err)
	score, err := svc.AddColumn(ctx, table.ID, "score", models.ColumnTypeNumber, nil)
	require.NoError(t, err)
	seedRows(t, st, table.ID, "score", "10", "abc")

	st.arm()
	var (
		wg        sync.WaitGroup
		changeErr error
		result    models.EvolutionResult
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, result, changeErr = svc.ChangeColumnType(ctx, score.ID, models.ColumnTypeText)
	}()

	<-st.paused
	_, err = svc.RenameColumn(ctx, score.ID, "renamed")
	require.NoError(t, err)
	close(st.release)
	wg.Wait()

	assert.True(t, errors.IsType(changeErr, errors.ErrorTypeConflict))
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{"abc"}, result.SampleConflicts)

	got, err := st.GetColumn(ctx, score.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, models.ColumnTypeNumber, got.Type)

	rows, err := st.ListRows(ctx, table.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, []string{"renamed"}, row.Data.Keys())
	}
}

func TestDeleteColumnSeesConcurrentRename(t *testing.T) {
	ctx := context.Background()
	st := newPausingStore()
	svc := NewService(st, nil, zaptest.NewLogger(t))

	table, err := svc.CreateTable(ctx, "posts", "")
	require.NoError(t, err)
	caption, err := svc.AddColumn(ctx, table.ID, "caption", models.ColumnTypeText, nil)
	require.NoError(t, err)
	_, err = svc.AddColumn(ctx, table.ID, "likes", models.ColumnTypeNumber, nil)
	require.NoError(t, err)

	data := models.NewRowData()
	data.Set("caption", "hi")
	data.Set("likes", 3)
	row := &models.Row{TableID: table.ID, Data: data}
	require.NoError(t, st.CreateRow(ctx, row))

	st.arm()
	var wg sync.WaitGroup
	var deleteErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		deleteErr = svc.DeleteColumn(ctx, caption.ID)
	}()

	<-st.paused
	_, err = svc.RenameColumn(ctx, caption.ID, "text")
	require.NoError(t, err)
	close(st.release)
	wg.Wait()

	require.NoError(t, deleteErr)
	got, err := st.GetRow(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"likes"}, got.Data.Keys())
}

func TestConcurrentTypeChangesOnOneTable(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	table, err := svc.CreateTable(ctx, "posts", "")
	require.NoError(t, err)

	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		col, err := svc.AddColumn(ctx, table.ID, name, models.ColumnTypeText, nil)
		require.NoError(t, err)
		ids = append(ids, col.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := svc.ChangeColumnType(ctx, id, models.ColumnTypeSelect)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, err := st.GetColumn(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.ColumnTypeSelect, got.Type)
		assert.Equal(t, DefaultSelectOptions, got.Options)
	}
}
