package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ajitpratap0/tabula/pkg/models"
)

// MemoryStore keeps everything in process memory. Returned entities are
// copies; mutating them does not affect the store.
type MemoryStore struct {
	mu       sync.RWMutex
	tables   map[string]*models.Table
	columns  map[string]*models.Column
	rows     map[string]*models.Row
	rowOrder map[string][]string // table ID -> row IDs in creation order
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:   make(map[string]*models.Table),
		columns:  make(map[string]*models.Column),
		rows:     make(map[string]*models.Row),
		rowOrder: make(map[string][]string),
	}
}

func (s *MemoryStore) CreateTable(_ context.Context, table *models.Table) error {
	prepareTable(table)

	s.mu.Lock()
	defer s.mu.Unlock()
	t := *table
	s.tables[t.ID] = &t
	return nil
}

func (s *MemoryStore) GetTable(_ context.Context, id string) (*models.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[id]
	if !ok {
		return nil, notFound("table", id)
	}
	out := *t
	return &out, nil
}

func (s *MemoryStore) ListTables(_ context.Context) ([]*models.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make([]*models.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out := *t
		tables = append(tables, &out)
	}
	sort.Slice(tables, func(i, j int) bool {
		if !tables[i].CreatedAt.Equal(tables[j].CreatedAt) {
			return tables[i].CreatedAt.Before(tables[j].CreatedAt)
		}
		return tables[i].Name < tables[j].Name
	})
	return tables, nil
}

func (s *MemoryStore) DeleteTable(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[id]; !ok {
		return notFound("table", id)
	}
	delete(s.tables, id)
	for cid, c := range s.columns {
		if c.TableID == id {
			delete(s.columns, cid)
		}
	}
	for _, rid := range s.rowOrder[id] {
		delete(s.rows, rid)
	}
	delete(s.rowOrder, id)
	return nil
}

func (s *MemoryStore) CreateColumn(_ context.Context, column *models.Column) error {
	if err := prepareColumn(column); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[column.TableID]; !ok {
		return notFound("table", column.TableID)
	}
	if s.nameTaken(column.TableID, column.Name, column.ID) {
		return duplicateColumn(column.TableID, column.Name)
	}
	s.columns[column.ID] = cloneColumn(column)
	return nil
}

func (s *MemoryStore) GetColumn(_ context.Context, id string) (*models.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.columns[id]
	if !ok {
		return nil, notFound("column", id)
	}
	return cloneColumn(c), nil
}

func (s *MemoryStore) ListColumns(_ context.Context, tableID string) ([]*models.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tables[tableID]; !ok {
		return nil, notFound("table", tableID)
	}
	cols := make([]*models.Column, 0)
	for _, c := range s.columns {
		if c.TableID == tableID {
			cols = append(cols, cloneColumn(c))
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Order != cols[j].Order {
			return cols[i].Order < cols[j].Order
		}
		return cols[i].Name < cols[j].Name
	})
	return cols, nil
}

func (s *MemoryStore) UpdateColumn(_ context.Context, column *models.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.columns[column.ID]
	if !ok {
		return notFound("column", column.ID)
	}
	column.TableID = existing.TableID
	column.CreatedAt = existing.CreatedAt
	if err := prepareColumn(column); err != nil {
		return err
	}
	if s.nameTaken(column.TableID, column.Name, column.ID) {
		return duplicateColumn(column.TableID, column.Name)
	}
	column.UpdatedAt = now()
	s.columns[column.ID] = cloneColumn(column)
	return nil
}

func (s *MemoryStore) DeleteColumn(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.columns[id]; !ok {
		return notFound("column", id)
	}
	delete(s.columns, id)
	return nil
}

func (s *MemoryStore) CreateRow(ctx context.Context, row *models.Row) error {
	return s.CreateRows(ctx, []*models.Row{row})
}

func (s *MemoryStore) CreateRows(_ context.Context, rows []*models.Row) error {
	for _, r := range rows {
		if err := prepareRow(r); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if _, ok := s.tables[r.TableID]; !ok {
			return notFound("table", r.TableID)
		}
	}
	for _, r := range rows {
		if _, exists := s.rows[r.ID]; !exists {
			s.rowOrder[r.TableID] = append(s.rowOrder[r.TableID], r.ID)
		}
		s.rows[r.ID] = cloneRow(r)
	}
	return nil
}

func (s *MemoryStore) GetRow(_ context.Context, id string) (*models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, notFound("row", id)
	}
	return cloneRow(r), nil
}

func (s *MemoryStore) ListRows(_ context.Context, tableID string) ([]*models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tables[tableID]; !ok {
		return nil, notFound("table", tableID)
	}
	ids := s.rowOrder[tableID]
	rows := make([]*models.Row, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.rows[id]; ok {
			rows = append(rows, cloneRow(r))
		}
	}
	return rows, nil
}

func (s *MemoryStore) UpdateRow(_ context.Context, row *models.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rows[row.ID]
	if !ok {
		return notFound("row", row.ID)
	}
	row.TableID = existing.TableID
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = now()
	if row.Data == nil {
		row.Data = models.NewRowData()
	}
	s.rows[row.ID] = cloneRow(row)
	return nil
}

func (s *MemoryStore) DeleteRow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return notFound("row", id)
	}
	delete(s.rows, id)
	order := s.rowOrder[r.TableID]
	for i, rid := range order {
		if rid == id {
			s.rowOrder[r.TableID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// nameTaken reports whether another column of tableID is called name.
// Callers hold s.mu.
func (s *MemoryStore) nameTaken(tableID, name, exceptID string) bool {
	for id, c := range s.columns {
		if id != exceptID && c.TableID == tableID && c.Name == name {
			return true
		}
	}
	return false
}
