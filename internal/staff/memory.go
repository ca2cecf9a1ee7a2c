package staff

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/licensehub/licensehub/internal/licensing"
)

// MemoryRepository keeps employees in process for the memory storage mode.
type MemoryRepository struct {
	mu        sync.RWMutex
	employees map[uuid.UUID]Employee
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{employees: make(map[uuid.UUID]Employee)}
}

func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if e.Email == email {
			return e, nil
		}
	}
	return Employee{}, ErrNotFound
}

func (m *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryRepository) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if e, ok := m.employees[id]; ok {
			names[id] = e.Name
		}
	}
	return names, nil
}

func (m *MemoryRepository) Create(ctx context.Context, e Employee) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.employees {
		if existing.Email == e.Email {
			return Employee{}, &licensing.ConflictError{Field: fieldEmail}
		}
		if existing.StaffNo == e.StaffNo {
			return Employee{}, &licensing.ConflictError{Field: fieldStaffNo}
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.employees[e.ID] = e
	return e, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]Employee, error) {
	m.mu.RLock()
	out := make([]Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StaffNo < out[j].StaffNo })
	return out, nil
}

func (m *MemoryRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.employees), nil
}

var _ Repository = (*MemoryRepository)(nil)
