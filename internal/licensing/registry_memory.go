package licensing

import (
	"context"
	"crypto/subtle"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRegistry is an in-process Registry. Reads never wait on a running
// update; updates to the same company are serialized by a per-company mutex.
type MemoryRegistry struct {
	mu          sync.RWMutex
	companies   map[uuid.UUID]Company
	locks       map[uuid.UUID]*sync.Mutex
	byCompanyID map[string]uuid.UUID
	byEmail     map[string]uuid.UUID
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		companies:   make(map[uuid.UUID]Company),
		locks:       make(map[uuid.UUID]*sync.Mutex),
		byCompanyID: make(map[string]uuid.UUID),
		byEmail:     make(map[string]uuid.UUID),
	}
}

func (r *MemoryRegistry) FindByBusinessKey(ctx context.Context, companyID, deployKey string) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCompanyID[companyID]
	if !ok {
		return Company{}, ErrNotFound
	}
	c := r.companies[id]
	if subtle.ConstantTimeCompare([]byte(c.DeployKey), []byte(deployKey)) != 1 {
		return Company{}, ErrNotFound
	}
	return c.clone(), nil
}

func (r *MemoryRegistry) FindByID(ctx context.Context, id uuid.UUID) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c.clone(), nil
}

func (r *MemoryRegistry) Create(ctx context.Context, company Company) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byCompanyID[company.CompanyID]; taken {
		return Company{}, &ConflictError{Field: fieldCompanyID}
	}
	if _, taken := r.byEmail[company.Email]; taken {
		return Company{}, &ConflictError{Field: fieldEmail}
	}
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	stored := company.clone()
	r.companies[stored.ID] = stored
	r.locks[stored.ID] = &sync.Mutex{}
	r.byCompanyID[stored.CompanyID] = stored.ID
	r.byEmail[stored.Email] = stored.ID
	return stored.clone(), nil
}

func (r *MemoryRegistry) Update(ctx context.Context, id uuid.UUID, patch func(*Company) error) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return Company{}, ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current := r.companies[id].clone()
	r.mu.RUnlock()

	next := current.clone()
	if err := patch(&next); err != nil {
		return Company{}, err
	}
	next.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.byCompanyID[next.CompanyID]; taken && owner != id {
		return Company{}, &ConflictError{Field: fieldCompanyID}
	}
	if owner, taken := r.byEmail[next.Email]; taken && owner != id {
		return Company{}, &ConflictError{Field: fieldEmail}
	}
	delete(r.byCompanyID, current.CompanyID)
	delete(r.byEmail, current.Email)
	r.byCompanyID[next.CompanyID] = id
	r.byEmail[next.Email] = id
	r.companies[id] = next.clone()
	return next, nil
}

func (r *MemoryRegistry) List(ctx context.Context) ([]Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Company, 0, len(r.companies))
	for _, c := range r.companies {
		out = append(out, c.clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

var _ Registry = (*MemoryRegistry)(nil)
