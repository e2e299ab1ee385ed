package userapi

import (
	"context"
	"sort"
	"sync"
)

// UserRepo stores users. Get returns nil, nil for an unknown id.
type UserRepo interface {
	Get(ctx context.Context, id int) (*User, error)
	Create(ctx context.Context, name, email string) (User, error)
	List(ctx context.Context) ([]User, error)
}

// MemoryRepo keeps users in memory; ids start at 1.
type MemoryRepo struct {
	mu     sync.RWMutex
	users  map[int]User
	nextID int
}

var _ UserRepo = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[int]User), nextID: 1}
}

func (r *MemoryRepo) Get(_ context.Context, id int) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepo) Create(_ context.Context, name, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := User{ID: r.nextID, Name: name, Email: email}
	r.users[u.ID] = u
	r.nextID++
	return u, nil
}

func (r *MemoryRepo) List(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
