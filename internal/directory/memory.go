package directory

import (
	"context"
	"propbook/pkg/model"
	"sync"
)

// MemoryDirectory serves both directories from maps. An error given to
// SetErr is returned from every lookup to simulate an outage.
type MemoryDirectory struct {
	mu         sync.RWMutex
	properties map[string]model.Property
	users      map[string]model.User
	err        error
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		properties: make(map[string]model.Property),
		users:      make(map[string]model.User),
	}
}

func (d *MemoryDirectory) AddProperty(p model.Property) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.properties[p.ID] = p
}

func (d *MemoryDirectory) AddUser(u model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *MemoryDirectory) GetProperty(_ context.Context, id string) (*model.Property, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	p, ok := d.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (d *MemoryDirectory) GetUser(_ context.Context, id string) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}
