package audit

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in memory Store, mostly useful for tests and for
// processes that only need the trail for their own lifetime.
// MemStore is safe for concurrent use.
type MemStore struct {
	mut     sync.RWMutex
	records []Record
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append implements Store.
func (self *MemStore) Append(_ context.Context, rec Record) error {
	err := rec.Check()
	if nil != err {
		return wrapError(err, "invalid record")
	}

	self.mut.Lock()
	defer self.mut.Unlock()
	self.records = append(self.records, rec)

	return nil
}

// List implements Store.
func (self *MemStore) List(_ context.Context) ([]Record, error) {
	self.mut.RLock()
	defer self.mut.RUnlock()

	return slices.Clone(self.records), nil
}

// Count implements Store.
func (self *MemStore) Count(_ context.Context) (int, error) {
	self.mut.RLock()
	defer self.mut.RUnlock()

	return len(self.records), nil
}

var _ Store = &MemStore{}
