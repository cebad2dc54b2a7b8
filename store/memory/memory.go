// Package memory holds the in-process reference implementation of the board
// storage contract. It keeps one mutex per record so concurrent writers to
// different ids never block each other; only the registry map itself is
// shared.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/liveboard/board-sync/store"
)

type record struct {
	mu       sync.Mutex
	revision int64
	data     []byte
}

type Storage struct {
	mu      sync.RWMutex
	records map[string]*record
}

func New() *Storage {
	return &Storage{records: make(map[string]*record)}
}

// entry returns the slot for id, creating an empty one (revision 0) if
// needed. Empty slots are invisible to Get and List.
func (s *Storage) entry(id string) *record {
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return r
	}
	r = &record{}
	s.records[id] = r
	return r
}

func (s *Storage) Put(ctx context.Context, id string, data []byte, expectedRevision int64) (int64, error) {
	r := s.entry(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.revision != expectedRevision {
		return 0, &store.RevisionConflictError{Id: id, Expected: expectedRevision, Actual: r.revision}
	}
	r.revision = expectedRevision + 1
	r.data = append([]byte(nil), data...)
	return r.revision, nil
}

func (s *Storage) Get(ctx context.Context, id string) (*store.StoredRecord, error) {
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revision == 0 {
		return nil, store.ErrNotFound
	}
	return &store.StoredRecord{
		Id:       id,
		Data:     append([]byte(nil), r.data...),
		Revision: r.revision,
	}, nil
}

func (s *Storage) List(ctx context.Context) ([]store.StoredRecord, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	records := make([]store.StoredRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			// slot reserved by a write that never committed
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}
