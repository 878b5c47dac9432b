package errorstore

import (
	"sync"

	"github.com/fluxstream/clustercore/pkg/types"
)

// Entry is the last recorded error for an index.
type Entry struct {
	Message string
	Count   int
}

// Store is a mutex-guarded map of index name to its latest transient
// error. It is safe for concurrent use from multiple goroutines: the
// DSLC's cluster-applier-thread callers and any client-completion
// handlers that record failures.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates an empty error store.
func New() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Record inserts or overwrites index's entry with the latest error
// message and increments the entry's occurrence count on every call.
func (s *Store) Record(index string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[index]
	if !ok {
		s.entries[index] = &Entry{Message: err.Error(), Count: 1}
		return
	}
	existing.Message = err.Error()
	existing.Count++
}

// Clear removes any entry for index.
func (s *Store) Clear(index string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, index)
}

// Get returns the latest entry for index, if any.
func (s *Store) Get(index string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[index]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Size reports the number of indices currently carrying an error. Exposed
// for tests.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reconcile drops stored entries that no longer need tracking: the index
// is gone from the cluster and present in the tombstone graveyard, or the
// index still exists but is no longer in managedIndices. A write index's
// entry survives reconciliation even when every non-write index of its
// stream was deleted, because it is still present and still managed.
func (s *Store) Reconcile(state *types.ClusterState, managedIndices map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existingIndex := indexExistenceSet(state)

	for name := range s.entries {
		if managedIndices[name] {
			continue
		}
		if !existingIndex[name] {
			if _, tombstoned := state.Tombstones[name]; tombstoned {
				delete(s.entries, name)
			}
			continue
		}
		// Index exists but is not (or no longer) managed.
		delete(s.entries, name)
	}
}

func indexExistenceSet(state *types.ClusterState) map[string]bool {
	existing := make(map[string]bool)
	for _, ds := range state.DataStreams {
		for _, idx := range ds.BackingIndices {
			existing[idx.Name] = true
		}
	}
	return existing
}
