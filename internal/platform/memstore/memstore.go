// Package memstore is an in-memory, size-bounded store.ArtifactStore backed by an LRU cache.
package memstore

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/store"
)

type entry struct {
	owner    string
	artifact domain.Artifact
}

// ArtifactStore holds at most maxEntries artifacts, evicting the least
// recently used. An owner index lets a finished task drop its artifacts at once.
type ArtifactStore struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, entry]
	byOwner map[string]map[string]struct{}
}

var _ store.ArtifactStore = (*ArtifactStore)(nil)

// New creates a store bounded to maxEntries artifacts.
func New(maxEntries int) (*ArtifactStore, error) {
	s := &ArtifactStore{byOwner: make(map[string]map[string]struct{})}

	cache, err := lru.NewWithEvict[string, entry](maxEntries, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create artifact cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// onEvict runs inside cache operations, which are only made with s.mu held.
func (s *ArtifactStore) onEvict(id string, e entry) {
	ids := s.byOwner[e.owner]
	delete(ids, id)
	if len(ids) == 0 {
		delete(s.byOwner, e.owner)
	}
}

// Put stores artifact under owner, replacing any artifact with the same id.
// The least recently used artifact is evicted when the store is full.
func (s *ArtifactStore) Put(owner string, artifact domain.Artifact) error {
	if artifact.ID == "" {
		return fmt.Errorf("%w: artifact id cannot be empty", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-registering under a new owner must not leave the id in the old owner's index.
	s.cache.Remove(artifact.ID)
	s.cache.Add(artifact.ID, entry{owner: owner, artifact: artifact})

	ids, ok := s.byOwner[owner]
	if !ok {
		ids = make(map[string]struct{})
		s.byOwner[owner] = ids
	}
	ids[artifact.ID] = struct{}{}
	return nil
}

// Get returns the artifact with the given id or domain.ErrArtifactNotFound.
func (s *ArtifactStore) Get(id string) (domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Get(id)
	if !ok {
		return domain.Artifact{}, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, id)
	}
	return e.artifact, nil
}

// Update applies fn to a copy of the artifact and stores the result under the
// same owner. fn must not change the id.
func (s *ArtifactStore) Update(id string, fn func(*domain.Artifact)) (domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Get(id)
	if !ok {
		return domain.Artifact{}, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, id)
	}
	fn(&e.artifact)
	e.artifact.ID = id
	s.cache.Add(id, e)
	return e.artifact, nil
}

// DeleteOwner removes every artifact stored under owner and returns how many
// were removed.
func (s *ArtifactStore) DeleteOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.byOwner[owner]))
	for id := range s.byOwner[owner] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		s.cache.Remove(id)
	}
	delete(s.byOwner, owner)
	return len(ids)
}

// Len returns the number of stored artifacts.
func (s *ArtifactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
