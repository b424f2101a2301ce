package store

import "github.com/phrazzld/docstream/internal/domain"

// ArtifactStore keeps extracted artifacts addressable by id while the task
// that produced them is alive. There is no durability guarantee: entries may
// be evicted under memory pressure and are dropped when the owner is removed.
type ArtifactStore interface {
	// Put registers artifact under owner, replacing any entry with the same id.
	Put(owner string, artifact domain.Artifact) error

	// Get returns the artifact with id, or domain.ErrArtifactNotFound.
	Get(id string) (domain.Artifact, error)

	// Update applies fn to the stored artifact, keeping its owner, and returns
	// the updated copy or domain.ErrArtifactNotFound.
	Update(id string, fn func(*domain.Artifact)) (domain.Artifact, error)

	// DeleteOwner drops every artifact registered by owner and returns how many were removed.
	DeleteOwner(owner string) int
}
