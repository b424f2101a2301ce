package memstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docstream/internal/domain"
)

func artifact(id string) domain.Artifact {
	return domain.Artifact{ID: id, Format: "png", Data: []byte(id)}
}

func TestNew_InvalidSize(t *testing.T) {
	t.Parallel()

	_, err := New(0)
	assert.Error(t, err)
}

func TestArtifactStore_PutGet(t *testing.T) {
	t.Parallel()

	s, err := New(10)
	require.NoError(t, err)

	require.NoError(t, s.Put("task-1", artifact("a_0")))

	got, err := s.Get("a_0")
	require.NoError(t, err)
	assert.Equal(t, []byte("a_0"), got.Data)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	assert.ErrorIs(t, s.Put("task-1", domain.Artifact{}), domain.ErrValidation)
}

func TestArtifactStore_UpdateKeepsOwner(t *testing.T) {
	t.Parallel()

	s, err := New(10)
	require.NoError(t, err)
	require.NoError(t, s.Put("task-1", artifact("a_0")))

	got, err := s.Update("a_0", func(a *domain.Artifact) {
		a.Category = "table"
		a.ID = "renamed"
	})
	require.NoError(t, err)
	assert.Equal(t, "a_0", got.ID)
	assert.Equal(t, "table", got.Category)

	stored, err := s.Get("a_0")
	require.NoError(t, err)
	assert.Equal(t, "table", stored.Category)
	assert.Equal(t, []byte("a_0"), stored.Data)

	_, err = s.Update("missing", func(*domain.Artifact) {})
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	assert.Equal(t, 1, s.DeleteOwner("task-1"), "the updated artifact still belongs to its task")
	assert.Equal(t, 0, s.Len())
}

func TestArtifactStore_DeleteOwner(t *testing.T) {
	t.Parallel()

	s, err := New(10)
	require.NoError(t, err)

	require.NoError(t, s.Put("task-1", artifact("a_0")))
	require.NoError(t, s.Put("task-1", artifact("a_1")))
	require.NoError(t, s.Put("task-2", artifact("b_0")))

	assert.Equal(t, 2, s.DeleteOwner("task-1"))
	assert.Equal(t, 0, s.DeleteOwner("task-1"))
	assert.Equal(t, 1, s.Len())

	_, err = s.Get("a_0")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	_, err = s.Get("b_0")
	assert.NoError(t, err)
}

func TestArtifactStore_EvictionUpdatesOwnerIndex(t *testing.T) {
	t.Parallel()

	s, err := New(2)
	require.NoError(t, err)

	require.NoError(t, s.Put("old", artifact("x_0")))
	require.NoError(t, s.Put("new", artifact("y_0")))
	require.NoError(t, s.Put("new", artifact("y_1")))

	_, err = s.Get("x_0")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	assert.Equal(t, 0, s.DeleteOwner("old"))
	assert.Equal(t, 2, s.DeleteOwner("new"))
}

func TestArtifactStore_ReownedArtifact(t *testing.T) {
	t.Parallel()

	s, err := New(5)
	require.NoError(t, err)

	require.NoError(t, s.Put("first", artifact("z_0")))
	require.NoError(t, s.Put("second", artifact("z_0")))

	assert.Equal(t, 0, s.DeleteOwner("first"))
	_, err = s.Get("z_0")
	assert.NoError(t, err)
}

func TestArtifactStore_Concurrent(t *testing.T) {
	t.Parallel()

	s, err := New(1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			owner := fmt.Sprintf("task-%d", w)
			for i := 0; i < 50; i++ {
				_ = s.Put(owner, artifact(fmt.Sprintf("%s_%d", owner, i)))
				_, _ = s.Get(fmt.Sprintf("%s_%d", owner, i))
			}
			s.DeleteOwner(owner)
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
}
