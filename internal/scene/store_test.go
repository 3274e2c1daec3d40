package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	s.AddObject(&Object{Name: "Assembly", Kind: KindEmpty, Transform: IdentityTransform()})
	s.AddObject(&Object{Name: "Bracket", Kind: KindMesh, Transform: IdentityTransform(), MeshName: "Bracket"})
	s.AddObject(&Object{Name: "Bolt", Kind: KindMesh, Transform: IdentityTransform(), MeshName: "Bolt"})
	s.AddMesh(&Mesh{Name: "Bracket", Vertices: []mgl64.Vec3{{0, 0, 0}}})
	s.AddMesh(&Mesh{Name: "Bolt", Vertices: []mgl64.Vec3{{1, 1, 1}}})
	return s
}

func TestStoreRootsFollowCreationOrder(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, []string{"Assembly", "Bracket", "Bolt"}, s.Roots())

	require.NoError(t, s.SetParent("Bracket", "Assembly"))
	require.NoError(t, s.SetParent("Bolt", "Assembly"))
	assert.Equal(t, []string{"Assembly"}, s.Roots())

	a, err := s.GetObject("Assembly")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bracket", "Bolt"}, a.Children)
}

func TestSetParentRejectsSelfAndCycles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetParent("Bracket", "Assembly"))

	assert.Error(t, s.SetParent("Assembly", "Assembly"))
	// Assembly under its own descendant would close a loop.
	assert.Error(t, s.SetParent("Assembly", "Bracket"))
}

func TestSetParentMovesChildBetweenParents(t *testing.T) {
	s := newTestStore(t)
	s.AddObject(&Object{Name: "SubAssembly", Kind: KindEmpty, Transform: IdentityTransform()})

	require.NoError(t, s.SetParent("Bolt", "Assembly"))
	require.NoError(t, s.SetParent("Bolt", "SubAssembly"))

	a, _ := s.GetObject("Assembly")
	assert.Empty(t, a.Children)
	sub, _ := s.GetObject("SubAssembly")
	assert.Equal(t, []string{"Bolt"}, sub.Children)
}

func TestSetMeshTracksUsers(t *testing.T) {
	s := newTestStore(t)

	users, err := s.MeshUsers("Bracket")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bracket"}, users)

	// Pointing Bolt at the Bracket data block makes it instanced.
	require.NoError(t, s.SetMesh("Bolt", "Bracket"))
	s.RemoveMesh("Bolt")

	users, err = s.MeshUsers("Bracket")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Bracket", "Bolt"}, users)

	_, err = s.GetMesh("Bolt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetObjectNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetObject("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
