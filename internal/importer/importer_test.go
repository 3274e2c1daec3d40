package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexforge/apexcad/api"
	"github.com/apexforge/apexcad/internal/bridge"
	"github.com/apexforge/apexcad/internal/scene"
)

// fakeConverter satisfies Converter without spawning a process.
type fakeConverter struct {
	validateErr error
	result      bridge.Result
	converted   int
	cleaned     int
}

func (f *fakeConverter) Validate(ctx context.Context) (string, error) {
	if f.validateErr != nil {
		return "", f.validateErr
	}
	return "FreeCAD 1.0.0", nil
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath, outputDir string, opts bridge.Options) bridge.Result {
	f.converted++
	return f.result
}

func (f *fakeConverter) Cleanup() { f.cleaned++ }

// writeOBJ drops a small mesh file and returns its path. offset shifts
// the geometry so distinct parts do not fingerprint-collide.
func writeOBJ(t *testing.T, dir, name string, offset float64) string {
	t.Helper()
	content := fmt.Sprintf(`v %g 0 0
v %g 0 0
v %g 1 0
v %g 1 1
f 1 2 3
f 2 3 4
`, offset, offset+1, offset+1, offset)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Scale = 1.0
	opts.YUp = false
	return opts
}

func TestImportBuildsScene(t *testing.T) {
	dir := t.TempDir()
	h := &api.Hierarchy{
		Objects: []api.Record{
			{Name: "AMS-30-511-000", InternalName: "c1", Type: "App::Part", IsLeaf: false},
			{Name: "AMS-30-511-100", InternalName: "p1", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p1.obj", 0)},
			{Name: "Widget", InternalName: "p2", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p2.obj", 10)},
		},
		RootObjects: []string{"c1"},
	}
	conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: h}}
	store := scene.NewMemoryStore()
	imp := New(conv, store, nil)

	_, err := imp.Import(context.Background(), "/tmp/ams-assembly.step", testOptions())
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, imp.Phase())
	assert.Equal(t, 1, conv.converted)
	assert.Equal(t, 1, conv.cleaned)

	// Three records; the root container is not counted.
	assert.Equal(t, "ams-assembly", imp.RootName())
	assert.Len(t, imp.ImportedObjects(), 3)

	// The container hangs off the root; the matching leaf was
	// reconstructed under the container by naming convention.
	container, err := store.GetObject("AMS-30-511-000")
	require.NoError(t, err)
	assert.Equal(t, "ams-assembly", container.Parent)
	assert.Equal(t, scene.KindEmpty, container.Kind)

	leaf, err := store.GetObject("AMS-30-511-100")
	require.NoError(t, err)
	assert.Equal(t, "AMS-30-511-000", leaf.Parent)
	assert.Equal(t, scene.KindMesh, leaf.Kind)

	// No container matches Widget; in collection mode it stays a root.
	widget, err := store.GetObject("Widget")
	require.NoError(t, err)
	assert.Equal(t, "", widget.Parent)
	assert.Equal(t, imp.RootName(), widget.Prop("apexcad_collection"))
}

func TestImportReparentTieBreaksByCreationOrder(t *testing.T) {
	dir := t.TempDir()
	h := &api.Hierarchy{
		Objects: []api.Record{
			{Name: "AMS-30-100", InternalName: "c1", Type: "App::Part", IsLeaf: false},
			{Name: "AMS-30-200", InternalName: "c2", Type: "App::Part", IsLeaf: false},
			{Name: "AMS-30-511", InternalName: "p1", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p1.obj", 0)},
		},
	}

	// Both containers score 4 against the leaf (AMS and 30 exact, then
	// mismatch). The earlier record must win, every run.
	for i := 0; i < 20; i++ {
		conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: h}}
		store := scene.NewMemoryStore()
		imp := New(conv, store, nil)

		_, err := imp.Import(context.Background(), "/tmp/a.step", testOptions())
		require.NoError(t, err)

		leaf, err := store.GetObject("AMS-30-511")
		require.NoError(t, err)
		assert.Equal(t, "AMS-30-100", leaf.Parent)
	}
}

func TestImportEmptyModeParentsLeavesToRoot(t *testing.T) {
	dir := t.TempDir()
	h := &api.Hierarchy{
		Objects: []api.Record{
			{Name: "Widget", InternalName: "p1", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p1.obj", 0)},
		},
	}
	conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: h}}
	store := scene.NewMemoryStore()
	imp := New(conv, store, nil)

	opts := testOptions()
	opts.HierarchyMode = ModeEmpty
	_, err := imp.Import(context.Background(), "/tmp/a.step", opts)
	require.NoError(t, err)

	widget, err := store.GetObject("Widget")
	require.NoError(t, err)
	assert.Equal(t, imp.RootName(), widget.Parent)
}

func TestImportFailureLeavesStoreUntouched(t *testing.T) {
	conv := &fakeConverter{result: bridge.Result{Success: false, Err: "conversion failed: exit status 1: boom"}}
	store := scene.NewMemoryStore()
	imp := New(conv, store, nil)

	_, err := imp.Import(context.Background(), "/tmp/a.step", testOptions())
	require.Error(t, err)
	// The converter's message surfaces verbatim.
	assert.Equal(t, "conversion failed: exit status 1: boom", err.Error())
	assert.Equal(t, PhaseFailed, imp.Phase())
	assert.Equal(t, 0, store.Len())
}

func TestImportValidateFailure(t *testing.T) {
	conv := &fakeConverter{validateErr: fmt.Errorf("not executable")}
	store := scene.NewMemoryStore()
	imp := New(conv, store, nil)

	_, err := imp.Import(context.Background(), "/tmp/a.step", testOptions())
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, imp.Phase())
	assert.Equal(t, 0, conv.converted)
}

func TestImportEmptyHierarchy(t *testing.T) {
	conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: &api.Hierarchy{}}}
	imp := New(conv, scene.NewMemoryStore(), nil)

	_, err := imp.Import(context.Background(), "/tmp/a.step", testOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no objects found")
}

func TestImportSkipsDatumsAndGeometrylessLeaves(t *testing.T) {
	dir := t.TempDir()
	h := &api.Hierarchy{
		Objects: []api.Record{
			{Name: "Origin", InternalName: "d1", Type: "App::Origin", IsLeaf: false},
			{Name: "RefPlane", InternalName: "d2", Type: "PartDesign::Plane", IsLeaf: true},
			{Name: "Ghost", InternalName: "g1", Type: "Part::Feature", IsLeaf: true}, // no mesh exported
			{Name: "Real", InternalName: "p1", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p1.obj", 0)},
		},
	}
	conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: h}}
	store := scene.NewMemoryStore()
	imp := New(conv, store, nil)

	_, err := imp.Import(context.Background(), "/tmp/a.step", testOptions())
	require.NoError(t, err)

	// Only the one real part counts as imported.
	assert.Len(t, imp.ImportedObjects(), 1)
	_, err = store.GetObject("Origin")
	assert.ErrorIs(t, err, scene.ErrNotFound)
	_, err = store.GetObject("Ghost")
	assert.ErrorIs(t, err, scene.ErrNotFound)
}

func TestImportMissingMeshFileIsFatal(t *testing.T) {
	h := &api.Hierarchy{
		Objects: []api.Record{
			{Name: "Part", InternalName: "p1", Type: "Part::Feature", IsLeaf: true,
				MeshFile: "/nonexistent/p1.obj"},
		},
	}
	conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: h}}
	imp := New(conv, scene.NewMemoryStore(), nil)

	_, err := imp.Import(context.Background(), "/tmp/a.step", testOptions())
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, imp.Phase())
}

func TestImportDetectsInstances(t *testing.T) {
	dir := t.TempDir()
	h := &api.Hierarchy{
		Objects: []api.Record{
			{Name: "Bolt", InternalName: "p1", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p1.obj", 0)},
			{Name: "Bolt", InternalName: "p2", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p2.obj", 0)}, // identical geometry
			{Name: "Nut", InternalName: "p3", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p3.obj", 5)},
		},
	}
	conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: h}}
	store := scene.NewMemoryStore()
	imp := New(conv, store, nil)

	_, err := imp.Import(context.Background(), "/tmp/a.step", testOptions())
	require.NoError(t, err)

	first, err := store.GetObject("Bolt")
	require.NoError(t, err)
	second, err := store.GetObject("Bolt.001")
	require.NoError(t, err)
	// The duplicate shares the first part's mesh data block.
	assert.Equal(t, first.MeshName, second.MeshName)

	users, err := store.MeshUsers(first.MeshName)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Bolt", "Bolt.001"}, users)

	nut, err := store.GetObject("Nut")
	require.NoError(t, err)
	assert.NotEqual(t, first.MeshName, nut.MeshName)
}

func TestImportAxisConversion(t *testing.T) {
	dir := t.TempDir()
	h := &api.Hierarchy{
		Objects: []api.Record{
			{Name: "Part", InternalName: "p1", Type: "Part::Feature", IsLeaf: true,
				MeshFile: writeOBJ(t, dir, "p1.obj", 0)},
		},
	}
	conv := &fakeConverter{result: bridge.Result{Success: true, Hierarchy: h}}
	store := scene.NewMemoryStore()
	imp := New(conv, store, nil)

	opts := testOptions()
	opts.YUp = true
	_, err := imp.Import(context.Background(), "/tmp/a.step", opts)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, imp.Phase())

	// The root carries a half turn about X.
	root, err := store.GetObject(imp.RootName())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, root.Transform.Rotation.W, 1e-9)
	assert.InDelta(t, -1.0, root.Transform.Rotation.X(), 1e-9)

	// Mesh vertices got the quarter turn baked in: (x, y, z) → (x, z, -y).
	part, err := store.GetObject("Part")
	require.NoError(t, err)
	m, err := store.GetMesh(part.MeshName)
	require.NoError(t, err)
	// Source vertex 3 was (0, 1, 1).
	assert.InDelta(t, 0.0, m.Vertices[3][0], 1e-9)
	assert.InDelta(t, 1.0, m.Vertices[3][1], 1e-9)
	assert.InDelta(t, -1.0, m.Vertices[3][2], 1e-9)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "NotStarted", PhaseNotStarted.String())
	assert.Equal(t, "Done", PhaseDone.String())
	assert.Equal(t, "Failed", PhaseFailed.String())
}
