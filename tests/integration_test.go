package tests

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexforge/apexcad/internal/bridge"
	"github.com/apexforge/apexcad/internal/importer"
	"github.com/apexforge/apexcad/internal/scene"
	"github.com/apexforge/apexcad/internal/scenefs"
)

// stubConverter is a shell script standing in for the FreeCAD CLI: it
// answers the --version probe and, in conversion mode, reads the output
// directory out of the generated Python script, then writes the OBJ
// meshes and hierarchy.json a real conversion would produce.
const stubConverter = `#!/bin/sh
if [ "$1" = "--version" ]; then
	echo "FreeCAD 1.0.0 (stub)"
	exit 0
fi

SCRIPT="$2"
OUT=$(sed -n 's/^output_dir = r"\(.*\)"$/\1/p' "$SCRIPT")

cat > "$OUT/p1.obj" <<'EOF'
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3
f 1 3 4
EOF
cp "$OUT/p1.obj" "$OUT/p2.obj"

cat > "$OUT/hierarchy.json" <<EOF
{
  "objects": [
    {
      "name": "GEAR-10-000",
      "internal_name": "c1",
      "type": "App::Part",
      "index": 0,
      "metadata": {},
      "is_leaf": false
    },
    {
      "name": "GEAR-10-100",
      "internal_name": "p1",
      "type": "Part::Feature",
      "index": 1,
      "metadata": {"volume": 4.5, "color": [0.8, 0.2, 0.2, 1.0]},
      "is_leaf": true,
      "mesh_file": "$OUT/p1.obj"
    },
    {
      "name": "GEAR-10-100",
      "internal_name": "p2",
      "type": "Part::Feature",
      "index": 2,
      "metadata": {"volume": 4.5},
      "is_leaf": true,
      "mesh_file": "$OUT/p2.obj"
    }
  ],
  "root_objects": ["c1"],
  "scale": 1.0,
  "y_up": false
}
EOF
exit 0
`

// setup writes the stub executable and a dummy STEP file, then runs a
// full import through the real bridge into a fresh store.
func setup(t *testing.T) (*scene.MemoryStore, *importer.Importer) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub converter is a shell script")
	}

	dir := t.TempDir()
	stubPath := filepath.Join(dir, "freecadcmd")
	require.NoError(t, os.WriteFile(stubPath, []byte(stubConverter), 0o755))

	inputPath := filepath.Join(dir, "gearbox.step")
	require.NoError(t, os.WriteFile(inputPath, []byte("ISO-10303-21;\nEND-ISO-10303-21;\n"), 0o644))

	conv, err := bridge.New(stubPath, nil)
	require.NoError(t, err)

	store := scene.NewMemoryStore()
	imp := importer.New(conv, store, nil)

	opts := importer.DefaultOptions()
	opts.Scale = 1.0
	opts.YUp = false
	_, err = imp.Import(context.Background(), inputPath, opts)
	require.NoError(t, err)
	require.Equal(t, importer.PhaseDone, imp.Phase())

	return store, imp
}

func TestIntegration_ImportPipeline(t *testing.T) {
	store, imp := setup(t)

	// Three records; the root container is not counted.
	assert.Equal(t, "gearbox", imp.RootName())
	assert.Len(t, imp.ImportedObjects(), 3)

	// The container sits under the source-file root; both leaves were
	// reconstructed under the container by their GEAR-10 naming.
	container, err := store.GetObject("GEAR-10-000")
	require.NoError(t, err)
	assert.Equal(t, "gearbox", container.Parent)

	first, err := store.GetObject("GEAR-10-100")
	require.NoError(t, err)
	assert.Equal(t, "GEAR-10-000", first.Parent)

	second, err := store.GetObject("GEAR-10-100.001")
	require.NoError(t, err)
	assert.Equal(t, "GEAR-10-000", second.Parent)

	// Identical geometry collapsed to one shared data block.
	assert.Equal(t, first.MeshName, second.MeshName)
	users, err := store.MeshUsers(first.MeshName)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"GEAR-10-100", "GEAR-10-100.001"}, users)

	// Converter metadata landed as cad_* properties.
	assert.Equal(t, 4.5, first.Prop("cad_volume"))
	mesh, err := store.GetMesh(first.MeshName)
	require.NoError(t, err)
	require.NotNil(t, mesh.Material)
	assert.Equal(t, [4]float64{0.8, 0.2, 0.2, 1.0}, mesh.Material.RGBA)
}

func TestIntegration_SQLiteRoundTrip(t *testing.T) {
	store, _ := setup(t)

	dbPath := filepath.Join(t.TempDir(), "gearbox.db")
	require.NoError(t, scene.SaveSQLite(store, dbPath))

	loaded, err := scene.LoadSQLite(dbPath)
	require.NoError(t, err)
	assert.Equal(t, store.Len(), loaded.Len())

	first, err := loaded.GetObject("GEAR-10-100")
	require.NoError(t, err)
	second, err := loaded.GetObject("GEAR-10-100.001")
	require.NoError(t, err)
	assert.Equal(t, first.MeshName, second.MeshName)

	mesh, err := loaded.GetMesh(first.MeshName)
	require.NoError(t, err)
	assert.Len(t, mesh.Vertices, 4)
	assert.Len(t, mesh.Triangles, 2)
}

func TestIntegration_SceneFilesystem(t *testing.T) {
	store, _ := setup(t)
	fs := scenefs.New(store)

	infos, err := fs.ReadDir("/gearbox/GEAR-10-000/GEAR-10-100")
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	assert.Contains(t, names, "mesh.obj")
	assert.Contains(t, names, "metadata")

	f, err := fs.Open("/gearbox/GEAR-10-000/GEAR-10-100/mesh.obj")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), "f 1 2 3")
}

func TestIntegration_ConversionFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub converter is a shell script")
	}
	dir := t.TempDir()
	stubPath := filepath.Join(dir, "freecadcmd")
	// A converter that probes fine but fails every conversion.
	failing := "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then echo stub; exit 0; fi\necho 'apexcad: ERROR - cannot read file' >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(stubPath, []byte(failing), 0o755))

	inputPath := filepath.Join(dir, "broken.step")
	require.NoError(t, os.WriteFile(inputPath, []byte("not a step file"), 0o644))

	conv, err := bridge.New(stubPath, nil)
	require.NoError(t, err)

	store := scene.NewMemoryStore()
	imp := importer.New(conv, store, nil)
	_, err = imp.Import(context.Background(), inputPath, importer.DefaultOptions())
	require.Error(t, err)
	// The process's stderr surfaces in the error, and nothing was
	// created in the store.
	assert.Contains(t, err.Error(), "cannot read file")
	assert.Equal(t, importer.PhaseFailed, imp.Phase())
	assert.Equal(t, 0, store.Len())
}
