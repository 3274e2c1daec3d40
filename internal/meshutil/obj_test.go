package meshutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# comment
o Quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`

func TestParseOBJTriangulatesQuads(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(quadOBJ), "Quad")
	require.NoError(t, err)

	assert.Equal(t, "Quad", m.Name)
	assert.Len(t, m.Vertices, 4)
	// A quad fans into two triangles sharing the first vertex.
	require.Len(t, m.Triangles, 2)
	assert.Equal(t, [3]int{0, 1, 2}, m.Triangles[0])
	assert.Equal(t, [3]int{0, 2, 3}, m.Triangles[1])
}

func TestParseOBJFaceIndexForms(t *testing.T) {
	// Texture and normal references after the slash are ignored.
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f 1/1 2/2/1 3//2
`
	m, err := ParseOBJ(strings.NewReader(src), "Tri")
	require.NoError(t, err)
	require.Len(t, m.Triangles, 1)
	assert.Equal(t, [3]int{0, 1, 2}, m.Triangles[0])
}

func TestParseOBJNegativeIndices(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	m, err := ParseOBJ(strings.NewReader(src), "Tri")
	require.NoError(t, err)
	require.Len(t, m.Triangles, 1)
	assert.Equal(t, [3]int{0, 1, 2}, m.Triangles[0])
}

func TestParseOBJRejectsEmptyGeometry(t *testing.T) {
	_, err := ParseOBJ(strings.NewReader("# nothing here\n"), "Empty")
	assert.Error(t, err)
}

func TestEncodeOBJRoundTrip(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(quadOBJ), "Quad")
	require.NoError(t, err)

	out := EncodeOBJ(m)
	back, err := ParseOBJ(strings.NewReader(string(out)), "Quad")
	require.NoError(t, err)

	assert.Equal(t, m.Vertices, back.Vertices)
	assert.Equal(t, m.Triangles, back.Triangles)
}
