package meshutil

import (
	"fmt"
	"math"

	"github.com/apexforge/apexcad/internal/scene"
)

// VertexTolerance is the maximum per-axis distance at which two sampled
// vertices still count as equal.
const VertexTolerance = 1e-4

// sampleCount bounds how many vertices MeshesIdentical compares. The
// fingerprint groups candidates; this check only weeds out collisions.
const sampleCount = 10

// MeshHash returns a weak fingerprint of a mesh: vertex count, triangle
// count and bounding-box volume truncated to 6 decimals. Distinct
// meshes can collide — callers must verify with MeshesIdentical before
// treating two meshes as the same part.
func MeshHash(m *scene.Mesh) string {
	vol := math.Trunc(m.BoundsVolume()*1e6) / 1e6
	return fmt.Sprintf("v%d_f%d_b%.6f", len(m.Vertices), len(m.Triangles), vol)
}

// MeshesIdentical reports whether two meshes agree on counts and on a
// sample of vertex positions. It does not compare full geometry, so a
// rare false positive is possible; a false negative only costs a missed
// instancing opportunity.
func MeshesIdentical(a, b *scene.Mesh) bool {
	if len(a.Vertices) != len(b.Vertices) || len(a.Triangles) != len(b.Triangles) {
		return false
	}
	n := len(a.Vertices)
	if n == 0 {
		return true
	}
	step := n / sampleCount
	if step == 0 {
		step = 1
	}
	for i := 0; i < n; i += step {
		va, vb := a.Vertices[i], b.Vertices[i]
		for j := 0; j < 3; j++ {
			if math.Abs(va[j]-vb[j]) > VertexTolerance {
				return false
			}
		}
	}
	return true
}
