package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mesh is a shared mesh data block: triangle geometry plus appearance.
// Several objects may reference the same Mesh (instances); transforms
// stay per-object.
type Mesh struct {
	Name      string
	Vertices  []mgl64.Vec3
	Triangles [][3]int
	Material  *Material
	// Smooth requests smooth shading; AutoSmoothAngle is the crease
	// angle in degrees above which edges render sharp.
	Smooth          bool
	AutoSmoothAngle float64
}

// Bounds returns the axis-aligned bounding box of the vertex data.
// Both extremes are zero for an empty mesh.
func (m *Mesh) Bounds() (min, max mgl64.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	min = mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// BoundsVolume returns the volume of the bounding box.
func (m *Mesh) BoundsVolume() float64 {
	min, max := m.Bounds()
	d := max.Sub(min)
	return d.X() * d.Y() * d.Z()
}

// Apply transforms every vertex by the given matrix in place. Used for
// baking unit scale and the axis-convention rotation into geometry.
func (m *Mesh) Apply(mat mgl64.Mat4) {
	for i, v := range m.Vertices {
		m.Vertices[i] = mgl64.TransformCoordinate(v, mat)
	}
}
