// Package scene holds the native scene model the importer builds:
// objects (empties and meshes), shared mesh data blocks, parent/child
// links and custom properties. It is the stand-in for a host
// application's scene graph, with SQLite persistence for hand-off.
package scene

import "github.com/go-gl/mathgl/mgl64"

// Kind distinguishes container objects from mesh-carrying parts.
type Kind int

const (
	// KindEmpty is a container (assembly) without geometry.
	KindEmpty Kind = iota
	// KindMesh is a leaf part referencing a mesh data block.
	KindMesh
)

func (k Kind) String() string {
	if k == KindEmpty {
		return "empty"
	}
	return "mesh"
}

// Transform is an object-level placement. Mesh vertex data is stored in
// world space by the converter, so most imported objects keep an
// identity transform and only the root carries the axis-convention
// rotation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// IdentityTransform returns a no-op placement.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Object is a single scene object. Parent/child links are by object
// name; MeshName references a shared mesh data block for KindMesh.
type Object struct {
	Name      string
	Kind      Kind
	Transform Transform
	Parent    string
	Children  []string
	MeshName  string
	// Props carries scalar custom properties. Keys use the cad_ prefix
	// for CAD metadata and the apexcad_ prefix for importer bookkeeping.
	Props map[string]any
}

// SetProp assigns a custom property, allocating the map on first use.
func (o *Object) SetProp(key string, value any) {
	if o.Props == nil {
		o.Props = make(map[string]any)
	}
	o.Props[key] = value
}

// Prop returns a custom property value, nil when absent.
func (o *Object) Prop(key string) any {
	if o.Props == nil {
		return nil
	}
	return o.Props[key]
}

// Material is a simple colored material derived from CAD appearance data.
type Material struct {
	Name string     `json:"name"`
	RGBA [4]float64 `json:"rgba"`
}
