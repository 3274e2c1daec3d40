package api

// Hierarchy is the document the converter writes as hierarchy.json.
// It is the complete wire contract between the FreeCAD side and the importer.
type Hierarchy struct {
	// Objects holds one record per CAD object, in document order.
	Objects []Record `json:"objects"`
	// RootObjects lists the internal names of objects without a parent.
	RootObjects []string `json:"root_objects"`
	// Scale is the unit scale factor the converter applied to positions.
	Scale float64 `json:"scale"`
	// YUp reports whether the caller requested Y-up conversion.
	YUp bool `json:"y_up"`
}

// Record describes a single CAD object. Immutable once decoded.
type Record struct {
	// Name is the user-visible label from the CAD document.
	Name string `json:"name"`
	// InternalName is the converter's unique identifier for the object.
	InternalName string `json:"internal_name"`
	// Type is the CAD kernel type tag (e.g. "Part::Feature", "App::Part").
	Type string `json:"type"`
	// Index is the position of the object in the source document.
	Index int `json:"index"`
	// Metadata carries shape measurements and appearance data.
	Metadata Metadata `json:"metadata"`
	// Transform is the object placement; nil when the object has none.
	Transform *Transform `json:"transform,omitempty"`
	// Parent is the internal name of the parent object, empty for roots.
	Parent string `json:"parent,omitempty"`
	// Children lists internal names of child objects.
	Children []string `json:"children,omitempty"`
	// IsLeaf marks parts with tessellated geometry, as opposed to containers.
	IsLeaf bool `json:"is_leaf"`
	// MeshFile is the path of the exported OBJ file, empty for containers
	// and for parts whose export failed.
	MeshFile string `json:"mesh_file,omitempty"`
}

// Metadata holds per-object shape measurements extracted by the converter.
// All fields are optional; zero values mean "not reported".
type Metadata struct {
	Volume float64 `json:"volume,omitempty"`
	Area   float64 `json:"area,omitempty"`
	BBox   *BBox   `json:"bbox,omitempty"`
	// Color is an RGBA quadruple in 0..1, nil when the object carries none.
	Color       []float64 `json:"color,omitempty"`
	Material    string    `json:"material,omitempty"`
	Description string    `json:"description,omitempty"`
}

// BBox is an axis-aligned bounding box in converter coordinates.
type BBox struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Volume returns the box volume, zero for a degenerate box.
func (b *BBox) Volume() float64 {
	v := 1.0
	for i := 0; i < 3; i++ {
		d := b.Max[i] - b.Min[i]
		if d < 0 {
			return 0
		}
		v *= d
	}
	return v
}

// Transform is an object placement: translation plus rotation quaternion.
type Transform struct {
	Position [3]float64 `json:"position"`
	// Rotation is the placement quaternion as [x, y, z, w], matching the
	// converter's component order.
	Rotation [4]float64 `json:"rotation"`
}
