package meshutil

import (
	"fmt"

	"github.com/apexforge/apexcad/api"
	"github.com/apexforge/apexcad/internal/scene"
)

// CADPropPrefix marks properties carrying CAD metadata; BookkeepingPrefix
// marks properties the importer writes for its own use (source file,
// tessellation quality, mesh fingerprint).
const (
	CADPropPrefix     = "cad_"
	BookkeepingPrefix = "apexcad_"
)

// FlattenMetadata copies converter metadata onto an object as scalar
// cad_* properties. Nested values (the bounding box) flatten to
// cad_bbox_min_x style keys; unknown or empty fields are skipped.
func FlattenMetadata(o *scene.Object, md api.Metadata) {
	if md.Volume != 0 {
		o.SetProp(CADPropPrefix+"volume", md.Volume)
	}
	if md.Area != 0 {
		o.SetProp(CADPropPrefix+"area", md.Area)
	}
	if md.Material != "" {
		o.SetProp(CADPropPrefix+"material", md.Material)
	}
	if md.Description != "" {
		o.SetProp(CADPropPrefix+"description", md.Description)
	}
	if md.BBox != nil {
		axes := [3]string{"x", "y", "z"}
		for i, a := range axes {
			o.SetProp(fmt.Sprintf("%sbbox_min_%s", CADPropPrefix, a), md.BBox.Min[i])
			o.SetProp(fmt.Sprintf("%sbbox_max_%s", CADPropPrefix, a), md.BBox.Max[i])
		}
	}
	if len(md.Color) >= 3 {
		channels := [4]string{"r", "g", "b", "a"}
		for i := 0; i < len(md.Color) && i < 4; i++ {
			o.SetProp(CADPropPrefix+"color_"+channels[i], md.Color[i])
		}
	}
}

// MaterialFromColor builds a named material from converter RGBA color
// metadata. Missing alpha defaults to opaque; nil for unusable input.
func MaterialFromColor(name string, color []float64) *scene.Material {
	if len(color) < 3 {
		return nil
	}
	m := &scene.Material{Name: name}
	copy(m.RGBA[:], color)
	if len(color) < 4 {
		m.RGBA[3] = 1.0
	}
	return m
}
