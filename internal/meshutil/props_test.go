package meshutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexforge/apexcad/api"
	"github.com/apexforge/apexcad/internal/scene"
)

func TestFlattenMetadata(t *testing.T) {
	o := &scene.Object{Name: "Part"}
	FlattenMetadata(o, api.Metadata{
		Volume:   12.5,
		Area:     3.25,
		Material: "steel",
		BBox:     &api.BBox{Min: [3]float64{0, 0, 0}, Max: [3]float64{1, 2, 3}},
		Color:    []float64{0.5, 0.25, 0.125},
	})

	assert.Equal(t, 12.5, o.Prop("cad_volume"))
	assert.Equal(t, 3.25, o.Prop("cad_area"))
	assert.Equal(t, "steel", o.Prop("cad_material"))
	assert.Equal(t, 3.0, o.Prop("cad_bbox_max_z"))
	assert.Equal(t, 0.5, o.Prop("cad_color_r"))
}

func TestMaterialFromColor(t *testing.T) {
	mat := MaterialFromColor("CAD_Part", []float64{0.1, 0.2, 0.3})
	require.NotNil(t, mat)
	assert.Equal(t, "CAD_Part", mat.Name)
	// Alpha defaults to opaque when only RGB is supplied.
	assert.Equal(t, [4]float64{0.1, 0.2, 0.3, 1.0}, mat.RGBA)

	assert.Nil(t, MaterialFromColor("CAD_Part", []float64{0.1}))
	assert.Nil(t, MaterialFromColor("CAD_Part", nil))
}
