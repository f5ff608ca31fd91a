package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewObjectRef_CanonicalKey(t *testing.T) {
	r := NewObjectRef("container.h5", "/Object1")
	assert.Equal(t, Object, r.Kind())
	assert.Equal(t, "container.h5\x00/Object1", r.CanonicalKey())
}

func TestNewAttributeRef_CanonicalKeyIncludesAttrName(t *testing.T) {
	a1 := NewAttributeRef("container.h5", "/Object1", "SensorID")
	a2 := NewAttributeRef("container.h5", "/Object1", "Other")
	assert.NotEqual(t, a1.CanonicalKey(), a2.CanonicalKey())
	assert.Equal(t, "SensorID", a1.AttrName())
}

func TestNewDatasetRegionRef_HoldsSelection(t *testing.T) {
	sel := NewRegionSelection(1, 2, 3)
	r := NewDatasetRegionRef("container.h5", "/Object1/Pressure", sel)
	assert.Equal(t, DatasetRegion, r.Kind())
	assert.Equal(t, 3, r.Selection().Len())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Object", Object.String())
	assert.Equal(t, "Attribute", Attribute.String())
	assert.Equal(t, "DatasetRegion", DatasetRegion.String())
}
