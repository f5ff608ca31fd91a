package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_ObjectRef(t *testing.T) {
	r := NewObjectRef("sensors.h5", "/Object2/Pressure")
	buf, err := Encode(r)
	require.NoError(t, err)

	decoded, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, Object, decoded.Kind())
	assert.Equal(t, r.ContainerName(), decoded.ContainerName())
	assert.Equal(t, r.ObjectPath(), decoded.ObjectPath())
}

func TestEncodeDecode_AttributeRef(t *testing.T) {
	r := NewAttributeRef("sensors.h5", "/Object2/Pressure", "SensorID")
	buf, err := Encode(r)
	require.NoError(t, err)

	decoded, _, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Attribute, decoded.Kind())
	assert.Equal(t, "SensorID", decoded.AttrName())
}

func TestEncodeDecode_DatasetRegionRef(t *testing.T) {
	sel := NewRegionSelection(18, 19, 20, 21)
	r := NewDatasetRegionRef("sensors.h5", "/Object2/Pressure", sel)
	buf, err := Encode(r)
	require.NoError(t, err)

	decoded, _, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, DatasetRegion, decoded.Kind())
	assert.Equal(t, []uint32{18, 19, 20, 21}, decoded.Selection().Offsets())
}

func TestDecode_MultipleElementsFromConcatenatedBuffer(t *testing.T) {
	r1 := NewObjectRef("c", "/Object1/Pressure")
	r2 := NewObjectRef("c", "/Object2/Pressure")
	b1, err := Encode(r1)
	require.NoError(t, err)
	b2, err := Encode(r2)
	require.NoError(t, err)

	buf := append(append([]byte(nil), b1...), b2...)

	d1, n1, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, "/Object1/Pressure", d1.ObjectPath())

	d2, n2, err := Decode(buf[n1:])
	require.NoError(t, err)
	assert.Equal(t, "/Object2/Pressure", d2.ObjectPath())
	assert.Equal(t, len(buf), n1+n2)
}
