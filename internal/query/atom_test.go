package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildS1Expr builds "((17 < x) AND (x < 22)) AND (x != 21.2) OR (x == 25)"
// from spec.md §8 scenario S1.
func buildS1Expr(t *testing.T) *Query {
	t.Helper()
	s17 := EncodeScalar(TagInt32, int32(17))
	l1, err := MakeLeaf(DataElement, Less, "", &s17) // 17 < x
	require.NoError(t, err)

	s22 := EncodeScalar(TagInt32, int32(22))
	l2, err := MakeLeaf(DataElement, Greater, "", &s22) // x < 22  <=>  22 > x
	require.NoError(t, err)

	s212 := EncodeScalar(TagFloat64, 21.2)
	l3, err := MakeLeaf(DataElement, NotEqual, "", &s212)
	require.NoError(t, err)

	s25 := EncodeScalar(TagInt32, int32(25))
	l4, err := MakeLeaf(DataElement, Equal, "", &s25)
	require.NoError(t, err)

	and1, err := Combine(And, l1, l2)
	require.NoError(t, err)
	and2, err := Combine(And, and1, l3)
	require.NoError(t, err)
	or, err := Combine(Or, and2, l4)
	require.NoError(t, err)
	return or
}

func TestS1_ElementPredicate(t *testing.T) {
	expr := buildS1Expr(t)

	ints := []int32{15, 20, 25}
	wantInts := []bool{false, true, true}
	for i, v := range ints {
		got, err := Eval(expr, TagInt32, EncodeScalar(TagInt32, v).Bytes)
		require.NoError(t, err)
		assert.Equal(t, wantInts[i], got, "int input %d", v)
	}

	doubles := []float64{21.2, 17.2, 18.0, 2.4, 25.0}
	wantDoubles := []bool{false, true, true, false, true}
	for i, v := range doubles {
		got, err := Eval(expr, TagFloat64, EncodeScalar(TagFloat64, v).Bytes)
		require.NoError(t, err)
		assert.Equal(t, wantDoubles[i], got, "double input %v", v)
	}

	gotFloat, err := Eval(expr, TagFloat32, EncodeScalar(TagFloat32, float32(17.2)).Bytes)
	require.NoError(t, err)
	assert.True(t, gotFloat, "float32 17.2 should promote and match like double 17.2")
}

func TestApplyAtom_AllOpsTable(t *testing.T) {
	tests := []struct {
		name    string
		op      Op
		leafTag TypeTag
		leafVal interface{}
		valTag  TypeTag
		val     interface{}
		want    bool
	}{
		{"equal int32 match", Equal, TagInt32, int32(5), TagInt32, int32(5), true},
		{"equal int32 mismatch", Equal, TagInt32, int32(5), TagInt32, int32(6), false},
		{"not-equal mixed width", NotEqual, TagInt16, int16(5), TagInt64, int64(5), false},
		{"less cross-type int/float", Less, TagInt32, int32(3), TagFloat64, 3.5, true},
		{"greater cross-type", Greater, TagFloat32, float32(10), TagInt8, int8(2), true},
		{"less-eq equal values", LessEq, TagUint8, uint8(9), TagUint8, uint8(9), true},
		{"greater-eq false", GreaterEq, TagInt8, int8(1), TagInt8, int8(2), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			leafScalar := EncodeScalar(tc.leafTag, tc.leafVal)
			leaf, err := MakeLeaf(AttrValue, tc.op, "", &leafScalar)
			require.NoError(t, err)
			valScalar := EncodeScalar(tc.valTag, tc.val)
			got, err := ApplyAtom(leaf, tc.valTag, valScalar.Bytes)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyAtom_NaNNeverSatisfies(t *testing.T) {
	nan := EncodeScalar(TagFloat64, nan())
	leaf, err := MakeLeaf(AttrValue, Equal, "", &nan)
	require.NoError(t, err)
	got, err := ApplyAtom(leaf, TagFloat64, nan.Bytes)
	require.NoError(t, err)
	assert.False(t, got, "NaN == NaN must be false")

	leafLess, err := MakeLeaf(AttrValue, Less, "", &nan)
	require.NoError(t, err)
	got, err = ApplyAtom(leafLess, TagFloat64, EncodeScalar(TagFloat64, 1.0).Bytes)
	require.NoError(t, err)
	assert.False(t, got)
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestApplyAtomName(t *testing.T) {
	leaf, err := MakeLeaf(LinkName, Equal, "Pressure", nil)
	require.NoError(t, err)
	got, err := ApplyAtomName(leaf, "Pressure")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ApplyAtomName(leaf, "Temperature")
	require.NoError(t, err)
	assert.False(t, got)

	neLeaf, err := MakeLeaf(AttrName, NotEqual, "SensorID", nil)
	require.NoError(t, err)
	got, err = ApplyAtomName(neLeaf, "Other")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestApplyAtom_StringValueKind(t *testing.T) {
	leafScalar := EncodeScalar(TagString, "Pressure")
	leaf, err := MakeLeaf(AttrValue, Equal, "", &leafScalar)
	require.NoError(t, err)
	valScalar := EncodeScalar(TagString, "Pressure")
	got, err := ApplyAtom(leaf, TagString, valScalar.Bytes)
	require.NoError(t, err)
	assert.True(t, got)

	valScalar2 := EncodeScalar(TagString, "Temperature")
	got, err = ApplyAtom(leaf, TagString, valScalar2.Bytes)
	require.NoError(t, err)
	assert.False(t, got)
}
