package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_LeafRoundTrip(t *testing.T) {
	scalar := EncodeScalar(TagFloat64, 21.2)
	leaf, err := MakeLeaf(DataElement, GreaterEq, "", &scalar)
	require.NoError(t, err)

	size, err := Encode(leaf, nil)
	require.NoError(t, err)
	require.Greater(t, size, 0)

	buf := make([]byte, size)
	written, err := Encode(leaf, buf)
	require.NoError(t, err)
	assert.Equal(t, size, written)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, leaf.Kind(), decoded.Kind())
	assert.Equal(t, leaf.op, decoded.op)

	for _, v := range []float64{17.2, 21.2, 25.0} {
		want, err := ApplyAtom(leaf, TagFloat64, EncodeScalar(TagFloat64, v).Bytes)
		require.NoError(t, err)
		got, err := ApplyAtom(decoded, TagFloat64, EncodeScalar(TagFloat64, v).Bytes)
		require.NoError(t, err)
		assert.Equal(t, want, got, "value %v", v)
	}
}

func TestEncodeDecode_CombinatorRoundTrip(t *testing.T) {
	q := buildS1Expr(t)

	buf := make([]byte, mustSize(t, q))
	_, err := Encode(q, buf)
	require.NoError(t, err)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.False(t, decoded.IsLeaf())

	for _, v := range []int32{15, 20, 25} {
		want, err := Eval(q, TagInt32, EncodeScalar(TagInt32, v).Bytes)
		require.NoError(t, err)
		got, err := Eval(decoded, TagInt32, EncodeScalar(TagInt32, v).Bytes)
		require.NoError(t, err)
		assert.Equal(t, want, got, "value %d", v)
	}
}

func mustSize(t *testing.T, q *Query) int {
	t.Helper()
	n, err := Encode(q, nil)
	require.NoError(t, err)
	return n
}

// TestS6_EncodeSizeThenWrite exercises spec.md §8's S6 scenario directly.
func TestS6_EncodeSizeThenWrite(t *testing.T) {
	q, err := MakeLeaf(LinkName, Equal, "Pressure", nil)
	require.NoError(t, err)

	n, err := Encode(q, nil)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	buf := make([]byte, n)
	written, err := Encode(q, buf)
	require.NoError(t, err)
	assert.Equal(t, n, written)
}

func TestDecode_RejectsBadMagicAndVersion(t *testing.T) {
	q, _ := MakeLeaf(LinkName, Equal, "x", nil)
	buf := make([]byte, mustSize(t, q))
	_, _ = Encode(q, buf)

	corrupted := append([]byte(nil), buf...)
	corrupted[0] ^= 0xFF
	_, err := Decode(corrupted)
	require.Error(t, err)

	wrongVersion := append([]byte(nil), buf...)
	wrongVersion[4] = 9
	_, err = Decode(wrongVersion)
	require.Error(t, err)

	_, err = Decode(buf[:2])
	require.Error(t, err)

	truncated := append([]byte(nil), buf...)
	truncated = truncated[:len(truncated)-1]
	_, err = Decode(truncated)
	require.Error(t, err)
}
