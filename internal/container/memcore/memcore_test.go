package memcore

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contdb/queryview/internal/container"
)

// fakeBlobWriter records every WriteBlob call instead of talking to a real
// BLOB backend.
type fakeBlobWriter struct {
	written map[string][]byte
}

func newFakeBlobWriter() *fakeBlobWriter { return &fakeBlobWriter{written: make(map[string][]byte)} }

func (f *fakeBlobWriter) WriteBlob(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.written[key] = data
	return nil
}

func buildSimpleStore() *Store {
	s := New("demo.h5")
	s.PutGroup("/Object1")
	data := make([]byte, 8*4)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i))
	}
	s.PutDataset("/Object1/Pressure", container.TypeTag(3), 4, data)
	sensorID := make([]byte, 4)
	binary.LittleEndian.PutUint32(sensorID, 7)
	s.PutAttribute("/Object1/Pressure", "SensorID", container.TypeTag(3), sensorID)
	return s
}

func TestStore_VisitObjects_PreOrder(t *testing.T) {
	s := buildSimpleStore()
	var paths []string
	err := s.VisitObjects(context.Background(), DefaultReadContext, "/", func(ctx context.Context, info container.ObjectInfo) error {
		paths = append(paths, info.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/Object1", "/Object1/Pressure"}, paths)
}

func TestStore_IterateAndReadAttributes(t *testing.T) {
	s := buildSimpleStore()
	attrs, err := s.IterateAttributes(context.Background(), DefaultReadContext, "/Object1/Pressure")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "SensorID", attrs[0].Name)

	h, err := s.OpenAttribute(context.Background(), DefaultReadContext, "/Object1/Pressure", "SensorID")
	require.NoError(t, err)
	tag, values, err := s.ReadAttribute(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, container.TypeTag(3), tag)
	require.Len(t, values, 1)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(values[0]))
	require.NoError(t, s.CloseAttribute(context.Background(), h))
}

func TestStore_ReadAttribute_MultiElement(t *testing.T) {
	s := New("demo.h5")
	s.PutGroup("/Object1")
	s.PutDataset("/Object1/Pressure", container.TypeTag(3), 4, make([]byte, 4))

	elem := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	s.PutAttributeElements("/Object1/Pressure", "Calibration", container.TypeTag(3), elem(10), elem(20), elem(30))

	h, err := s.OpenAttribute(context.Background(), DefaultReadContext, "/Object1/Pressure", "Calibration")
	require.NoError(t, err)
	tag, values, err := s.ReadAttribute(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, container.TypeTag(3), tag)
	require.Len(t, values, 3)
	assert.Equal(t, uint32(10), binary.LittleEndian.Uint32(values[0]))
	assert.Equal(t, uint32(20), binary.LittleEndian.Uint32(values[1]))
	assert.Equal(t, uint32(30), binary.LittleEndian.Uint32(values[2]))
}

func TestStore_SelectDatasetRegion(t *testing.T) {
	s := buildSimpleStore()
	sel, err := s.SelectDatasetRegion(context.Background(), DefaultReadContext, "/Object1/Pressure", func(tag container.TypeTag, value []byte) (bool, error) {
		return binary.LittleEndian.Uint32(value) >= 5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{5, 6, 7}, sel.Offsets())
}

func TestStore_CreateCoreBackedContainerAndWriteDataset(t *testing.T) {
	s := New("host.h5")
	child, err := s.CreateCoreBackedContainer(context.Background(), "view-1")
	require.NoError(t, err)

	group, err := child.CreateAnonymousGroup(context.Background())
	require.NoError(t, err)

	err = child.WriteDataset(context.Background(), group, "object_refs", [][]byte{[]byte("a"), []byte("bb")})
	require.NoError(t, err)

	name, err := child.CanonicalFilename(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "view-1", name)
}

func TestStore_WriteDataset_OffloadsAboveThreshold(t *testing.T) {
	s := New("host.h5")
	writer := newFakeBlobWriter()
	s.SetBlobStore(writer, 4)

	group, err := s.CreateAnonymousGroup(context.Background())
	require.NoError(t, err)

	err = s.WriteDataset(context.Background(), group, "region_refs", [][]byte{[]byte("abcdefgh")})
	require.NoError(t, err)

	path := group.Path() + "/region_refs"
	obj, ok := s.objects[path]
	require.True(t, ok)
	require.Equal(t, blobRefTag, obj.Dataset.Tag)
	key := string(obj.Dataset.Data)
	assert.Len(t, writer.written, 1)
	assert.NotEmpty(t, writer.written[key])
}

func TestStore_WriteDataset_InlineBelowThreshold(t *testing.T) {
	s := New("host.h5")
	writer := newFakeBlobWriter()
	s.SetBlobStore(writer, 1024)

	group, err := s.CreateAnonymousGroup(context.Background())
	require.NoError(t, err)

	err = s.WriteDataset(context.Background(), group, "object_refs", [][]byte{[]byte("a")})
	require.NoError(t, err)

	path := group.Path() + "/object_refs"
	obj, ok := s.objects[path]
	require.True(t, ok)
	assert.NotEqual(t, blobRefTag, obj.Dataset.Tag)
	assert.Empty(t, writer.written)
}

func TestStore_NotFound(t *testing.T) {
	s := New("demo.h5")
	_, err := s.OpenAttribute(context.Background(), DefaultReadContext, "/NoSuchPath", "x")
	assert.ErrorIs(t, err, container.ErrNotFound)
}
