package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// DatasetKey only touches path.Join, not the S3 connection, so a
// zero-value Store is sufficient.
func TestDatasetKey(t *testing.T) {
	s := &Store{}

	tests := []struct {
		name          string
		containerName string
		objectPath    string
		expected      string
	}{
		{
			name:          "simple path",
			containerName: "sensors.h5",
			objectPath:    "/Object1/Pressure",
			expected:      "containers/sensors.h5/datasets/Object1/Pressure",
		},
		{
			name:          "nested object path",
			containerName: "view-123",
			objectPath:    "/group/sub/dataset",
			expected:      "containers/view-123/datasets/group/sub/dataset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.DatasetKey(tt.containerName, tt.objectPath))
		})
	}
}

func TestBucket(t *testing.T) {
	s := &Store{bucket: "queryview-blobs"}
	assert.Equal(t, "queryview-blobs", s.Bucket())
}
