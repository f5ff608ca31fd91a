package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionKey(t *testing.T) {
	tests := []struct {
		name                 string
		containerName        string
		objectPath           string
		predicateFingerprint string
		expected             string
	}{
		{
			name:                 "basic key",
			containerName:        "sensors.h5",
			objectPath:           "/Object1/Pressure",
			predicateFingerprint: "abc123",
			expected:             "queryview:region:sensors.h5:/Object1/Pressure:abc123",
		},
		{
			name:                 "view-named container",
			containerName:        "view-9f2e",
			objectPath:           "/Object2/Temperature",
			predicateFingerprint: "ff00",
			expected:             "queryview:region:view-9f2e:/Object2/Temperature:ff00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RegionKey(tt.containerName, tt.objectPath, tt.predicateFingerprint))
		})
	}
}
