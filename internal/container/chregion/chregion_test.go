package chregion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFilename_NoDBRequired(t *testing.T) {
	s := New(nil, "sensors.h5")
	name, err := s.CanonicalFilename(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sensors.h5", name)
}

func TestCreateCoreBackedContainer_IsInProcessRegardlessOfDurableBackend(t *testing.T) {
	s := New(nil, "sensors.h5")
	backing, err := s.CreateCoreBackedContainer(context.Background(), "view-1")
	require.NoError(t, err)

	group, err := backing.CreateAnonymousGroup(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, group.Path())
}
