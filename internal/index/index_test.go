package index

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IndexAndMatch(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "index-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	m, err := New(tmpDir)
	require.NoError(t, err)
	defer m.Close()

	docs := []NameDoc{
		{Path: "/Object1/Pressure", Name: "Pressure", Kind: "object"},
		{Path: "/Object1/Temperature", Name: "Temperature", Kind: "object"},
		{Path: "/Object2/Pressure", Name: "Pressure", Kind: "object"},
	}
	require.NoError(t, m.IndexNames(context.Background(), "sensors.h5", docs))

	paths, err := m.MatchingPaths(context.Background(), "sensors.h5", "Pressure")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/Object1/Pressure", "/Object2/Pressure"}, paths)
}

func TestManager_GetOrCreateIndex_ReusesExisting(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "index-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	m, err := New(tmpDir)
	require.NoError(t, err)
	defer m.Close()

	idx1, err := m.GetOrCreateIndex("sensors.h5")
	require.NoError(t, err)
	idx2, err := m.GetOrCreateIndex("sensors.h5")
	require.NoError(t, err)
	assert.Equal(t, idx1.Name(), idx2.Name())
}

func TestManager_DropIndex(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "index-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	m, err := New(tmpDir)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.GetOrCreateIndex("sensors.h5")
	require.NoError(t, err)
	require.NoError(t, m.DropIndex("sensors.h5"))

	_, err = os.Stat(tmpDir + "/sensors.h5")
	assert.True(t, os.IsNotExist(err))
}
