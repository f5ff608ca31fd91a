package testutil

import (
	"encoding/binary"

	"github.com/contdb/queryview/internal/container"
	"github.com/contdb/queryview/internal/container/memcore"
)

// NewSensorFixture builds a container of `groups` groups with two datasets
// per group: each group Object0..Object{groups-1} holds a
// Pressure and a Temperature dataset of int32 elements (value == offset),
// each dataset carrying a SensorID attribute equal to its group index.
func NewSensorFixture(containerName string, groups int, elementsPerDataset int) *memcore.Store {
	s := memcore.New(containerName)
	for g := 0; g < groups; g++ {
		groupPath := groupPathFor(g)
		s.PutGroup(groupPath)

		sensorID := make([]byte, 4)
		binary.LittleEndian.PutUint32(sensorID, uint32(g))

		for _, dsName := range []string{"Pressure", "Temperature"} {
			data := make([]byte, elementsPerDataset*4)
			for i := 0; i < elementsPerDataset; i++ {
				binary.LittleEndian.PutUint32(data[i*4:], uint32(i))
			}
			path := groupPath + "/" + dsName
			s.PutDataset(path, container.TypeTag(3), 4, data)
			s.PutAttribute(path, "SensorID", container.TypeTag(3), sensorID)
		}
	}
	return s
}

func groupPathFor(i int) string {
	const letters = "Object"
	return "/" + letters + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
