package apply

import (
	"encoding/binary"

	"github.com/contdb/queryview/internal/container"
	"github.com/contdb/queryview/internal/container/memcore"
	"github.com/contdb/queryview/internal/query"
)

// buildSensorFixture constructs the container literally described by
// spec.md §8 scenario S2: three groups Object1/2/3, each with Pressure and
// Temperature datasets of shape 4096x1 where data[i]=i, each dataset
// carrying an integer SensorID attribute matching its group number.
func buildSensorFixture(name string) *memcore.Store {
	store := memcore.New(name)
	tagInt32 := container.TypeTag(query.TagInt32)

	for i := 1; i <= 3; i++ {
		group := itoaPath(i)
		store.PutGroup(group)
		for _, ds := range []string{"Pressure", "Temperature"} {
			path := group + "/" + ds
			data := make([]byte, 4096*4)
			for e := 0; e < 4096; e++ {
				binary.LittleEndian.PutUint32(data[e*4:], uint32(e))
			}
			store.PutDataset(path, tagInt32, 4, data)
			sensorID := make([]byte, 4)
			binary.LittleEndian.PutUint32(sensorID, uint32(i))
			store.PutAttribute(path, "SensorID", tagInt32, sensorID)
		}
	}
	return store
}

func itoaPath(i int) string {
	return "/Object" + string(rune('0'+i))
}
