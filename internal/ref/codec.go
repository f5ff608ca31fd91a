package ref

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encode serializes r per spec.md §6's reference element layout:
// length-prefixed (kind:u8, container_name, object_path[, attr_name]
// [, region_selection]), each string NUL-terminated, region selection in
// the storage layer's canonical serialization (Roaring's binary form).
func Encode(r *Reference) ([]byte, error) {
	var body bytes.Buffer
	body.WriteByte(byte(r.kind))
	writeNulString(&body, r.containerName)
	writeNulString(&body, r.objectPath)

	switch r.kind {
	case Attribute:
		writeNulString(&body, r.attrName)
	case DatasetRegion:
		sel, err := r.selection.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("ref: marshal region selection: %w", err)
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(sel)))
		body.Write(lenBuf[:])
		body.Write(sel)
	}

	out := make([]byte, 4+body.Len())
	binary.LittleEndian.PutUint32(out[:4], uint32(body.Len()))
	copy(out[4:], body.Bytes())
	return out, nil
}

// Decode is the inverse of Encode. It reads exactly one length-prefixed
// reference element from the front of b and returns it along with the
// number of bytes consumed.
func Decode(b []byte) (*Reference, int, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("ref: buffer too short for length prefix")
	}
	n := int(binary.LittleEndian.Uint32(b[:4]))
	if len(b) < 4+n {
		return nil, 0, fmt.Errorf("ref: buffer shorter than declared element length")
	}
	body := b[4 : 4+n]
	if len(body) < 1 {
		return nil, 0, fmt.Errorf("ref: empty reference body")
	}
	kind := Kind(body[0])
	off := 1

	containerName, adv, err := readNulString(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += adv

	objectPath, adv, err := readNulString(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += adv

	var r *Reference
	switch kind {
	case Object:
		r = NewObjectRef(containerName, objectPath)
	case Attribute:
		attrName, adv, err := readNulString(body[off:])
		if err != nil {
			return nil, 0, err
		}
		off += adv
		r = NewAttributeRef(containerName, objectPath, attrName)
	case DatasetRegion:
		if len(body[off:]) < 4 {
			return nil, 0, fmt.Errorf("ref: truncated region selection length")
		}
		selLen := int(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		if len(body[off:]) < selLen {
			return nil, 0, fmt.Errorf("ref: truncated region selection payload")
		}
		sel, err := UnmarshalRegionSelection(body[off : off+selLen])
		if err != nil {
			return nil, 0, err
		}
		off += selLen
		r = NewDatasetRegionRef(containerName, objectPath, sel)
	default:
		return nil, 0, fmt.Errorf("ref: unknown reference kind %d", kind)
	}

	return r, 4 + n, nil
}

func writeNulString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readNulString(b []byte) (string, int, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", 0, fmt.Errorf("ref: unterminated string operand")
	}
	return string(b[:i]), i + 1, nil
}
