package query

import (
	"bytes"
	"encoding/binary"
	"math"
)

// ApplyAtom evaluates a leaf's comparison against a supplied value.
// Name-kind leaves (LinkName, AttrName) are rejected with an
// InvalidQueryError; ApplyAtomName evaluates those. For value-kind leaves, value is compared
// against the leaf's stored scalar after promoting both sides per spec.md
// §4.1's numeric coercion ladder.
func ApplyAtom(leaf *Query, operandTag TypeTag, value []byte) (bool, error) {
	if !leaf.IsLeaf() {
		return false, &BadHandleError{Reason: "ApplyAtom requires a leaf query"}
	}
	switch leaf.kind {
	case LinkName, AttrName:
		return false, &InvalidQueryError{Reason: "ApplyAtom on a name-kind leaf requires ApplyAtomName"}
	case AttrValue, DataElement:
		if operandTag == TagString || leaf.scalar.Tag == TagString {
			if operandTag != leaf.scalar.Tag {
				return false, &InvalidQueryError{Reason: "cannot compare string and numeric operands"}
			}
			return compareStrings(leaf.op, leaf.scalar.Bytes, value)
		}
		return compareNumeric(leaf.op, leaf.scalar.Tag, leaf.scalar.Bytes, operandTag, value)
	default:
		return false, &InvalidQueryError{Reason: "unknown leaf kind"}
	}
}

// Eval recursively evaluates a DataElement/AttrValue query tree against a
// single scalar value, short-circuiting And/Or at each combinator. It is
// the building block the apply engine's element-iteration path uses per
// dataspace point, and the basis for spec.md §8's S1 scenario (a compound
// expression evaluated against a stream of scalar inputs).
func Eval(q *Query, tag TypeTag, value []byte) (bool, error) {
	if q.IsLeaf() {
		return ApplyAtom(q, tag, value)
	}
	left, right, err := q.Components()
	if err != nil {
		return false, err
	}
	lv, err := Eval(left, tag, value)
	if err != nil {
		return false, err
	}
	if q.CombineOp() == And && !lv {
		return false, nil
	}
	if q.CombineOp() == Or && lv {
		return true, nil
	}
	rv, err := Eval(right, tag, value)
	if err != nil {
		return false, err
	}
	if q.CombineOp() == And {
		return lv && rv, nil
	}
	return lv || rv, nil
}

// EvalName recursively evaluates a LinkName/AttrName query tree against a
// single name, short-circuiting And/Or at each combinator. It is the
// name-kind counterpart to Eval, used by the apply engine when an entire
// combinator subtree shares a name kind (spec.md §9's "dispatch by
// effective kind, recurse on Misc").
func EvalName(q *Query, name string) (bool, error) {
	if q.IsLeaf() {
		return ApplyAtomName(q, name)
	}
	left, right, err := q.Components()
	if err != nil {
		return false, err
	}
	lv, err := EvalName(left, name)
	if err != nil {
		return false, err
	}
	if q.CombineOp() == And && !lv {
		return false, nil
	}
	if q.CombineOp() == Or && lv {
		return true, nil
	}
	rv, err := EvalName(right, name)
	if err != nil {
		return false, err
	}
	if q.CombineOp() == And {
		return lv && rv, nil
	}
	return lv || rv, nil
}

// ApplyAtomName evaluates a LinkName or AttrName leaf against a supplied
// name (an object's basename, or an attribute's name).
func ApplyAtomName(leaf *Query, name string) (bool, error) {
	if !leaf.IsLeaf() || (leaf.kind != LinkName && leaf.kind != AttrName) {
		return false, &BadHandleError{Reason: "ApplyAtomName requires a LinkName/AttrName leaf"}
	}
	eq := leaf.strVal == name
	switch leaf.op {
	case Equal:
		return eq, nil
	case NotEqual:
		return !eq, nil
	default:
		return false, &InvalidQueryError{Reason: "name-kind leaf only supports Equal/NotEqual"}
	}
}

// compareStrings implements the byte-wise NUL-terminated string comparison
// of spec.md §4.1. Go strings aren't NUL-terminated on the wire, so this
// truncates each side at its first NUL (if any) before comparing,
// tolerating callers that pass either form.
func compareStrings(op Op, a, b []byte) (bool, error) {
	a = trimNUL(a)
	b = trimNUL(b)
	eq := bytes.Equal(a, b)
	switch op {
	case Equal:
		return eq, nil
	case NotEqual:
		return !eq, nil
	default:
		return false, &InvalidQueryError{Reason: "string operands only support Equal/NotEqual"}
	}
}

func trimNUL(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// compareNumeric promotes both operands per spec.md §4.1: if either side is
// floating point, both are promoted to float64; otherwise both are promoted
// to the widest signed integer type. NaN never satisfies any comparison,
// including Equal against NaN.
func compareNumeric(op Op, leafTag TypeTag, leafBytes []byte, valTag TypeTag, valBytes []byte) (bool, error) {
	if leafTag.isFloat() || valTag.isFloat() {
		lf, err := decodeFloat(leafTag, leafBytes)
		if err != nil {
			return false, err
		}
		vf, err := decodeFloat(valTag, valBytes)
		if err != nil {
			return false, err
		}
		return compareFloat(op, lf, vf), nil
	}

	li, err := decodeInt(leafTag, leafBytes)
	if err != nil {
		return false, err
	}
	vi, err := decodeInt(valTag, valBytes)
	if err != nil {
		return false, err
	}
	return compareInt(op, li, vi), nil
}

func compareFloat(op Op, a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch op {
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Less:
		return a < b
	case Greater:
		return a > b
	case LessEq:
		return a <= b
	case GreaterEq:
		return a >= b
	default:
		return false
	}
}

func compareInt(op Op, a, b int64) bool {
	switch op {
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Less:
		return a < b
	case Greater:
		return a > b
	case LessEq:
		return a <= b
	case GreaterEq:
		return a >= b
	default:
		return false
	}
}

func decodeFloat(tag TypeTag, b []byte) (float64, error) {
	switch tag {
	case TagFloat32:
		if len(b) < 4 {
			return 0, &InvalidQueryError{Reason: "short float32 operand"}
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case TagFloat64:
		if len(b) < 8 {
			return 0, &InvalidQueryError{Reason: "short float64 operand"}
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		i, err := decodeInt(tag, b)
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	}
}

func decodeInt(tag TypeTag, b []byte) (int64, error) {
	switch tag {
	case TagInt8:
		if len(b) < 1 {
			return 0, shortOperand()
		}
		return int64(int8(b[0])), nil
	case TagUint8:
		if len(b) < 1 {
			return 0, shortOperand()
		}
		return int64(b[0]), nil
	case TagInt16:
		if len(b) < 2 {
			return 0, shortOperand()
		}
		return int64(int16(binary.LittleEndian.Uint16(b))), nil
	case TagUint16:
		if len(b) < 2 {
			return 0, shortOperand()
		}
		return int64(binary.LittleEndian.Uint16(b)), nil
	case TagInt32:
		if len(b) < 4 {
			return 0, shortOperand()
		}
		return int64(int32(binary.LittleEndian.Uint32(b))), nil
	case TagUint32:
		if len(b) < 4 {
			return 0, shortOperand()
		}
		return int64(binary.LittleEndian.Uint32(b)), nil
	case TagInt64:
		if len(b) < 8 {
			return 0, shortOperand()
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TagUint64:
		if len(b) < 8 {
			return 0, shortOperand()
		}
		// Promotion target is the widest signed integer; a uint64 whose high
		// bit is set loses its sign under this ladder, matching the
		// original's promotion to long long.
		return int64(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, &InvalidQueryError{Reason: "non-numeric type tag"}
	}
}

func shortOperand() error {
	return &InvalidQueryError{Reason: "operand shorter than its type tag requires"}
}

// EncodeScalar encodes a Go numeric or string value into a Scalar's byte
// form, little-endian per spec.md §6.
func EncodeScalar(tag TypeTag, v interface{}) Scalar {
	buf := new(bytes.Buffer)
	switch tag {
	case TagInt8:
		buf.WriteByte(byte(v.(int8)))
	case TagUint8:
		buf.WriteByte(v.(uint8))
	case TagInt16:
		binary.Write(buf, binary.LittleEndian, v.(int16))
	case TagUint16:
		binary.Write(buf, binary.LittleEndian, v.(uint16))
	case TagInt32:
		binary.Write(buf, binary.LittleEndian, v.(int32))
	case TagUint32:
		binary.Write(buf, binary.LittleEndian, v.(uint32))
	case TagInt64:
		binary.Write(buf, binary.LittleEndian, v.(int64))
	case TagUint64:
		binary.Write(buf, binary.LittleEndian, v.(uint64))
	case TagFloat32:
		binary.Write(buf, binary.LittleEndian, v.(float32))
	case TagFloat64:
		binary.Write(buf, binary.LittleEndian, v.(float64))
	case TagString:
		buf.WriteString(v.(string))
		buf.WriteByte(0)
	}
	return Scalar{Tag: tag, Bytes: buf.Bytes()}
}
