package query

// Query is an immutable node in a predicate tree: either a leaf (a single
// comparison) or a combinator wrapping exactly two owned children. It is
// modeled as one struct with a discriminant rather than an interface
// hierarchy, following spec.md §9 ("tagged variants over inheritance") and
// the original's H5Q_t leaf/combine union.
type Query struct {
	leaf bool

	// Leaf fields.
	kind     Kind
	op       Op
	strVal   string
	scalar   Scalar
	hasStr   bool
	hasScal  bool

	// Combinator fields.
	combineOp CombineOp
	left      *Query
	right     *Query
}

// MakeLeaf validates and constructs a leaf query. Name kinds (LinkName,
// AttrName) require a non-empty string operand and an equality operator;
// value kinds (AttrValue, DataElement) require a typed scalar operand, with
// ordering operators restricted to numeric tags.
func MakeLeaf(kind Kind, op Op, strOperand string, scalarOperand *Scalar) (*Query, error) {
	switch kind {
	case LinkName, AttrName:
		if strOperand == "" {
			return nil, &InvalidQueryError{Reason: "name-kind leaf requires a non-empty string operand"}
		}
		if op != Equal && op != NotEqual {
			return nil, &InvalidQueryError{Reason: "name-kind leaf only supports Equal/NotEqual"}
		}
		return &Query{leaf: true, kind: kind, op: op, strVal: strOperand, hasStr: true}, nil

	case AttrValue, DataElement:
		if scalarOperand == nil {
			return nil, &InvalidQueryError{Reason: "value-kind leaf requires a typed scalar operand"}
		}
		if !scalarOperand.Tag.isNumeric() && op.isOrdering() {
			return nil, &InvalidQueryError{Reason: "string operands only support Equal/NotEqual"}
		}
		sc := Scalar{Tag: scalarOperand.Tag, Bytes: append([]byte(nil), scalarOperand.Bytes...)}
		return &Query{leaf: true, kind: kind, op: op, scalar: sc, hasScal: true}, nil

	default:
		return nil, &InvalidQueryError{Reason: "unknown query kind"}
	}
}

// Combine wraps two owned, non-nil queries under a boolean combinator. left
// and right must not be the same pointer (queries may not alias themselves).
func Combine(op CombineOp, left, right *Query) (*Query, error) {
	if op != And && op != Or {
		return nil, &InvalidQueryError{Reason: "combine op must be And or Or"}
	}
	if left == nil || right == nil {
		return nil, &InvalidQueryError{Reason: "combine requires two non-nil children"}
	}
	if left == right {
		return nil, &InvalidQueryError{Reason: "combine children must not alias"}
	}
	return &Query{leaf: false, combineOp: op, left: left, right: right}, nil
}

// Close releases q and, recursively, its owned children (post-order). A
// leaf's Close is a no-op beyond making the node unusable; Go's GC reclaims
// memory, but Close exists to mirror the owning-handle lifecycle of §3 and
// to give combinator trees a single, explicit teardown point.
func (q *Query) Close() {
	if q == nil {
		return
	}
	if !q.leaf {
		q.left.Close()
		q.right.Close()
		q.left = nil
		q.right = nil
	}
}

// IsLeaf reports whether q is a leaf (as opposed to a combinator).
func (q *Query) IsLeaf() bool {
	return q.leaf
}

// Kind returns q's effective kind: its own kind if q is a leaf, or — for a
// combinator — the shared kind of both children if they match, else Misc.
func (q *Query) Kind() Kind {
	if q.leaf {
		return q.kind
	}
	lk, rk := q.left.Kind(), q.right.Kind()
	if lk == rk {
		return lk
	}
	return Misc
}

// CombineOp returns q's boolean combinator. Calling it on a leaf returns the
// zero value (singleton) and is not itself an error; callers that need to
// distinguish should check IsLeaf first.
func (q *Query) CombineOp() CombineOp {
	if q.leaf {
		return singleton
	}
	return q.combineOp
}

// Components returns borrowed handles to q's two children. It fails with
// BadHandleError for a leaf. The returned pointers must not outlive q, and
// must not be independently Closed.
func (q *Query) Components() (left, right *Query, err error) {
	if q.leaf {
		return nil, nil, &BadHandleError{Reason: "Components called on a leaf query"}
	}
	return q.left, q.right, nil
}

// Op returns the leaf's comparison operator. Calling it on a combinator
// returns the zero value (Equal); see IsLeaf.
func (q *Query) Op() Op {
	return q.op
}

// StringOperand returns the leaf's string operand and whether one is present
// (true only for LinkName/AttrName leaves).
func (q *Query) StringOperand() (string, bool) {
	return q.strVal, q.hasStr
}

// ScalarOperand returns the leaf's typed scalar operand and whether one is
// present (true only for AttrValue/DataElement leaves).
func (q *Query) ScalarOperand() (Scalar, bool) {
	return q.scalar, q.hasScal
}
