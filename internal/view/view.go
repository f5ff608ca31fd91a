package view

import "github.com/contdb/queryview/internal/ref"

// ResultMask is a bitfield recording which of a View's three queues are
// non-empty, per spec.md §4.3.
type ResultMask uint8

const (
	HasRegion ResultMask = 1 << iota
	HasObject
	HasAttribute
)

// View holds the three ordered reference queues a query apply produces:
// dataset-region references, object references, and attribute references.
// The separation mirrors spec.md §4.3's H5Q_view_t and lets the apply
// engine route a new match to the right queue by its Reference kind
// without a type switch at every call site.
type View struct {
	RegRefs  *RefQueue
	ObjRefs  *RefQueue
	AttrRefs *RefQueue
}

// New returns an empty view.
func New() *View {
	return &View{RegRefs: NewRefQueue(), ObjRefs: NewRefQueue(), AttrRefs: NewRefQueue()}
}

// Add appends r to whichever queue matches its kind.
func (v *View) Add(r *ref.Reference) {
	switch r.Kind() {
	case ref.DatasetRegion:
		v.RegRefs.Append(r)
	case ref.Attribute:
		v.AttrRefs.Append(r)
	default:
		v.ObjRefs.Append(r)
	}
}

// Mask computes the view's current ResultMask.
func (v *View) Mask() ResultMask {
	var m ResultMask
	if v.RegRefs.Len() > 0 {
		m |= HasRegion
	}
	if v.ObjRefs.Len() > 0 {
		m |= HasObject
	}
	if v.AttrRefs.Len() > 0 {
		m |= HasAttribute
	}
	return m
}

// Free releases all three queues.
func (v *View) Free() {
	if v == nil {
		return
	}
	v.RegRefs.Free()
	v.ObjRefs.Free()
	v.AttrRefs.Free()
}

// CombineOp mirrors query.CombineOp without importing the query package,
// keeping view's set algebra usable by anything that already has an
// evaluated boolean op rather than a *query.Query.
type CombineOp uint8

const (
	Or CombineOp = iota
	And
)

// Combine merges two already-applied views per spec.md §4.2: OR is a
// concatenation of every queue (an O(1) splice via RefQueue.Concat); AND
// intersects by canonical identity key, and for matching DatasetRegion
// pairs intersects their region selections rather than discarding either
// side wholesale. Combine consumes left and right; callers must not reuse
// them afterward. lm/rm are the operands' precomputed ResultMasks, an
// empty-mask short circuit for AND (an empty side makes the whole
// intersection empty without walking either queue).
func Combine(op CombineOp, left, right *View, lm, rm ResultMask) (*View, ResultMask, error) {
	if left == nil || right == nil {
		return nil, 0, &ErrNilOperand{}
	}
	var out *View
	switch op {
	case Or:
		out = combineOr(left, right)
	default:
		if lm == 0 || rm == 0 {
			out = New()
		} else {
			out = combineAnd(left, right)
		}
	}
	return out, out.Mask(), nil
}

// ErrNilOperand reports an attempt to combine a nil view.
type ErrNilOperand struct{}

func (e *ErrNilOperand) Error() string { return "view: cannot combine a nil view" }

func combineOr(left, right *View) *View {
	out := New()
	out.RegRefs.Concat(left.RegRefs)
	out.RegRefs.Concat(right.RegRefs)
	out.ObjRefs.Concat(left.ObjRefs)
	out.ObjRefs.Concat(right.ObjRefs)
	out.AttrRefs.Concat(left.AttrRefs)
	out.AttrRefs.Concat(right.AttrRefs)
	return out
}

// combineAnd implements spec.md §4.2's AND-combination across possibly
// different reference kinds: a query's effective kind only forces a
// single dispatch when every leaf shares it (§9's "dispatch by effective
// kind"), so a Misc combinator routinely ANDs a DataElement sub-view
// (region refs keyed by dataset path) against a LinkName or AttrValue
// sub-view (object/attribute refs keyed by the same path). AND keeps a
// site (container+object path) only if it is present on both sides,
// preferring the more specific reference shape (region over object) and,
// when both sides narrow the same site to a region, intersecting the two
// selections. Attribute refs additionally require a matching attribute
// name when both sides carry attribute-level information for the site.
func combineAnd(left, right *View) *View {
	lSites, lRegions := siteIndex(left)
	rSites, rRegions := siteIndex(right)

	out := New()
	emitted := make(map[string]bool)

	emitRegion := func(r *ref.Reference, other map[string]*ref.Reference) bool {
		k := siteKeyOf(r)
		if emitted[k] {
			return true
		}
		sel := r.Selection()
		if rr, ok := other[k]; ok {
			sel = sel.Intersect(rr.Selection())
		}
		if sel.IsEmpty() {
			return false
		}
		out.RegRefs.Append(ref.NewDatasetRegionRef(r.ContainerName(), r.ObjectPath(), sel))
		emitted[k] = true
		return true
	}

	for _, r := range left.RegRefs.Items() {
		if rSites[siteKeyOf(r)] {
			emitRegion(r, rRegions)
		}
	}
	for _, r := range right.RegRefs.Items() {
		k := siteKeyOf(r)
		if emitted[k] || !lSites[k] {
			continue
		}
		if _, hadLeft := lRegions[k]; hadLeft {
			continue // already resolved (possibly to empty) by the pass above
		}
		out.RegRefs.Append(r)
		emitted[k] = true
	}

	for _, r := range left.ObjRefs.Items() {
		k := siteKeyOf(r)
		if emitted[k] || !rSites[k] {
			continue
		}
		out.ObjRefs.Append(r)
		emitted[k] = true
	}
	for _, r := range right.ObjRefs.Items() {
		k := siteKeyOf(r)
		if emitted[k] || !lSites[k] {
			continue
		}
		out.ObjRefs.Append(r)
		emitted[k] = true
	}

	out.AttrRefs = intersectAttrs(left, right)
	return out
}

func siteKeyOf(r *ref.Reference) string {
	return r.ContainerName() + "\x00" + r.ObjectPath()
}

// siteIndex summarizes a view's references by site (container+path):
// which sites it touches at all, and which sites it has a region
// reference for.
func siteIndex(v *View) (sites map[string]bool, regions map[string]*ref.Reference) {
	sites = make(map[string]bool)
	regions = make(map[string]*ref.Reference)
	for _, r := range v.RegRefs.Items() {
		k := siteKeyOf(r)
		sites[k] = true
		regions[k] = r
	}
	for _, r := range v.ObjRefs.Items() {
		sites[siteKeyOf(r)] = true
	}
	for _, r := range v.AttrRefs.Items() {
		sites[siteKeyOf(r)] = true
	}
	return
}

// intersectAttrs keeps an attribute reference only when the exact (site,
// attr name) pair is present on both sides. A site touched by the other
// operand only through a region or object reference does not pass an
// attribute reference through: that site has already been narrowed (or
// rejected) by combineAnd's region/object handling above, and letting an
// unmatched attribute ref ride along would resurrect a site AND already
// dropped, or tack a spurious parallel attribute ref onto one it kept.
func intersectAttrs(left, right *View) *RefQueue {
	rightExact := make(map[string]bool)
	for _, r := range right.AttrRefs.Items() {
		rightExact[r.CanonicalKey()] = true
	}

	out := NewRefQueue()
	emitted := make(map[string]bool)
	for _, r := range left.AttrRefs.Items() {
		if rightExact[r.CanonicalKey()] && !emitted[r.CanonicalKey()] {
			out.Append(r)
			emitted[r.CanonicalKey()] = true
		}
	}
	return out
}
