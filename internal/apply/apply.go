// Package apply implements the query apply engine described in spec.md
// §3/§4.2 (component C5): dispatching a compiled query over a container's
// object tree and assembling the matching references into a view.
package apply

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/contdb/queryview/internal/cache"
	"github.com/contdb/queryview/internal/container"
	"github.com/contdb/queryview/internal/index"
	"github.com/contdb/queryview/internal/query"
	"github.com/contdb/queryview/internal/ref"
	"github.com/contdb/queryview/internal/view"
)

// defaultCacheTTL is used when ViewCreationProperties.CacheTTL is zero but
// a Cache is configured.
const defaultCacheTTL = 5 * time.Minute

// ViewCreationProperties takes the place of the original storage layer's
// vcpl parameter. It has no "view of views" combination mode; it carries
// the two optional accelerants a deployment may wire in: Cache memoizes DataElement region
// selections (internal/cache), and Index narrows the LinkName/AttrName
// candidate set before the authoritative per-object evaluation
// (internal/index). Both are nil-safe: a nil Cache or Index makes apply
// behave exactly as if neither were configured (full scan, no
// memoization).
type ViewCreationProperties struct {
	Cache    *cache.RegionCache
	CacheTTL time.Duration
	Index    *index.Manager
}

// StorageError wraps any failure returned by the storage contract during
// apply, per spec.md §7.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("apply: storage error during %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ApplyFailedError wraps the first traversal-callback failure, per
// spec.md §7.
type ApplyFailedError struct {
	Err error
}

func (e *ApplyFailedError) Error() string { return fmt.Sprintf("apply: traversal failed: %v", e.Err) }
func (e *ApplyFailedError) Unwrap() error { return e.Err }

// Apply evaluates q against c under rcxt and returns the resulting view
// and its ResultMask. On failure, any view built so far is freed and the
// error is returned; the caller receives no partial view.
func Apply(ctx context.Context, c container.Container, q *query.Query, vcpl *ViewCreationProperties, rcxt container.ReadContext) (*view.View, view.ResultMask, error) {
	name, err := c.CanonicalFilename(ctx)
	if err != nil {
		return nil, 0, &StorageError{Op: "CanonicalFilename", Err: err}
	}

	v, err := apply(ctx, c, name, q, rcxt, vcpl)
	if err != nil {
		v.Free()
		return nil, 0, err
	}
	return v, v.Mask(), nil
}

// ApplyMulti evaluates q independently against each container and
// concatenates the per-container results in order, per spec.md §8
// property 6: each queue is the ordered concatenation of per-container
// results, and mask is the union of per-container masks.
func ApplyMulti(ctx context.Context, containers []container.Container, q *query.Query, vcpl *ViewCreationProperties, rcxts []container.ReadContext) (*view.View, view.ResultMask, error) {
	if len(rcxts) != len(containers) {
		return nil, 0, &query.InvalidQueryError{Reason: "ApplyMulti requires one read context per container"}
	}
	out := view.New()
	var mask view.ResultMask
	for i, c := range containers {
		v, m, err := Apply(ctx, c, q, vcpl, rcxts[i])
		if err != nil {
			out.Free()
			return nil, 0, err
		}
		out.RegRefs.Concat(v.RegRefs)
		out.ObjRefs.Concat(v.ObjRefs)
		out.AttrRefs.Concat(v.AttrRefs)
		mask |= m
	}
	return out, mask, nil
}

func apply(ctx context.Context, c container.Container, containerName string, q *query.Query, rcxt container.ReadContext, vcpl *ViewCreationProperties) (*view.View, error) {
	kind := q.Kind()
	if kind == query.Misc {
		return applyMisc(ctx, c, containerName, q, rcxt, vcpl)
	}
	switch kind {
	case query.LinkName:
		return applyLinkName(ctx, c, containerName, q, rcxt, vcpl)
	case query.AttrName:
		return applyAttrName(ctx, c, containerName, q, rcxt, vcpl)
	case query.AttrValue:
		return applyAttrValue(ctx, c, containerName, q, rcxt)
	case query.DataElement:
		return applyDataElement(ctx, c, containerName, q, rcxt, vcpl)
	default:
		return nil, &query.InvalidQueryError{Reason: "unknown effective query kind"}
	}
}

func applyMisc(ctx context.Context, c container.Container, containerName string, q *query.Query, rcxt container.ReadContext, vcpl *ViewCreationProperties) (*view.View, error) {
	left, right, err := q.Components()
	if err != nil {
		return nil, &ApplyFailedError{Err: err}
	}
	lv, err := apply(ctx, c, containerName, left, rcxt, vcpl)
	if err != nil {
		return nil, err
	}
	rv, err := apply(ctx, c, containerName, right, rcxt, vcpl)
	if err != nil {
		lv.Free()
		return nil, err
	}
	combineOp := view.Or
	if q.CombineOp() == query.And {
		combineOp = view.And
	}
	out, _, err := view.Combine(combineOp, lv, rv, lv.Mask(), rv.Mask())
	if err != nil {
		return nil, &ApplyFailedError{Err: err}
	}
	return out, nil
}

// linkNameCandidates consults vcpl.Index (if configured) for the set of
// object paths whose name plausibly matches q's string operand. A nil
// result means "no narrowing available" (no Index configured, q is not an
// Equal leaf with a string operand, or the index itself came back empty) and
// applyLinkName/applyAttrName must fall back to evaluating every object;
// a non-nil, non-empty result narrows the VisitObjects walk to paths the
// index actually knows about, with EvalName still the verdict
// (the index never short-circuits a false positive, only skips sites it
// is confident do not match).
func linkNameCandidates(ctx context.Context, vcpl *ViewCreationProperties, containerName string, q *query.Query) map[string]bool {
	if vcpl == nil || vcpl.Index == nil {
		return nil
	}
	operand, ok := q.StringOperand()
	if !ok || operand == "" || q.Op() != query.Equal {
		return nil
	}
	paths, err := vcpl.Index.MatchingPaths(ctx, containerName, operand)
	if err != nil || len(paths) == 0 {
		return nil
	}
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

func applyLinkName(ctx context.Context, c container.Container, containerName string, q *query.Query, rcxt container.ReadContext, vcpl *ViewCreationProperties) (*view.View, error) {
	v := view.New()
	candidates := linkNameCandidates(ctx, vcpl, containerName, q)
	err := c.VisitObjects(ctx, rcxt, "/", func(ctx context.Context, info container.ObjectInfo) error {
		if candidates != nil && !candidates[info.Path] {
			return nil
		}
		ok, err := query.EvalName(q, info.Name)
		if err != nil {
			return err
		}
		if ok {
			v.Add(ref.NewObjectRef(containerName, info.Path))
		}
		return nil
	})
	if err != nil {
		return v, &StorageError{Op: "VisitObjects", Err: err}
	}
	return v, nil
}

func applyAttrName(ctx context.Context, c container.Container, containerName string, q *query.Query, rcxt container.ReadContext, vcpl *ViewCreationProperties) (*view.View, error) {
	v := view.New()
	candidates := linkNameCandidates(ctx, vcpl, containerName, q)
	err := c.VisitObjects(ctx, rcxt, "/", func(ctx context.Context, info container.ObjectInfo) error {
		if candidates != nil && !candidates[info.Path] {
			return nil
		}
		attrs, err := c.IterateAttributes(ctx, rcxt, info.Path)
		if err != nil {
			return err
		}
		for _, a := range attrs {
			ok, err := query.EvalName(q, a.Name)
			if err != nil {
				return err
			}
			if ok {
				v.Add(ref.NewAttributeRef(containerName, info.Path, a.Name))
			}
		}
		return nil
	})
	if err != nil {
		return v, &StorageError{Op: "IterateAttributes", Err: err}
	}
	return v, nil
}

func applyAttrValue(ctx context.Context, c container.Container, containerName string, q *query.Query, rcxt container.ReadContext) (*view.View, error) {
	v := view.New()
	err := c.VisitObjects(ctx, rcxt, "/", func(ctx context.Context, info container.ObjectInfo) error {
		attrs, err := c.IterateAttributes(ctx, rcxt, info.Path)
		if err != nil {
			return err
		}
		for _, a := range attrs {
			h, err := c.OpenAttribute(ctx, rcxt, info.Path, a.Name)
			if err != nil {
				return err
			}
			tag, values, err := c.ReadAttribute(ctx, h)
			closeErr := c.CloseAttribute(ctx, h)
			if err != nil {
				return err
			}
			if closeErr != nil {
				return closeErr
			}
			// spec.md §4.2: an attribute may hold more than one data
			// element; it matches if any element satisfies the leaf.
			matched := false
			for _, value := range values {
				ok, err := query.Eval(q, query.TypeTag(tag), value)
				if err != nil {
					return err
				}
				if ok {
					matched = true
					break
				}
			}
			if matched {
				v.Add(ref.NewAttributeRef(containerName, info.Path, a.Name))
			}
		}
		return nil
	})
	if err != nil {
		return v, &StorageError{Op: "attribute traversal", Err: err}
	}
	return v, nil
}

// predicateFingerprint derives a stable cache-key component from q's wire
// encoding, so repeated Apply calls with the same compiled predicate hit
// the same cache key without the cache package needing to know anything
// about *query.Query.
func predicateFingerprint(q *query.Query) (string, error) {
	size, err := query.Encode(q, nil)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	if _, err := query.Encode(q, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func applyDataElement(ctx context.Context, c container.Container, containerName string, q *query.Query, rcxt container.ReadContext, vcpl *ViewCreationProperties) (*view.View, error) {
	v := view.New()
	predicate := func(tag container.TypeTag, value []byte) (bool, error) {
		return query.Eval(q, query.TypeTag(tag), value)
	}

	var regionCache *cache.RegionCache
	var fingerprint string
	ttl := defaultCacheTTL
	if vcpl != nil && vcpl.Cache != nil {
		if fp, err := predicateFingerprint(q); err == nil {
			regionCache = vcpl.Cache
			fingerprint = fp
			if vcpl.CacheTTL > 0 {
				ttl = vcpl.CacheTTL
			}
		}
	}

	err := c.VisitObjects(ctx, rcxt, "/", func(ctx context.Context, info container.ObjectInfo) error {
		if info.Kind != container.KindDataset {
			return nil
		}

		var cacheKey string
		if regionCache != nil {
			cacheKey = cache.RegionKey(containerName, info.Path, fingerprint)
			if sel, err := regionCache.GetRegionSelection(ctx, cacheKey); err == nil {
				if !sel.IsEmpty() {
					v.Add(ref.NewDatasetRegionRef(containerName, info.Path, sel))
				}
				return nil
			}
		}

		sel, err := c.SelectDatasetRegion(ctx, rcxt, info.Path, predicate)
		if err != nil {
			return err
		}
		if regionCache != nil {
			_ = regionCache.PutRegionSelection(ctx, cacheKey, sel, ttl)
		}
		if !sel.IsEmpty() {
			v.Add(ref.NewDatasetRegionRef(containerName, info.Path, sel))
		}
		return nil
	})
	if err != nil {
		return v, &StorageError{Op: "SelectDatasetRegion", Err: err}
	}
	return v, nil
}
