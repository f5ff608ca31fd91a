// Package materialize implements spec.md §4.3/§3.6 (component C6): turning
// an in-memory View into a persistent anonymous group inside a transient
// core-backed container.
package materialize

import (
	"context"
	"fmt"

	"github.com/contdb/queryview/internal/container"
	"github.com/contdb/queryview/internal/events"
	"github.com/contdb/queryview/internal/idgen"
	"github.com/contdb/queryview/internal/ref"
	"github.com/contdb/queryview/internal/view"
)

// datasetNames are the literal dataset names fixed by H5Q_view_t's
// reg_refs/obj_refs/attr_refs fields (SPEC_FULL.md §4).
const (
	regionDataset    = "region_refs"
	objectDataset    = "object_refs"
	attributeDataset = "attribute_refs"
)

// ViewWriteFailedError reports that materialization could not create the
// backing container, group, or a reference dataset, per spec.md §7.
type ViewWriteFailedError struct {
	Err error
}

func (e *ViewWriteFailedError) Error() string {
	return fmt.Sprintf("materialize: view write failed: %v", e.Err)
}
func (e *ViewWriteFailedError) Unwrap() error { return e.Err }

// Publisher is the narrow event-publishing contract Materialize consumes;
// internal/events.Publisher satisfies it. It is optional: a nil Publisher
// skips event publication entirely.
type Publisher interface {
	PublishMaterialized(ctx context.Context, ev events.ViewMaterialized) error
}

// Materialize creates a fresh core-backed container via host, writes up to
// three reference datasets under a new anonymous group, and returns the
// group handle. Failure frees v and any partially-created group; the
// caller never receives a partial result. pub may be nil.
func Materialize(ctx context.Context, host container.Container, v *view.View, rm view.ResultMask, pub Publisher) (container.Group, error) {
	if v == nil {
		return nil, &ViewWriteFailedError{Err: fmt.Errorf("nil view")}
	}

	backing, err := host.CreateCoreBackedContainer(ctx, idgen.NewContainerName())
	if err != nil {
		v.Free()
		return nil, &ViewWriteFailedError{Err: err}
	}

	group, err := backing.CreateAnonymousGroup(ctx)
	if err != nil {
		v.Free()
		return nil, &ViewWriteFailedError{Err: err}
	}

	if rm&view.HasRegion != 0 {
		if err := writeRegionRefs(ctx, backing, group, v.RegRefs.Items()); err != nil {
			_ = group.Close()
			v.Free()
			return nil, &ViewWriteFailedError{Err: err}
		}
	}
	if rm&view.HasObject != 0 {
		if err := writeSimpleRefs(ctx, backing, group, objectDataset, v.ObjRefs.Items()); err != nil {
			_ = group.Close()
			v.Free()
			return nil, &ViewWriteFailedError{Err: err}
		}
	}
	if rm&view.HasAttribute != 0 {
		if err := writeAttributeRefs(ctx, backing, group, v.AttrRefs.Items()); err != nil {
			_ = group.Close()
			v.Free()
			return nil, &ViewWriteFailedError{Err: err}
		}
	}

	if pub != nil {
		name, _ := backing.CanonicalFilename(ctx)
		ev := events.ViewMaterialized{
			ContainerName:  name,
			GroupPath:      group.Path(),
			RegionCount:    v.RegRefs.Len(),
			ObjectCount:    v.ObjRefs.Len(),
			AttributeCount: v.AttrRefs.Len(),
		}
		if err := pub.PublishMaterialized(ctx, ev); err != nil {
			// Publication failure doesn't invalidate an already-written
			// view; the error is dropped here: it is neither logged nor
			// returned as a ViewWriteFailedError.
			_ = err
		}
	}

	v.Free()
	return group, nil
}

func writeRegionRefs(ctx context.Context, c container.Container, g container.Group, refs []*ref.Reference) error {
	rows := make([][]byte, 0, len(refs))
	for _, r := range refs {
		enc, err := ref.Encode(r)
		if err != nil {
			return err
		}
		rows = append(rows, enc)
	}
	return c.WriteDataset(ctx, g, regionDataset, rows)
}

func writeSimpleRefs(ctx context.Context, c container.Container, g container.Group, name string, refs []*ref.Reference) error {
	rows := make([][]byte, 0, len(refs))
	for _, r := range refs {
		enc, err := ref.Encode(r)
		if err != nil {
			return err
		}
		rows = append(rows, enc)
	}
	return c.WriteDataset(ctx, g, name, rows)
}

func writeAttributeRefs(ctx context.Context, c container.Container, g container.Group, refs []*ref.Reference) error {
	return writeSimpleRefs(ctx, c, g, attributeDataset, refs)
}
