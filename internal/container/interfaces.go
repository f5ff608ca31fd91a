// Package container defines the external storage contract the query
// engine is built against (spec.md §6): a hierarchical object graph of
// groups, datasets, and attributes that the apply engine traverses and
// the materialization step writes back into.
package container

import (
	"context"
	"errors"
	"io"

	"github.com/contdb/queryview/internal/ref"
)

// ErrNotFound is returned when an object, attribute, or container name
// cannot be resolved.
var ErrNotFound = errors.New("container: not found")

// ObjectKind discriminates the three object shapes a container can hold.
type ObjectKind uint8

const (
	KindGroup ObjectKind = iota
	KindDataset
	KindCommittedDatatype
)

// ObjectInfo describes one object visited during traversal.
type ObjectInfo struct {
	Path string
	Kind ObjectKind
	Name string // basename, the component ApplyAtomName compares against LinkName leaves
}

// AttrInfo describes one attribute attached to an object. Its element
// values and type tag are read separately via OpenAttribute/ReadAttribute.
type AttrInfo struct {
	Name string
}

// ReadContext is an opaque token a Container issues to scope a read
// transaction (e.g. a snapshot version, a read/write property list). The
// apply engine threads it through every call without interpreting it.
type ReadContext interface {
	isReadContext()
}

// Visitor is called once per object discovered by VisitObjects. Returning
// a non-nil error aborts the traversal and the error propagates to the
// caller of VisitObjects.
type Visitor func(ctx context.Context, info ObjectInfo) error

// Group is a handle to a materialized group, returned by Materialize and
// consumed by callers that want to read back a view's contents.
type Group interface {
	Path() string
	Close() error
}

// Container is the storage contract the apply and materialize engines
// are built against (spec.md §6). Concrete backends (memcore, pgcontainer)
// implement it; internal/apply and internal/materialize only ever consume
// it, never a concrete type, matching the teacher's storage-interface
// pattern of programming against a narrow contract per concern.
type Container interface {
	// CanonicalFilename returns the name under which this container is
	// identified inside References (the ContainerName field).
	CanonicalFilename(ctx context.Context) (string, error)

	// VisitObjects walks every object reachable from root (root == "/"
	// for a whole-container traversal) and invokes fn for each, in a
	// stable depth-first pre-order.
	VisitObjects(ctx context.Context, rcxt ReadContext, root string, fn Visitor) error

	// OpenObject/CloseObject bracket a read of one object's data.
	OpenObject(ctx context.Context, rcxt ReadContext, path string) (ObjectHandle, error)
	CloseObject(ctx context.Context, h ObjectHandle) error

	// IterateAttributes lists every attribute on the object at path.
	IterateAttributes(ctx context.Context, rcxt ReadContext, path string) ([]AttrInfo, error)
	// OpenAttribute/ReadAttribute/CloseAttribute bracket a read of one
	// attribute's data space and type tag. An attribute may hold more
	// than one element (spec.md §4.2); values holds every element in
	// order, so a scalar attribute is simply the len(values) == 1 case.
	OpenAttribute(ctx context.Context, rcxt ReadContext, path, name string) (AttributeHandle, error)
	ReadAttribute(ctx context.Context, h AttributeHandle) (tag TypeTag, values [][]byte, err error)
	CloseAttribute(ctx context.Context, h AttributeHandle) error

	// SelectDatasetRegion evaluates a DataElement query against every
	// element of the dataset at path and returns the matching offsets as
	// an opaque region selection (spec.md §9's required intersect(a,b)
	// primitive operates on the result).
	SelectDatasetRegion(ctx context.Context, rcxt ReadContext, path string, match ElementPredicate) (*ref.RegionSelection, error)

	// CreateCoreBackedContainer creates a new transient, in-memory-backed
	// container identified by name (spec.md §4.3's materialization
	// target).
	CreateCoreBackedContainer(ctx context.Context, name string) (Container, error)
	// CreateAnonymousGroup creates an unnamed group inside the receiver,
	// returned as a handle the caller links into the tree or discards.
	CreateAnonymousGroup(ctx context.Context) (Group, error)
	// WriteDataset writes a reference dataset (region_refs, object_refs,
	// or attribute_refs) of the given encoded rows under parent.
	WriteDataset(ctx context.Context, parent Group, name string, rows [][]byte) error
}

// ObjectHandle and AttributeHandle are opaque, backend-defined tokens
// bracketing a read; they carry no exported fields so that memcore and
// pgcontainer can use completely different underlying representations.
type ObjectHandle interface{ isObjectHandle() }
type AttributeHandle interface{ isAttributeHandle() }

// ElementPredicate evaluates one dataset element, already decoded to its
// native byte form by the backend, and reports whether it matches. It is
// how internal/apply hands a compiled query down to SelectDatasetRegion
// without container importing internal/query.
type ElementPredicate func(tag TypeTag, value []byte) (bool, error)

// TypeTag mirrors internal/query.TypeTag's encoding (spec.md §6) without
// an import cycle: container is consumed by apply, which already imports
// query, but container itself stays query-agnostic so a storage backend
// need not depend on the query package to implement this interface.
// internal/apply converts between the two with a plain numeric cast.
type TypeTag uint16

// DatasetShape describes a dataset's geometry, used by WriteDataset
// backends and by memcore fixtures to describe the S1-S6 scenario data.
type DatasetShape struct {
	Dims []uint64
}

// BlobReader/BlobWriter are the narrow contracts a BLOB-tier backend
// (internal/container/blobstore) exposes for large dataset/attribute
// payloads that a relational or core-backed container chooses to offload
// rather than store inline.
type BlobReader interface {
	ReadBlob(ctx context.Context, key string) (io.ReadCloser, error)
}
type BlobWriter interface {
	WriteBlob(ctx context.Context, key string, r io.Reader, size int64) error
}
