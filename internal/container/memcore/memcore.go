// Package memcore is an in-process, in-memory Container implementation.
// It is the primary backend every apply-engine scenario in spec.md §8
// (S1-S6) is tested against, the way the teacher's domain package backs
// its storage-interface contracts with plain Go structs in unit tests
// before a real Postgres/ClickHouse backend is wired in.
package memcore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/contdb/queryview/internal/container"
	"github.com/contdb/queryview/internal/ref"
)

// blobRefTag marks a dataset whose Data is not the payload itself but a
// blobstore key pointing at it (see Store.SetBlobStore). It is distinct
// from any container.TypeTag a real dataset element uses.
const blobRefTag container.TypeTag = 0xFFFF

// Attribute is a named, typed attached to an object. It may hold more
// than one data element (spec.md §4.2); Values[0] is the whole value for
// the common scalar case.
type Attribute struct {
	Name   string
	Tag    container.TypeTag
	Values [][]byte
}

// Dataset is a flat, typed, one-dimensional array of elements (spec.md's
// examples use 4096x1 sensor readings; higher-rank datasets are flattened
// to row-major offsets for SelectDatasetRegion purposes).
type Dataset struct {
	Tag      container.TypeTag
	ElemSize int
	Data     []byte // len(Data) == ElemSize * element count
}

// Object is one node in the tree: a group (no dataset) or a dataset leaf.
type Object struct {
	Path       string
	IsDataset  bool
	Dataset    *Dataset
	Attributes []Attribute
	children   []string // child paths, in insertion order
}

// Store is the in-memory Container. It is safe for concurrent read access
// once built; Put* methods are meant for fixture setup and are not
// concurrency-safe against concurrent readers.
type Store struct {
	mu       sync.RWMutex
	name     string
	objects  map[string]*Object
	rootPath string

	blobWriter    container.BlobWriter
	blobThreshold int
}

// SetBlobStore configures w as the BLOB tier for datasets WriteDataset
// writes that are larger than thresholdBytes: instead of storing the raw
// bytes inline, the store uploads them to w and keeps only the resulting
// key. A nil w (or a non-positive threshold) disables offloading, which is
// also the zero-value behavior.
func (s *Store) SetBlobStore(w container.BlobWriter, thresholdBytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobWriter = w
	s.blobThreshold = thresholdBytes
}

// New creates an empty store identified by canonicalName (the name that
// ends up in References' ContainerName field).
func New(canonicalName string) *Store {
	root := &Object{Path: "/", IsDataset: false}
	return &Store{
		name:     canonicalName,
		rootPath: "/",
		objects:  map[string]*Object{"/": root},
	}
}

// PutGroup creates a group at path, linking it under its parent.
func (s *Store) PutGroup(path string) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := &Object{Path: path}
	s.objects[path] = obj
	s.linkChild(path)
	return obj
}

// PutDataset creates a dataset at path with the given type tag, element
// size in bytes, and raw element data.
func (s *Store) PutDataset(path string, tag container.TypeTag, elemSize int, data []byte) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := &Object{Path: path, IsDataset: true, Dataset: &Dataset{Tag: tag, ElemSize: elemSize, Data: data}}
	s.objects[path] = obj
	s.linkChild(path)
	return obj
}

// PutAttribute attaches a single-element attribute to the object at path.
func (s *Store) PutAttribute(path, name string, tag container.TypeTag, value []byte) {
	s.PutAttributeElements(path, name, tag, value)
}

// PutAttributeElements attaches a multi-element attribute to the object at
// path; ReadAttribute returns every element in the order given here.
func (s *Store) PutAttributeElements(path, name string, tag container.TypeTag, values ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	if !ok {
		panic(fmt.Sprintf("memcore: PutAttribute on unknown path %q", path))
	}
	obj.Attributes = append(obj.Attributes, Attribute{Name: name, Tag: tag, Values: values})
}

func (s *Store) linkChild(path string) {
	parent := parentOf(path)
	p, ok := s.objects[parent]
	if !ok {
		p = &Object{Path: parent}
		s.objects[parent] = p
		if parent != "/" {
			s.linkChildLocked(parent)
		}
	}
	p.children = append(p.children, path)
}

func (s *Store) linkChildLocked(path string) {
	parent := parentOf(path)
	p, ok := s.objects[parent]
	if !ok {
		p = &Object{Path: parent}
		s.objects[parent] = p
	}
	p.children = append(p.children, path)
}

func parentOf(path string) string {
	i := lastSlash(path)
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

func lastSlash(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return i
		}
	}
	return -1
}

func basename(path string) string {
	i := lastSlash(path)
	return path[i+1:]
}

// CanonicalFilename implements container.Container.
func (s *Store) CanonicalFilename(ctx context.Context) (string, error) {
	return s.name, nil
}

type readCtx struct{}

func (readCtx) isReadContext() {}

// DefaultReadContext is the sole ReadContext memcore issues; it carries
// no snapshot or transaction state.
var DefaultReadContext container.ReadContext = readCtx{}

// VisitObjects implements container.Container via a stable depth-first
// pre-order walk over the objects reachable from root.
func (s *Store) VisitObjects(ctx context.Context, rcxt container.ReadContext, root string, fn container.Visitor) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visit(ctx, root, fn)
}

func (s *Store) visit(ctx context.Context, path string, fn container.Visitor) error {
	obj, ok := s.objects[path]
	if !ok {
		return container.ErrNotFound
	}
	if path != "/" {
		info := container.ObjectInfo{Path: path, Name: basename(path)}
		if obj.IsDataset {
			info.Kind = container.KindDataset
		} else {
			info.Kind = container.KindGroup
		}
		if err := fn(ctx, info); err != nil {
			return err
		}
	}
	children := append([]string(nil), obj.children...)
	sort.Strings(children)
	for _, c := range children {
		if err := s.visit(ctx, c, fn); err != nil {
			return err
		}
	}
	return nil
}

type objectHandle struct{ obj *Object }

func (objectHandle) isObjectHandle() {}

// OpenObject/CloseObject implement container.Container. memcore holds no
// external resource per open object, so these exist to satisfy the
// contract's open/close bracketing discipline.
func (s *Store) OpenObject(ctx context.Context, rcxt container.ReadContext, path string) (container.ObjectHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, container.ErrNotFound
	}
	return objectHandle{obj: obj}, nil
}

func (s *Store) CloseObject(ctx context.Context, h container.ObjectHandle) error {
	return nil
}

// IterateAttributes implements container.Container.
func (s *Store) IterateAttributes(ctx context.Context, rcxt container.ReadContext, path string) ([]container.AttrInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, container.ErrNotFound
	}
	out := make([]container.AttrInfo, 0, len(obj.Attributes))
	for _, a := range obj.Attributes {
		out = append(out, container.AttrInfo{Name: a.Name})
	}
	return out, nil
}

type attributeHandle struct {
	attr *Attribute
}

func (attributeHandle) isAttributeHandle() {}

// OpenAttribute/ReadAttribute/CloseAttribute implement container.Container.
func (s *Store) OpenAttribute(ctx context.Context, rcxt container.ReadContext, path, name string) (container.AttributeHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, container.ErrNotFound
	}
	for i := range obj.Attributes {
		if obj.Attributes[i].Name == name {
			return attributeHandle{attr: &obj.Attributes[i]}, nil
		}
	}
	return nil, container.ErrNotFound
}

func (s *Store) ReadAttribute(ctx context.Context, h container.AttributeHandle) (container.TypeTag, [][]byte, error) {
	ah, ok := h.(attributeHandle)
	if !ok {
		return 0, nil, &InvalidHandleError{}
	}
	return ah.attr.Tag, ah.attr.Values, nil
}

func (s *Store) CloseAttribute(ctx context.Context, h container.AttributeHandle) error {
	return nil
}

// SelectDatasetRegion implements container.Container by scanning every
// element of the dataset at path with match, returning the matching
// element offsets as a RegionSelection.
func (s *Store) SelectDatasetRegion(ctx context.Context, rcxt container.ReadContext, path string, match container.ElementPredicate) (*ref.RegionSelection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok || !obj.IsDataset {
		return nil, container.ErrNotFound
	}
	ds := obj.Dataset
	if ds.ElemSize <= 0 {
		return ref.NewRegionSelection(), nil
	}
	n := len(ds.Data) / ds.ElemSize
	var offsets []uint32
	for i := 0; i < n; i++ {
		elem := ds.Data[i*ds.ElemSize : (i+1)*ds.ElemSize]
		ok, err := match(ds.Tag, elem)
		if err != nil {
			return nil, err
		}
		if ok {
			offsets = append(offsets, uint32(i))
		}
	}
	return ref.NewRegionSelection(offsets...), nil
}

// CreateCoreBackedContainer implements container.Container, returning a
// fresh in-memory Store rooted under its own name.
func (s *Store) CreateCoreBackedContainer(ctx context.Context, name string) (container.Container, error) {
	return New(name), nil
}

type groupHandle struct {
	store *Store
	path  string
}

func (g groupHandle) Path() string { return g.path }
func (g groupHandle) Close() error { return nil }

// CreateAnonymousGroup implements container.Container: it creates a group
// under a synthetic path and returns a handle to it. The group is linked
// into the tree immediately (memcore has no notion of a detached,
// not-yet-linked object).
func (s *Store) CreateAnonymousGroup(ctx context.Context) (container.Group, error) {
	s.mu.Lock()
	n := len(s.objects)
	s.mu.Unlock()
	path := fmt.Sprintf("/__anon_%d", n)
	s.PutGroup(path)
	return groupHandle{store: s, path: path}, nil
}

// WriteDataset implements container.Container: it writes rows as a
// contiguous byte dataset under parent, named parent.Path()+"/"+name.
func (s *Store) WriteDataset(ctx context.Context, parent container.Group, name string, rows [][]byte) error {
	gh, ok := parent.(groupHandle)
	if !ok {
		return &InvalidHandleError{}
	}
	var buf []byte
	// Rows may have differing lengths (reference encodings are variable
	// length); store them length-prefixed so WriteDataset stays a single
	// flat byte dataset rather than needing a variable-stride Dataset shape.
	for _, r := range rows {
		var lenBuf [4]byte
		putUint32(lenBuf[:], uint32(len(r)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, r...)
	}
	path := gh.path + "/" + name

	s.mu.RLock()
	writer, threshold := s.blobWriter, s.blobThreshold
	s.mu.RUnlock()
	if writer != nil && threshold > 0 && len(buf) > threshold {
		key := fmt.Sprintf("containers/%s/materialized%s", s.name, path)
		if err := writer.WriteBlob(ctx, key, bytes.NewReader(buf), int64(len(buf))); err != nil {
			return fmt.Errorf("memcore: offload dataset %q to blob store: %w", path, err)
		}
		s.PutDataset(path, blobRefTag, 1, []byte(key))
		return nil
	}

	s.PutDataset(path, 0, 1, buf)
	return nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// InvalidHandleError reports a handle of the wrong concrete type being
// passed to a memcore method (e.g. a pgcontainer handle passed to a
// memcore Store).
type InvalidHandleError struct{}

func (e *InvalidHandleError) Error() string { return "memcore: handle does not belong to this store" }
