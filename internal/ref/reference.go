// Package ref implements the typed reference values described in spec.md
// §3/§4.3 (component C3): portable handles to an object, an attribute, or a
// dataset region, each scoped to a named container.
package ref

import "fmt"

// Kind discriminates the three reference shapes.
type Kind uint8

const (
	Object Kind = iota
	Attribute
	DatasetRegion
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "Object"
	case Attribute:
		return "Attribute"
	case DatasetRegion:
		return "DatasetRegion"
	default:
		return "Unknown"
	}
}

// Reference is a tagged union over {Object, Attribute, DatasetRegion}. It is
// modeled as one struct with a discriminant, matching spec.md §9's
// tagged-variant guidance.
type Reference struct {
	kind          Kind
	containerName string
	objectPath    string
	attrName      string           // Attribute only
	selection     *RegionSelection // DatasetRegion only
}

// NewObjectRef builds a reference to an object (group, dataset, or
// committed datatype) at objectPath within containerName.
func NewObjectRef(containerName, objectPath string) *Reference {
	return &Reference{kind: Object, containerName: containerName, objectPath: objectPath}
}

// NewAttributeRef builds a reference to a named attribute on objectPath.
func NewAttributeRef(containerName, objectPath, attrName string) *Reference {
	return &Reference{kind: Attribute, containerName: containerName, objectPath: objectPath, attrName: attrName}
}

// NewDatasetRegionRef builds a reference to a sub-region of a dataset. The
// reference takes ownership of selection.
func NewDatasetRegionRef(containerName, objectPath string, selection *RegionSelection) *Reference {
	return &Reference{kind: DatasetRegion, containerName: containerName, objectPath: objectPath, selection: selection}
}

func (r *Reference) Kind() Kind             { return r.kind }
func (r *Reference) ContainerName() string  { return r.containerName }
func (r *Reference) ObjectPath() string     { return r.objectPath }
func (r *Reference) AttrName() string       { return r.attrName }
func (r *Reference) Selection() *RegionSelection {
	return r.selection
}

// CanonicalKey returns the identity key used for set-algebra membership
// tests in spec.md §4.2's AND-combination: (container_name, object_path) for
// object/region refs, plus attr_name for attribute refs.
func (r *Reference) CanonicalKey() string {
	if r.kind == Attribute {
		return fmt.Sprintf("%s\x00%s\x00%s", r.containerName, r.objectPath, r.attrName)
	}
	return fmt.Sprintf("%s\x00%s", r.containerName, r.objectPath)
}

// String renders a human-readable form for logging and test failure output.
func (r *Reference) String() string {
	switch r.kind {
	case Attribute:
		return fmt.Sprintf("Attribute(%s:%s#%s)", r.containerName, r.objectPath, r.attrName)
	case DatasetRegion:
		return fmt.Sprintf("DatasetRegion(%s:%s, %d elements)", r.containerName, r.objectPath, r.selection.Len())
	default:
		return fmt.Sprintf("Object(%s:%s)", r.containerName, r.objectPath)
	}
}
