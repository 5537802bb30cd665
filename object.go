package sym

import "fmt"

// Object describes a memory object read by a dereference: its start address
// in the traced program and its declared size in bytes.
type Object struct {
	Start uint64
	Size  uint32
}

// NewObject returns a new instance of Object.
func NewObject(start uint64, size uint32) *Object {
	assert(size > 0, "object: invalid size %d", size)
	return &Object{Start: start, Size: size}
}

// Clone returns a copy of the object descriptor.
func (o *Object) Clone() *Object {
	other := *o
	return &other
}

// Equal returns true if both descriptors cover the same region.
func (o *Object) Equal(other *Object) bool {
	return o.Start == other.Start && o.Size == other.Size
}

// String returns the string representation of the object.
func (o *Object) String() string {
	return fmt.Sprintf("(obj 0x%x %d)", o.Start, o.Size)
}
