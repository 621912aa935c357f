package va

import (
	"errors"
	"fmt"
)

// BufferKind identifies one of the four staging buffers.
type BufferKind uint8

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
	SkyBuffer
	DecalBuffer
	numBufferKinds
)

// String returns the buffer kind name.
func (k BufferKind) String() string {
	switch k {
	case VertexBuffer:
		return "vertex"
	case IndexBuffer:
		return "index"
	case SkyBuffer:
		return "sky"
	case DecalBuffer:
		return "decal"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsIndex reports whether the buffer holds 16-bit indices.
func (k BufferKind) IsIndex() bool {
	return k != VertexBuffer
}

// Device errors.
var (
	ErrBufferCreate = errors.New("buffer creation failed")
	ErrOutOfMemory  = errors.New("device out of memory")
)

// Device is the GPU resource layer. It creates static buffer objects from
// byte slices and deletes them again.
type Device interface {
	CreateBuffer(kind BufferKind, data []byte) (uint32, error)
	DeleteBuffer(handle uint32)
}

// MemoryDevice keeps buffers in host memory. It backs headless builds and
// tests.
type MemoryDevice struct {
	// Limit caps the total live bytes; zero means unlimited.
	Limit int

	buffers map[uint32][]byte
	next    uint32
	live    int

	Created int
	Deleted int
}

// NewMemoryDevice creates an empty memory device.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{buffers: make(map[uint32][]byte)}
}

// CreateBuffer stores a copy of data under a new handle.
func (d *MemoryDevice) CreateBuffer(kind BufferKind, data []byte) (uint32, error) {
	if d.Limit > 0 && d.live+len(data) > d.Limit {
		return 0, fmt.Errorf("%w: %s buffer of %d bytes", ErrOutOfMemory, kind, len(data))
	}
	d.next++
	d.buffers[d.next] = append([]byte(nil), data...)
	d.live += len(data)
	d.Created++
	return d.next, nil
}

// DeleteBuffer frees a buffer. Unknown handles are ignored.
func (d *MemoryDevice) DeleteBuffer(handle uint32) {
	data, ok := d.buffers[handle]
	if !ok {
		return
	}
	d.live -= len(data)
	delete(d.buffers, handle)
	d.Deleted++
}

// Buffer returns the contents of a live buffer.
func (d *MemoryDevice) Buffer(handle uint32) ([]byte, bool) {
	data, ok := d.buffers[handle]
	return data, ok
}

// Live returns the number of live buffers.
func (d *MemoryDevice) Live() int {
	return len(d.buffers)
}
