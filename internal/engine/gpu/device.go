package gpu

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/internal/logger"
)

// Device creates static GL buffer objects. It requires a current context.
type Device struct {
	live  map[uint32]int // handle to byte size
	bytes int
}

var _ va.Device = (*Device)(nil)

// NewDevice returns a device using the current GL context.
func NewDevice() *Device {
	return &Device{live: make(map[uint32]int)}
}

func target(kind va.BufferKind) uint32 {
	if kind.IsIndex() {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

// CreateBuffer uploads data into a new buffer object.
func (d *Device) CreateBuffer(kind va.BufferKind, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty %s buffer", kind)
	}
	var handle uint32
	gl.GenBuffers(1, &handle)
	if handle == 0 {
		return 0, fmt.Errorf("glGenBuffers returned no name for %s buffer", kind)
	}
	t := target(kind)
	gl.BindBuffer(t, handle)
	gl.BufferData(t, len(data), unsafe.Pointer(&data[0]), gl.STATIC_DRAW)
	gl.BindBuffer(t, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteBuffers(1, &handle)
		if code == gl.OUT_OF_MEMORY {
			return 0, fmt.Errorf("%w: %s buffer of %d bytes", va.ErrOutOfMemory, kind, len(data))
		}
		return 0, fmt.Errorf("GL error 0x%x creating %s buffer", code, kind)
	}

	d.live[handle] = len(data)
	d.bytes += len(data)
	logger.Debug("buffer created",
		zap.Stringer("kind", kind),
		zap.Uint32("handle", handle),
		zap.Int("bytes", len(data)))
	return handle, nil
}

// DeleteBuffer deletes a buffer object. Unknown handles are ignored.
func (d *Device) DeleteBuffer(handle uint32) {
	size, ok := d.live[handle]
	if !ok {
		return
	}
	gl.DeleteBuffers(1, &handle)
	delete(d.live, handle)
	d.bytes -= size
}

// Live returns the number of live buffer objects and their total size.
func (d *Device) Live() (buffers, bytes int) {
	return len(d.live), d.bytes
}
