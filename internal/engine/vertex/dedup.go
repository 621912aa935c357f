package vertex

import "errors"

// MaxVerts is the number of distinct vertices a batch can hold with 16-bit
// indices.
const MaxVerts = 0xFFFF

// ErrFull is returned once a batch has no room for another distinct vertex.
var ErrFull = errors.New("vertex batch full")

// Deduplicator interns vertices for one batch: identical vertices always
// map to the same index.
type Deduplicator struct {
	verts []Vertex
	index map[Vertex]int
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{index: make(map[Vertex]int, 1024)}
}

// Add returns the index of v, appending it if it is new. It returns -1 and
// ErrFull once the batch would exceed MaxVerts vertices.
func (d *Deduplicator) Add(v Vertex) (int, error) {
	if i, ok := d.index[v]; ok {
		return i, nil
	}
	if len(d.verts) >= MaxVerts {
		return -1, ErrFull
	}
	i := len(d.verts)
	d.verts = append(d.verts, v)
	d.index[v] = i
	return i, nil
}

// Len returns the number of distinct vertices.
func (d *Deduplicator) Len() int {
	return len(d.verts)
}

// Vertices returns the interned vertices in index order.
func (d *Deduplicator) Vertices() []Vertex {
	return d.verts
}

// Vertex returns the vertex with index i.
func (d *Deduplicator) Vertex(i int) Vertex {
	return d.verts[i]
}

// Clear resets the deduplicator for the next batch.
func (d *Deduplicator) Clear() {
	d.verts = d.verts[:0]
	clear(d.index)
}

// Encode writes every vertex in index order.
func (d *Deduplicator) Encode() []byte {
	out := make([]byte, Size*len(d.verts))
	for i, v := range d.verts {
		v.Encode(out[i*Size:])
	}
	return out
}
