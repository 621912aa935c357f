// Package tjoint finds T-junctions between face edges and records the joint
// vertices a coarse face needs so it shares every point its finer neighbors
// place on its edges.
package tjoint

import "github.com/Faultbox/octabuild/internal/engine/octree"

// Joint is one extra vertex on a face edge.
type Joint struct {
	// Edge packs the face orientation and the polygon edge index.
	Edge int
	// Offset counts reduced-slope steps from the edge's start vertex.
	Offset int32
	// Next indexes the following joint of the same node, or -1.
	Next int
}

// EdgeID packs an orientation and an edge index into a joint edge id.
func EdgeID(orient, index int) int {
	return orient*(octree.MaxFaceVerts+1) + index
}

// SplitEdge unpacks a joint edge id.
func SplitEdge(edge int) (orient, index int) {
	return edge / (octree.MaxFaceVerts + 1), edge % (octree.MaxFaceVerts + 1)
}

// Arena stores the joint lists of one build. Lists are addressed by the
// index of their first joint, which stays valid while the arena grows.
type Arena struct {
	joints []Joint
}

// Reset drops all joints.
func (a *Arena) Reset() {
	a.joints = a.joints[:0]
}

// Len returns the number of stored joints.
func (a *Arena) Len() int {
	return len(a.joints)
}

// At returns the joint at index i.
func (a *Arena) At(i int) Joint {
	return a.joints[i]
}

// appendList stores joints as one linked list and returns its head.
func (a *Arena) appendList(list []Joint) int {
	if len(list) == 0 {
		return -1
	}
	head := len(a.joints)
	for i, j := range list {
		j.Next = -1
		if i+1 < len(list) {
			j.Next = head + i + 1
		}
		a.joints = append(a.joints, j)
	}
	return head
}

// Edge returns the offsets of the joints on one face edge, ascending.
func (a *Arena) Edge(head, orient, index int) []int32 {
	id := EdgeID(orient, index)
	var offs []int32
	for i := head; i >= 0; i = a.joints[i].Next {
		j := a.joints[i]
		if j.Edge == id {
			offs = append(offs, j.Offset)
		} else if j.Edge > id {
			break
		}
	}
	return offs
}

// HasFace reports whether any joint lies on a face of the given orientation.
func (a *Arena) HasFace(head, orient int) bool {
	lo, hi := EdgeID(orient, 0), EdgeID(orient+1, 0)
	for i := head; i >= 0; i = a.joints[i].Next {
		if e := a.joints[i].Edge; e >= lo && e < hi {
			return true
		}
	}
	return false
}
