package quadtree

import (
	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
)

const noChild = -1

// Child quadrant order used when a node splits.
const (
	TopRight = iota
	TopLeft
	BottomLeft
	BottomRight
)

// Item is a bounding box with the payload it stands for.
type Item[T comparable] struct {
	Bounds geom.Rect
	Value  T
}

type node[T comparable] struct {
	bounds   geom.Rect
	level    int
	objects  []Item[T]
	children [4]int
}

func (n *node[T]) leaf() bool { return n.children[0] == noChild }

// Tree is a region quadtree. Nodes live in an arena and refer to their
// children by index; node 0 is the root.
//
// A rectangle that spans a quadrant boundary is stored in every quadrant it
// touches, so Retrieve can return the same payload more than once.
type Tree[T comparable] struct {
	nodes      []node[T]
	bounds     geom.Rect
	maxObjects int
	maxLevels  int
}

func New[T comparable](bounds geom.Rect, maxObjects, maxLevels int) *Tree[T] {
	if maxObjects < 1 {
		maxObjects = 1
	}
	t := &Tree[T]{bounds: bounds, maxObjects: maxObjects, maxLevels: maxLevels}
	t.Clear()
	return t
}

func (t *Tree[T]) Bounds() geom.Rect { return t.bounds }

// Clear drops every object and collapses the tree to an empty root.
func (t *Tree[T]) Clear() {
	t.nodes = t.nodes[:0]
	t.nodes = append(t.nodes, t.newNode(t.bounds, 0))
}

func (t *Tree[T]) newNode(bounds geom.Rect, level int) node[T] {
	return node[T]{bounds: bounds, level: level, children: [4]int{noChild, noChild, noChild, noChild}}
}

// Insert adds it to every leaf region its bounds overlap.
func (t *Tree[T]) Insert(it Item[T]) {
	t.insert(0, it)
}

func (t *Tree[T]) insert(id int, it Item[T]) {
	n := &t.nodes[id]
	if !n.leaf() {
		if !t.insertIntoChildren(id, it) {
			t.nodes[id].objects = append(t.nodes[id].objects, it)
		}
		return
	}

	if len(n.objects)+1 > t.maxObjects && n.level < t.maxLevels {
		t.split(id)
		if !t.insertIntoChildren(id, it) {
			t.nodes[id].objects = append(t.nodes[id].objects, it)
		}
		return
	}
	n.objects = append(n.objects, it)
}

// insertIntoChildren reports whether it overlapped at least one child.
func (t *Tree[T]) insertIntoChildren(id int, it Item[T]) bool {
	placed := false
	for _, c := range t.nodes[id].children {
		if t.nodes[c].bounds.Intersects(it.Bounds) {
			t.insert(c, it)
			placed = true
		}
	}
	return placed
}

// split creates the four quadrants of a leaf and pushes its objects down.
// Objects that fall outside every quadrant stay on the node.
func (t *Tree[T]) split(id int) {
	b := t.nodes[id].bounds
	level := t.nodes[id].level + 1
	hw, hh := b.W/2, b.H/2

	quads := [4]geom.Rect{
		TopRight:    {X: b.X + hw, Y: b.Y, W: hw, H: hh},
		TopLeft:     {X: b.X, Y: b.Y, W: hw, H: hh},
		BottomLeft:  {X: b.X, Y: b.Y + hh, W: hw, H: hh},
		BottomRight: {X: b.X + hw, Y: b.Y + hh, W: hw, H: hh},
	}
	var children [4]int
	for i, q := range quads {
		children[i] = len(t.nodes)
		t.nodes = append(t.nodes, t.newNode(q, level))
	}

	old := t.nodes[id].objects
	t.nodes[id].children = children
	t.nodes[id].objects = nil
	for _, it := range old {
		if !t.insertIntoChildren(id, it) {
			t.nodes[id].objects = append(t.nodes[id].objects, it)
		}
	}
}

// Retrieve returns every item stored in a region that overlaps query. The
// test is bounding-box only and the result may contain duplicates.
func (t *Tree[T]) Retrieve(query geom.Rect) []Item[T] {
	var out []Item[T]
	stack := []int{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		out = append(out, n.objects...)
		if n.leaf() {
			continue
		}
		for _, c := range n.children {
			if t.nodes[c].bounds.Intersects(query) {
				stack = append(stack, c)
			}
		}
	}
	return out
}

// RetrieveUnique is Retrieve with duplicates removed, keeping the first
// occurrence of each payload.
func (t *Tree[T]) RetrieveUnique(query geom.Rect) []Item[T] {
	all := t.Retrieve(query)
	seen := make(map[T]struct{}, len(all))
	out := all[:0]
	for _, it := range all {
		if _, ok := seen[it.Value]; ok {
			continue
		}
		seen[it.Value] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Remove deletes every entry carrying v and reports whether any existed.
// Empty quadrants are left in place; Clear reclaims them.
func (t *Tree[T]) Remove(v T) bool {
	removed := false
	for i := range t.nodes {
		objs := t.nodes[i].objects
		kept := objs[:0]
		for _, it := range objs {
			if it.Value == v {
				removed = true
				continue
			}
			kept = append(kept, it)
		}
		clear(objs[len(kept):])
		t.nodes[i].objects = kept
	}
	return removed
}

// Len returns the number of distinct payloads in the tree.
func (t *Tree[T]) Len() int {
	seen := make(map[T]struct{})
	for i := range t.nodes {
		for _, it := range t.nodes[i].objects {
			seen[it.Value] = struct{}{}
		}
	}
	return len(seen)
}

// NodeCount returns the number of allocated nodes, root included.
func (t *Tree[T]) NodeCount() int { return len(t.nodes) }
