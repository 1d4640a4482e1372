package perimeters

import (
	"fmt"
	"sort"
	"strings"

	"worksafety/core/apperr"
	"worksafety/core/store"
)

const labelIndent = "--- "

// Node is one perimeter held by a Tree. ParentID is 0 for roots.
type Node struct {
	ID           int64
	ParentID     int64
	SiteID       *int64
	DisplayOrder int
	ExternalID   string
	Name         string
}

func (n Node) String() string {
	return fmt.Sprintf("[%s] %s", n.ExternalID, n.Name)
}

// Tree is an arena of perimeters keyed by id. Parents missing from the arena
// make their children roots.
type Tree struct {
	nodes    map[int64]*Node
	children map[int64][]int64
}

func NewTree(items []store.Perimeter) *Tree {
	t := &Tree{nodes: make(map[int64]*Node, len(items)), children: map[int64][]int64{}}
	for i := range items {
		t.Put(nodeFromPerimeter(&items[i]))
	}
	return t
}

func nodeFromPerimeter(p *store.Perimeter) Node {
	n := Node{ID: p.ID, SiteID: p.SiteID, DisplayOrder: p.DisplayOrder, ExternalID: p.ExternalID, Name: p.Name}
	if p.ParentID != nil {
		n.ParentID = *p.ParentID
	}
	return n
}

// Put inserts or replaces a node.
func (t *Tree) Put(n Node) {
	if old, ok := t.nodes[n.ID]; ok {
		t.children[old.ParentID] = removeID(t.children[old.ParentID], n.ID)
	}
	node := n
	t.nodes[n.ID] = &node
	t.children[n.ParentID] = append(t.children[n.ParentID], n.ID)
}

func (t *Tree) Get(id int64) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) parent(n *Node) *Node {
	if n.ParentID == 0 {
		return nil
	}
	return t.nodes[n.ParentID]
}

// Depth is the number of ancestors of id present in the arena.
func (t *Tree) Depth(id int64) int {
	n, ok := t.nodes[id]
	if !ok {
		return 0
	}
	depth := 0
	for p := t.parent(n); p != nil && depth <= len(t.nodes); p = t.parent(p) {
		depth++
	}
	return depth
}

// Label renders id indented by its depth, e.g. "--- --- [Z3] Loading bay".
func (t *Tree) Label(id int64) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	return strings.Repeat(labelIndent, t.Depth(id)) + n.String()
}

// Ordered walks the forest depth-first, siblings by display order then id.
func (t *Tree) Ordered() []Node {
	out := make([]Node, 0, len(t.nodes))
	seen := make(map[int64]bool, len(t.nodes))
	var walk func(parent int64)
	walk = func(parent int64) {
		for _, id := range t.sortedChildren(parent) {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, *t.nodes[id])
			walk(id)
		}
	}
	walk(0)
	// orphans whose parent is outside the arena
	var orphans []int64
	for id, n := range t.nodes {
		if n.ParentID != 0 && t.nodes[n.ParentID] == nil && !seen[id] {
			orphans = append(orphans, id)
		}
	}
	t.sortIDs(orphans)
	for _, id := range orphans {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, *t.nodes[id])
		walk(id)
	}
	return out
}

func (t *Tree) sortedChildren(parent int64) []int64 {
	ids := append([]int64(nil), t.children[parent]...)
	t.sortIDs(ids)
	return ids
}

func (t *Tree) sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := t.nodes[ids[i]], t.nodes[ids[j]]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.ID < b.ID
	})
}

// WouldCycle reports whether making parentID the parent of id closes a loop.
func (t *Tree) WouldCycle(id, parentID int64) bool {
	if parentID == 0 {
		return false
	}
	if id != 0 && id == parentID {
		return true
	}
	steps := 0
	for cur := t.nodes[parentID]; cur != nil && steps <= len(t.nodes); cur = t.parent(cur) {
		if id != 0 && cur.ID == id {
			return true
		}
		steps++
	}
	return false
}

// CheckSite enforces that a child of a site-bound parent carries the same site.
func CheckSite(parentSite, site *int64) error {
	if parentSite == nil {
		return nil
	}
	if site == nil || *site != *parentSite {
		return apperr.Invalid("site_id", "perimeters.siteMismatch", "site does not match the site of the parent perimeter")
	}
	return nil
}

func sameSite(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
