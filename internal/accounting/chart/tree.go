package chart

import (
	"fmt"
	"sort"
)

// Node is one group in the arena together with its direct children.
type Node struct {
	Group    AccountGroup
	Children []int64
	Ledgers  []Ledger
}

// Tree is an arena of groups indexed by id. Parent links are ids, never
// pointers, and every mutation re-checks that no group is its own ancestor.
type Tree struct {
	nodes map[int64]*Node
	roots []int64
}

// NewTree builds a tree from flat rows. Groups may arrive in any order.
func NewTree(groups []AccountGroup, ledgers []Ledger) (*Tree, error) {
	t := &Tree{nodes: make(map[int64]*Node, len(groups))}
	for _, g := range groups {
		if _, dup := t.nodes[g.ID]; dup {
			return nil, fmt.Errorf("chart: duplicate group id %d", g.ID)
		}
		if g.ParentID != nil && *g.ParentID == g.ID {
			return nil, ErrSelfParent
		}
		t.nodes[g.ID] = &Node{Group: g}
	}
	for _, g := range groups {
		if g.ParentID == nil {
			t.roots = append(t.roots, g.ID)
			continue
		}
		parent, ok := t.nodes[*g.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: parent %d of group %d", ErrGroupNotFound, *g.ParentID, g.ID)
		}
		parent.Children = append(parent.Children, g.ID)
	}
	if err := t.checkAcyclic(); err != nil {
		return nil, err
	}
	for _, l := range ledgers {
		if err := t.AddLedger(l); err != nil {
			return nil, err
		}
	}
	t.sortChildren()
	return t, nil
}

// Add inserts a new group under an existing parent.
func (t *Tree) Add(g AccountGroup) error {
	if _, dup := t.nodes[g.ID]; dup {
		return fmt.Errorf("chart: duplicate group id %d", g.ID)
	}
	if g.ParentID != nil {
		if *g.ParentID == g.ID {
			return ErrSelfParent
		}
		parent, ok := t.nodes[*g.ParentID]
		if !ok {
			return ErrGroupNotFound
		}
		parent.Children = append(parent.Children, g.ID)
	} else {
		t.roots = append(t.roots, g.ID)
	}
	t.nodes[g.ID] = &Node{Group: g}
	t.sortChildren()
	return nil
}

// AddLedger attaches a ledger to its group.
func (t *Tree) AddLedger(l Ledger) error {
	node, ok := t.nodes[l.GroupID]
	if !ok {
		return fmt.Errorf("%w: group %d of ledger %d", ErrGroupNotFound, l.GroupID, l.ID)
	}
	if l.Nature == "" {
		l.Nature = t.rootNature(l.GroupID)
	}
	node.Ledgers = append(node.Ledgers, l)
	return nil
}

// Move re-parents a group. A nil parent makes it top-level.
func (t *Tree) Move(id int64, parentID *int64) error {
	node, ok := t.nodes[id]
	if !ok {
		return ErrGroupNotFound
	}
	if parentID != nil {
		if *parentID == id {
			return ErrSelfParent
		}
		if _, ok := t.nodes[*parentID]; !ok {
			return ErrGroupNotFound
		}
		for _, desc := range t.Descendants(id) {
			if desc == *parentID {
				return ErrCycle
			}
		}
	}
	t.detach(id)
	node.Group.ParentID = parentID
	if parentID == nil {
		t.roots = append(t.roots, id)
	} else {
		parent := t.nodes[*parentID]
		parent.Children = append(parent.Children, id)
	}
	t.sortChildren()
	return nil
}

// Node returns the node for a group id.
func (t *Tree) Node(id int64) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Roots returns top-level groups ordered by code.
func (t *Tree) Roots() []AccountGroup {
	out := make([]AccountGroup, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.nodes[id].Group)
	}
	return out
}

// Children returns direct sub-groups ordered by code.
func (t *Tree) Children(id int64) []AccountGroup {
	node, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]AccountGroup, 0, len(node.Children))
	for _, child := range node.Children {
		out = append(out, t.nodes[child].Group)
	}
	return out
}

// Path returns the chain from the top-level ancestor down to id.
func (t *Tree) Path(id int64) []AccountGroup {
	var path []AccountGroup
	for cur, ok := t.nodes[id]; ok; {
		path = append(path, cur.Group)
		if cur.Group.ParentID == nil {
			break
		}
		cur, ok = t.nodes[*cur.Group.ParentID]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Root returns the top-level ancestor of id.
func (t *Tree) Root(id int64) (AccountGroup, bool) {
	path := t.Path(id)
	if len(path) == 0 {
		return AccountGroup{}, false
	}
	return path[0], true
}

// Descendants returns every group below id, depth first.
func (t *Tree) Descendants(id int64) []int64 {
	node, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var out []int64
	stack := append([]int64(nil), node.Children...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		stack = append(stack, t.nodes[cur].Children...)
	}
	return out
}

// NatureOf returns the nature of a group.
func (t *Tree) NatureOf(id int64) (Nature, bool) {
	node, ok := t.nodes[id]
	if !ok {
		return "", false
	}
	return node.Group.Nature, true
}

// Walk visits groups depth first in code order.
func (t *Tree) Walk(fn func(depth int, node *Node)) {
	var visit func(id int64, depth int)
	visit = func(id int64, depth int) {
		node := t.nodes[id]
		fn(depth, node)
		for _, child := range node.Children {
			visit(child, depth+1)
		}
	}
	for _, id := range t.roots {
		visit(id, 0)
	}
}

// Len returns the number of groups.
func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) rootNature(id int64) Nature {
	if root, ok := t.Root(id); ok {
		return root.Nature
	}
	return ""
}

func (t *Tree) detach(id int64) {
	node := t.nodes[id]
	if node.Group.ParentID == nil {
		t.roots = without(t.roots, id)
		return
	}
	if parent, ok := t.nodes[*node.Group.ParentID]; ok {
		parent.Children = without(parent.Children, id)
	}
}

func (t *Tree) checkAcyclic() error {
	done := make(map[int64]bool, len(t.nodes))
	for id := range t.nodes {
		seen := make(map[int64]bool)
		cur := id
		for !done[cur] {
			if seen[cur] {
				return ErrCycle
			}
			seen[cur] = true
			parent := t.nodes[cur].Group.ParentID
			if parent == nil {
				break
			}
			cur = *parent
		}
		for v := range seen {
			done[v] = true
		}
	}
	return nil
}

func (t *Tree) sortChildren() {
	byCode := func(ids []int64) {
		sort.Slice(ids, func(i, j int) bool {
			return t.nodes[ids[i]].Group.Code < t.nodes[ids[j]].Group.Code
		})
	}
	byCode(t.roots)
	for _, node := range t.nodes {
		byCode(node.Children)
		sort.Slice(node.Ledgers, func(i, j int) bool { return node.Ledgers[i].Code < node.Ledgers[j].Code })
	}
}

func without(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
