// Package orgtree derives a rooted reporting tree from a flat member list and
// validates reparent requests against it.
package orgtree

// Role is a categorical rank of a member.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// DefaultTopLevelRole is used when no catalog overrides it.
const DefaultTopLevelRole = RoleOwner

// Member is a snapshot of one profile row.
type Member struct {
	ID        string
	FullName  string
	Email     string
	Role      Role
	ReportsTo string
	IsActive  bool
}

// HasManager reports whether ReportsTo is set. It does not check that the
// referenced member exists.
func (m Member) HasManager() bool {
	return m.ReportsTo != ""
}

// Node wraps a member with its immediate reports in input order.
type Node struct {
	Member   Member
	Children []*Node
}

// Tree is a disposable index over a member snapshot.
type Tree struct {
	Root *Node

	// Detached holds root candidates that lost the root election, with their
	// own subtrees.
	Detached []*Node

	// Excluded lists members whose reportsTo chain never reaches a root
	// candidate, in input order.
	Excluded []string

	// Duplicates lists ids seen more than once; the first occurrence wins.
	Duplicates []string

	index map[string]*Node
}

// Node returns the node for id if it is part of the tree.
func (t *Tree) Node(id string) (*Node, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.index[id]
	return n, ok
}

// Len counts nodes reachable from the root and from detached branches.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.index)
}

// Walk visits the root subtree depth-first, then every detached branch.
// Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	if t == nil || t.Root == nil {
		return
	}
	if !walk(t.Root, 0, fn) {
		return
	}
	for _, d := range t.Detached {
		if !walk(d, 0, fn) {
			return
		}
	}
}

func walk(n *Node, depth int, fn func(n *Node, depth int) bool) bool {
	if !fn(n, depth) {
		return false
	}
	for _, child := range n.Children {
		if !walk(child, depth+1, fn) {
			return false
		}
	}
	return true
}

type options struct {
	topLevel Role
}

// Option customizes BuildTree.
type Option func(*options)

// WithTopLevelRole overrides which role is preferred for the root.
func WithTopLevelRole(role Role) Option {
	return func(o *options) {
		if role != "" {
			o.topLevel = role
		}
	}
}

type anchor uint8

const (
	anchorUnknown anchor = iota
	anchorRooted
	anchorCyclic
)

// BuildTree returns nil for an empty input and never fails otherwise.
func BuildTree(members []Member, opts ...Option) *Tree {
	if len(members) == 0 {
		return nil
	}

	o := options{topLevel: DefaultTopLevelRole}
	for _, opt := range opts {
		opt(&o)
	}

	byID := make(map[string]Member, len(members))
	ordered := make([]Member, 0, len(members))
	tree := &Tree{}
	for _, m := range members {
		if _, ok := byID[m.ID]; ok {
			tree.Duplicates = append(tree.Duplicates, m.ID)
			continue
		}
		byID[m.ID] = m
		ordered = append(ordered, m)
	}

	isCandidate := func(m Member) bool {
		if !m.HasManager() {
			return true
		}
		_, ok := byID[m.ReportsTo]
		return !ok
	}

	var candidates []Member
	for _, m := range ordered {
		if isCandidate(m) {
			candidates = append(candidates, m)
		}
	}

	root, fallback := electRoot(ordered, candidates, o.topLevel)

	state := make(map[string]anchor, len(ordered))
	for _, c := range candidates {
		state[c.ID] = anchorRooted
	}
	for _, m := range ordered {
		resolveAnchor(m.ID, byID, state, len(ordered))
	}
	if fallback {
		state[root.ID] = anchorRooted
	}

	tree.index = make(map[string]*Node, len(ordered))
	for _, m := range ordered {
		if state[m.ID] != anchorRooted {
			tree.Excluded = append(tree.Excluded, m.ID)
			continue
		}
		tree.index[m.ID] = &Node{Member: m}
	}

	for _, m := range ordered {
		n, ok := tree.index[m.ID]
		if !ok {
			continue
		}
		switch {
		case m.ID == root.ID:
			tree.Root = n
		case isCandidate(m):
			tree.Detached = append(tree.Detached, n)
		default:
			parent := tree.index[m.ReportsTo]
			parent.Children = append(parent.Children, n)
		}
	}

	return tree
}

// electRoot applies the root policy. fallback is true when no member lacks a
// resolvable parent.
func electRoot(ordered, candidates []Member, topLevel Role) (Member, bool) {
	if len(candidates) > 0 {
		for _, c := range candidates {
			if c.Role == topLevel {
				return c, false
			}
		}
		return candidates[0], false
	}
	for _, m := range ordered {
		if m.Role == topLevel {
			return m, true
		}
	}
	return ordered[0], true
}

// resolveAnchor follows the reportsTo chain from id until it meets a member
// with a known state, then labels the whole path. The walk is bounded by limit
// so stored cycles cannot spin forever.
func resolveAnchor(id string, byID map[string]Member, state map[string]anchor, limit int) {
	if state[id] != anchorUnknown {
		return
	}

	path := make([]string, 0, 8)
	onPath := make(map[string]struct{}, 8)
	result := anchorCyclic
	cur := id
	for steps := 0; steps <= limit; steps++ {
		if s := state[cur]; s != anchorUnknown {
			result = s
			break
		}
		if _, seen := onPath[cur]; seen {
			break
		}
		path = append(path, cur)
		onPath[cur] = struct{}{}
		cur = byID[cur].ReportsTo
	}

	for _, p := range path {
		state[p] = result
	}
}
