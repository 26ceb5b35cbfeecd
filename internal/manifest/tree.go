package manifest

// Node is one manifest entry linked to its parent and children.
type Node struct {
	Entry
	Parent   *Node
	Children []*Node
}

// Tree is the explicit form of a flat manifest, built once per run.
type Tree struct {
	Roots []*Node
	// Orphans are nested entries whose parent is not listed. They are never run.
	Orphans []*Node
	index   map[string]*Node
}

// BuildTree links every nested entry to the entry named by its parent path.
// Children keep stored order. Duplicate names keep the first occurrence.
func BuildTree(entries []Entry) *Tree {
	tree := &Tree{index: make(map[string]*Node, len(entries))}
	nodes := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "" || entry.Name == reservedName {
			continue
		}
		if _, dup := tree.index[entry.Name]; dup {
			continue
		}
		node := &Node{Entry: entry}
		tree.index[entry.Name] = node
		nodes = append(nodes, node)
	}
	for _, node := range nodes {
		parentName := ParentName(node.Name)
		if parentName == "" {
			tree.Roots = append(tree.Roots, node)
			continue
		}
		parent, ok := tree.index[parentName]
		if !ok {
			tree.Orphans = append(tree.Orphans, node)
			continue
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
	}
	return tree
}

// Lookup returns the node for name.
func (t *Tree) Lookup(name string) (*Node, bool) {
	if t == nil {
		return nil, false
	}
	node, ok := t.index[name]
	return node, ok
}

// Len returns the number of nodes in the tree, orphans included.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.index)
}

// Walk visits nodes depth-first in stored order until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	if t == nil {
		return
	}
	var visit func(nodes []*Node) bool
	visit = func(nodes []*Node) bool {
		for _, node := range nodes {
			if !fn(node) {
				return false
			}
			if !visit(node.Children) {
				return false
			}
		}
		return true
	}
	visit(t.Roots)
}

// AncestorsEnabled reports whether every ancestor of n is enabled.
func (n *Node) AncestorsEnabled() bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if !p.Enabled {
			return false
		}
	}
	return true
}
