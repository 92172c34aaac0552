package psi

import "slices"

// ParentOfKind returns the closest strict ancestor of n whose kind is one of kinds
func ParentOfKind(n *Node, kinds ...Kind) *Node {
	if n == nil {
		return nil
	}
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if slices.Contains(kinds, cur.Kind) {
			return cur
		}
	}
	return nil
}

// ChildOfKind returns the first direct child of n with the given kind
func ChildOfKind(n *Node, kind Kind) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns the direct children of n with the given kind
func ChildrenOfKind(n *Node, kind Kind) []*Node {
	if n == nil {
		return nil
	}
	var result []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			result = append(result, c)
		}
	}
	return result
}

// FirstDescendantOfKind returns the first strict descendant of n, in document order, whose
// kind is one of kinds
func FirstDescendantOfKind(n *Node, kinds ...Kind) *Node {
	if n == nil {
		return nil
	}
	var found *Node
	walk(n, func(d *Node) bool {
		if found != nil {
			return false
		}
		if d != n && slices.Contains(kinds, d.Kind) {
			found = d
			return false
		}
		return true
	})
	return found
}

// DescendantsOfKind returns every strict descendant of n with the given kind in document order
func DescendantsOfKind(n *Node, kind Kind) []*Node {
	if n == nil {
		return nil
	}
	var result []*Node
	walk(n, func(d *Node) bool {
		if d != n && d.Kind == kind {
			result = append(result, d)
		}
		return true
	})
	return result
}

// DescendantsOfKindStopAt returns descendants of n with the given kind without entering
// nodes whose kind is in stop. The stop nodes themselves are not inspected further.
func DescendantsOfKindStopAt(n *Node, kind Kind, stop ...Kind) []*Node {
	if n == nil {
		return nil
	}
	var result []*Node
	walk(n, func(d *Node) bool {
		if d == n {
			return true
		}
		if d.Kind == kind {
			result = append(result, d)
		}
		return !slices.Contains(stop, d.Kind)
	})
	return result
}

// NextSiblingOfKind returns the first sibling after n with the given kind
func NextSiblingOfKind(n *Node, kind Kind) *Node {
	if n == nil || n.Parent == nil {
		return nil
	}
	siblings := n.Parent.Children
	idx := slices.Index(siblings, n)
	if idx < 0 {
		return nil
	}
	for _, s := range siblings[idx+1:] {
		if s.Kind == kind {
			return s
		}
	}
	return nil
}

// IsAncestor reports whether ancestor is a strict ancestor of n
func IsAncestor(ancestor, n *Node) bool {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// LeafAt returns the deepest node whose range contains offset. When two adjacent siblings
// both touch offset, the one starting at offset wins.
func LeafAt(root *Node, offset int) *Node {
	if root == nil || !root.Range.Contains(offset) {
		return nil
	}
	cur := root
	for {
		var next *Node
		for _, c := range cur.Children {
			if c.Range.Contains(offset) {
				next = c
				if c.Range.Start == offset || offset < c.Range.End {
					break
				}
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// Walk visits n and its descendants depth-first in document order. Returning false from
// visit skips the children of the visited node.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	walk(n, visit)
}

func walk(n *Node, visit func(*Node) bool) {
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, visit)
	}
}
