package callbacklist

import "weak"

// Handle is an opaque weak observer of a registered callback. It never
// extends the callback's lifetime by itself: once the list drops its
// strong reference to the underlying node (and no in-flight iterator
// holds one either), the node is reclaimed and the Handle reports absent.
//
// Handles are copyable and compare equal (via Live/the underlying pointer
// identity) when they reference the same node. A Handle obtained from a
// call that fell back to Append (see Insert) still identifies the node
// that was actually created.
type Handle[A any] struct {
	ptr weak.Pointer[node[A]]
}

func handleOf[A any](n *node[A]) Handle[A] {
	return Handle[A]{ptr: weak.Make(n)}
}

// Live reports whether the referenced node is still present in some list.
// A Handle to a removed node, or to a node that has since been garbage
// collected, reports false. A zero-value Handle is invalid from birth and
// always reports false.
func (h Handle[A]) Live() bool {
	n := h.ptr.Value()
	return n != nil && !n.removed()
}
