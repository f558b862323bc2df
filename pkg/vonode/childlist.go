package vonode

// childList is the two-state wrapper the REDESIGN FLAGS call for: "unloaded"
// (children were never fetched) must stay distinguishable from "loaded, and
// happens to be empty" (an empty container). Collapsing the two to a single
// nil/empty slice would make an unloaded container indistinguishable from an
// empty one and invite a silent, repeated re-fetch.
type childList struct {
	loaded bool
	nodes  []*Node
	seen   map[string]struct{} // child URI -> present, for duplicate suppression during paginated load
}

func unloadedChildren() childList {
	return childList{}
}

func (c *childList) reset() {
	c.loaded = true
	c.nodes = nil
	c.seen = make(map[string]struct{})
}

// append adds child unless a node with the same URI was already appended
// (spec.md §4.5: "duplicate child URIs are not emitted to the list during
// paginated load"). Returns true if the child was newly added.
func (c *childList) append(child *Node) bool {
	if !c.loaded {
		c.reset()
	}
	if _, dup := c.seen[child.URI]; dup {
		return false
	}
	c.seen[child.URI] = struct{}{}
	c.nodes = append(c.nodes, child)
	return true
}
