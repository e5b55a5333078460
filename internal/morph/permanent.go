package morph

import "gihan9a/morphcast/internal/dom"

// DefaultPermanentAttribute marks elements that structured morphs leave alone.
const DefaultPermanentAttribute = "data-reflex-permanent"

// PermanentRegistry holds the permanent nodes of the subtree being patched,
// keyed by identity key.
//
// Only marks that will take effect are registered: the node must carry the
// permanence attribute, have an identity key, and that key must occur in the
// incoming subtree. A registered node freezes its whole subtree, so permanent
// nodes nested inside it are not registered separately.
type PermanentRegistry struct {
	attr  string
	marks map[string]*dom.Node
}

// CollectPermanent scans the descendants of root (root itself is the
// container and never replaced) for effective permanent marks. incoming is
// the set of identity keys present in the new subtree.
func CollectPermanent(root *dom.Node, attr string, incoming map[string]bool) *PermanentRegistry {
	r := &PermanentRegistry{attr: attr, marks: make(map[string]*dom.Node)}
	if attr == "" {
		return r
	}
	for _, c := range root.Children {
		c.Walk(func(n *dom.Node) bool {
			if !n.IsElement() || !n.HasAttr(attr) {
				return true
			}
			key := n.Key()
			if key == "" || !incoming[key] {
				return true
			}
			if _, dup := r.marks[key]; !dup {
				r.marks[key] = n
			}
			return false
		})
	}
	return r
}

// IsPermanent reports whether n is the registered node for its key.
func (r *PermanentRegistry) IsPermanent(n *dom.Node) bool {
	key := n.Key()
	return key != "" && r.marks[key] == n
}

// Lookup returns the permanent node registered under key.
func (r *PermanentRegistry) Lookup(key string) (*dom.Node, bool) {
	n, ok := r.marks[key]
	return n, ok
}

func (r *PermanentRegistry) Len() int {
	return len(r.marks)
}

// identityKeys collects every identity key in the subtree below root.
func identityKeys(root *dom.Node) map[string]bool {
	keys := make(map[string]bool)
	for _, c := range root.Children {
		c.Walk(func(n *dom.Node) bool {
			if k := n.Key(); k != "" {
				keys[k] = true
			}
			return true
		})
	}
	return keys
}
