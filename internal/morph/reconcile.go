package morph

import (
	"github.com/golang/glog"

	"gihan9a/morphcast/internal/dom"
)

// Reconciler patches a container's children towards new markup.
type Reconciler struct {
	PermanentAttribute string
}

func NewReconciler(permanentAttribute string) *Reconciler {
	if permanentAttribute == "" {
		permanentAttribute = DefaultPermanentAttribute
	}
	return &Reconciler{PermanentAttribute: permanentAttribute}
}

// Reconcile parses markup and rewrites the children of container.
//
// When the markup is a single element with the container's identity (same
// id, or both without id and the same tag), that element's children are
// diffed into the container and permanent nodes survive. Any other markup is
// installed as is, discarding the old children and ignoring permanent marks.
// Malformed markup leaves the container untouched and returns a PatchError.
func (r *Reconciler) Reconcile(container *dom.Node, markup string) error {
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return &PatchError{Container: describe(container), Err: err}
	}
	if root := dom.SoleElement(nodes); root != nil && sameIdentity(container, root) {
		r.ReconcileTree(container, root)
		return nil
	}
	glog.V(2).Infof("[morph]opaque %s children=%d\n", describe(container), len(nodes))
	container.SetChildren(nodes)
	return nil
}

// ReconcileTree diffs the children of newRoot into container.
func (r *Reconciler) ReconcileTree(container, newRoot *dom.Node) {
	p := &pass{
		perm:    CollectPermanent(container, r.PermanentAttribute, identityKeys(newRoot)),
		claimed: make(map[*dom.Node]bool),
	}
	p.children(container, newRoot)
	glog.V(2).Infof("[morph]structured %s permanent=%d kept=%d created=%d\n", describe(container), p.perm.Len(), p.kept, p.created)
}

// pass is the state of one structured reconcile.
type pass struct {
	perm    *PermanentRegistry
	claimed map[*dom.Node]bool // old nodes already placed in the result
	kept    int
	created int
}

func (p *pass) children(old, next *dom.Node) {
	oldKids := old.Children
	keyed := make(map[string]*dom.Node)
	for _, c := range oldKids {
		if k := c.Key(); k != "" {
			if _, dup := keyed[k]; !dup {
				keyed[k] = c
			}
		}
	}

	result := make([]*dom.Node, 0, len(next.Children))
	for i, nc := range next.Children {
		oc := p.match(oldKids, keyed, i, nc)
		if oc == nil {
			result = append(result, p.adopt(nc))
			continue
		}
		p.claimed[oc] = true
		result = append(result, p.morph(oc, nc))
	}
	old.SetChildren(result)
}

// match pairs nc with an old child: by identity key when nc has one,
// otherwise positionally, and then only with a keyless node of the same type.
func (p *pass) match(oldKids []*dom.Node, keyed map[string]*dom.Node, i int, nc *dom.Node) *dom.Node {
	if k := nc.Key(); k != "" {
		if oc, ok := keyed[k]; ok && !p.claimed[oc] {
			return oc
		}
		return nil
	}
	if i < len(oldKids) {
		oc := oldKids[i]
		if !p.claimed[oc] && oc.Key() == "" && oc.Type == nc.Type {
			return oc
		}
	}
	return nil
}

func (p *pass) morph(oc, nc *dom.Node) *dom.Node {
	if p.perm.IsPermanent(oc) {
		glog.V(2).Infof("[morph]keep permanent #%s\n", oc.Key())
		p.kept++
		return oc
	}
	switch {
	case oc.IsText() && nc.IsText():
		oc.Data = nc.Data
		return oc
	case oc.IsElement() && nc.IsElement() && oc.Tag == nc.Tag:
		syncAttrs(oc, nc)
		p.children(oc, nc)
		return oc
	}
	return p.adopt(nc)
}

// adopt builds a fresh node for nc, reusing permanent old nodes by key.
func (p *pass) adopt(nc *dom.Node) *dom.Node {
	if k := nc.Key(); k != "" {
		if old, ok := p.perm.Lookup(k); ok && !p.claimed[old] {
			glog.V(2).Infof("[morph]move permanent #%s\n", k)
			p.claimed[old] = true
			p.kept++
			return old
		}
	}
	p.created++
	if nc.IsText() {
		return dom.NewText(nc.Data)
	}
	el := dom.NewElement(nc.Tag, nc.Attrs...)
	for _, c := range nc.Children {
		el.AppendChild(p.adopt(c))
	}
	return el
}

// syncAttrs makes oc's attributes equal to nc's. Existing keys keep their
// position; new keys are appended in nc's order.
func syncAttrs(oc, nc *dom.Node) {
	for i := len(oc.Attrs) - 1; i >= 0; i-- {
		if key := oc.Attrs[i].Key; !nc.HasAttr(key) {
			oc.RemoveAttr(key)
		}
	}
	for _, a := range nc.Attrs {
		if v, ok := oc.Attr(a.Key); !ok || v != a.Val {
			oc.SetAttr(a.Key, a.Val)
		}
	}
}

func sameIdentity(container, root *dom.Node) bool {
	if !container.IsElement() || !root.IsElement() {
		return false
	}
	ck, rk := container.Key(), root.Key()
	if ck != "" || rk != "" {
		return ck == rk
	}
	return container.Tag == root.Tag
}

func describe(n *dom.Node) string {
	if n == nil {
		return "<nil>"
	}
	if k := n.Key(); k != "" {
		return "#" + k
	}
	return n.Tag
}
