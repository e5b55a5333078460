// Package dom holds the in-memory document tree that morphs are applied to.
package dom

import "strings"

// NodeType distinguishes the two node variants.
type NodeType int

const (
	// ElementNode is a tagged element with attributes and children.
	ElementNode NodeType = iota

	// TextNode carries character data only.
	TextNode
)

func (t NodeType) String() string {
	switch t {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	default:
		return "unknown"
	}
}

// IDAttribute is the attribute an element's identity key is read from.
const IDAttribute = "id"

// Attribute is a single key/value pair on an element.
type Attribute struct {
	Key string
	Val string
}

// Node is an element or a text node. Children are owned exclusively by their
// parent; a node is never reachable from two parents.
type Node struct {
	Type     NodeType
	Tag      string      // element tag name, lower case
	Attrs    []Attribute // insertion order is kept for serialization only
	Data     string      // text content for TextNode
	Children []*Node
	Parent   *Node
}

// Document is a rooted tree with a body-equivalent region.
type Document struct {
	Root *Node
}

// NewElement creates a detached element. Duplicate attribute keys keep the first value.
func NewElement(tag string, attrs ...Attribute) *Node {
	n := &Node{Type: ElementNode, Tag: strings.ToLower(tag)}
	for _, a := range attrs {
		if !n.HasAttr(a.Key) {
			n.Attrs = append(n.Attrs, a)
		}
	}
	return n
}

// NewText creates a detached text node.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Data: data}
}

func (n *Node) IsElement() bool {
	return n != nil && n.Type == ElementNode
}

func (n *Node) IsText() bool {
	return n != nil && n.Type == TextNode
}

// Attr returns the value of key and whether it is present.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (n *Node) HasAttr(key string) bool {
	_, ok := n.Attr(key)
	return ok
}

// SetAttr updates key in place or appends it.
func (n *Node) SetAttr(key, val string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, Attribute{Key: key, Val: val})
}

func (n *Node) RemoveAttr(key string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs = append(n.Attrs[:i:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// Key is the stable identity key of an element: its id attribute, or "" when
// the element has none. Text nodes never have a key.
func (n *Node) Key() string {
	if !n.IsElement() {
		return ""
	}
	id, _ := n.Attr(IDAttribute)
	return strings.TrimSpace(id)
}

// AppendChild adds c as the last child of n, detaching it from any previous parent.
func (n *Node) AppendChild(c *Node) {
	c.detach()
	c.Parent = n
	n.Children = append(n.Children, c)
}

// SetChildren replaces the child list of n. Nodes in children that currently
// belong to another parent are detached from it first.
func (n *Node) SetChildren(children []*Node) {
	for _, c := range n.Children {
		if c.Parent == n {
			c.Parent = nil
		}
	}
	n.Children = nil
	list := make([]*Node, 0, len(children))
	for _, c := range children {
		c.detach()
		c.Parent = n
		list = append(list, c)
	}
	n.Children = list
}

// detach removes n from its parent. The parent gets a fresh slice so that
// callers iterating over the previous one are not disturbed.
func (n *Node) detach() {
	p := n.Parent
	if p == nil {
		return
	}
	kept := make([]*Node, 0, len(p.Children))
	for _, c := range p.Children {
		if c != n {
			kept = append(kept, c)
		}
	}
	p.Children = kept
	n.Parent = nil
}

// Clone returns a detached deep copy of n.
func (n *Node) Clone() *Node {
	c := &Node{Type: n.Type, Tag: n.Tag, Data: n.Data}
	if len(n.Attrs) > 0 {
		c.Attrs = make([]Attribute, len(n.Attrs))
		copy(c.Attrs, n.Attrs)
	}
	for _, child := range n.Children {
		cc := child.Clone()
		cc.Parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's descendants.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// TextContent concatenates all descendant text.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Data
	}
	var b strings.Builder
	n.Walk(func(d *Node) bool {
		if d.IsText() {
			b.WriteString(d.Data)
		}
		return true
	})
	return b.String()
}

// Equal reports whether two subtrees have the same shape, attributes and text.
// Attribute order is ignored.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Type != o.Type || n.Tag != o.Tag || n.Data != o.Data {
		return false
	}
	if len(n.Attrs) != len(o.Attrs) || len(n.Children) != len(o.Children) {
		return false
	}
	for _, a := range n.Attrs {
		if v, ok := o.Attr(a.Key); !ok || v != a.Val {
			return false
		}
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Root returns the topmost ancestor of n.
func (n *Node) Root() *Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Contains reports whether d is n or one of its descendants.
func (n *Node) Contains(d *Node) bool {
	for ; d != nil; d = d.Parent {
		if d == n {
			return true
		}
	}
	return false
}

// Body returns the body-equivalent element: the first <body> in document
// order, or the root when the document has none.
func (d *Document) Body() *Node {
	var body *Node
	d.Root.Walk(func(n *Node) bool {
		if body != nil {
			return false
		}
		if n.IsElement() && n.Tag == "body" {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return d.Root
	}
	return body
}
