package dom

import (
	"slices"
	"strings"
	"unicode"
)

// Remove detaches n from its parent.
func (n *Node) Remove() {
	n.detach()
}

// InsertBefore inserts nodes as children of n ahead of ref. A nil ref, or one
// that is not a child of n, appends.
func (n *Node) InsertBefore(ref *Node, nodes ...*Node) {
	for _, c := range nodes {
		c.detach()
	}
	i := len(n.Children)
	for j, c := range n.Children {
		if c == ref {
			i = j
			break
		}
	}
	list := make([]*Node, 0, len(n.Children)+len(nodes))
	list = append(list, n.Children[:i]...)
	for _, c := range nodes {
		c.Parent = n
		list = append(list, c)
	}
	list = append(list, n.Children[i:]...)
	n.Children = list
}

// NextSibling returns the child of n's parent that follows n, or nil.
func (n *Node) NextSibling() *Node {
	if n.Parent == nil {
		return nil
	}
	kids := n.Parent.Children
	for i, c := range kids {
		if c == n && i+1 < len(kids) {
			return kids[i+1]
		}
	}
	return nil
}

// ReplaceWith puts nodes where n is and detaches n.
func (n *Node) ReplaceWith(nodes ...*Node) {
	p := n.Parent
	if p == nil {
		return
	}
	p.InsertBefore(n, nodes...)
	n.detach()
}

// Classes returns the whitespace-separated entries of the class attribute.
func (n *Node) Classes() []string {
	v, _ := n.Attr("class")
	return strings.Fields(v)
}

// AddClass appends the names not already present in the class attribute.
func (n *Node) AddClass(names ...string) {
	classes := n.Classes()
	for _, name := range names {
		if !slices.Contains(classes, name) {
			classes = append(classes, name)
		}
	}
	n.SetAttr("class", strings.Join(classes, " "))
}

// RemoveClass drops names from the class attribute.
func (n *Node) RemoveClass(names ...string) {
	if !n.HasAttr("class") {
		return
	}
	var kept []string
	for _, c := range n.Classes() {
		if !slices.Contains(names, c) {
			kept = append(kept, c)
		}
	}
	n.SetAttr("class", strings.Join(kept, " "))
}

// SetStyle sets one declaration of the style attribute. An empty value
// removes the property.
func (n *Node) SetStyle(property, value string) {
	property = strings.ToLower(strings.TrimSpace(property))
	style, _ := n.Attr("style")
	var decls []string
	found := false
	for _, d := range strings.Split(style, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, ":")
		if strings.ToLower(strings.TrimSpace(name)) == property {
			found = true
			if value != "" {
				decls = append(decls, property+": "+value)
			}
			continue
		}
		decls = append(decls, d)
	}
	if !found && value != "" {
		decls = append(decls, property+": "+value)
	}
	if len(decls) == 0 {
		n.RemoveAttr("style")
		return
	}
	n.SetAttr("style", strings.Join(decls, "; ")+";")
}

// SetDataset sets the data-* attribute for a camelCased dataset property,
// so "reflexId" becomes data-reflex-id.
func (n *Node) SetDataset(property, value string) {
	var b strings.Builder
	b.WriteString("data-")
	for _, r := range property {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	n.SetAttr(b.String(), value)
}

// SetValue sets the form value of n: the text of a textarea, the selected
// option of a select, and the value attribute of anything else.
func (n *Node) SetValue(value string) {
	switch n.Tag {
	case "textarea":
		if value == "" {
			n.SetChildren(nil)
		} else {
			n.SetChildren([]*Node{NewText(value)})
		}
	case "select":
		n.Walk(func(d *Node) bool {
			if d.IsElement() && d.Tag == "option" {
				v, ok := d.Attr("value")
				if !ok {
					v = strings.TrimSpace(d.TextContent())
				}
				if v == value {
					d.SetAttr("selected", "")
				} else {
					d.RemoveAttr("selected")
				}
			}
			return true
		})
	default:
		n.SetAttr("value", value)
	}
}
