package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// rawTextElements hold unescaped character data.
var rawTextElements = map[string]bool{
	"script": true, "style": true, "xmp": true, "iframe": true,
	"noembed": true, "noframes": true, "plaintext": true,
}

// OuterHTML renders n including its own tag.
func (n *Node) OuterHTML() string {
	var b strings.Builder
	n.render(&b, false)
	return b.String()
}

// InnerHTML renders the children of n.
func (n *Node) InnerHTML() string {
	var b strings.Builder
	raw := n.IsElement() && rawTextElements[n.Tag]
	for _, c := range n.Children {
		c.render(&b, raw)
	}
	return b.String()
}

// String renders the whole document.
func (d *Document) String() string {
	return "<!DOCTYPE html>" + d.Root.OuterHTML()
}

func (n *Node) render(b *strings.Builder, raw bool) {
	if n.IsText() {
		if raw {
			b.WriteString(n.Data)
		} else {
			b.WriteString(html.EscapeString(n.Data))
		}
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if IsVoid(n.Tag) {
		return
	}
	childRaw := rawTextElements[n.Tag]
	for _, c := range n.Children {
		c.render(b, childRaw)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}
