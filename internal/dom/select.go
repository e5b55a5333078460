package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// mirror is an x/net/html copy of a tree, used to run cascadia selectors
// against our own node type.
type mirror struct {
	toHTML map[*Node]*html.Node
	toNode map[*html.Node]*Node
}

func newMirror(root *Node) *mirror {
	m := &mirror{
		toHTML: make(map[*Node]*html.Node),
		toNode: make(map[*html.Node]*Node),
	}
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(m.build(root))
	return m
}

func (m *mirror) build(n *Node) *html.Node {
	var hn *html.Node
	if n.IsText() {
		hn = &html.Node{Type: html.TextNode, Data: n.Data}
	} else {
		hn = &html.Node{
			Type:     html.ElementNode,
			Data:     n.Tag,
			DataAtom: atom.Lookup([]byte(n.Tag)),
		}
		for _, a := range n.Attrs {
			hn.Attr = append(hn.Attr, html.Attribute{Key: a.Key, Val: a.Val})
		}
		for _, c := range n.Children {
			hn.AppendChild(m.build(c))
		}
	}
	m.toHTML[n] = hn
	m.toNode[hn] = n
	return hn
}

// Select returns the elements matching selector among scope and its
// descendants, in document order. Combinators may reach above scope: the
// whole tree scope belongs to is visible to the selector.
func Select(scope *Node, selector string) ([]*Node, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	m := newMirror(scope.Root())
	var out []*Node
	for _, hn := range sel.MatchAll(m.toHTML[scope]) {
		if n, ok := m.toNode[hn]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// SelectFirst returns the first match of selector within scope, or nil.
func SelectFirst(scope *Node, selector string) (*Node, error) {
	matches, err := Select(scope, selector)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

// SplitSelectorList splits a comma-delimited selector list. Commas inside
// brackets, parentheses or quotes do not split.
func SplitSelectorList(list string) []string {
	var out []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range list {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			if s := strings.TrimSpace(list[start:i]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(list[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
