package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ParseError reports markup that is not well formed.
type ParseError struct {
	Offset int // byte offset in the input where the problem was detected
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Msg)
}

// voidElements never have children or end tags.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag is an HTML void element.
func IsVoid(tag string) bool {
	return voidElements[tag]
}

// ParseFragment parses markup into a list of detached sibling nodes.
//
// Unlike the HTML5 tree builder this parser is strict: every non-void element
// must be closed, end tags must match the innermost open element and the input
// must not end inside a tag or comment. Comments and doctypes are dropped.
func ParseFragment(markup string) ([]*Node, error) {
	holder := NewElement("#fragment")
	stack := []*Node{holder}
	offset := 0

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, &ParseError{Offset: offset, Msg: err.Error()}
			}
			break
		}
		raw := z.Raw()
		if tt == html.CommentToken && !commentClosed(raw) {
			return nil, &ParseError{Offset: offset, Msg: "unterminated comment"}
		}
		tok := z.Token()
		top := stack[len(stack)-1]

		switch tt {
		case html.TextToken:
			top.AppendChild(NewText(tok.Data))
		case html.StartTagToken, html.SelfClosingTagToken:
			el := NewElement(tok.Data, convertAttrs(tok.Attr)...)
			top.AppendChild(el)
			if tt == html.StartTagToken && !IsVoid(el.Tag) {
				stack = append(stack, el)
			}
		case html.EndTagToken:
			if IsVoid(tok.Data) {
				break
			}
			if len(stack) == 1 {
				return nil, &ParseError{Offset: offset, Msg: fmt.Sprintf("unexpected end tag </%s>", tok.Data)}
			}
			if top.Tag != tok.Data {
				return nil, &ParseError{Offset: offset, Msg: fmt.Sprintf("end tag </%s> does not match <%s>", tok.Data, top.Tag)}
			}
			stack = stack[:len(stack)-1]
		}
		offset += len(raw)
	}

	if offset < len(markup) {
		return nil, &ParseError{Offset: offset, Msg: "unterminated tag"}
	}
	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return nil, &ParseError{Offset: offset, Msg: fmt.Sprintf("unterminated element <%s>", open.Tag)}
	}

	nodes := holder.Children
	holder.SetChildren(nil)
	return nodes, nil
}

// ParseDocument parses a full page. Markup without an <html> root is wrapped
// in a synthetic html/body pair so that Body always finds the content.
func ParseDocument(markup string) (*Document, error) {
	nodes, err := ParseFragment(markup)
	if err != nil {
		return nil, err
	}
	if root := SoleElement(nodes); root != nil && root.Tag == "html" {
		return &Document{Root: root}, nil
	}
	body := NewElement("body")
	body.SetChildren(nodes)
	root := NewElement("html")
	root.AppendChild(body)
	return &Document{Root: root}, nil
}

// SoleElement returns the only element in nodes when every other node is
// whitespace-only text, and nil otherwise.
func SoleElement(nodes []*Node) *Node {
	var found *Node
	for _, n := range nodes {
		if n.IsText() {
			if strings.TrimSpace(n.Data) != "" {
				return nil
			}
			continue
		}
		if found != nil {
			return nil
		}
		found = n
	}
	return found
}

// commentClosed reports whether raw comment text ends with its terminator.
// Bogus comments such as <?x> end at the first '>'.
func commentClosed(raw []byte) bool {
	if bytes.HasPrefix(raw, []byte("<!--")) {
		switch string(raw) {
		case "<!-->", "<!--->":
			return true
		}
		return bytes.HasSuffix(raw, []byte("-->")) || bytes.HasSuffix(raw, []byte("--!>"))
	}
	return bytes.HasSuffix(raw, []byte(">"))
}

func convertAttrs(attrs []html.Attribute) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		out = append(out, Attribute{Key: key, Val: a.Val})
	}
	return out
}
