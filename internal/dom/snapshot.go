package dom

import "encoding/json"

// Snapshot is the JSON shape of a subtree, used by document mirrors.
type Snapshot struct {
	Type     string            `json:"type"`
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []Snapshot        `json:"children,omitempty"`
}

// Snapshot converts n into its JSON shape.
func (n *Node) Snapshot() Snapshot {
	s := Snapshot{Type: n.Type.String()}
	if n.IsText() {
		s.Text = n.Data
		return s
	}
	s.Tag = n.Tag
	if len(n.Attrs) > 0 {
		s.Attrs = make(map[string]string, len(n.Attrs))
		for _, a := range n.Attrs {
			s.Attrs[a.Key] = a.Val
		}
	}
	for _, c := range n.Children {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}

// MarshalJSON encodes the subtree rooted at n. Parent links are not followed.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Snapshot())
}
