package morph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"gihan9a/morphcast/internal/dom"
)

// OpKind is what an operation does to its target. OpMorph goes through mode
// selection and reconciliation; every other kind is a direct DOM edit.
type OpKind int

const (
	OpMorph OpKind = iota
	OpInnerHTML
	OpOuterHTML
	OpTextContent
	OpInsertAdjacentHTML
	OpInsertAdjacentText
	OpRemove
	OpSetAttribute
	OpRemoveAttribute
	OpAddCSSClass
	OpRemoveCSSClass
	OpSetDatasetProperty
	OpSetStyle
	OpSetValue
	OpDispatchEvent
)

// OpInvalid marks an operation whose kind could not be parsed.
const OpInvalid OpKind = -1

var opNames = [...]string{
	OpMorph:              "morph",
	OpInnerHTML:          "inner_html",
	OpOuterHTML:          "outer_html",
	OpTextContent:        "text_content",
	OpInsertAdjacentHTML: "insert_adjacent_html",
	OpInsertAdjacentText: "insert_adjacent_text",
	OpRemove:             "remove",
	OpSetAttribute:       "set_attribute",
	OpRemoveAttribute:    "remove_attribute",
	OpAddCSSClass:        "add_css_class",
	OpRemoveCSSClass:     "remove_css_class",
	OpSetDatasetProperty: "set_dataset_property",
	OpSetStyle:           "set_style",
	OpSetValue:           "set_value",
	OpDispatchEvent:      "dispatch_event",
}

func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opNames) {
		return "invalid"
	}
	return opNames[k]
}

// ParseOpKind maps the wire name of an operation. The empty name is a morph.
func ParseOpKind(s string) (OpKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OpMorph, nil
	}
	for k, name := range opNames {
		if name == s {
			return OpKind(k), nil
		}
	}
	return OpInvalid, fmt.Errorf("unknown operation %q", s)
}

// Insert positions for the insert_adjacent kinds.
const (
	BeforeBegin = "beforebegin"
	AfterBegin  = "afterbegin"
	BeforeEnd   = "beforeend"
	AfterEnd    = "afterend"
)

var errNoParent = errors.New("element has no parent")

// validate checks the fields a DOM operation requires.
func (op Operation) validate() error {
	if op.Kind == OpInvalid {
		return &ConfigurationError{Msg: "unknown operation"}
	}
	if op.Kind != OpDispatchEvent && !hasTarget(op.Target) {
		return &ConfigurationError{Msg: op.Kind.String() + " requires a target"}
	}
	switch op.Kind {
	case OpSetAttribute, OpRemoveAttribute, OpSetDatasetProperty, OpSetStyle, OpDispatchEvent:
		if strings.TrimSpace(op.Name) == "" {
			return &ConfigurationError{Msg: op.Kind.String() + " requires a name"}
		}
	case OpInsertAdjacentHTML, OpInsertAdjacentText:
		switch position(op.Position) {
		case BeforeBegin, AfterBegin, BeforeEnd, AfterEnd:
		default:
			return &ConfigurationError{Msg: fmt.Sprintf("unknown insert position %q", op.Position)}
		}
	}
	return nil
}

func position(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return BeforeEnd
	}
	return p
}

// applyDOM runs a direct DOM edit. These operations sit outside the mode
// lock of tx and report ModeSelector. Markup is parsed once, before any
// element is touched, so a ParseError changes nothing.
func (c *Controller) applyDOM(doc *dom.Document, tx *Transaction, op Operation) Outcome {
	out := Outcome{Mode: ModeSelector}
	if err := op.validate(); err != nil {
		out.Err = err
		return out
	}
	if op.Kind == OpDispatchEvent {
		// delivered to clients with the event, nothing to do on the tree
		glog.V(2).Infof("[morph]tx %q: dispatch %s\n", tx.ID, op.Name)
		return out
	}

	var nodes []*dom.Node
	if op.Kind == OpInnerHTML || op.Kind == OpOuterHTML || op.Kind == OpInsertAdjacentHTML {
		var err error
		if nodes, err = dom.ParseFragment(op.HTML); err != nil {
			out.Err = &PatchError{Container: op.Kind.String(), Err: err}
			return out
		}
	}

	targets, missed := c.resolver.Elements(doc, op.Target, op.SelectAll)
	if len(targets) == 0 {
		out.Err = &ResolutionError{Selectors: missed, NoFallback: true}
		return out
	}
	out.Target = Target{Container: targets[0], Rule: RuleScopeHint, Matches: targets}

	for i, n := range targets {
		fresh := nodes
		if i > 0 {
			fresh = cloneAll(nodes)
		}
		if err := editNode(n, op, fresh); err != nil {
			out.Err = &PatchError{Container: describe(n), Err: err}
			return out
		}
	}
	glog.V(2).Infof("[morph]tx %q: %s on %d elements\n", tx.ID, op.Kind, len(targets))
	return out
}

func editNode(n *dom.Node, op Operation, nodes []*dom.Node) error {
	switch op.Kind {
	case OpInnerHTML:
		n.SetChildren(nodes)
	case OpOuterHTML:
		if n.Parent == nil {
			return errNoParent
		}
		n.ReplaceWith(nodes...)
	case OpTextContent:
		if op.Text == "" {
			n.SetChildren(nil)
		} else {
			n.SetChildren([]*dom.Node{dom.NewText(op.Text)})
		}
	case OpInsertAdjacentHTML:
		return insertAdjacent(n, position(op.Position), nodes)
	case OpInsertAdjacentText:
		return insertAdjacent(n, position(op.Position), []*dom.Node{dom.NewText(op.Text)})
	case OpRemove:
		if n.Parent == nil {
			return errNoParent
		}
		n.Remove()
	case OpSetAttribute:
		n.SetAttr(op.Name, op.Value)
	case OpRemoveAttribute:
		n.RemoveAttr(op.Name)
	case OpAddCSSClass:
		n.AddClass(strings.Fields(op.Name)...)
	case OpRemoveCSSClass:
		n.RemoveClass(strings.Fields(op.Name)...)
	case OpSetDatasetProperty:
		n.SetDataset(op.Name, op.Value)
	case OpSetStyle:
		n.SetStyle(op.Name, op.Value)
	case OpSetValue:
		n.SetValue(op.Value)
	}
	return nil
}

func insertAdjacent(n *dom.Node, pos string, nodes []*dom.Node) error {
	switch pos {
	case AfterBegin:
		var first *dom.Node
		if len(n.Children) > 0 {
			first = n.Children[0]
		}
		n.InsertBefore(first, nodes...)
	case BeforeEnd:
		n.InsertBefore(nil, nodes...)
	case BeforeBegin, AfterEnd:
		if n.Parent == nil {
			return errNoParent
		}
		ref := n
		if pos == AfterEnd {
			ref = n.NextSibling()
		}
		n.Parent.InsertBefore(ref, nodes...)
	}
	return nil
}

func cloneAll(nodes []*dom.Node) []*dom.Node {
	out := make([]*dom.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// hasTarget reports whether ref names anything to resolve.
func hasTarget(ref TargetRef) bool {
	switch ref := ref.(type) {
	case AnchorRef:
		return ref.Node != nil || len(dom.SplitSelectorList(ref.Selector)) > 0
	case CssExpression:
		return len(dom.SplitSelectorList(string(ref))) > 0
	default:
		return false
	}
}
