package morph

import (
	"github.com/golang/glog"

	"gihan9a/morphcast/internal/dom"
)

// DefaultRootAttribute declares a comma-delimited selector list scoping morphs.
const DefaultRootAttribute = "data-reflex-root"

// TargetRef names the region an operation applies to. It is a closed variant:
// AnchorRef or CssExpression.
type TargetRef interface {
	isTargetRef()
}

// AnchorRef is the element an action originated from. Node is used when set,
// otherwise the first element matching Selector.
type AnchorRef struct {
	Node     *dom.Node
	Selector string
}

// CssExpression is a selector list naming the region directly.
type CssExpression string

func (AnchorRef) isTargetRef()     {}
func (CssExpression) isTargetRef() {}

// Policy is what a patch may do to the resolved container.
type Policy int

const (
	// ReplaceChildrenOnly rewrites the child list; the container stays.
	ReplaceChildrenOnly Policy = iota
)

// Rule records which resolution step produced a target.
type Rule int

const (
	RuleAnchorScope Rule = iota
	RuleAncestorScope
	RuleScopeHint
	RuleBody
)

func (r Rule) String() string {
	switch r {
	case RuleAnchorScope:
		return "anchor scope"
	case RuleAncestorScope:
		return "ancestor scope"
	case RuleScopeHint:
		return "scope hint"
	default:
		return "body"
	}
}

// Target is a resolved container.
type Target struct {
	Container *dom.Node
	Policy    Policy
	Rule      Rule
	Unmatched []string    // selectors that were tried and matched nothing
	Matches   []*dom.Node // every element the winning selector matched, Container first
}

// Warning returns a ResolutionError when some selector failed to match.
func (t Target) Warning() error {
	if len(t.Unmatched) == 0 {
		return nil
	}
	return &ResolutionError{Selectors: t.Unmatched, Fallback: t.Rule}
}

// Resolver finds the container a morph applies to. The root-scope attribute
// is read from the tree on every call.
type Resolver struct {
	RootAttribute string
}

func NewResolver(rootAttribute string) *Resolver {
	if rootAttribute == "" {
		rootAttribute = DefaultRootAttribute
	}
	return &Resolver{RootAttribute: rootAttribute}
}

// ResolveRef resolves either TargetRef variant.
func (r *Resolver) ResolveRef(doc *dom.Document, ref TargetRef) Target {
	switch ref := ref.(type) {
	case AnchorRef:
		anchor := ref.Node
		var missed []string
		if anchor == nil && ref.Selector != "" {
			if m := r.firstMatch(doc.Root, []string{ref.Selector}, &missed); len(m) > 0 {
				anchor = m[0]
			}
		}
		t := r.Resolve(doc, anchor, nil)
		t.Unmatched = append(missed, t.Unmatched...)
		return t
	case CssExpression:
		return r.Resolve(doc, nil, dom.SplitSelectorList(string(ref)))
	default:
		return r.Resolve(doc, nil, nil)
	}
}

// Resolve applies the resolution rules in priority order:
//
//  1. the anchor's own root-scope list, matched within the anchor's subtree
//  2. the nearest ancestor with a usable root-scope list, matched in the document
//  3. the caller's scope hints, matched in the document
//  4. the document body
//
// A list that is empty or matches nothing counts as absent.
func (r *Resolver) Resolve(doc *dom.Document, anchor *dom.Node, hints []string) Target {
	var missed []string
	if anchor != nil {
		if list := r.scopeList(anchor); len(list) > 0 {
			if m := r.firstMatch(anchor, list, &missed); len(m) > 0 {
				return Target{Container: m[0], Policy: ReplaceChildrenOnly, Rule: RuleAnchorScope, Unmatched: missed, Matches: m}
			}
		}
		for a := anchor.Parent; a != nil; a = a.Parent {
			list := r.scopeList(a)
			if len(list) == 0 {
				continue
			}
			if m := r.firstMatch(doc.Root, list, &missed); len(m) > 0 {
				return Target{Container: m[0], Policy: ReplaceChildrenOnly, Rule: RuleAncestorScope, Unmatched: missed, Matches: m}
			}
		}
	}
	if m := r.firstMatch(doc.Root, hints, &missed); len(m) > 0 {
		return Target{Container: m[0], Policy: ReplaceChildrenOnly, Rule: RuleScopeHint, Unmatched: missed, Matches: m}
	}
	return Target{Container: doc.Body(), Policy: ReplaceChildrenOnly, Rule: RuleBody, Unmatched: missed}
}

func (r *Resolver) scopeList(n *dom.Node) []string {
	v, ok := n.Attr(r.RootAttribute)
	if !ok {
		return nil
	}
	return dom.SplitSelectorList(v)
}

// Elements resolves ref for a DOM operation: the anchor node itself, or the
// matches of the first selector that matches anything, with no scope rules
// and no body fallback. Unless all is set only the first match is returned.
func (r *Resolver) Elements(doc *dom.Document, ref TargetRef, all bool) ([]*dom.Node, []string) {
	var (
		list   []string
		missed []string
	)
	switch ref := ref.(type) {
	case AnchorRef:
		if ref.Node != nil {
			return []*dom.Node{ref.Node}, nil
		}
		list = dom.SplitSelectorList(ref.Selector)
	case CssExpression:
		list = dom.SplitSelectorList(string(ref))
	}
	m := r.firstMatch(doc.Root, list, &missed)
	if len(m) > 1 && !all {
		m = m[:1]
	}
	return m, missed
}

// firstMatch returns the matches of the first selector in list that matches
// anything within scope. Selectors that fail are appended to missed.
func (r *Resolver) firstMatch(scope *dom.Node, list []string, missed *[]string) []*dom.Node {
	for _, sel := range list {
		matches, err := dom.Select(scope, sel)
		if err != nil {
			glog.Warningf("[resolve]skip selector: %s\n", err)
		}
		if len(matches) > 0 {
			return matches
		}
		*missed = append(*missed, sel)
	}
	return nil
}
