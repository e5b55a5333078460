// Package morph decides which part of a document an update touches and
// patches it: target resolution, permanent-node protection, the structured
// and opaque reconcile paths, and the per-transaction mode state machine.
package morph

import (
	"github.com/golang/glog"

	"gihan9a/morphcast/internal/dom"
)

// Operation is one request against the document: a morph, or with a Kind
// other than OpMorph a direct DOM edit.
type Operation struct {
	Kind   OpKind
	Target TargetRef // used by ModeSelector and DOM edits
	Mode   Mode      // morphs only
	HTML   string

	// PermanentAttribute overrides the controller's permanent mark for this
	// operation only.
	PermanentAttribute string
	// SelectAll applies the operation to every element its selector matches
	// instead of the first one.
	SelectAll bool

	Name     string // attribute, class, style property, dataset property or event name
	Value    string
	Text     string
	Position string // insert_adjacent kinds, defaults to BeforeEnd
	Detail   string // dispatch_event payload, passed through to clients
}

// Outcome is the result of applying one Operation.
type Outcome struct {
	Mode     Mode   // the mode the operation ran under
	Target   Target // zero unless the operation ran in ModeSelector
	Err      error  // the operation failed and changed nothing
	Warnings []error
	Skipped  bool // the mode was rejected and the operation changed nothing
}

func (o Outcome) Success() bool {
	return o.Err == nil
}

// Options configures the declarative attribute names read from the document.
type Options struct {
	PermanentAttribute string
	RootAttribute      string
}

// Controller applies operations to a document.
type Controller struct {
	resolver   *Resolver
	reconciler *Reconciler
}

func NewController(opts Options) *Controller {
	return &Controller{
		resolver:   NewResolver(opts.RootAttribute),
		reconciler: NewReconciler(opts.PermanentAttribute),
	}
}

// Apply runs op against doc under the mode lock of tx.
//
// A morph whose mode is rejected by the lock runs under the locked mode only
// when it carries what that mode needs, which is a target for ModeSelector.
// Otherwise it is skipped and the tree is left alone.
func (c *Controller) Apply(doc *dom.Document, tx *Transaction, op Operation) Outcome {
	if op.Kind != OpMorph {
		return c.applyDOM(doc, tx, op)
	}

	var out Outcome
	mode, err := tx.Select(op.Mode)
	out.Mode = mode
	if err != nil {
		if mode == ModeUnset {
			out.Err = err
			return out
		}
		glog.Warningf("[morph]tx %q: %s\n", tx.ID, err)
		out.Warnings = append(out.Warnings, err)
		if mode != ModeSelector || !hasTarget(op.Target) {
			glog.Infof("[morph]tx %q: skip %s operation under %s lock\n", tx.ID, op.Mode, mode)
			out.Skipped = true
			return out
		}
	}

	reconciler := c.reconciler
	if op.PermanentAttribute != "" {
		reconciler = NewReconciler(op.PermanentAttribute)
	}

	switch mode {
	case ModePage:
		next, err := dom.ParseDocument(op.HTML)
		if err != nil {
			out.Err = &PatchError{Container: "body", Err: err}
			return out
		}
		reconciler.ReconcileTree(doc.Body(), next.Body())

	case ModeSelector:
		out.Target = c.resolver.ResolveRef(doc, op.Target)
		if w := out.Target.Warning(); w != nil {
			glog.Warningf("[morph]tx %q: %s\n", tx.ID, w)
			out.Warnings = append(out.Warnings, w)
		}
		containers := []*dom.Node{out.Target.Container}
		if op.SelectAll && len(out.Target.Matches) > 1 {
			containers = out.Target.Matches
		}
		for _, container := range containers {
			if err := reconciler.Reconcile(container, op.HTML); err != nil {
				out.Err = err
				return out
			}
		}

	case ModeNothing:
		glog.V(2).Infof("[morph]tx %q: nothing\n", tx.ID)
	}
	return out
}
