// Package broadcast serializes batches of morph operations onto one document.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"gihan9a/morphcast/internal/dom"
	"gihan9a/morphcast/internal/morph"
	"gihan9a/morphcast/pkg/morphproto"
)

const DefaultQueueSize = 64

// Batch is an ordered list of operations applied as one unit.
type Batch struct {
	Transaction string // batches sharing an id share one mode lock
	Complete    bool   // close the transaction once this batch is applied
	Operations  []morph.Operation
}

// FromWire converts a decoded wire batch. An unknown mode becomes
// morph.ModeUnset and an unknown op morph.OpInvalid; either fails only its
// own operation.
func FromWire(b morphproto.Batch) Batch {
	out := Batch{
		Transaction: b.Transaction,
		Complete:    b.Complete,
		Operations:  make([]morph.Operation, 0, len(b.Operations)),
	}
	for i, op := range b.Operations {
		kind, err := morph.ParseOpKind(op.Op)
		if err != nil {
			glog.Infof("[seq]operation %d: %s\n", i, err)
		}
		mode := morph.ModeUnset
		if kind == morph.OpMorph {
			if mode, err = morph.ParseMode(op.Mode); err != nil {
				glog.Infof("[seq]operation %d: %s\n", i, err)
			}
		}
		var ref morph.TargetRef
		if op.Target.Anchor != "" {
			ref = morph.AnchorRef{Selector: op.Target.Anchor}
		} else {
			ref = morph.CssExpression(op.Target.Selector)
		}
		out.Operations = append(out.Operations, morph.Operation{
			Kind:               kind,
			Target:             ref,
			Mode:               mode,
			HTML:               string(op.HTML),
			PermanentAttribute: op.PermanentAttribute,
			SelectAll:          op.SelectAll,
			Name:               op.Name,
			Value:              string(op.Value),
			Text:               string(op.Text),
			Position:           op.Position,
			Detail:             string(op.Detail),
		})
	}
	return out
}

type Options struct {
	QueueSize           int
	MaxOpenTransactions int
}

type job struct {
	batch Batch
	view  func(*dom.Document)
	done  chan []morphproto.Event
}

// Sequencer owns the document. Run is the only goroutine that touches the
// tree; batches are applied one at a time in the order they were queued.
type Sequencer struct {
	doc        *dom.Document
	controller *morph.Controller
	queue      chan *job

	// owned by Run
	txs *transactions
	seq uint64

	mu        sync.Mutex
	observers []func([]morphproto.Event)
	onBatch   []func(*dom.Document)
}

func New(doc *dom.Document, controller *morph.Controller, opts Options) *Sequencer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Sequencer{
		doc:        doc,
		controller: controller,
		queue:      make(chan *job, opts.QueueSize),
		txs:        newTransactions(opts.MaxOpenTransactions),
	}
}

// Observe registers fn to receive the events of every applied batch.
// Observers run on the sequencer goroutine and must not block.
func (s *Sequencer) Observe(fn func([]morphproto.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// OnBatch registers fn to run after every applied batch, with read access to
// the document.
func (s *Sequencer) OnBatch(fn func(*dom.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBatch = append(s.onBatch, fn)
}

// Run applies queued batches until ctx is done. Cancellation is observed
// between batches only.
func (s *Sequencer) Run(ctx context.Context) error {
	glog.Infof("[seq]running\n")
	for {
		select {
		case <-ctx.Done():
			glog.Infof("[seq]stopped\n")
			return ctx.Err()
		case j := <-s.queue:
			if j.view != nil {
				j.view(s.doc)
				close(j.done)
				continue
			}
			events := s.apply(j.batch)
			s.notify(events)
			if j.done != nil {
				j.done <- events
			}
		}
	}
}

// Submit queues b without waiting for it to be applied.
func (s *Sequencer) Submit(ctx context.Context, b Batch) error {
	return s.enqueue(ctx, &job{batch: b})
}

// Apply queues b and waits for its events.
func (s *Sequencer) Apply(ctx context.Context, b Batch) ([]morphproto.Event, error) {
	j := &job{batch: b, done: make(chan []morphproto.Event, 1)}
	if err := s.enqueue(ctx, j); err != nil {
		return nil, err
	}
	select {
	case events := <-j.done:
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// View runs fn between batches. fn must not modify the document.
func (s *Sequencer) View(ctx context.Context, fn func(*dom.Document)) error {
	j := &job{view: fn, done: make(chan []morphproto.Event)}
	if err := s.enqueue(ctx, j); err != nil {
		return err
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) enqueue(ctx context.Context, j *job) error {
	select {
	case s.queue <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) apply(b Batch) []morphproto.Event {
	s.seq++
	glog.V(2).Infof("[seq]batch %d tx %q: %d operations\n", s.seq, b.Transaction, len(b.Operations))

	var shared *morph.Transaction
	if b.Transaction != "" {
		shared = s.txs.get(b.Transaction)
	}
	events := make([]morphproto.Event, 0, len(b.Operations))
	for i, op := range b.Operations {
		tx := shared
		if tx == nil {
			tx = morph.NewTransaction("")
		}
		ev := s.applyOne(tx, op)
		ev.Transaction = b.Transaction
		ev.Batch = s.seq
		ev.Index = i
		if !ev.Success {
			glog.Infof("[seq]batch %d op %d failed: %s\n", s.seq, i, ev.Message)
		}
		events = append(events, ev)
	}
	if b.Complete && b.Transaction != "" {
		s.txs.close(b.Transaction)
	}
	return events
}

func (s *Sequencer) applyOne(tx *morph.Transaction, op morph.Operation) (ev morphproto.Event) {
	ev.Target = describeRef(op.Target)
	if op.Kind != morph.OpMorph {
		ev.Op = op.Kind.String()
	}
	if op.Kind == morph.OpDispatchEvent {
		ev.Name, ev.Detail = op.Name, op.Detail
	}
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("[seq]recovered: %v\n", r)
			ev.Success = false
			ev.Error = morph.KindPatch.String()
			ev.Message = fmt.Sprintf("%v", r)
		}
	}()

	out := s.controller.Apply(s.doc, tx, op)
	ev.Mode = out.Mode.String()
	ev.Success = out.Success()
	ev.Skipped = out.Skipped
	if out.Err != nil {
		kind := morph.KindOf(out.Err)
		if kind == morph.KindNone {
			kind = morph.KindPatch
		}
		ev.Error = kind.String()
		ev.Message = out.Err.Error()
	}
	for _, w := range out.Warnings {
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("%s: %s", morph.KindOf(w), w))
	}
	return ev
}

func (s *Sequencer) notify(events []morphproto.Event) {
	s.mu.Lock()
	observers := append([]func([]morphproto.Event){}, s.observers...)
	hooks := append([]func(*dom.Document){}, s.onBatch...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(s.doc)
	}
	for _, fn := range observers {
		fn(events)
	}
}

func describeRef(ref morph.TargetRef) string {
	switch ref := ref.(type) {
	case morph.AnchorRef:
		if ref.Selector != "" {
			return "anchor:" + ref.Selector
		}
		return "anchor"
	case morph.CssExpression:
		return string(ref)
	default:
		return ""
	}
}
