package broadcast

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"

	"gihan9a/morphcast/internal/dom"
	"gihan9a/morphcast/internal/morph"
	"gihan9a/morphcast/pkg/morphproto"
)

func startSequencer(t *testing.T, markup string, opts Options) *Sequencer {
	doc, err := dom.ParseDocument(markup)
	assert.Equal(t, err, nil)
	s := New(doc, morph.NewController(morph.Options{}), opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func inner(t *testing.T, s *Sequencer, selector string) string {
	var out string
	err := s.View(context.Background(), func(doc *dom.Document) {
		n, err := dom.SelectFirst(doc.Root, selector)
		if err == nil && n != nil {
			out = n.InnerHTML()
		}
	})
	assert.Equal(t, err, nil)
	return out
}

func selector(target, html string) morph.Operation {
	return morph.Operation{Target: morph.CssExpression(target), Mode: morph.ModeSelector, HTML: html}
}

func TestBatchIsObservedAtomically(t *testing.T) {
	s := startSequencer(t, `<html><body><div id="count">0</div><div id="status">0</div></body></html>`, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			n := strconv.Itoa(i)
			s.Submit(ctx, Batch{Operations: []morph.Operation{selector("#count", n), selector("#status", n)}})
		}
	}()

	for i := 0; i < 50; i++ {
		var count, status string
		err := s.View(ctx, func(doc *dom.Document) {
			c, _ := dom.SelectFirst(doc.Root, "#count")
			st, _ := dom.SelectFirst(doc.Root, "#status")
			count, status = c.InnerHTML(), st.InnerHTML()
		})
		assert.Equal(t, err, nil)
		assert.Equal(t, count, status)
	}
	wg.Wait()

	events, err := s.Apply(ctx, Batch{Operations: []morph.Operation{selector("#count", "5"), selector("#status", "done")}})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(events), 2)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, events[1].Success, true)
	assert.Equal(t, inner(t, s, "#count"), "5")
	assert.Equal(t, inner(t, s, "#status"), "done")
}

func TestOmittedHTMLClearsTarget(t *testing.T) {
	s := startSequencer(t, `<html><body><ul id="list"><li>1</li><li>2</li></ul></body></html>`, Options{})

	wire, err := morphproto.DecodeBatch([]byte(`{"operations": [{"target": "#list", "mode": "selector"}]}`))
	assert.Equal(t, err, nil)
	events, err := s.Apply(context.Background(), FromWire(wire))
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, events[0].Target, "#list")
	assert.Equal(t, inner(t, s, "#list"), "")
}

func TestTransactionAcrossBatches(t *testing.T) {
	s := startSequencer(t, `<html><body><div id="status">idle</div></body></html>`, Options{})
	ctx := context.Background()

	events, err := s.Apply(ctx, Batch{
		Transaction: "spin",
		Operations:  []morph.Operation{selector("#status", `<span class="spinner"></span>`)},
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, inner(t, s, "#status"), `<span class="spinner"></span>`)

	events, err = s.Apply(ctx, Batch{
		Transaction: "spin",
		Complete:    true,
		Operations:  []morph.Operation{selector("#status", "done")},
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, events[0].Transaction, "spin")
	assert.Equal(t, len(events[0].Warnings), 0)
	assert.Equal(t, inner(t, s, "#status"), "done")
}

func TestTransactionModeLockSpansBatches(t *testing.T) {
	s := startSequencer(t, `<html><body><p id="a">1</p></body></html>`, Options{})
	ctx := context.Background()
	page := morph.Operation{Mode: morph.ModePage, HTML: `<p id="a">page</p>`}

	_, err := s.Apply(ctx, Batch{Transaction: "t", Operations: []morph.Operation{selector("#a", "2")}})
	assert.Equal(t, err, nil)

	events, err := s.Apply(ctx, Batch{Transaction: "t", Complete: true, Operations: []morph.Operation{page}})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Mode, "selector")
	assert.Equal(t, events[0].Skipped, true)
	assert.Equal(t, len(events[0].Warnings), 1)
	assert.Equal(t, events[0].Warnings[0][:len("ConfigurationError")], "ConfigurationError")
	assert.Equal(t, inner(t, s, "#a"), "2")

	// the transaction was completed, so the same id locks afresh
	events, err = s.Apply(ctx, Batch{Transaction: "t", Operations: []morph.Operation{page}})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Mode, "page")
	assert.Equal(t, len(events[0].Warnings), 0)
	assert.Equal(t, inner(t, s, "#a"), "page")
}

func body(t *testing.T, s *Sequencer) string {
	var out string
	assert.Equal(t, s.View(context.Background(), func(doc *dom.Document) {
		out = doc.Body().InnerHTML()
	}), nil)
	return out
}

func TestSpinnerThenDone(t *testing.T) {
	s := startSequencer(t, `<html><body><div id="s">idle</div><p>rest</p></body></html>`, Options{})
	ctx := context.Background()

	node := func() *dom.Node {
		var n *dom.Node
		assert.Equal(t, s.View(ctx, func(doc *dom.Document) {
			n, _ = dom.SelectFirst(doc.Root, "#s")
		}), nil)
		return n
	}
	before := node()

	events, err := s.Apply(ctx, Batch{Transaction: "spin", Operations: []morph.Operation{selector("#s", "<div id='s'>spinner</div>")}})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, inner(t, s, "#s"), "spinner")

	events, err = s.Apply(ctx, Batch{Transaction: "spin", Complete: true, Operations: []morph.Operation{selector("#s", "<div id='s'>done</div>")}})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, len(events[0].Warnings), 0)
	assert.Equal(t, inner(t, s, "#s"), "done")
	assert.Equal(t, node() == before, true)
	assert.Equal(t, body(t, s), `<div id="s">done</div><p>rest</p>`)
}

func TestNothingUnderSelectorLock(t *testing.T) {
	s := startSequencer(t, `<html><body><div id="s">idle</div><p>rest</p></body></html>`, Options{})
	ctx := context.Background()

	_, err := s.Apply(ctx, Batch{Transaction: "t", Operations: []morph.Operation{selector("#s", "<div id='s'>spinner</div>")}})
	assert.Equal(t, err, nil)
	want := body(t, s)

	events, err := s.Apply(ctx, Batch{Transaction: "t", Operations: []morph.Operation{{Mode: morph.ModeNothing, HTML: "ignored"}}})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Mode, "selector")
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, events[0].Skipped, true)
	assert.Equal(t, len(events[0].Warnings), 1)
	assert.Equal(t, events[0].Warnings[0][:len("ConfigurationError")], "ConfigurationError")
	assert.Equal(t, body(t, s), want)
}

func TestPageUnderSelectorLock(t *testing.T) {
	s := startSequencer(t, `<html><body><div id="s">idle</div><p>rest</p></body></html>`, Options{})
	ctx := context.Background()

	_, err := s.Apply(ctx, Batch{Transaction: "t", Operations: []morph.Operation{selector("#s", "<div id='s'>spinner</div>")}})
	assert.Equal(t, err, nil)
	want := body(t, s)

	page := morph.Operation{Mode: morph.ModePage, HTML: `<html><head><title>x</title></head><body><div id="s">done</div></body></html>`}
	events, err := s.Apply(ctx, Batch{Transaction: "t", Operations: []morph.Operation{page}})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Mode, "selector")
	assert.Equal(t, events[0].Skipped, true)
	assert.Equal(t, len(events[0].Warnings), 1)
	assert.Equal(t, body(t, s), want)
	assert.Equal(t, inner(t, s, "#s"), "spinner")
}

func TestDOMOperationsFromWire(t *testing.T) {
	s := startSequencer(t, `<html><body><ul id="list"><li class="item">a</li><li class="item">b</li></ul><input id="q"><p id="gone">x</p></body></html>`, Options{})

	wire, err := morphproto.DecodeBatch([]byte(`{"operations": [
		{"op": "add_css_class", "target": ".item", "name": "done", "select_all": true},
		{"op": "insert_adjacent_html", "target": "#list", "html": "<li>c</li>"},
		{"op": "set_value", "target": "#q", "value": 42},
		{"op": "remove", "target": "#gone"},
		{"op": "dispatch_event", "name": "morphed", "detail": {"count": 3}},
		{"op": "set_attribute", "target": "#missing", "name": "x"},
		{"op": "explode", "target": "#q"}
	]}`))
	assert.Equal(t, err, nil)
	events, err := s.Apply(context.Background(), FromWire(wire))
	assert.Equal(t, err, nil)
	assert.Equal(t, len(events), 7)
	for _, ev := range events[:5] {
		assert.Equal(t, ev.Success, true)
		assert.Equal(t, ev.Mode, "selector")
	}
	assert.Equal(t, events[0].Op, "add_css_class")
	assert.Equal(t, events[4].Name, "morphed")
	assert.Equal(t, events[4].Detail, `{"count":3}`)
	assert.Equal(t, events[5].Error, "ResolutionError")
	assert.Equal(t, events[6].Error, "ConfigurationError")

	assert.Equal(t, inner(t, s, "#list"), `<li class="item done">a</li><li class="item done">b</li><li>c</li>`)
	assert.Equal(t, body(t, s), `<ul id="list"><li class="item done">a</li><li class="item done">b</li><li>c</li></ul><input id="q" value="42">`)
}

func TestMorphSelectAllAndPermanentAttribute(t *testing.T) {
	s := startSequencer(t, `<html><body><div class="c"><input id="q" data-keep value="typed"></div><div class="c">2</div></body></html>`, Options{})

	wire, err := morphproto.DecodeBatch([]byte(`{"operations": [
		{"target": ".c", "mode": "selector", "select_all": true, "permanent_attribute_name": "data-keep",
		 "html": "<div class=\"c\"><input id=\"q\" data-keep value=\"\"></div>"}
	]}`))
	assert.Equal(t, err, nil)
	events, err := s.Apply(context.Background(), FromWire(wire))
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, body(t, s), `<div class="c"><input id="q" data-keep="" value="typed"></div><div class="c"><input id="q" data-keep="" value=""></div>`)
}

func TestMalformedOperationIsIsolated(t *testing.T) {
	s := startSequencer(t, `<html><body><p id="a">a</p><p id="b">b</p><p id="c">c</p></body></html>`, Options{})

	events, err := s.Apply(context.Background(), Batch{Operations: []morph.Operation{
		selector("#a", "1"),
		selector("#b", "<em>broken"),
		selector("#c", "3"),
	}})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(events), 3)
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, events[1].Success, false)
	assert.Equal(t, events[1].Error, "ParseError")
	assert.Equal(t, events[2].Success, true)

	assert.Equal(t, inner(t, s, "#a"), "1")
	assert.Equal(t, inner(t, s, "#b"), "b")
	assert.Equal(t, inner(t, s, "#c"), "3")
}

func TestUnknownModeFailsOnlyItsOperation(t *testing.T) {
	s := startSequencer(t, `<html><body><p id="a">a</p><p id="b">b</p></body></html>`, Options{})

	wire, err := morphproto.DecodeBatch([]byte(`{"operations": [
		{"target": "#a", "mode": "morph", "html": "x"},
		{"target": "#b", "mode": "selector", "html": 7}
	]}`))
	assert.Equal(t, err, nil)
	events, err := s.Apply(context.Background(), FromWire(wire))
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Success, false)
	assert.Equal(t, events[0].Error, "ConfigurationError")
	assert.Equal(t, events[1].Success, true)
	assert.Equal(t, inner(t, s, "#a"), "a")
	assert.Equal(t, inner(t, s, "#b"), "7")
}

func TestBatchesApplyInOrder(t *testing.T) {
	s := startSequencer(t, `<html><body><p id="n">0</p></body></html>`, Options{QueueSize: 4})
	ctx := context.Background()

	var mu sync.Mutex
	var seen []uint64
	s.Observe(func(events []morphproto.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, events[0].Batch)
	})
	var rendered []string
	s.OnBatch(func(doc *dom.Document) {
		n, _ := dom.SelectFirst(doc.Root, "#n")
		rendered = append(rendered, n.InnerHTML())
	})

	for i := 1; i <= 9; i++ {
		assert.Equal(t, s.Submit(ctx, Batch{Operations: []morph.Operation{selector("#n", strconv.Itoa(i))}}), nil)
	}
	_, err := s.Apply(ctx, Batch{Operations: []morph.Operation{selector("#n", "10")}})
	assert.Equal(t, err, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, len(seen), 10)
	for i, b := range seen {
		assert.Equal(t, b, uint64(i+1))
		assert.Equal(t, rendered[i], strconv.Itoa(i+1))
	}
}

func TestNothingModeEvent(t *testing.T) {
	s := startSequencer(t, `<html><body><p id="a">a</p></body></html>`, Options{})
	events, err := s.Apply(context.Background(), Batch{Operations: []morph.Operation{{Mode: morph.ModeNothing}}})
	assert.Equal(t, err, nil)
	assert.Equal(t, events[0].Mode, "nothing")
	assert.Equal(t, events[0].Success, true)
	assert.Equal(t, inner(t, s, "#a"), "a")
}

func TestApplyCanceledContext(t *testing.T) {
	doc, err := dom.ParseDocument(`<p>x</p>`)
	assert.Equal(t, err, nil)
	s := New(doc, morph.NewController(morph.Options{}), Options{QueueSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, s.Submit(context.Background(), Batch{}), nil)
	_, err = s.Apply(ctx, Batch{})
	assert.Equal(t, err, context.Canceled)
}

func TestTransactionsEvictOldest(t *testing.T) {
	txs := newTransactions(2)
	a := txs.get("a")
	txs.get("b")
	assert.Equal(t, txs.get("a") == a, true)

	txs.get("c")
	assert.Equal(t, txs.len(), 2)
	assert.Equal(t, txs.get("a") == a, false)

	txs.close("c")
	assert.Equal(t, txs.len(), 1)
	assert.Equal(t, txs.get("") == txs.get(""), false)
	assert.Equal(t, txs.len(), 1)
}
