package morph

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestTransactionModeLock(t *testing.T) {
	tx := NewTransaction("t1")
	assert.Equal(t, tx.Mode(), ModeUnset)

	mode, err := tx.Select(ModeSelector)
	assert.Equal(t, err, nil)
	assert.Equal(t, mode, ModeSelector)

	mode, err = tx.Select(ModeSelector)
	assert.Equal(t, err, nil)
	assert.Equal(t, mode, ModeSelector)

	mode, err = tx.Select(ModePage)
	assert.Equal(t, mode, ModeSelector)
	assert.Equal(t, KindOf(err), KindConfiguration)
	assert.Equal(t, tx.Mode(), ModeSelector)
}

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{"page": ModePage, " Selector ": ModeSelector, "nothing": ModeNothing} {
		got, err := ParseMode(name)
		assert.Equal(t, err, nil)
		assert.Equal(t, got, want)
	}
	got, err := ParseMode("morph")
	assert.NotEqual(t, err, nil)
	assert.Equal(t, got, ModeUnset)
}

func TestControllerSelector(t *testing.T) {
	doc := parseDoc(t, `<html><body><div id="count">1</div><div id="status">busy</div></body></html>`)
	c := NewController(Options{})

	out := c.Apply(doc, NewTransaction(""), Operation{Target: CssExpression("#count"), Mode: ModeSelector, HTML: "5"})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, out.Mode, ModeSelector)
	assert.Equal(t, len(out.Warnings), 0)
	assert.Equal(t, find(t, doc, "#count").InnerHTML(), "5")
	assert.Equal(t, find(t, doc, "#status").InnerHTML(), "busy")

	out = c.Apply(doc, NewTransaction(""), Operation{Target: CssExpression("#status"), Mode: ModeSelector})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, len(find(t, doc, "#status").Children), 0)
}

func TestControllerPageHonorsPermanent(t *testing.T) {
	doc := parseDoc(t, `<html><head><title>t</title></head><body><input id="q" data-reflex-permanent value="typed"><h1>Old</h1></body></html>`)
	c := NewController(Options{})

	out := c.Apply(doc, NewTransaction("p"), Operation{
		Mode: ModePage,
		HTML: `<html><head><title>t</title></head><body><input id="q" data-reflex-permanent value=""><h1>New</h1></body></html>`,
	})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, doc.Body().InnerHTML(), `<input id="q" data-reflex-permanent="" value="typed"><h1>New</h1>`)
}

func TestControllerPageParseError(t *testing.T) {
	doc := parseDoc(t, `<html><body><h1>Old</h1></body></html>`)
	before := doc.String()

	out := NewController(Options{}).Apply(doc, NewTransaction(""), Operation{Mode: ModePage, HTML: `<html><body><h1>New</body></html>`})
	assert.Equal(t, out.Success(), false)
	assert.Equal(t, KindOf(out.Err), KindParse)
	assert.Equal(t, doc.String(), before)
}

func TestControllerNothing(t *testing.T) {
	doc := parseDoc(t, `<html><body><p id="p">x</p></body></html>`)
	before := doc.String()

	out := NewController(Options{}).Apply(doc, NewTransaction(""), Operation{Target: CssExpression("#p"), Mode: ModeNothing, HTML: "ignored"})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, out.Mode, ModeNothing)
	assert.Equal(t, doc.String(), before)
}

func TestControllerModeRelockKeepsFirstMode(t *testing.T) {
	doc := parseDoc(t, `<html><body><p id="a">1</p><p id="b">1</p></body></html>`)
	c := NewController(Options{})
	tx := NewTransaction("r1")

	out := c.Apply(doc, tx, Operation{Target: CssExpression("#a"), Mode: ModeSelector, HTML: "2"})
	assert.Equal(t, out.Success(), true)

	out = c.Apply(doc, tx, Operation{Target: CssExpression("#b"), Mode: ModePage, HTML: "2"})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, out.Mode, ModeSelector)
	assert.Equal(t, len(out.Warnings), 1)
	assert.Equal(t, KindOf(out.Warnings[0]), KindConfiguration)
	assert.Equal(t, find(t, doc, "#b").InnerHTML(), "2")
}

func TestControllerSkipsRejectedModeWithoutTarget(t *testing.T) {
	tests := []struct {
		name string
		lock Operation
		op   Operation
	}{
		{
			name: "nothing under selector lock",
			lock: Operation{Target: CssExpression("#a"), Mode: ModeSelector, HTML: "2"},
			op:   Operation{Mode: ModeNothing, HTML: "x"},
		},
		{
			name: "page under selector lock",
			lock: Operation{Target: CssExpression("#a"), Mode: ModeSelector, HTML: "2"},
			op:   Operation{Mode: ModePage, HTML: `<html><body><p id="a">page</p></body></html>`},
		},
		{
			name: "selector under page lock",
			lock: Operation{Mode: ModePage, HTML: `<p id="a">2</p><p id="b">1</p>`},
			op:   Operation{Target: CssExpression("#b"), Mode: ModeSelector, HTML: "x"},
		},
		{
			name: "selector under nothing lock",
			lock: Operation{Mode: ModeNothing},
			op:   Operation{Target: CssExpression("#b"), Mode: ModeSelector, HTML: "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, `<html><body><p id="a">1</p><p id="b">1</p></body></html>`)
			c := NewController(Options{})
			tx := NewTransaction("t")
			assert.Equal(t, c.Apply(doc, tx, tt.lock).Success(), true)
			before := doc.String()

			out := c.Apply(doc, tx, tt.op)
			assert.Equal(t, out.Success(), true)
			assert.Equal(t, out.Skipped, true)
			assert.Equal(t, out.Mode, tt.lock.Mode)
			assert.Equal(t, len(out.Warnings), 1)
			assert.Equal(t, KindOf(out.Warnings[0]), KindConfiguration)
			assert.Equal(t, doc.String(), before)
		})
	}
}

func TestControllerPerOperationPermanentAttribute(t *testing.T) {
	doc := parseDoc(t, `<html><body><div id="f"><input id="q" data-keep value="typed"><input id="r" data-reflex-permanent value="kept"></div></body></html>`)
	c := NewController(Options{})

	out := c.Apply(doc, NewTransaction(""), Operation{
		Target:             CssExpression("#f"),
		Mode:               ModeSelector,
		HTML:               `<div id="f"><input id="q" data-keep value=""><input id="r" data-reflex-permanent value=""></div>`,
		PermanentAttribute: "data-keep",
	})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, find(t, doc, "#f").InnerHTML(), `<input id="q" data-keep="" value="typed"><input id="r" data-reflex-permanent="" value="">`)
}

func TestControllerSelectAll(t *testing.T) {
	doc := parseDoc(t, `<html><body><ul class="l"><li>a</li></ul><ul class="l"><li>b</li></ul></body></html>`)
	c := NewController(Options{})

	out := c.Apply(doc, NewTransaction(""), Operation{Target: CssExpression(".l"), Mode: ModeSelector, HTML: "<li>x</li>"})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, doc.Body().InnerHTML(), `<ul class="l"><li>x</li></ul><ul class="l"><li>b</li></ul>`)

	out = c.Apply(doc, NewTransaction(""), Operation{Target: CssExpression(".l"), Mode: ModeSelector, SelectAll: true, HTML: "<li>y</li>"})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, doc.Body().InnerHTML(), `<ul class="l"><li>y</li></ul><ul class="l"><li>y</li></ul>`)

	out = c.Apply(doc, NewTransaction(""), Operation{Target: CssExpression(".l"), Mode: ModeSelector, SelectAll: true, HTML: "<li>open"})
	assert.Equal(t, KindOf(out.Err), KindParse)
	assert.Equal(t, doc.Body().InnerHTML(), `<ul class="l"><li>y</li></ul><ul class="l"><li>y</li></ul>`)
}

func TestControllerUnsetMode(t *testing.T) {
	doc := parseDoc(t, `<html><body><p id="a">1</p></body></html>`)
	out := NewController(Options{}).Apply(doc, NewTransaction(""), Operation{Target: CssExpression("#a"), HTML: "2"})
	assert.Equal(t, out.Success(), false)
	assert.Equal(t, KindOf(out.Err), KindConfiguration)
	assert.Equal(t, find(t, doc, "#a").InnerHTML(), "1")
}

func TestControllerResolutionWarning(t *testing.T) {
	doc := parseDoc(t, `<html><body><p id="a">1</p></body></html>`)
	out := NewController(Options{}).Apply(doc, NewTransaction(""), Operation{Target: CssExpression("#missing"), Mode: ModeSelector, HTML: "<p id=\"a\">1</p>"})
	assert.Equal(t, out.Success(), true)
	assert.Equal(t, out.Target.Rule, RuleBody)
	assert.Equal(t, KindOf(out.Warnings[0]), KindResolution)
}
