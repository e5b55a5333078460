package broadcast

import (
	"github.com/golang/glog"

	"gihan9a/morphcast/internal/morph"
)

const DefaultMaxOpenTransactions = 1024

// transactions holds the mode locks of open transactions, oldest first.
// Only the sequencer goroutine touches it.
type transactions struct {
	max   int
	open  map[string]*morph.Transaction
	order []string
}

func newTransactions(max int) *transactions {
	if max <= 0 {
		max = DefaultMaxOpenTransactions
	}
	return &transactions{
		max:  max,
		open: make(map[string]*morph.Transaction),
	}
}

// get returns the open transaction for id, opening it if needed. An empty id
// is never stored.
func (t *transactions) get(id string) *morph.Transaction {
	if id == "" {
		return morph.NewTransaction("")
	}
	if tx, ok := t.open[id]; ok {
		return tx
	}
	for len(t.order) >= t.max {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.open, oldest)
		glog.Infof("[seq]evicted transaction %q\n", oldest)
	}
	tx := morph.NewTransaction(id)
	t.open[id] = tx
	t.order = append(t.order, id)
	return tx
}

func (t *transactions) close(id string) {
	if _, ok := t.open[id]; !ok {
		return
	}
	delete(t.open, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	glog.V(2).Infof("[seq]closed transaction %q\n", id)
}

func (t *transactions) len() int {
	return len(t.open)
}
