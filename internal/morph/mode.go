package morph

import (
	"fmt"
	"strings"
)

// Mode selects what a morph does to the document.
type Mode int

const (
	ModeUnset Mode = iota
	ModePage
	ModeSelector
	ModeNothing
)

func (m Mode) String() string {
	switch m {
	case ModePage:
		return "page"
	case ModeSelector:
		return "selector"
	case ModeNothing:
		return "nothing"
	default:
		return "unset"
	}
}

// ParseMode maps the wire name of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "page":
		return ModePage, nil
	case "selector":
		return ModeSelector, nil
	case "nothing":
		return ModeNothing, nil
	default:
		return ModeUnset, fmt.Errorf("unknown morph mode %q", s)
	}
}

// Transaction is the context of one logical operation. Its mode is selected
// at most once; every operation applied under it shares that mode.
type Transaction struct {
	ID   string
	mode Mode
}

func NewTransaction(id string) *Transaction {
	return &Transaction{ID: id}
}

// Mode returns the locked mode, or ModeUnset before the first selection.
func (t *Transaction) Mode() Mode {
	return t.mode
}

// Select locks the mode on first use. A later request for a different mode
// returns the locked mode together with a ConfigurationError.
func (t *Transaction) Select(m Mode) (Mode, error) {
	if m == ModeUnset {
		return t.mode, &ConfigurationError{Locked: t.mode, Requested: m}
	}
	if t.mode == ModeUnset {
		t.mode = m
		return m, nil
	}
	if t.mode != m {
		return t.mode, &ConfigurationError{Locked: t.mode, Requested: m}
	}
	return m, nil
}
