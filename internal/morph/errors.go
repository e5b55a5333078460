package morph

import (
	"errors"
	"fmt"
	"strings"

	"gihan9a/morphcast/internal/dom"
)

// ErrorKind classifies operation failures for event reporting.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindParse
	KindResolution
	KindConfiguration
	KindPatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindResolution:
		return "ResolutionError"
	case KindConfiguration:
		return "ConfigurationError"
	case KindPatch:
		return "PatchError"
	default:
		return ""
	}
}

// ParseError is the markup error reported by the dom parser.
type ParseError = dom.ParseError

// PatchError wraps a failure to patch a container. The container is unchanged.
type PatchError struct {
	Container string
	Err       error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch %s: %v", e.Container, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// ResolutionError lists selectors that matched nothing. For morphs it is
// advisory: the resolver has already fallen back to the next rule. DOM
// operations have no fallback and fail with it.
type ResolutionError struct {
	Selectors  []string
	Fallback   Rule
	NoFallback bool
}

func (e *ResolutionError) Error() string {
	if e.NoFallback {
		return fmt.Sprintf("no element matched %s", strings.Join(e.Selectors, ", "))
	}
	return fmt.Sprintf("no element matched %s, resolved by %s", strings.Join(e.Selectors, ", "), e.Fallback)
}

// ConfigurationError reports a mode that could not be selected, or an
// operation missing a field it requires.
type ConfigurationError struct {
	Locked    Mode
	Requested Mode
	Msg       string
}

func (e *ConfigurationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Requested == ModeUnset {
		return "operation has no valid mode"
	}
	return fmt.Sprintf("mode already locked to %s, %s rejected", e.Locked, e.Requested)
}

// KindOf returns the most specific kind found in err's chain.
func KindOf(err error) ErrorKind {
	var (
		pe *ParseError
		re *ResolutionError
		ce *ConfigurationError
		xe *PatchError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &re):
		return KindResolution
	case errors.As(err, &ce):
		return KindConfiguration
	case errors.As(err, &xe):
		return KindPatch
	default:
		return KindNone
	}
}
