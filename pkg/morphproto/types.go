package morphproto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Mode names on the wire.
const (
	ModePage     = "page"
	ModeSelector = "selector"
	ModeNothing  = "nothing"
)

// Batch is one inbound message: operations applied in the order listed.
type Batch struct {
	Transaction string      `json:"transaction,omitempty" yaml:"transaction,omitempty"` // batches sharing an id share one mode lock
	Complete    bool        `json:"complete,omitempty" yaml:"complete,omitempty"`       // closes the transaction after this batch
	Operations  []Operation `json:"operations" yaml:"operations"`
}

// Operation kinds on the wire besides the default morph.
const (
	OpMorph              = "morph"
	OpInnerHTML          = "inner_html"
	OpOuterHTML          = "outer_html"
	OpTextContent        = "text_content"
	OpInsertAdjacentHTML = "insert_adjacent_html"
	OpInsertAdjacentText = "insert_adjacent_text"
	OpRemove             = "remove"
	OpSetAttribute       = "set_attribute"
	OpRemoveAttribute    = "remove_attribute"
	OpAddCSSClass        = "add_css_class"
	OpRemoveCSSClass     = "remove_css_class"
	OpSetDatasetProperty = "set_dataset_property"
	OpSetStyle           = "set_style"
	OpSetValue           = "set_value"
	OpDispatchEvent      = "dispatch_event"
)

// Operation is a single request. Without an op it is a morph.
type Operation struct {
	Op     string  `json:"op,omitempty" yaml:"op,omitempty"`
	Target Target  `json:"target" yaml:"target,omitempty"`       // required for selector mode and DOM operations
	Mode   string  `json:"mode,omitempty" yaml:"mode,omitempty"` // page, selector or nothing; morphs only
	HTML   Payload `json:"html,omitempty" yaml:"html,omitempty"`

	PermanentAttribute string `json:"permanent_attribute_name,omitempty" yaml:"permanent_attribute_name,omitempty"`
	SelectAll          bool   `json:"select_all,omitempty" yaml:"select_all,omitempty"`

	Name     string  `json:"name,omitempty" yaml:"name,omitempty"`
	Value    Payload `json:"value,omitempty" yaml:"value,omitempty"`
	Text     Payload `json:"text,omitempty" yaml:"text,omitempty"`
	Position string  `json:"position,omitempty" yaml:"position,omitempty"` // beforebegin, afterbegin, beforeend or afterend
	Detail   Payload `json:"detail,omitempty" yaml:"detail,omitempty"`     // dispatch_event only
}

// Target is either a selector expression, encoded as a plain string, or an
// anchor reference, encoded as {"anchor": "<selector>"}.
type Target struct {
	Selector string
	Anchor   string
}

// Payload is markup coerced to text while decoding. Numbers and booleans keep
// their literal form, objects and arrays their JSON text, null becomes "".
type Payload string

// Event reports the outcome of one operation.
type Event struct {
	Transaction string   `json:"transaction,omitempty"`
	Batch       uint64   `json:"batch"`        // sequence number of the batch, starting at 1
	Index       int      `json:"index"`        // position of the operation in its batch
	Op          string   `json:"op,omitempty"` // set for operations other than morph
	Target      string   `json:"target,omitempty"`
	Mode        string   `json:"mode"` // the mode the operation ran under
	Success     bool     `json:"success"`
	Skipped     bool     `json:"skipped,omitempty"` // rejected by the transaction's mode lock, nothing changed
	Error       string   `json:"error,omitempty"`   // ParseError, PatchError, ConfigurationError, ...
	Message     string   `json:"message,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`

	// dispatch_event is carried out by clients
	Name   string `json:"name,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// DecodeBatch parses a JSON batch.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("invalid batch: %w", err)
	}
	return b, nil
}

// DecodeBatchYAML parses a YAML batch.
func DecodeBatchYAML(data []byte) (Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("invalid batch: %w", err)
	}
	return b, nil
}

func (t Target) String() string {
	if t.Anchor != "" {
		return "anchor:" + t.Anchor
	}
	return t.Selector
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.Anchor != "" {
		return json.Marshal(struct {
			Anchor string `json:"anchor"`
		}{t.Anchor})
	}
	return json.Marshal(t.Selector)
}

func (t *Target) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = Target{}
		return nil
	case len(data) > 0 && data[0] == '"':
		*t = Target{}
		return json.Unmarshal(data, &t.Selector)
	case len(data) > 0 && data[0] == '{':
		var ref struct {
			Anchor   string `json:"anchor"`
			Selector string `json:"selector"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*t = Target{Selector: ref.Selector, Anchor: ref.Anchor}
		return nil
	default:
		return fmt.Errorf("target must be a selector string or an anchor object, got %s", data)
	}
}

func (t *Target) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*t = Target{}
		if value.Tag != "!!null" {
			t.Selector = value.Value
		}
		return nil
	case yaml.MappingNode:
		var ref struct {
			Anchor   string `yaml:"anchor"`
			Selector string `yaml:"selector"`
		}
		if err := value.Decode(&ref); err != nil {
			return err
		}
		*t = Target{Selector: ref.Selector, Anchor: ref.Anchor}
		return nil
	default:
		return fmt.Errorf("line %d: target must be a selector string or an anchor mapping", value.Line)
	}
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Payload(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*p = Payload(buf.String())
	}
	return nil
}

func (p *Payload) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag == "!!null" {
			*p = ""
		} else {
			*p = Payload(value.Value)
		}
		return nil
	}
	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("line %d: html: %w", value.Line, err)
	}
	*p = Payload(buf)
	return nil
}
