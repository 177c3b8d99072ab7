// Package element defines the vocabulary of a slide's content: a flat,
// ordered collection of identifiable elements with geometry and style.
package element

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/gusuku-oknw/peerdiffx/cas"
)

// Kind is the type of a visual element.
type Kind string

const (
	KindText  Kind = "text"
	KindShape Kind = "shape"
	KindImage Kind = "image"
	KindChart Kind = "chart"
)

// Valid reports whether k is a known element kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindShape, KindImage, KindChart:
		return true
	default:
		return false
	}
}

// Element is one visual unit on a slide. ID is stable across versions of
// the same logical element and unique within one slide version.
type Element struct {
	ID       string                 `json:"id"`
	Kind     Kind                   `json:"type"`
	X        int                    `json:"x"`
	Y        int                    `json:"y"`
	Width    int                    `json:"width"`
	Height   int                    `json:"height"`
	Content  string                 `json:"content,omitempty"`
	Style    map[string]interface{} `json:"style,omitempty"`
	Children []Element              `json:"children,omitempty"`
}

// Collection is the ordered element list of one slide version.
type Collection []Element

// DuplicateIDError reports an id that occurs more than once in a collection.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate element id %q", e.ID)
}

// Validate checks the collection invariants: every element has an id and a
// known kind, and ids are unique among siblings.
func (c Collection) Validate() error {
	seen := make(map[string]bool, len(c))
	for i, e := range c {
		if e.ID == "" {
			return fmt.Errorf("element %d: missing id", i)
		}
		if !e.Kind.Valid() {
			return fmt.Errorf("element %q: unknown type %q", e.ID, e.Kind)
		}
		if seen[e.ID] {
			return &DuplicateIDError{ID: e.ID}
		}
		seen[e.ID] = true
		if len(e.Children) > 0 {
			if err := Collection(e.Children).Validate(); err != nil {
				return fmt.Errorf("children of %q: %w", e.ID, err)
			}
		}
	}
	return nil
}

// Index builds an id lookup. When ids repeat, the last occurrence wins.
func (c Collection) Index() map[string]Element {
	m := make(map[string]Element, len(c))
	for _, e := range c {
		m[e.ID] = e
	}
	return m
}

// IDs returns the element ids in collection order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i, e := range c {
		ids[i] = e.ID
	}
	return ids
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	for i, e := range c {
		out[i] = e.Clone()
	}
	return out
}

// SameSet reports whether both collections hold structurally equal elements
// for exactly the same ids, ignoring order.
func (c Collection) SameSet(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	idx := other.Index()
	if len(idx) != len(other) {
		return false
	}
	for _, e := range c {
		o, ok := idx[e.ID]
		if !ok || !Equal(e, o) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	out := e
	if e.Style != nil {
		out.Style = cloneValue(e.Style).(map[string]interface{})
	}
	if e.Children != nil {
		out.Children = Collection(e.Children).Clone()
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, x := range val {
			m[k] = cloneValue(x)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(val))
		for i, x := range val {
			s[i] = cloneValue(x)
		}
		return s
	default:
		return v
	}
}

// Equal reports full structural equality of two elements: kind, geometry,
// content, style and children. Style values are compared by their canonical
// JSON form, so numerically equal values of different Go types match.
func Equal(a, b Element) bool {
	if a.ID != b.ID || a.Kind != b.Kind || a.Content != b.Content {
		return false
	}
	if a.X != b.X || a.Y != b.Y || a.Width != b.Width || a.Height != b.Height {
		return false
	}
	if !styleEqual(a.Style, b.Style) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func styleEqual(a, b map[string]interface{}) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	ca, errA := cas.CanonicalJSON(a)
	cb, errB := cas.CanonicalJSON(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ca, cb)
}

// ChangedFields names the fields that differ between two versions of an
// element, in declaration order. It is meant for display.
func ChangedFields(before, after Element) []string {
	var fields []string
	if before.Kind != after.Kind {
		fields = append(fields, "type")
	}
	if before.X != after.X {
		fields = append(fields, "x")
	}
	if before.Y != after.Y {
		fields = append(fields, "y")
	}
	if before.Width != after.Width {
		fields = append(fields, "width")
	}
	if before.Height != after.Height {
		fields = append(fields, "height")
	}
	if before.Content != after.Content {
		fields = append(fields, "content")
	}
	if !styleEqual(before.Style, after.Style) {
		fields = append(fields, "style")
	}
	if !childrenEqual(before.Children, after.Children) {
		fields = append(fields, "children")
	}
	return fields
}

func childrenEqual(a, b []Element) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
