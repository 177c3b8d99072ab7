// Package xmldiff normalizes two raw slide XML documents and produces a
// human-readable unified diff, optionally annotated with the structural unit
// (shape, text run, shape properties) each group of changed lines belongs to.
package xmldiff

import (
	"encoding/xml"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnoreAttributes lists attributes that presentation editors rewrite
// on save without any visible change.
var DefaultIgnoreAttributes = []string{
	"dirty",
	"err",
	"smtClean",
	"smtId",
	"noProof",
	"rsid*",
}

// Options controls normalization and output.
// The zero value compares documents verbatim with no grouping; use
// DefaultOptions for the usual behaviour.
type Options struct {
	// IgnoreWhitespace collapses runs of whitespace in text nodes and drops
	// whitespace-only text nodes.
	IgnoreWhitespace bool `yaml:"ignore_whitespace" json:"ignoreWhitespace"`
	// IgnoreAttributes holds glob patterns (doublestar syntax) matched against
	// both the prefixed ("a:dirty") and local ("dirty") attribute name.
	IgnoreAttributes []string `yaml:"ignore_attributes" json:"ignoreAttributes"`
	// IgnoreNamespaces drops prefixes from names and removes xmlns declarations.
	IgnoreNamespaces bool `yaml:"ignore_namespaces" json:"ignoreNamespaces"`
	// SemanticGrouping brackets changes that open a shape, text run or
	// shape-properties block with start/end markers.
	SemanticGrouping bool `yaml:"semantic_grouping" json:"semanticGrouping"`
	// Context is the number of unchanged lines around each hunk (default 3).
	Context int `yaml:"context" json:"context,omitempty"`
	// OldLabel and NewLabel name the two sides in the diff header.
	OldLabel string `yaml:"-" json:"oldLabel,omitempty"`
	NewLabel string `yaml:"-" json:"newLabel,omitempty"`
}

// DefaultOptions returns the default comparison options.
func DefaultOptions() Options {
	attrs := make([]string, len(DefaultIgnoreAttributes))
	copy(attrs, DefaultIgnoreAttributes)
	return Options{
		IgnoreWhitespace: true,
		IgnoreAttributes: attrs,
		IgnoreNamespaces: false,
		SemanticGrouping: true,
		Context:          3,
	}
}

// Validate checks the ignore patterns.
func (o Options) Validate() error {
	for _, p := range o.IgnoreAttributes {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore attribute pattern %q", p)
		}
	}
	if o.Context < 0 {
		return fmt.Errorf("context must not be negative, got %d", o.Context)
	}
	return nil
}

func (o Options) context() int {
	if o.Context == 0 {
		return 3
	}
	return o.Context
}

func (o Options) labels() (string, string) {
	oldLabel, newLabel := o.OldLabel, o.NewLabel
	if oldLabel == "" {
		oldLabel = "old"
	}
	if newLabel == "" {
		newLabel = "new"
	}
	return oldLabel, newLabel
}

// qualify renders a raw (unresolved) name.
func (o Options) qualify(n xml.Name) string {
	if o.IgnoreNamespaces || n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// dropAttr reports whether an attribute is removed before comparison.
func (o Options) dropAttr(n xml.Name) bool {
	if o.IgnoreNamespaces && (n.Space == "xmlns" || (n.Space == "" && n.Local == "xmlns")) {
		return true
	}
	qualified := n.Local
	if n.Space != "" {
		qualified = n.Space + ":" + n.Local
	}
	for _, p := range o.IgnoreAttributes {
		if ok, _ := doublestar.Match(p, qualified); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, n.Local); ok {
			return true
		}
	}
	return false
}
