package xmldiff

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

type attr struct {
	name  string
	value string
}

// node is one element or text node of a parsed document.
type node struct {
	name     string // rendered name
	raw      string // prefix:local as written, for end-tag matching
	attrs    []attr
	children []*node
	text     string
	isText   bool
}

// Normalize parses doc and re-serializes it in canonical form: one element
// per line, two-space indentation, attributes sorted by name, ignored
// attributes removed, and text escaped onto a single line.
func Normalize(doc string, opts Options) (string, error) {
	root, err := parse(doc, opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	writeNode(&buf, root, 0)
	return buf.String(), nil
}

func parse(doc string, opts Options) (*node, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.Strict = true

	var root *node
	var stack []*node

	for {
		// RawToken keeps prefixes as written instead of resolving them to URIs.
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, errors.New("multiple root elements")
			}
			n := &node{name: opts.qualify(t.Name), raw: rawName(t.Name)}
			seen := make(map[string]bool, len(t.Attr))
			for _, a := range t.Attr {
				rn := rawName(a.Name)
				if seen[rn] {
					return nil, fmt.Errorf("duplicate attribute %q on <%s>", rn, n.raw)
				}
				seen[rn] = true
				if opts.dropAttr(a.Name) {
					continue
				}
				n.attrs = append(n.attrs, attr{name: opts.qualify(a.Name), value: a.Value})
			}
			sort.SliceStable(n.attrs, func(i, j int) bool { return n.attrs[i].name < n.attrs[j].name })

			if len(stack) == 0 {
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element </%s>", rawName(t.Name))
			}
			top := stack[len(stack)-1]
			if top.raw != rawName(t.Name) {
				return nil, fmt.Errorf("element <%s> closed by </%s>", top.raw, rawName(t.Name))
			}
			finishText(top, opts)
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, errors.New("text outside the root element")
				}
				continue
			}
			parent := stack[len(stack)-1]
			if last := len(parent.children) - 1; last >= 0 && parent.children[last].isText {
				parent.children[last].text += string(t)
			} else {
				parent.children = append(parent.children, &node{isText: true, text: string(t)})
			}
		}
		// Comments, processing instructions and directives carry no slide content.
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("element <%s> is not closed", stack[len(stack)-1].raw)
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	return root, nil
}

// finishText applies whitespace handling to the text children of n.
func finishText(n *node, opts Options) {
	if !opts.IgnoreWhitespace {
		return
	}
	kept := n.children[:0]
	for _, c := range n.children {
		if c.isText {
			c.text = strings.Join(strings.Fields(c.text), " ")
			if c.text == "" {
				continue
			}
		}
		kept = append(kept, c)
	}
	n.children = kept
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func writeNode(buf *bytes.Buffer, n *node, depth int) {
	indent := strings.Repeat("  ", depth)

	if n.isText {
		buf.WriteString(indent)
		escape(buf, n.text)
		buf.WriteByte('\n')
		return
	}

	buf.WriteString(indent)
	buf.WriteByte('<')
	buf.WriteString(n.name)
	for _, a := range n.attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.name)
		buf.WriteString(`="`)
		escape(buf, a.value)
		buf.WriteByte('"')
	}

	switch {
	case len(n.children) == 0:
		buf.WriteString("/>\n")
	case len(n.children) == 1 && n.children[0].isText:
		buf.WriteByte('>')
		escape(buf, n.children[0].text)
		buf.WriteString("</" + n.name + ">\n")
	default:
		buf.WriteString(">\n")
		for _, c := range n.children {
			writeNode(buf, c, depth+1)
		}
		buf.WriteString(indent + "</" + n.name + ">\n")
	}
}

// escape writes s with XML escaping; newlines and tabs become character
// references so every node stays on one line.
func escape(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}
