package xmldiff

import (
	"strings"
)

// Unit kinds used in grouping markers.
const (
	UnitShape           = "shape"
	UnitTextRun         = "text-run"
	UnitShapeProperties = "shape-properties"
)

// unitKinds maps local element names that open a structural unit.
var unitKinds = map[string]string{
	"sp":           UnitShape,
	"pic":          UnitShape,
	"graphicFrame": UnitShape,
	"cxnSp":        UnitShape,
	"grpSp":        UnitShape,
	"r":            UnitTextRun,
	"spPr":         UnitShapeProperties,
}

// StartMarker and EndMarker format the bracketing lines.
func StartMarker(kind string) string { return "### start of " + kind + " change" }
func EndMarker(kind string) string   { return "### end of " + kind + " change" }

type openGroup struct {
	kind     string
	marker   byte
	closeTag string
	indent   int
}

// closes reports whether a diff line ends the group. Only a line from the
// opener's side of the diff, or a context line, can close it.
func (g *openGroup) closes(marker byte, body string) bool {
	if marker != g.marker && marker != opEqual {
		return false
	}
	return indentOf(body) == g.indent && strings.TrimSpace(body) == g.closeTag
}

// groupSemantic brackets runs of diff lines that begin with a changed line
// opening a shape, text run or shape-properties element. A group ends at the
// matching close tag, at the end of its hunk, or at the end of the diff.
// Groups do not nest; all other lines pass through unchanged.
func groupSemantic(lines []string) []string {
	out := make([]string, 0, len(lines))
	var open *openGroup

	closeGroup := func() {
		if open != nil {
			out = append(out, EndMarker(open.kind))
			open = nil
		}
	}

	for _, line := range lines {
		if isHeaderLine(line) {
			closeGroup()
			out = append(out, line)
			continue
		}
		if line == "" {
			out = append(out, line)
			continue
		}

		marker, body := line[0], line[1:]

		if open == nil && (marker == opDelete || marker == opInsert) {
			if kind, name, closed, ok := unitOpener(body); ok {
				out = append(out, StartMarker(kind), line)
				if closed {
					out = append(out, EndMarker(kind))
				} else {
					open = &openGroup{kind: kind, marker: marker, closeTag: "</" + name + ">", indent: indentOf(body)}
				}
				continue
			}
		}

		out = append(out, line)
		if open != nil && open.closes(marker, body) {
			closeGroup()
		}
	}
	closeGroup()
	return out
}

func isHeaderLine(line string) bool {
	return strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ")
}

// unitOpener reports whether a canonical line opens a structural unit. closed
// is true when the element also ends on the same line.
func unitOpener(body string) (kind, name string, closed, ok bool) {
	s := strings.TrimLeft(body, " ")
	if !strings.HasPrefix(s, "<") || strings.HasPrefix(s, "</") {
		return "", "", false, false
	}
	name = s[1:]
	if i := strings.IndexAny(name, " />"); i >= 0 {
		name = name[:i]
	}
	local := name
	if i := strings.LastIndexByte(local, ':'); i >= 0 {
		local = local[i+1:]
	}
	kind, ok = unitKinds[local]
	if !ok {
		return "", "", false, false
	}
	closed = strings.HasSuffix(s, "/>") || strings.HasSuffix(s, "</"+name+">")
	return kind, name, closed, true
}

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}
