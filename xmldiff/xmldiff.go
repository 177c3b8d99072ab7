package xmldiff

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// Stat counts changed lines in a diff. Within a hunk, deletions paired with
// additions count as Changed.
type Stat struct {
	Added   int `json:"added"`
	Changed int `json:"changed"`
	Deleted int `json:"deleted"`
}

// Result is the outcome of comparing two documents.
type Result struct {
	// Text is the unified diff, grouped when requested; empty when the
	// normalized documents are identical.
	Text string `json:"text"`
	// Unified is the plain unified diff without grouping markers.
	Unified string `json:"unified"`
	Stat    Stat   `json:"stat"`
}

// Identical reports whether the normalized documents had no differences.
func (r *Result) Identical() bool {
	return r.Unified == ""
}

// Diff returns the human-readable unified diff of two XML documents.
func Diff(oldXML, newXML string, opts Options) (string, error) {
	r, err := Compare(oldXML, newXML, opts)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

// Compare normalizes both documents, diffs their canonical forms line by
// line and computes statistics. Input that is not well-formed XML yields a
// *MalformedDocumentError; no partial diff is produced.
func Compare(oldXML, newXML string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	oldCanon, err := Normalize(oldXML, opts)
	if err != nil {
		return nil, &MalformedDocumentError{Side: "old", Err: err}
	}
	newCanon, err := Normalize(newXML, opts)
	if err != nil {
		return nil, &MalformedDocumentError{Side: "new", Err: err}
	}

	result := &Result{}
	if oldCanon == newCanon {
		return result, nil
	}

	oldLabel, newLabel := opts.labels()
	lines := formatUnified(oldLabel, newLabel, buildHunks(lineDiff(oldCanon, newCanon), opts.context()))
	if len(lines) == 0 {
		return result, nil
	}

	result.Unified = joinLines(lines)
	st, err := ParseStat(result.Unified)
	if err != nil {
		return nil, fmt.Errorf("reading produced diff: %w", err)
	}
	result.Stat = st

	if opts.SemanticGrouping {
		result.Text = joinLines(groupSemantic(lines))
	} else {
		result.Text = result.Unified
	}
	return result, nil
}

// ParseStat reads a single-file unified diff and counts its changed lines.
func ParseStat(unified string) (Stat, error) {
	if strings.TrimSpace(unified) == "" {
		return Stat{}, nil
	}
	fd, err := godiff.ParseFileDiff([]byte(unified))
	if err != nil {
		return Stat{}, err
	}
	st := fd.Stat()
	return Stat{Added: int(st.Added), Changed: int(st.Changed), Deleted: int(st.Deleted)}, nil
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}
