package xmldiff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	opEqual  = ' '
	opDelete = '-'
	opInsert = '+'
)

type lineOp struct {
	kind byte
	text string
}

type hunk struct {
	oldStart, oldLines int
	newStart, newLines int
	lines              []string
}

// lineDiff computes a line-level edit script between two texts whose lines
// all end in "\n".
func lineDiff(a, b string) []lineOp {
	dmp := diffmatchpatch.New()

	// Line mode: every distinct line is mapped to one rune before diffing.
	chars1, chars2, lineArray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []lineOp
	for _, d := range diffs {
		var kind byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = opEqual
		case diffmatchpatch.DiffDelete:
			kind = opDelete
		case diffmatchpatch.DiffInsert:
			kind = opInsert
		}
		for _, line := range splitLines(d.Text) {
			ops = append(ops, lineOp{kind: kind, text: line})
		}
	}
	return ops
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// buildHunks groups an edit script into hunks with up to context unchanged
// lines on each side. Changes separated by more than 2*context unchanged
// lines land in separate hunks.
func buildHunks(ops []lineOp, context int) []hunk {
	// oldBefore[i] / newBefore[i]: lines of each side consumed before ops[i].
	oldBefore := make([]int, len(ops)+1)
	newBefore := make([]int, len(ops)+1)
	for i, op := range ops {
		oldBefore[i+1] = oldBefore[i]
		newBefore[i+1] = newBefore[i]
		if op.kind != opInsert {
			oldBefore[i+1]++
		}
		if op.kind != opDelete {
			newBefore[i+1]++
		}
	}

	var hunks []hunk
	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].kind == opEqual {
			i++
		}
		if i == len(ops) {
			break
		}

		start := i - context
		if start < 0 {
			start = 0
		}

		end := i
		for {
			for end < len(ops) && ops[end].kind != opEqual {
				end++
			}
			run := 0
			for end+run < len(ops) && ops[end+run].kind == opEqual {
				run++
			}
			if end+run == len(ops) || run > 2*context {
				end += min(run, context)
				break
			}
			end += run
		}

		h := hunk{
			oldStart: oldBefore[start] + 1,
			newStart: newBefore[start] + 1,
			oldLines: oldBefore[end] - oldBefore[start],
			newLines: newBefore[end] - newBefore[start],
		}
		// An empty side is addressed by the line before it.
		if h.oldLines == 0 {
			h.oldStart--
		}
		if h.newLines == 0 {
			h.newStart--
		}
		for _, op := range ops[start:end] {
			h.lines = append(h.lines, string(op.kind)+op.text)
		}
		hunks = append(hunks, h)
		i = end
	}
	return hunks
}

// formatUnified renders hunks with a two-line file header.
func formatUnified(oldLabel, newLabel string, hunks []hunk) []string {
	if len(hunks) == 0 {
		return nil
	}
	lines := []string{"--- " + oldLabel, "+++ " + newLabel}
	for _, h := range hunks {
		lines = append(lines, fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.oldStart, h.oldLines, h.newStart, h.newLines))
		lines = append(lines, h.lines...)
	}
	return lines
}
