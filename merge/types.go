// Package merge provides element-level three-way merge of slide versions.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gusuku-oknw/peerdiffx/element"
)

// Status tags the outcome of a merge.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusConflicted Status = "conflicted"
)

// ConflictKind classifies an overlap between the two sides.
type ConflictKind string

const (
	// Both sides modified the same element differently; theirs was kept.
	ConflictBothModified ConflictKind = "BOTH_MODIFIED"
	// Both sides added the same id with different content; theirs was kept.
	ConflictConcurrentCreate ConflictKind = "CONCURRENT_CREATE"
	// Yours deleted an element that theirs modified; the element was kept.
	ConflictDeleteVsModify ConflictKind = "DELETE_vs_MODIFY"
	// Yours modified an element that theirs deleted; the element was kept.
	ConflictModifyVsDelete ConflictKind = "MODIFY_vs_DELETE"
)

// Conflict records one element the merge resolved without a clear winner.
type Conflict struct {
	ID      string           `json:"id"`
	Kind    ConflictKind     `json:"kind"`
	Message string           `json:"message"`
	Base    *element.Element `json:"base,omitempty"`   // nil if created on both sides
	Yours   *element.Element `json:"yours,omitempty"`  // nil if deleted
	Theirs  *element.Element `json:"theirs,omitempty"` // nil if deleted
}

// Stats counts what each side contributed to the result.
type Stats struct {
	Added      int `json:"added"`
	Deleted    int `json:"deleted"`
	Modified   int `json:"modified"`
	Conflicted int `json:"conflicted"`
}

// Result is the outcome of Merge. Elements always holds the merged
// collection, including when conflicts were recorded.
type Result struct {
	Elements  element.Collection `json:"elements"`
	Conflicts []Conflict         `json:"conflicts,omitempty"`
	Stats     Stats              `json:"stats"`
}

// Status reports Resolved when no conflicts were recorded.
func (r *Result) Status() Status {
	if len(r.Conflicts) > 0 {
		return StatusConflicted
	}
	return StatusResolved
}

// ConflictIDs returns the ids of conflicted elements, sorted.
func (r *Result) ConflictIDs() []string {
	ids := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		ids[i] = c.ID
	}
	sort.Strings(ids)
	return ids
}

// Err returns an *AmbiguousMergeError when the result is conflicted, nil
// otherwise. Callers that accept last-writer-wins can ignore it.
func (r *Result) Err() error {
	if len(r.Conflicts) == 0 {
		return nil
	}
	return &AmbiguousMergeError{Conflicts: r.Conflicts}
}

// ErrAmbiguousMerge is matched by every AmbiguousMergeError.
var ErrAmbiguousMerge = errors.New("ambiguous merge")

// AmbiguousMergeError reports conflicts that need human attention.
type AmbiguousMergeError struct {
	Conflicts []Conflict
}

func (e *AmbiguousMergeError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = c.ID
	}
	return fmt.Sprintf("ambiguous merge: %d conflicting element(s): %s", len(e.Conflicts), strings.Join(ids, ", "))
}

func (e *AmbiguousMergeError) Is(target error) bool {
	return target == ErrAmbiguousMerge
}
