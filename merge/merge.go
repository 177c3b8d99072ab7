package merge

import (
	"sort"

	"github.com/gusuku-oknw/peerdiffx/diff"
	"github.com/gusuku-oknw/peerdiffx/element"
)

// Merge combines two descendants of base. Both sides are diffed against
// base and their changes replayed onto a copy of it:
//
//   - additions from theirs, then additions from yours whose id is free;
//   - a deletion is applied unless the other side modified that element;
//   - modifications from theirs, then yours for ids theirs left alone.
//
// When both sides change the same element, theirs wins and a Conflict is
// recorded. The inputs are never modified.
func Merge(base, yours, theirs element.Collection) *Result {
	// One side unchanged: the other side is the result as is.
	if yours.SameSet(base) {
		return &Result{Elements: nonNil(theirs.Clone()), Stats: sideStats(diff.Diff(base, theirs))}
	}
	if theirs.SameSet(base) || yours.SameSet(theirs) {
		return &Result{Elements: nonNil(yours.Clone()), Stats: sideStats(diff.Diff(base, yours))}
	}

	yoursDiff := diff.Diff(base, yours)
	theirsDiff := diff.Diff(base, theirs)
	yoursMod := yoursDiff.ModifiedIndex()
	theirsMod := theirsDiff.ModifiedIndex()
	baseIdx := base.Index()

	result := &Result{}
	merged := make(map[string]element.Element, len(base))
	for _, e := range base {
		merged[e.ID] = e
	}

	// Additions
	theirsAdded := make(map[string]element.Element, len(theirsDiff.Added))
	for _, e := range theirsDiff.Added {
		merged[e.ID] = e
		theirsAdded[e.ID] = e
		result.Stats.Added++
	}
	for _, e := range yoursDiff.Added {
		t, taken := theirsAdded[e.ID]
		if !taken {
			merged[e.ID] = e
			result.Stats.Added++
			continue
		}
		if !element.Equal(e, t) {
			result.Conflicts = append(result.Conflicts, Conflict{
				ID:      e.ID,
				Kind:    ConflictConcurrentCreate,
				Message: "element added on both sides with different content",
				Yours:   ptr(e),
				Theirs:  ptr(t),
			})
		}
	}

	// Deletions
	for _, e := range theirsDiff.Deleted {
		if m, ok := yoursMod[e.ID]; ok {
			result.Conflicts = append(result.Conflicts, Conflict{
				ID:      e.ID,
				Kind:    ConflictModifyVsDelete,
				Message: "element modified on yours but deleted on theirs",
				Base:    ptr(e),
				Yours:   ptr(m.After),
			})
			continue
		}
		delete(merged, e.ID)
		result.Stats.Deleted++
	}
	theirsDeleted := make(map[string]bool, len(theirsDiff.Deleted))
	for _, e := range theirsDiff.Deleted {
		theirsDeleted[e.ID] = true
	}
	for _, e := range yoursDiff.Deleted {
		if m, ok := theirsMod[e.ID]; ok {
			result.Conflicts = append(result.Conflicts, Conflict{
				ID:      e.ID,
				Kind:    ConflictDeleteVsModify,
				Message: "element deleted on yours but modified on theirs",
				Base:    ptr(e),
				Theirs:  ptr(m.After),
			})
			continue
		}
		if !theirsDeleted[e.ID] {
			delete(merged, e.ID)
			result.Stats.Deleted++
		}
	}

	// Modifications
	for _, m := range theirsDiff.Modified {
		merged[m.After.ID] = m.After
		result.Stats.Modified++
		y, ok := yoursMod[m.After.ID]
		if ok && !element.Equal(y.After, m.After) {
			b := baseIdx[m.After.ID]
			result.Conflicts = append(result.Conflicts, Conflict{
				ID:      m.After.ID,
				Kind:    ConflictBothModified,
				Message: "element modified on both sides; theirs kept",
				Base:    ptr(b),
				Yours:   ptr(y.After),
				Theirs:  ptr(m.After),
			})
		}
	}
	for _, m := range yoursDiff.Modified {
		if _, ok := theirsMod[m.After.ID]; ok {
			continue
		}
		merged[m.After.ID] = m.After
		result.Stats.Modified++
	}

	sort.Slice(result.Conflicts, func(i, j int) bool { return result.Conflicts[i].ID < result.Conflicts[j].ID })
	result.Stats.Conflicted = len(result.Conflicts)
	result.Elements = order(merged, theirs, yours, base)
	return result
}

// order lays out merged elements in theirs order, then elements only yours
// has, then anything left from base.
func order(merged map[string]element.Element, sides ...element.Collection) element.Collection {
	out := make(element.Collection, 0, len(merged))
	emitted := make(map[string]bool, len(merged))
	for _, side := range sides {
		for _, e := range side {
			if emitted[e.ID] {
				continue
			}
			m, ok := merged[e.ID]
			if !ok {
				continue
			}
			out = append(out, m.Clone())
			emitted[e.ID] = true
		}
	}
	return out
}

func sideStats(cs *diff.Changeset) Stats {
	return Stats{Added: len(cs.Added), Deleted: len(cs.Deleted), Modified: len(cs.Modified)}
}

func ptr(e element.Element) *element.Element {
	c := e.Clone()
	return &c
}

func nonNil(c element.Collection) element.Collection {
	if c == nil {
		return element.Collection{}
	}
	return c
}
