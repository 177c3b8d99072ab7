package diff

import (
	"sort"

	"github.com/gusuku-oknw/peerdiffx/element"
)

// Diff compares two element collections by stable id. Elements present in
// both with any field difference are reported as a before/after pair; no
// field-level sub-diff is produced. Diff is pure and never mutates its inputs.
func Diff(old, new element.Collection) *Changeset {
	cs := &Changeset{
		Added:    []element.Element{},
		Deleted:  []element.Element{},
		Modified: []Modified{},
	}

	oldByID := old.Index()
	newByID := new.Index()

	// Find added and modified
	for id, after := range newByID {
		before, exists := oldByID[id]
		if !exists {
			cs.Added = append(cs.Added, after.Clone())
		} else if !element.Equal(before, after) {
			cs.Modified = append(cs.Modified, Modified{
				Before: before.Clone(),
				After:  after.Clone(),
			})
		}
	}

	// Find deleted
	for id, before := range oldByID {
		if _, exists := newByID[id]; !exists {
			cs.Deleted = append(cs.Deleted, before.Clone())
		}
	}

	sort.Slice(cs.Added, func(i, j int) bool { return cs.Added[i].ID < cs.Added[j].ID })
	sort.Slice(cs.Deleted, func(i, j int) bool { return cs.Deleted[i].ID < cs.Deleted[j].ID })
	sort.Slice(cs.Modified, func(i, j int) bool { return cs.Modified[i].After.ID < cs.Modified[j].After.ID })

	return cs
}

// DiffSlides compares two commits' slide sets, given as slide number to
// element collection. A slide present on one side only is reported as fully
// added or deleted; unchanged slides are omitted.
func DiffSlides(old, new map[int]element.Collection) *PresentationDiff {
	pd := &PresentationDiff{Slides: []SlideDiff{}}

	numbers := make(map[int]bool, len(old)+len(new))
	for n := range old {
		numbers[n] = true
	}
	for n := range new {
		numbers[n] = true
	}

	for n := range numbers {
		before, hadBefore := old[n]
		after, hasAfter := new[n]

		var action Action
		switch {
		case !hadBefore:
			action = ActionAdded
		case !hasAfter:
			action = ActionDeleted
		default:
			action = ActionModified
		}

		cs := Diff(before, after)
		if action == ActionModified && cs.Empty() {
			continue
		}
		pd.Slides = append(pd.Slides, SlideDiff{SlideNumber: n, Action: action, Changes: cs})
	}

	sort.Slice(pd.Slides, func(i, j int) bool { return pd.Slides[i].SlideNumber < pd.Slides[j].SlideNumber })
	pd.ComputeSummary()
	return pd
}
