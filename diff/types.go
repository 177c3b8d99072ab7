// Package diff computes structural changesets between two versions of a
// slide's element collection, keyed by element id.
package diff

import "github.com/gusuku-oknw/peerdiffx/element"

// Action represents the type of change to a slide.
type Action string

const (
	ActionAdded    Action = "added"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Modified pairs the two versions of an element whose fields differ.
type Modified struct {
	Before element.Element `json:"before"`
	After  element.Element `json:"after"`
}

// Changeset classifies the elements that differ between two collections.
// The three lists are disjoint by id and sorted by id.
type Changeset struct {
	Added    []element.Element `json:"added"`
	Deleted  []element.Element `json:"deleted"`
	Modified []Modified        `json:"modified"`
}

// Summary provides aggregate counts.
type Summary struct {
	SlidesAdded      int `json:"slidesAdded"`
	SlidesModified   int `json:"slidesModified"`
	SlidesDeleted    int `json:"slidesDeleted"`
	ElementsAdded    int `json:"elementsAdded"`
	ElementsModified int `json:"elementsModified"`
	ElementsDeleted  int `json:"elementsDeleted"`
}

// SlideDiff is the changeset of one slide between two commits.
type SlideDiff struct {
	SlideNumber int        `json:"slideNumber"`
	Action      Action     `json:"action"`
	Changes     *Changeset `json:"changes"`
}

// PresentationDiff is the per-slide comparison of two commits.
type PresentationDiff struct {
	From    string      `json:"from,omitempty"`
	To      string      `json:"to,omitempty"`
	Slides  []SlideDiff `json:"slides"`
	Summary Summary     `json:"summary"`
}

// Empty reports whether the changeset records no change at all.
func (cs *Changeset) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Deleted) == 0 && len(cs.Modified) == 0
}

// ModifiedIndex returns the modified pairs keyed by element id.
func (cs *Changeset) ModifiedIndex() map[string]Modified {
	m := make(map[string]Modified, len(cs.Modified))
	for _, p := range cs.Modified {
		m[p.After.ID] = p
	}
	return m
}

// ComputeSummary calculates the summary from slides.
func (pd *PresentationDiff) ComputeSummary() {
	pd.Summary = Summary{}
	for _, s := range pd.Slides {
		switch s.Action {
		case ActionAdded:
			pd.Summary.SlidesAdded++
		case ActionModified:
			pd.Summary.SlidesModified++
		case ActionDeleted:
			pd.Summary.SlidesDeleted++
		}
		if s.Changes == nil {
			continue
		}
		pd.Summary.ElementsAdded += len(s.Changes.Added)
		pd.Summary.ElementsModified += len(s.Changes.Modified)
		pd.Summary.ElementsDeleted += len(s.Changes.Deleted)
	}
}
