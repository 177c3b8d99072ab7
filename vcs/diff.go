package vcs

import (
	"fmt"

	"github.com/gusuku-oknw/peerdiffx/diff"
	"github.com/gusuku-oknw/peerdiffx/element"
	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/xmldiff"
)

// DiffCommits compares every slide between two revisions. A revision on a
// branch without history compares as an empty presentation.
func (s *Service) DiffCommits(presentationID, from, to string) (*diff.PresentationDiff, error) {
	g, err := loadGraph(s.db, presentationID)
	if err != nil {
		return nil, err
	}
	fromCommit, fromSnap, err := snapshotAt(s.db, g, from)
	if err != nil {
		return nil, err
	}
	toCommit, toSnap, err := snapshotAt(s.db, g, to)
	if err != nil {
		return nil, err
	}

	pd := diff.DiffSlides(fromSnap.Elements(), toSnap.Elements())
	pd.From = commitID(fromCommit)
	pd.To = commitID(toCommit)
	return pd, nil
}

// DiffSlide compares one slide between two revisions. A slide missing on
// one side compares as empty; missing on both sides is NotFound.
func (s *Service) DiffSlide(presentationID, from, to string, slideNumber int) (*diff.Changeset, error) {
	before, after, err := s.slidePair(presentationID, from, to, slideNumber)
	if err != nil {
		return nil, err
	}
	return diff.Diff(elementsOf(before), elementsOf(after)), nil
}

// XMLDiffSlide renders a unified diff of one slide's raw XML between two
// revisions. opts nil selects the service defaults. A side without XML is
// reported as a malformed document.
func (s *Service) XMLDiffSlide(presentationID, from, to string, slideNumber int, opts *xmldiff.Options) (*xmldiff.Result, error) {
	before, after, err := s.slidePair(presentationID, from, to, slideNumber)
	if err != nil {
		return nil, err
	}
	o := s.xmlOpts
	if opts != nil {
		o = *opts
	}
	if o.OldLabel == "" {
		o.OldLabel = slideLabel(before, slideNumber)
	}
	if o.NewLabel == "" {
		o.NewLabel = slideLabel(after, slideNumber)
	}
	return xmldiff.Compare(xmlOf(before), xmlOf(after), o)
}

func (s *Service) slidePair(presentationID, from, to string, slideNumber int) (*history.SlideVersion, *history.SlideVersion, error) {
	g, err := loadGraph(s.db, presentationID)
	if err != nil {
		return nil, nil, err
	}
	_, fromSnap, err := snapshotAt(s.db, g, from)
	if err != nil {
		return nil, nil, err
	}
	_, toSnap, err := snapshotAt(s.db, g, to)
	if err != nil {
		return nil, nil, err
	}
	before, after := fromSnap[slideNumber], toSnap[slideNumber]
	if before == nil && after == nil {
		return nil, nil, &NotFoundError{What: "slide", ID: fmt.Sprint(slideNumber)}
	}
	return before, after, nil
}

func elementsOf(sv *history.SlideVersion) element.Collection {
	if sv == nil {
		return element.Collection{}
	}
	return sv.Elements
}

func xmlOf(sv *history.SlideVersion) string {
	if sv == nil {
		return ""
	}
	return sv.XML
}

func slideLabel(sv *history.SlideVersion, n int) string {
	if sv == nil || sv.CommitID == "" {
		return fmt.Sprintf("slide-%d", n)
	}
	return fmt.Sprintf("slide-%d@%s", n, shortID(sv.CommitID))
}

func commitID(c *history.Commit) string {
	if c == nil {
		return ""
	}
	return c.ID
}
