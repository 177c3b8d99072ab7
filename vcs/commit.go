package vcs

import (
	"errors"
	"fmt"

	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/store"
)

// CreatePresentation creates a presentation with an empty default branch.
func (s *Service) CreatePresentation(title string) (*history.Presentation, *history.Branch, error) {
	if title == "" {
		return nil, nil, invalid("title is required")
	}
	p, b, err := s.db.CreatePresentation(title)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("presentation created", "presentation", p.ID, "title", title)
	return p, b, nil
}

// GetPresentation returns a presentation.
func (s *Service) GetPresentation(id string) (*history.Presentation, error) {
	p, err := s.db.GetPresentation(id)
	if err != nil {
		return nil, notFound(err, "presentation", id)
	}
	return p, nil
}

// ListPresentations returns all presentations, newest first.
func (s *Service) ListPresentations() ([]*history.Presentation, error) {
	return s.db.ListPresentations()
}

// ListBranches returns a presentation's branches.
func (s *Service) ListBranches(presentationID string) ([]*history.Branch, error) {
	if _, err := s.GetPresentation(presentationID); err != nil {
		return nil, err
	}
	return s.db.ListBranches(presentationID)
}

// CreateBranch creates a branch at the revision from (a commit id or branch
// name, "" for the default branch).
func (s *Service) CreateBranch(presentationID, name, from string) (*history.Branch, error) {
	if name == "" {
		return nil, invalid("branch name is required")
	}
	g, err := loadGraph(s.db, presentationID)
	if err != nil {
		return nil, err
	}
	var head string
	c, ok, err := resolve(g, from)
	if err != nil {
		return nil, err
	}
	if ok {
		head = c.ID
	}
	b, err := s.db.CreateBranch(presentationID, name, head)
	if err != nil {
		return nil, err
	}
	s.log.Info("branch created", "presentation", presentationID, "branch", name, "head", head)
	return b, nil
}

// SetDefaultBranch marks name as the presentation's default branch.
func (s *Service) SetDefaultBranch(presentationID, name string) error {
	if _, err := s.GetPresentation(presentationID); err != nil {
		return err
	}
	return notFound(s.db.SetDefaultBranch(presentationID, name), "branch", name)
}

// CommitRequest describes a new commit on a branch.
type CommitRequest struct {
	PresentationID string
	// Branch is the target branch name; "" selects the default branch.
	Branch  string
	Message string
	Author  string
	// Slides replace or add slides. Slides not listed are carried over
	// from the parent commit unchanged.
	Slides []*history.SlideVersion
	// RemoveSlides drops slides carried over from the parent.
	RemoveSlides []int
	// ExpectedHead, when set, must equal the branch head.
	ExpectedHead string
}

func (r *CommitRequest) validate() error {
	if r.Message == "" {
		return invalid("commit message is required")
	}
	if r.Author == "" {
		return invalid("author is required")
	}
	if len(r.Slides) == 0 && len(r.RemoveSlides) == 0 {
		return invalid("commit changes no slides")
	}
	seen := make(map[int]bool, len(r.Slides))
	for _, sv := range r.Slides {
		if sv == nil {
			return invalid("nil slide")
		}
		if sv.SlideNumber <= 0 {
			return invalid("slide number must be positive, got %d", sv.SlideNumber)
		}
		if seen[sv.SlideNumber] {
			return invalid("slide %d given twice", sv.SlideNumber)
		}
		seen[sv.SlideNumber] = true
		if err := sv.Elements.Validate(); err != nil {
			return fmt.Errorf("%w: slide %d: %w", ErrInvalid, sv.SlideNumber, err)
		}
	}
	for _, n := range r.RemoveSlides {
		if seen[n] {
			return invalid("slide %d both replaced and removed", n)
		}
	}
	return nil
}

// Commit records a new commit holding the complete slide set: the parent's
// slides overlaid with req.Slides, minus req.RemoveSlides. The branch head
// moves to the new commit.
func (s *Service) Commit(req CommitRequest) (*history.Commit, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var commit *history.Commit
	err := s.db.WithTx(func(tx *store.Tx) error {
		g, err := loadGraph(tx, req.PresentationID)
		if err != nil {
			return err
		}
		branch, err := branchOrDefault(g, req.Branch)
		if err != nil {
			return err
		}

		var parentID string
		parentSnap := history.Snapshot{}
		if tip, ok := g.Tip(branch); ok {
			parentID = tip.ID
			if parentSnap, err = tx.GetSnapshot(tip.ID); err != nil {
				return err
			}
		}
		if req.ExpectedHead != "" && req.ExpectedHead != parentID {
			return store.ErrBranchMoved
		}

		slides := make(history.Snapshot, len(parentSnap)+len(req.Slides))
		for n, sv := range parentSnap {
			slides[n] = sv
		}
		for _, n := range req.RemoveSlides {
			if _, ok := slides[n]; !ok {
				return &NotFoundError{What: "slide", ID: fmt.Sprint(n)}
			}
			delete(slides, n)
		}
		for _, sv := range req.Slides {
			slides[sv.SlideNumber] = &history.SlideVersion{
				SlideNumber: sv.SlideNumber,
				Title:       sv.Title,
				XML:         sv.XML,
				Elements:    sv.Elements.Clone(),
			}
		}

		commit = &history.Commit{
			PresentationID: req.PresentationID,
			BranchID:       branch.ID,
			ParentID:       parentID,
			Message:        req.Message,
			Author:         req.Author,
		}
		if err := tx.InsertCommit(commit, ordered(slides)); err != nil {
			return err
		}
		return tx.SetBranchHead(branch.ID, parentID, commit.ID, req.Author)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("commit created",
		"presentation", req.PresentationID,
		"commit", commit.ID,
		"parent", commit.ParentID,
		"slides", len(req.Slides),
		"removed", len(req.RemoveSlides))
	return commit, nil
}

// ordered returns copies of the snapshot's slides by slide number, ready to
// be stored under a new commit.
func ordered(s history.Snapshot) []*history.SlideVersion {
	out := make([]*history.SlideVersion, 0, len(s))
	for _, n := range s.Numbers() {
		sv := *s[n]
		out = append(out, &sv)
	}
	return out
}

// Log returns the first-parent history of a revision, newest first.
// A branch without commits yields an empty log.
func (s *Service) Log(presentationID, rev string, limit int) ([]*history.Commit, error) {
	g, err := loadGraph(s.db, presentationID)
	if err != nil {
		return nil, err
	}
	c, ok, err := resolve(g, rev)
	if err != nil || !ok {
		return nil, err
	}
	return g.Log(c.ID, limit), nil
}

// GetCommit returns a commit of a presentation.
func (s *Service) GetCommit(presentationID, id string) (*history.Commit, error) {
	c, err := s.db.GetCommit(id)
	if err != nil {
		return nil, notFound(err, "commit", id)
	}
	if c.PresentationID != presentationID {
		return nil, &NotFoundError{What: "commit", ID: id}
	}
	return c, nil
}

// Snapshot returns the commit and slide set at a revision.
func (s *Service) Snapshot(presentationID, rev string) (*history.Commit, history.Snapshot, error) {
	g, err := loadGraph(s.db, presentationID)
	if err != nil {
		return nil, nil, err
	}
	c, snap, err := snapshotAt(s.db, g, rev)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, &NotFoundError{What: "revision", ID: rev}
	}
	return c, snap, nil
}

// Slide returns one slide at a revision.
func (s *Service) Slide(presentationID, rev string, slideNumber int) (*history.SlideVersion, error) {
	c, snap, err := s.Snapshot(presentationID, rev)
	if err != nil {
		return nil, err
	}
	sv, ok := snap[slideNumber]
	if !ok {
		return nil, &NotFoundError{What: "slide", ID: fmt.Sprintf("%d@%s", slideNumber, shortID(c.ID))}
	}
	return sv, nil
}

// IsNotFound reports whether err means a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
