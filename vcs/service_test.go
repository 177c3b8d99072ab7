package vcs

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gusuku-oknw/peerdiffx/diff"
	"github.com/gusuku-oknw/peerdiffx/element"
	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/merge"
	"github.com/gusuku-oknw/peerdiffx/store"
	"github.com/gusuku-oknw/peerdiffx/xmldiff"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "vcs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func shape(id string, x int) element.Element {
	return element.Element{ID: id, Kind: element.KindShape, X: x, Width: 100, Height: 50}
}

func slide(n int, els ...element.Element) *history.SlideVersion {
	return &history.SlideVersion{SlideNumber: n, Elements: els}
}

func commit(t *testing.T, s *Service, pres, branch, msg string, slides ...*history.SlideVersion) *history.Commit {
	t.Helper()
	c, err := s.Commit(CommitRequest{PresentationID: pres, Branch: branch, Message: msg, Author: "ann", Slides: slides})
	require.NoError(t, err)
	return c
}

func TestCommit_InheritsSlides(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	c1 := commit(t, s, p.ID, "", "init", slide(1, shape("a", 0)), slide(2, shape("b", 0)))
	assert.Equal(t, history.KindRoot, c1.Kind())

	c2 := commit(t, s, p.ID, "main", "move a", slide(1, shape("a", 5)))
	assert.Equal(t, c1.ID, c2.ParentID)

	_, snap, err := s.Snapshot(p.ID, "main")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, snap.Numbers())
	assert.Equal(t, 5, snap[1].Elements[0].X)
	assert.Equal(t, "b", snap[2].Elements[0].ID)

	c3, err := s.Commit(CommitRequest{PresentationID: p.ID, Message: "drop 2", Author: "ann", RemoveSlides: []int{2}})
	require.NoError(t, err)
	_, snap, err = s.Snapshot(p.ID, c3.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, snap.Numbers())

	// Old commits are untouched.
	_, snap, err = s.Snapshot(p.ID, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap[1].Elements[0].X)

	log, err := s.Log(p.ID, "", 0)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, []string{c3.ID, c2.ID, c1.ID}, []string{log[0].ID, log[1].ID, log[2].ID})
}

func TestCommit_Validation(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	base := CommitRequest{PresentationID: p.ID, Message: "m", Author: "ann"}

	tests := []struct {
		name   string
		mutate func(r *CommitRequest)
	}{
		{"no message", func(r *CommitRequest) { r.Message = ""; r.Slides = []*history.SlideVersion{slide(1)} }},
		{"no author", func(r *CommitRequest) { r.Author = ""; r.Slides = []*history.SlideVersion{slide(1)} }},
		{"no changes", func(r *CommitRequest) {}},
		{"bad slide number", func(r *CommitRequest) { r.Slides = []*history.SlideVersion{slide(0)} }},
		{"slide twice", func(r *CommitRequest) { r.Slides = []*history.SlideVersion{slide(1), slide(1)} }},
		{"unknown kind", func(r *CommitRequest) {
			r.Slides = []*history.SlideVersion{slide(1, element.Element{ID: "x", Kind: "video"})}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := s.Commit(req)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}

	_, err = s.Commit(CommitRequest{PresentationID: p.ID, Message: "m", Author: "ann",
		Slides: []*history.SlideVersion{slide(1, shape("a", 0), shape("a", 1))}})
	var dup *element.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.ID)
}

func TestCommit_Errors(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)
	c1 := commit(t, s, p.ID, "", "init", slide(1))

	_, err = s.Commit(CommitRequest{PresentationID: "missing", Message: "m", Author: "a", Slides: []*history.SlideVersion{slide(1)}})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "presentation", nf.What)
	assert.True(t, IsNotFound(err))

	_, err = s.Commit(CommitRequest{PresentationID: p.ID, Branch: "nope", Message: "m", Author: "a", Slides: []*history.SlideVersion{slide(1)}})
	assert.True(t, IsNotFound(err))

	_, err = s.Commit(CommitRequest{PresentationID: p.ID, Message: "m", Author: "a", RemoveSlides: []int{7}})
	assert.True(t, IsNotFound(err))

	_, err = s.Commit(CommitRequest{PresentationID: p.ID, Message: "m", Author: "a",
		Slides: []*history.SlideVersion{slide(1)}, ExpectedHead: "stale"})
	assert.Equal(t, store.ErrBranchMoved, err)

	_, err = s.Commit(CommitRequest{PresentationID: p.ID, Message: "m", Author: "a",
		Slides: []*history.SlideVersion{slide(1)}, ExpectedHead: c1.ID})
	assert.NoError(t, err)
}

func TestEmptyHistory(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	log, err := s.Log(p.ID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, log)

	_, _, err = s.Snapshot(p.ID, "")
	assert.True(t, IsNotFound(err))

	// First commit diffs against nothing.
	c := commit(t, s, p.ID, "", "init", slide(1, shape("a", 0)))
	b, err := s.CreateBranch(p.ID, "empty-diff", "")
	require.NoError(t, err)
	assert.Equal(t, c.ID, b.HeadID)
}

func TestDiffs(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	s1 := slide(1, shape("a", 0), shape("b", 0))
	s1.XML = `<p:sld><p:sp><a:off x="0"/></p:sp></p:sld>`
	c1 := commit(t, s, p.ID, "", "init", s1, slide(2, shape("z", 0)))

	s1b := slide(1, shape("a", 3), shape("c", 0))
	s1b.XML = `<p:sld><p:sp><a:off x="3"/></p:sp></p:sld>`
	c2 := commit(t, s, p.ID, "", "edit", s1b, slide(3, shape("n", 0)))

	cs, err := s.DiffSlide(p.ID, c1.ID, c2.ID, 1)
	require.NoError(t, err)
	assert.Len(t, cs.Added, 1)
	assert.Len(t, cs.Deleted, 1)
	assert.Len(t, cs.Modified, 1)

	pd, err := s.DiffCommits(p.ID, c1.ID, "main")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, pd.From)
	assert.Equal(t, c2.ID, pd.To)
	require.Len(t, pd.Slides, 2)
	assert.Equal(t, diff.ActionModified, pd.Slides[0].Action)
	assert.Equal(t, diff.ActionAdded, pd.Slides[1].Action)
	assert.Equal(t, 3, pd.Slides[1].SlideNumber)

	same, err := s.DiffCommits(p.ID, c2.ID, c2.ID)
	require.NoError(t, err)
	assert.Empty(t, same.Slides)

	res, err := s.XMLDiffSlide(p.ID, c1.ID, c2.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, xmldiff.Stat{Changed: 1}, res.Stat)
	assert.Contains(t, res.Text, "--- slide-1@"+shortID(c1.ID))

	// Slide 3 has no XML at c2 and does not exist at c1.
	_, err = s.XMLDiffSlide(p.ID, c1.ID, c2.ID, 3, nil)
	assert.True(t, errors.Is(err, xmldiff.ErrMalformedDocument))

	_, err = s.DiffSlide(p.ID, c1.ID, c2.ID, 9)
	assert.True(t, IsNotFound(err))

	_, err = s.DiffCommits(p.ID, "nope", c2.ID)
	assert.True(t, IsNotFound(err))
}

func TestMerge_ThreeWayThenFastForward(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	commit(t, s, p.ID, "", "init", slide(1, shape("A", 0), shape("B", 0)))
	_, err = s.CreateBranch(p.ID, "feature", "main")
	require.NoError(t, err)

	commit(t, s, p.ID, "main", "mine", slide(1, shape("A", 5), shape("B", 0)))
	featureTip := commit(t, s, p.ID, "feature", "theirs", slide(1, shape("A", 9), shape("B", 0)), slide(2, shape("new", 1)))

	out, err := s.Merge(MergeRequest{PresentationID: p.ID, Source: "feature", Author: "ann"})
	require.NoError(t, err)
	assert.Equal(t, MergeThreeWay, out.Mode)
	require.NotNil(t, out.Commit)
	assert.Equal(t, history.KindMerge, out.Commit.Kind())
	assert.Equal(t, featureTip.ID, out.Commit.MergedFromID)
	assert.True(t, out.Conflicted())

	require.Len(t, out.Slides, 2)
	assert.Equal(t, merge.StatusConflicted, out.Slides[0].Status)
	assert.Equal(t, merge.ConflictBothModified, out.Slides[0].Conflicts[0].Kind)
	assert.Equal(t, merge.StatusResolved, out.Slides[1].Status)

	_, snap, err := s.Snapshot(p.ID, "main")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, snap.Numbers())
	assert.Equal(t, 9, snap[1].Elements.Index()["A"].X)

	again, err := s.Merge(MergeRequest{PresentationID: p.ID, Source: "feature", Author: "ann"})
	require.NoError(t, err)
	assert.Equal(t, MergeUpToDate, again.Mode)

	back, err := s.Merge(MergeRequest{PresentationID: p.ID, Source: "main", Target: "feature", Author: "ann"})
	require.NoError(t, err)
	assert.Equal(t, MergeFastForward, back.Mode)
	assert.Equal(t, out.Commit.ID, back.Head)
}

func TestMerge_Strict(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	commit(t, s, p.ID, "", "init", slide(1, shape("A", 0)))
	_, err = s.CreateBranch(p.ID, "feature", "")
	require.NoError(t, err)
	mainTip := commit(t, s, p.ID, "main", "mine", slide(1, shape("A", 5)))
	commit(t, s, p.ID, "feature", "theirs", slide(1, shape("A", 9)))

	_, err = s.Merge(MergeRequest{PresentationID: p.ID, Source: "feature", Author: "ann", Strict: true})
	assert.True(t, errors.Is(err, merge.ErrAmbiguousMerge))

	log, err := s.Log(p.ID, "main", 1)
	require.NoError(t, err)
	assert.Equal(t, mainTip.ID, log[0].ID)
}

func TestMerge_SlideRemoval(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	commit(t, s, p.ID, "", "init", slide(1, shape("A", 0)), slide(2, shape("B", 0)), slide(3, shape("C", 0)))
	_, err = s.CreateBranch(p.ID, "feature", "")
	require.NoError(t, err)

	// main removes slide 2; feature edits slide 2 and removes slide 3.
	_, err = s.Commit(CommitRequest{PresentationID: p.ID, Message: "rm 2", Author: "ann",
		RemoveSlides: []int{2}, Slides: []*history.SlideVersion{slide(1, shape("A", 1))}})
	require.NoError(t, err)
	_, err = s.Commit(CommitRequest{PresentationID: p.ID, Branch: "feature", Message: "rm 3", Author: "bob",
		RemoveSlides: []int{3}, Slides: []*history.SlideVersion{slide(2, shape("B", 4))}})
	require.NoError(t, err)

	out, err := s.Merge(MergeRequest{PresentationID: p.ID, Source: "feature", Author: "ann"})
	require.NoError(t, err)

	byNumber := map[int]SlideMerge{}
	for _, sm := range out.Slides {
		byNumber[sm.SlideNumber] = sm
	}
	assert.Equal(t, merge.ConflictDeleteVsModify, byNumber[2].Conflicts[0].Kind)
	assert.True(t, byNumber[3].Removed)

	_, snap, err := s.Snapshot(p.ID, "main")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, snap.Numbers())
	assert.Equal(t, 4, snap[2].Elements[0].X)
}

func TestMerge_Errors(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)

	_, err = s.Merge(MergeRequest{PresentationID: p.ID, Author: "ann"})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = s.Merge(MergeRequest{PresentationID: p.ID, Source: "main", Author: "ann"})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = s.Merge(MergeRequest{PresentationID: p.ID, Source: "ghost", Author: "ann"})
	assert.True(t, IsNotFound(err))

	// Empty source: nothing to merge.
	_, err = s.CreateBranch(p.ID, "feature", "")
	require.NoError(t, err)
	out, err := s.Merge(MergeRequest{PresentationID: p.ID, Source: "feature", Author: "ann"})
	require.NoError(t, err)
	assert.Equal(t, MergeUpToDate, out.Mode)

	// Empty target fast-forwards.
	c := commit(t, s, p.ID, "feature", "first", slide(1))
	out, err = s.Merge(MergeRequest{PresentationID: p.ID, Source: "feature", Author: "ann"})
	require.NoError(t, err)
	assert.Equal(t, MergeFastForward, out.Mode)
	assert.Equal(t, c.ID, out.Head)
}

func TestLocksAndExports(t *testing.T) {
	s := newTestService(t)
	p, _, err := s.CreatePresentation("deck")
	require.NoError(t, err)
	c := commit(t, s, p.ID, "", "init", slide(1, shape("A", 0)))

	l, err := s.LockStatus(p.ID)
	require.NoError(t, err)
	assert.Nil(t, l)

	l, err = s.AcquireLock(p.ID, "ann", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLockTTL.Milliseconds(), l.ExpiresAt-l.AcquiredAt)

	_, err = s.AcquireLock(p.ID, "bob", 5)
	assert.True(t, errors.Is(err, store.ErrLocked))

	l, err = s.LockStatus(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", l.Holder)
	require.NoError(t, s.ReleaseLock(p.ID, "ann"))

	_, err = s.AcquireLock(p.ID, "", 5)
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = s.AcquireLock("missing", "ann", 5)
	assert.True(t, IsNotFound(err))

	e, err := s.CreateExport(p.ID, "main", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, c.ID, e.CommitID)

	got, sv, err := s.OpenExport(e.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.AccessCount)
	assert.Equal(t, "A", sv.Elements[0].ID)

	_, err = s.CreateExport(p.ID, "main", 4, 1)
	assert.True(t, IsNotFound(err))
	_, _, err = s.OpenExport("missing")
	assert.True(t, IsNotFound(err))

	locks, exports, err := s.Reap()
	require.NoError(t, err)
	assert.Zero(t, locks)
	assert.Zero(t, exports)
}
