package vcs

import (
	"fmt"

	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/merge"
	"github.com/gusuku-oknw/peerdiffx/store"
)

// MergeMode says how a branch merge was carried out.
type MergeMode string

const (
	MergeUpToDate    MergeMode = "up-to-date"
	MergeFastForward MergeMode = "fast-forward"
	MergeThreeWay    MergeMode = "three-way"
)

// MergeRequest merges the source branch into the target branch.
type MergeRequest struct {
	PresentationID string
	Source         string
	// Target "" selects the default branch.
	Target  string
	Author  string
	Message string
	// Strict refuses to record a merge with conflicts.
	Strict bool
}

// SlideMerge is the outcome for one slide of a three-way merge.
type SlideMerge struct {
	SlideNumber int              `json:"slideNumber"`
	Status      merge.Status     `json:"status"`
	Removed     bool             `json:"removed,omitempty"`
	Conflicts   []merge.Conflict `json:"conflicts,omitempty"`
	Stats       merge.Stats      `json:"stats"`
}

// MergeOutcome reports what Merge did.
type MergeOutcome struct {
	Mode   MergeMode       `json:"mode"`
	Base   string          `json:"base,omitempty"`
	Head   string          `json:"head"`
	Commit *history.Commit `json:"commit,omitempty"`
	Slides []SlideMerge    `json:"slides,omitempty"`
}

// Conflicted reports whether any slide carried conflicts.
func (o *MergeOutcome) Conflicted() bool {
	for _, s := range o.Slides {
		if s.Status == merge.StatusConflicted {
			return true
		}
	}
	return false
}

// Merge brings the source branch's changes into the target branch.
//
// If the source tip is already in the target's history nothing happens.
// If the target tip is in the source's history (or the target is empty) the
// target fast-forwards. Otherwise every slide is merged three ways against
// the common ancestor, with the target as "yours" and the source as
// "theirs", and the result is recorded as a merge commit on the target.
func (s *Service) Merge(req MergeRequest) (*MergeOutcome, error) {
	if req.Source == "" {
		return nil, invalid("source branch is required")
	}
	if req.Author == "" {
		return nil, invalid("author is required")
	}

	var outcome *MergeOutcome
	err := s.db.WithTx(func(tx *store.Tx) error {
		g, err := loadGraph(tx, req.PresentationID)
		if err != nil {
			return err
		}
		source, err := branchOrDefault(g, req.Source)
		if err != nil {
			return err
		}
		target, err := branchOrDefault(g, req.Target)
		if err != nil {
			return err
		}
		if source.ID == target.ID {
			return invalid("cannot merge branch %q into itself", source.Name)
		}

		sourceTip, hasSource := g.Tip(source)
		targetTip, hasTarget := g.Tip(target)

		switch {
		case !hasSource || (hasTarget && g.IsAncestor(sourceTip.ID, targetTip.ID)):
			outcome = &MergeOutcome{Mode: MergeUpToDate, Head: commitID(targetTip)}
			return nil

		case !hasTarget || g.IsAncestor(targetTip.ID, sourceTip.ID):
			if err := tx.SetBranchHead(target.ID, commitID(targetTip), sourceTip.ID, req.Author); err != nil {
				return err
			}
			outcome = &MergeOutcome{Mode: MergeFastForward, Head: sourceTip.ID}
			return nil
		}

		baseSnap := history.Snapshot{}
		var baseID string
		if base, ok := g.CommonAncestor(targetTip.ID, sourceTip.ID); ok {
			baseID = base.ID
			if baseSnap, err = tx.GetSnapshot(base.ID); err != nil {
				return err
			}
		}
		yoursSnap, err := tx.GetSnapshot(targetTip.ID)
		if err != nil {
			return err
		}
		theirsSnap, err := tx.GetSnapshot(sourceTip.ID)
		if err != nil {
			return err
		}

		merged, slides := mergeSnapshots(baseSnap, yoursSnap, theirsSnap)
		outcome = &MergeOutcome{Mode: MergeThreeWay, Base: baseID, Slides: slides}

		if req.Strict && outcome.Conflicted() {
			var conflicts []merge.Conflict
			for _, sm := range slides {
				conflicts = append(conflicts, sm.Conflicts...)
			}
			return &merge.AmbiguousMergeError{Conflicts: conflicts}
		}

		msg := req.Message
		if msg == "" {
			msg = fmt.Sprintf("Merge branch %q into %q", source.Name, target.Name)
		}
		commit := &history.Commit{
			PresentationID: req.PresentationID,
			BranchID:       target.ID,
			ParentID:       targetTip.ID,
			MergedFromID:   sourceTip.ID,
			Message:        msg,
			Author:         req.Author,
		}
		if err := tx.InsertCommit(commit, ordered(merged)); err != nil {
			return err
		}
		if err := tx.SetBranchHead(target.ID, targetTip.ID, commit.ID, req.Author); err != nil {
			return err
		}
		outcome.Commit = commit
		outcome.Head = commit.ID
		return nil
	})
	if err != nil {
		if req.Strict {
			s.log.Warn("merge refused", "presentation", req.PresentationID, "source", req.Source, "target", req.Target, "error", err)
		}
		return nil, err
	}

	conflicts := 0
	for _, sm := range outcome.Slides {
		conflicts += len(sm.Conflicts)
		for _, c := range sm.Conflicts {
			s.log.Warn("merge conflict",
				"presentation", req.PresentationID,
				"slide", sm.SlideNumber,
				"element", c.ID,
				"kind", c.Kind)
		}
	}
	s.log.Info("branch merged",
		"presentation", req.PresentationID,
		"source", req.Source,
		"target", req.Target,
		"mode", outcome.Mode,
		"head", outcome.Head,
		"conflicts", conflicts)
	return outcome, nil
}

// mergeSnapshots merges every slide present on any side.
func mergeSnapshots(base, yours, theirs history.Snapshot) (history.Snapshot, []SlideMerge) {
	numbers := make(history.Snapshot)
	for _, s := range []history.Snapshot{base, yours, theirs} {
		for n, sv := range s {
			numbers[n] = sv
		}
	}

	merged := make(history.Snapshot)
	var report []SlideMerge
	for _, n := range numbers.Numbers() {
		sv, sm := mergeSlide(n, base[n], yours[n], theirs[n])
		if sv != nil {
			merged[n] = sv
		}
		if sm != nil {
			report = append(report, *sm)
		}
	}
	return merged, report
}

// mergeSlide merges one slide. A slide removed on one side stays removed
// unless the other side changed it, which is reported as a conflict. The
// returned report is nil when neither side touched the slide.
func mergeSlide(n int, base, yours, theirs *history.SlideVersion) (*history.SlideVersion, *SlideMerge) {
	yoursChanged := !slideEqual(base, yours)
	theirsChanged := !slideEqual(base, theirs)
	if !yoursChanged && !theirsChanged {
		return yours, nil
	}

	sm := &SlideMerge{SlideNumber: n, Status: merge.StatusResolved}

	// Slide removed on one side.
	if yours == nil || theirs == nil {
		switch {
		case yours == nil && theirs == nil:
			sm.Removed = true
			return nil, sm
		case yours == nil && !theirsChanged, theirs == nil && !yoursChanged:
			sm.Removed = true
			return nil, sm
		case base == nil:
			// Added on one side only.
			if yours != nil {
				return yours, sm
			}
			return theirs, sm
		}
		kept, kind, msg := theirs, merge.ConflictDeleteVsModify, "slide deleted on yours but modified on theirs"
		if theirs == nil {
			kept, kind, msg = yours, merge.ConflictModifyVsDelete, "slide modified on yours but deleted on theirs"
		}
		sm.Status = merge.StatusConflicted
		sm.Conflicts = []merge.Conflict{{ID: fmt.Sprintf("slide-%d", n), Kind: kind, Message: msg}}
		return kept, sm
	}

	result := merge.Merge(elementsOf(base), yours.Elements, theirs.Elements)
	sm.Status = result.Status()
	sm.Conflicts = result.Conflicts
	sm.Stats = result.Stats

	out := &history.SlideVersion{SlideNumber: n, Elements: result.Elements}
	out.Title = pick(titleOf(base), yours.Title, theirs.Title)
	out.XML = pick(xmlOf(base), yours.XML, theirs.XML)
	return out, sm
}

// pick takes the side that changed a scalar; theirs wins when both did.
func pick(base, yours, theirs string) string {
	if yours != base && theirs == base {
		return yours
	}
	return theirs
}

func slideEqual(a, b *history.SlideVersion) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Title == b.Title && a.XML == b.XML && a.Elements.SameSet(b.Elements)
}

func titleOf(sv *history.SlideVersion) string {
	if sv == nil {
		return ""
	}
	return sv.Title
}
