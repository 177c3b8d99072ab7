// Package history models a presentation's version graph: branches pointing
// at commits, commits linked to their parents, and the slide snapshots each
// commit owns.
package history

import (
	"sort"

	"github.com/gusuku-oknw/peerdiffx/element"
)

// CommitKind classifies a commit by its links.
type CommitKind string

const (
	KindRoot   CommitKind = "root"
	KindNormal CommitKind = "normal"
	KindMerge  CommitKind = "merge"
)

// Presentation owns branches and commits.
type Presentation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
}

// Branch is a movable named pointer at a commit. HeadID is empty until the
// first commit lands on the branch.
type Branch struct {
	ID             string `json:"id"`
	PresentationID string `json:"presentationId"`
	Name           string `json:"name"`
	HeadID         string `json:"headId,omitempty"`
	IsDefault      bool   `json:"isDefault"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// Commit is an immutable history node. ParentID is the single predecessor;
// MergedFromID, set only on merge commits, names the tip that was merged in.
type Commit struct {
	ID             string `json:"id"`
	PresentationID string `json:"presentationId"`
	BranchID       string `json:"branchId"`
	ParentID       string `json:"parentId,omitempty"`
	MergedFromID   string `json:"mergedFromId,omitempty"`
	Message        string `json:"message"`
	Author         string `json:"author"`
	CreatedAt      int64  `json:"createdAt"`
	// Seq orders commits of one presentation by creation.
	Seq int64 `json:"seq"`
}

// Kind derives the commit kind from its links.
func (c *Commit) Kind() CommitKind {
	switch {
	case c.MergedFromID != "":
		return KindMerge
	case c.ParentID == "":
		return KindRoot
	default:
		return KindNormal
	}
}

// SlideVersion is the complete snapshot of one slide at one commit.
type SlideVersion struct {
	CommitID    string             `json:"commitId"`
	SlideNumber int                `json:"slideNumber"`
	Title       string             `json:"title,omitempty"`
	XML         string             `json:"xml,omitempty"`
	Elements    element.Collection `json:"elements"`
}

// Snapshot is the slide set of one commit keyed by slide number.
type Snapshot map[int]*SlideVersion

// Elements projects the snapshot onto element collections.
func (s Snapshot) Elements() map[int]element.Collection {
	out := make(map[int]element.Collection, len(s))
	for n, sv := range s {
		out[n] = sv.Elements
	}
	return out
}

// Numbers returns the slide numbers in ascending order.
func (s Snapshot) Numbers() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
