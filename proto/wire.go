// Package proto defines wire format DTOs for the peerdiffx HTTP API.
package proto

import (
	"github.com/gusuku-oknw/peerdiffx/diff"
	"github.com/gusuku-oknw/peerdiffx/element"
	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/merge"
	"github.com/gusuku-oknw/peerdiffx/xmldiff"
)

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// Conflicts lists conflicting element ids for a refused strict merge.
	Conflicts []string `json:"conflicts,omitempty"`
}

// CreatePresentationRequest creates a presentation with its default branch.
type CreatePresentationRequest struct {
	Title string `json:"title"`
}

// PresentationResponse describes a presentation.
type PresentationResponse struct {
	Presentation *history.Presentation `json:"presentation"`
	// DefaultBranch is set on creation.
	DefaultBranch *history.Branch `json:"defaultBranch,omitempty"`
}

// PresentationsListResponse contains a list of presentations.
type PresentationsListResponse struct {
	Presentations []*history.Presentation `json:"presentations"`
}

// CreateBranchRequest creates a branch.
type CreateBranchRequest struct {
	Name string `json:"name"`
	// From is a commit id or branch name; empty means the default branch.
	From string `json:"from,omitempty"`
}

// BranchesListResponse contains the branches of a presentation.
type BranchesListResponse struct {
	Branches []*history.Branch `json:"branches"`
}

// SetDefaultBranchRequest designates the default branch.
type SetDefaultBranchRequest struct {
	Name string `json:"name"`
}

// SlideInput is one slide in a commit request.
type SlideInput struct {
	SlideNumber int                `json:"slideNumber"`
	Title       string             `json:"title,omitempty"`
	XML         string             `json:"xml,omitempty"`
	Elements    element.Collection `json:"elements"`
}

// CommitRequest records a new commit.
type CommitRequest struct {
	Branch       string       `json:"branch,omitempty"`
	Message      string       `json:"message"`
	Author       string       `json:"author"`
	Slides       []SlideInput `json:"slides,omitempty"`
	RemoveSlides []int        `json:"removeSlides,omitempty"`
	// ExpectedHead rejects the commit if the branch moved.
	ExpectedHead string `json:"expectedHead,omitempty"`
}

// CommitResponse describes a commit.
type CommitResponse struct {
	Commit *history.Commit    `json:"commit"`
	Kind   history.CommitKind `json:"kind"`
}

// LogResponse contains a first-parent history, newest first.
type LogResponse struct {
	Commits []*CommitResponse `json:"commits"`
}

// SnapshotResponse contains every slide at a commit.
type SnapshotResponse struct {
	Commit *history.Commit         `json:"commit"`
	Slides []*history.SlideVersion `json:"slides"`
}

// SlideResponse contains one slide version.
type SlideResponse struct {
	Slide *history.SlideVersion `json:"slide"`
}

// XMLDiffRequest compares the raw XML of one slide between two revisions.
type XMLDiffRequest struct {
	From    string           `json:"from,omitempty"`
	To      string           `json:"to,omitempty"`
	Options *xmldiff.Options `json:"options,omitempty"`
}

// XMLDiffResponse carries a textual XML diff.
type XMLDiffResponse struct {
	Identical bool         `json:"identical"`
	Text      string       `json:"text"`
	Unified   string       `json:"unified"`
	Stat      xmldiff.Stat `json:"stat"`
}

// SlideDiffResponse carries a structural diff of one slide.
type SlideDiffResponse struct {
	SlideNumber int             `json:"slideNumber"`
	Changes     *diff.Changeset `json:"changes"`
}

// MergeRequest merges a source branch into a target branch.
type MergeRequest struct {
	Source string `json:"source"`
	// Target defaults to the default branch.
	Target  string `json:"target,omitempty"`
	Author  string `json:"author"`
	Message string `json:"message,omitempty"`
	// Strict refuses to commit when any conflict is recorded.
	Strict bool `json:"strict,omitempty"`
}

// LockRequest acquires or releases an editing lock.
type LockRequest struct {
	Holder string `json:"holder"`
	// TTLMinutes is the lock lifetime; zero selects the server default.
	TTLMinutes int `json:"ttlMinutes,omitempty"`
}

// LockResponse reports the lock state.
type LockResponse struct {
	Locked         bool   `json:"locked"`
	PresentationID string `json:"presentationId"`
	Holder         string `json:"holder,omitempty"`
	AcquiredAt     int64  `json:"acquiredAt,omitempty"`
	ExpiresAt      int64  `json:"expiresAt,omitempty"`
}

// ExportRequest creates a shareable snapshot of one slide.
type ExportRequest struct {
	Rev         string `json:"rev,omitempty"`
	SlideNumber int    `json:"slideNumber"`
	TTLDays     int    `json:"ttlDays,omitempty"`
}

// ExportResponse describes an export and, when opened, its slide.
type ExportResponse struct {
	ID             string                `json:"id"`
	PresentationID string                `json:"presentationId"`
	CommitID       string                `json:"commitId"`
	SlideNumber    int                   `json:"slideNumber"`
	CreatedAt      int64                 `json:"createdAt"`
	ExpiresAt      int64                 `json:"expiresAt"`
	AccessCount    int64                 `json:"accessCount"`
	Slide          *history.SlideVersion `json:"slide,omitempty"`
}

// StatelessDiffRequest diffs two element collections.
type StatelessDiffRequest struct {
	Old element.Collection `json:"old"`
	New element.Collection `json:"new"`
}

// StatelessMergeRequest three-way merges element collections.
type StatelessMergeRequest struct {
	Base   element.Collection `json:"base"`
	Yours  element.Collection `json:"yours"`
	Theirs element.Collection `json:"theirs"`
}

// StatelessMergeResponse is the tagged result of a three-way merge.
type StatelessMergeResponse struct {
	Status    merge.Status       `json:"status"`
	Elements  element.Collection `json:"elements"`
	Conflicts []merge.Conflict   `json:"conflicts,omitempty"`
	Stats     merge.Stats        `json:"stats"`
}

// StatelessXMLDiffRequest diffs two XML documents.
type StatelessXMLDiffRequest struct {
	Old     string           `json:"old"`
	New     string           `json:"new"`
	Options *xmldiff.Options `json:"options,omitempty"`
}
