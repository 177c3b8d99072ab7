// Package vcs is the version-control service. It loads history from the
// store, runs the pure diff and merge engines over it, and records the
// results as new commits.
package vcs

import (
	"log/slog"
	"time"

	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/store"
	"github.com/gusuku-oknw/peerdiffx/xmldiff"
)

const (
	DefaultLockTTL       = 30 * time.Minute
	DefaultExportTTLDays = 7
)

// Options configures a Service. Zero fields take defaults.
type Options struct {
	Logger        *slog.Logger
	XMLDiff       *xmldiff.Options
	LockTTL       time.Duration
	ExportTTLDays int
}

// Service implements presentation version control over a store.
type Service struct {
	db            *store.DB
	log           *slog.Logger
	xmlOpts       xmldiff.Options
	lockTTL       time.Duration
	exportTTLDays int
}

// New creates a service.
func New(db *store.DB, opts Options) *Service {
	s := &Service{
		db:            db,
		log:           opts.Logger,
		xmlOpts:       xmldiff.DefaultOptions(),
		lockTTL:       opts.LockTTL,
		exportTTLDays: opts.ExportTTLDays,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if opts.XMLDiff != nil {
		s.xmlOpts = *opts.XMLDiff
	}
	if s.lockTTL <= 0 {
		s.lockTTL = DefaultLockTTL
	}
	if s.exportTTLDays <= 0 {
		s.exportTTLDays = DefaultExportTTLDays
	}
	return s
}

// XMLDiffOptions returns the default options used by XMLDiffSlide.
func (s *Service) XMLDiffOptions() xmldiff.Options {
	return s.xmlOpts
}

// Ping checks that the store is reachable.
func (s *Service) Ping() error {
	return s.db.Ping()
}

// reader is the read surface shared by store.DB and store.Tx.
type reader interface {
	GetPresentation(id string) (*history.Presentation, error)
	ListBranches(presentationID string) ([]*history.Branch, error)
	ListCommits(presentationID string) ([]*history.Commit, error)
	GetCommit(id string) (*history.Commit, error)
	GetSnapshot(commitID string) (history.Snapshot, error)
}

// loadGraph builds the version graph of a presentation.
func loadGraph(r reader, presentationID string) (*history.Graph, error) {
	if _, err := r.GetPresentation(presentationID); err != nil {
		return nil, notFound(err, "presentation", presentationID)
	}
	branches, err := r.ListBranches(presentationID)
	if err != nil {
		return nil, err
	}
	commits, err := r.ListCommits(presentationID)
	if err != nil {
		return nil, err
	}
	return history.NewGraph(branches, commits), nil
}

// branchOrDefault resolves a branch name, "" meaning the default branch.
func branchOrDefault(g *history.Graph, name string) (*history.Branch, error) {
	if name == "" {
		b, ok := g.DefaultBranch()
		if !ok {
			return nil, &NotFoundError{What: "branch", ID: "(default)"}
		}
		return b, nil
	}
	b, ok := g.Branch(name)
	if !ok {
		return nil, &NotFoundError{What: "branch", ID: name}
	}
	return b, nil
}

// resolve turns a revision into a commit. A revision is a commit id or a
// branch name ("" for the default branch). ok is false for a branch without
// history.
func resolve(g *history.Graph, rev string) (*history.Commit, bool, error) {
	if c, ok := g.Commit(rev); ok {
		return c, true, nil
	}
	b, err := branchOrDefault(g, rev)
	if err != nil {
		if rev != "" {
			return nil, false, &NotFoundError{What: "revision", ID: rev}
		}
		return nil, false, err
	}
	c, ok := g.Tip(b)
	return c, ok, nil
}

// snapshotAt loads the snapshot at a revision; a branch without history
// yields an empty snapshot.
func snapshotAt(r reader, g *history.Graph, rev string) (*history.Commit, history.Snapshot, error) {
	c, ok, err := resolve(g, rev)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, history.Snapshot{}, nil
	}
	snap, err := r.GetSnapshot(c.ID)
	if err != nil {
		return nil, nil, notFound(err, "commit", c.ID)
	}
	return c, snap, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
