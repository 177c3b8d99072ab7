package vcs

import (
	"time"

	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/store"
)

// AcquireLock takes the presentation's editing lock for ttlMinutes (0 for
// the configured default).
func (s *Service) AcquireLock(presentationID, holder string, ttlMinutes int) (*store.Lock, error) {
	if holder == "" {
		return nil, invalid("lock holder is required")
	}
	if ttlMinutes < 0 {
		return nil, invalid("lock ttl must not be negative")
	}
	ttl := s.lockTTL
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}
	l, err := s.db.AcquireLock(presentationID, holder, ttl)
	if err != nil {
		return nil, notFound(err, "presentation", presentationID)
	}
	s.log.Info("lock acquired", "presentation", presentationID, "holder", holder, "expires", l.ExpiresAt)
	return l, nil
}

// ReleaseLock releases a lock held by holder.
func (s *Service) ReleaseLock(presentationID, holder string) error {
	if err := s.db.ReleaseLock(presentationID, holder); err != nil {
		return err
	}
	s.log.Info("lock released", "presentation", presentationID, "holder", holder)
	return nil
}

// LockStatus returns the live lock, or nil when the presentation is unlocked.
func (s *Service) LockStatus(presentationID string) (*store.Lock, error) {
	if _, err := s.GetPresentation(presentationID); err != nil {
		return nil, err
	}
	l, err := s.db.GetLock(presentationID)
	if IsNotFound(err) {
		return nil, nil
	}
	return l, err
}

// CreateExport shares one slide at a revision for ttlDays (0 for the
// configured default).
func (s *Service) CreateExport(presentationID, rev string, slideNumber, ttlDays int) (*store.Export, error) {
	if ttlDays < 0 {
		return nil, invalid("export ttl must not be negative")
	}
	if ttlDays == 0 {
		ttlDays = s.exportTTLDays
	}
	sv, err := s.Slide(presentationID, rev, slideNumber)
	if err != nil {
		return nil, err
	}
	e, err := s.db.CreateExport(presentationID, sv.CommitID, slideNumber, ttlDays)
	if err != nil {
		return nil, notFound(err, "slide", sv.CommitID)
	}
	s.log.Info("export created", "presentation", presentationID, "export", e.ID, "commit", e.CommitID, "slide", slideNumber)
	return e, nil
}

// OpenExport reads an export and the slide it shares. Expired exports yield
// store.ErrExportExpired.
func (s *Service) OpenExport(id string) (*store.Export, *history.SlideVersion, error) {
	e, err := s.db.OpenExport(id)
	if err != nil {
		return nil, nil, notFound(err, "export", id)
	}
	sv, err := s.db.GetSlideVersion(e.CommitID, e.SlideNumber)
	if err != nil {
		return nil, nil, notFound(err, "slide", e.CommitID)
	}
	return e, sv, nil
}

// Reap purges expired locks and exports.
func (s *Service) Reap() (locks, exports int64, err error) {
	if locks, err = s.db.PurgeExpiredLocks(); err != nil {
		return 0, 0, err
	}
	if exports, err = s.db.PurgeExpiredExports(); err != nil {
		return locks, 0, err
	}
	return locks, exports, nil
}
