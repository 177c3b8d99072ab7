package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Lock is an advisory, time-boxed editing lock on a presentation. It
// serializes editing sessions only; diff and merge never consult it.
type Lock struct {
	PresentationID string `json:"presentationId"`
	Holder         string `json:"holder"`
	AcquiredAt     int64  `json:"acquiredAt"`
	ExpiresAt      int64  `json:"expiresAt"`
}

func (h *handle) getLock(presentationID string) (*Lock, error) {
	var l Lock
	err := h.queryRow(
		`SELECT presentation_id, holder, acquired_at, expires_at FROM locks WHERE presentation_id = ?`,
		presentationID,
	).Scan(&l.PresentationID, &l.Holder, &l.AcquiredAt, &l.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying lock: %w", err)
	}
	return &l, nil
}

// GetLock returns the live lock on a presentation. An expired lock counts
// as absent (ErrNotFound).
func (h *handle) GetLock(presentationID string) (*Lock, error) {
	l, err := h.getLock(presentationID)
	if err != nil {
		return nil, err
	}
	if l.ExpiresAt <= h.now() {
		return nil, ErrNotFound
	}
	return l, nil
}

// AcquireLock takes the lock for holder for ttl. Re-acquiring by the same
// holder extends it; a live lock held by someone else yields ErrLocked.
func (db *DB) AcquireLock(presentationID, holder string, ttl time.Duration) (*Lock, error) {
	var lock *Lock
	err := db.WithTx(func(tx *Tx) error {
		if _, err := tx.GetPresentation(presentationID); err != nil {
			return err
		}
		now := tx.now()
		current, err := tx.GetLock(presentationID)
		switch {
		case err == nil && current.Holder != holder:
			return fmt.Errorf("%w: held by %s until %s", ErrLocked, current.Holder,
				time.UnixMilli(current.ExpiresAt).UTC().Format(time.RFC3339))
		case err != nil && err != ErrNotFound:
			return err
		}

		lock = &Lock{
			PresentationID: presentationID,
			Holder:         holder,
			AcquiredAt:     now,
			ExpiresAt:      now + ttl.Milliseconds(),
		}
		if current != nil {
			lock.AcquiredAt = current.AcquiredAt
		}
		_, err = tx.exec(
			`INSERT INTO locks (presentation_id, holder, acquired_at, expires_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (presentation_id) DO UPDATE SET
			   holder = excluded.holder, acquired_at = excluded.acquired_at, expires_at = excluded.expires_at`,
			lock.PresentationID, lock.Holder, lock.AcquiredAt, lock.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("upserting lock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// ReleaseLock drops a live lock held by holder, otherwise ErrLockNotHeld.
func (h *handle) ReleaseLock(presentationID, holder string) error {
	res, err := h.exec(
		`DELETE FROM locks WHERE presentation_id = ? AND holder = ? AND expires_at > ?`,
		presentationID, holder, h.now(),
	)
	if err != nil {
		return fmt.Errorf("deleting lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// PurgeExpiredLocks deletes expired locks and reports how many were removed.
func (h *handle) PurgeExpiredLocks() (int64, error) {
	res, err := h.exec(`DELETE FROM locks WHERE expires_at <= ?`, h.now())
	if err != nil {
		return 0, fmt.Errorf("purging locks: %w", err)
	}
	return res.RowsAffected()
}
