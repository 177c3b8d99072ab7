package store

import (
	"database/sql"
	"fmt"
)

const dayMs = 24 * 60 * 60 * 1000

// Export is a time-limited, read-only share of one slide at one commit.
type Export struct {
	ID             string `json:"id"`
	PresentationID string `json:"presentationId"`
	CommitID       string `json:"commitId"`
	SlideNumber    int    `json:"slideNumber"`
	CreatedAt      int64  `json:"createdAt"`
	ExpiresAt      int64  `json:"expiresAt"`
	AccessCount    int64  `json:"accessCount"`
}

// CreateExport records an export valid for ttlDays. The slide must exist at
// the commit.
func (db *DB) CreateExport(presentationID, commitID string, slideNumber, ttlDays int) (*Export, error) {
	if ttlDays <= 0 {
		return nil, fmt.Errorf("export ttl must be positive, got %d days", ttlDays)
	}
	var e *Export
	err := db.WithTx(func(tx *Tx) error {
		c, err := tx.GetCommit(commitID)
		if err != nil {
			return err
		}
		if c.PresentationID != presentationID {
			return ErrNotFound
		}
		var exists int
		if err := tx.queryRow(
			`SELECT COUNT(*) FROM slide_versions WHERE commit_id = ? AND slide_number = ?`,
			commitID, slideNumber,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking slide: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}

		now := tx.now()
		e = &Export{
			ID:             newUUID(),
			PresentationID: presentationID,
			CommitID:       commitID,
			SlideNumber:    slideNumber,
			CreatedAt:      now,
			ExpiresAt:      now + int64(ttlDays)*dayMs,
		}
		_, err = tx.exec(
			`INSERT INTO exports (id, presentation_id, commit_id, slide_number, created_at, expires_at, access_count)
			 VALUES (?, ?, ?, ?, ?, ?, 0)`,
			e.ID, e.PresentationID, e.CommitID, e.SlideNumber, e.CreatedAt, e.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("inserting export: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// OpenExport reads an export and counts the access. Expired exports are
// rejected with ErrExportExpired and not counted.
func (db *DB) OpenExport(id string) (*Export, error) {
	var e Export
	err := db.WithTx(func(tx *Tx) error {
		err := tx.queryRow(
			`SELECT id, presentation_id, commit_id, slide_number, created_at, expires_at, access_count
			 FROM exports WHERE id = ?`, id,
		).Scan(&e.ID, &e.PresentationID, &e.CommitID, &e.SlideNumber, &e.CreatedAt, &e.ExpiresAt, &e.AccessCount)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("querying export: %w", err)
		}
		if e.ExpiresAt <= tx.now() {
			return ErrExportExpired
		}
		if _, err := tx.exec(`UPDATE exports SET access_count = access_count + 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("counting export access: %w", err)
		}
		e.AccessCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PurgeExpiredExports deletes expired exports and reports how many were removed.
func (h *handle) PurgeExpiredExports() (int64, error) {
	res, err := h.exec(`DELETE FROM exports WHERE expires_at <= ?`, h.now())
	if err != nil {
		return 0, fmt.Errorf("purging exports: %w", err)
	}
	return res.RowsAffected()
}
