package store

import (
	"database/sql"
	"fmt"

	"github.com/gusuku-oknw/peerdiffx/history"
)

const branchColumns = `id, presentation_id, name, head_id, is_default, created_at, updated_at`

// BranchMove is one entry of a branch's head log.
type BranchMove struct {
	ID       int64  `json:"id"`
	BranchID string `json:"branchId"`
	OldHead  string `json:"oldHead,omitempty"`
	NewHead  string `json:"newHead"`
	Actor    string `json:"actor"`
	MovedAt  int64  `json:"movedAt"`
}

func scanBranch(row interface{ Scan(...interface{}) error }) (*history.Branch, error) {
	var b history.Branch
	var head sql.NullString
	var isDefault int
	if err := row.Scan(&b.ID, &b.PresentationID, &b.Name, &head, &isDefault, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.HeadID = head.String
	b.IsDefault = isDefault != 0
	return &b, nil
}

func (h *handle) insertBranch(b *history.Branch) error {
	_, err := h.exec(
		`INSERT INTO branches (`+branchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.PresentationID, b.Name, nullString(b.HeadID), boolToInt(b.IsDefault), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting branch: %w", err)
	}
	return nil
}

// CreateBranch creates a named branch pointing at headID ("" for none).
func (db *DB) CreateBranch(presentationID, name, headID string) (*history.Branch, error) {
	ts := db.now()
	b := &history.Branch{
		ID:             newUUID(),
		PresentationID: presentationID,
		Name:           name,
		HeadID:         headID,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	err := db.WithTx(func(tx *Tx) error {
		if _, err := tx.GetPresentation(presentationID); err != nil {
			return err
		}
		if _, err := tx.GetBranch(presentationID, name); err == nil {
			return fmt.Errorf("branch %q: %w", name, ErrAlreadyExists)
		} else if err != ErrNotFound {
			return err
		}
		return tx.insertBranch(b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBranch retrieves a branch by presentation and name.
func (h *handle) GetBranch(presentationID, name string) (*history.Branch, error) {
	b, err := scanBranch(h.queryRow(
		`SELECT `+branchColumns+` FROM branches WHERE presentation_id = ? AND name = ?`,
		presentationID, name,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying branch: %w", err)
	}
	return b, nil
}

// ListBranches returns a presentation's branches ordered by creation.
func (h *handle) ListBranches(presentationID string) ([]*history.Branch, error) {
	rows, err := h.query(
		`SELECT `+branchColumns+` FROM branches WHERE presentation_id = ? ORDER BY created_at, name`,
		presentationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer rows.Close()

	var out []*history.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetDefaultBranch makes name the only default branch of the presentation.
func (db *DB) SetDefaultBranch(presentationID, name string) error {
	return db.WithTx(func(tx *Tx) error {
		if _, err := tx.GetBranch(presentationID, name); err != nil {
			return err
		}
		_, err := tx.exec(
			`UPDATE branches SET is_default = CASE WHEN name = ? THEN 1 ELSE 0 END, updated_at = ?
			 WHERE presentation_id = ?`,
			name, tx.now(), presentationID,
		)
		if err != nil {
			return fmt.Errorf("updating default branch: %w", err)
		}
		return nil
	})
}

// SetBranchHead moves a branch head with a fast-forward check: the current
// head must equal old ("" meaning no head yet), otherwise ErrBranchMoved.
// The move is appended to the branch log.
func (h *handle) SetBranchHead(branchID, old, new, actor string) error {
	var current sql.NullString
	err := h.queryRow(`SELECT head_id FROM branches WHERE id = ?`, branchID).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking current head: %w", err)
	}
	if current.String != old {
		return ErrBranchMoved
	}

	ts := h.now()
	if _, err := h.exec(
		`UPDATE branches SET head_id = ?, updated_at = ? WHERE id = ?`,
		new, ts, branchID,
	); err != nil {
		return fmt.Errorf("updating branch head: %w", err)
	}
	if _, err := h.exec(
		`INSERT INTO branch_moves (branch_id, old_head, new_head, actor, moved_at) VALUES (?, ?, ?, ?, ?)`,
		branchID, nullString(old), new, actor, ts,
	); err != nil {
		return fmt.Errorf("recording branch move: %w", err)
	}
	return nil
}

// BranchMoves returns the head log of a branch, oldest first.
func (h *handle) BranchMoves(branchID string) ([]*BranchMove, error) {
	rows, err := h.query(
		`SELECT id, branch_id, old_head, new_head, actor, moved_at FROM branch_moves
		 WHERE branch_id = ? ORDER BY id`,
		branchID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing branch moves: %w", err)
	}
	defer rows.Close()

	var out []*BranchMove
	for rows.Next() {
		var m BranchMove
		var old sql.NullString
		if err := rows.Scan(&m.ID, &m.BranchID, &old, &m.NewHead, &m.Actor, &m.MovedAt); err != nil {
			return nil, err
		}
		m.OldHead = old.String
		out = append(out, &m)
	}
	return out, rows.Err()
}
