package store

import (
	"database/sql"
	"fmt"

	"github.com/gusuku-oknw/peerdiffx/history"
)

// DefaultBranchName names the branch created with every presentation.
const DefaultBranchName = "main"

// CreatePresentation creates a presentation together with its default
// branch. The branch has no head until the first commit.
func (db *DB) CreatePresentation(title string) (*history.Presentation, *history.Branch, error) {
	ts := db.now()
	p := &history.Presentation{ID: newUUID(), Title: title, CreatedAt: ts}
	b := &history.Branch{
		ID:             newUUID(),
		PresentationID: p.ID,
		Name:           DefaultBranchName,
		IsDefault:      true,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	err := db.WithTx(func(tx *Tx) error {
		if _, err := tx.exec(
			`INSERT INTO presentations (id, title, created_at) VALUES (?, ?, ?)`,
			p.ID, p.Title, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting presentation: %w", err)
		}
		return tx.insertBranch(b)
	})
	if err != nil {
		return nil, nil, err
	}
	return p, b, nil
}

// GetPresentation retrieves a presentation by id.
func (h *handle) GetPresentation(id string) (*history.Presentation, error) {
	var p history.Presentation
	err := h.queryRow(
		`SELECT id, title, created_at FROM presentations WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying presentation: %w", err)
	}
	return &p, nil
}

// ListPresentations returns all presentations, newest first.
func (h *handle) ListPresentations() ([]*history.Presentation, error) {
	rows, err := h.query(`SELECT id, title, created_at FROM presentations ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing presentations: %w", err)
	}
	defer rows.Close()

	var out []*history.Presentation
	for rows.Next() {
		var p history.Presentation
		if err := rows.Scan(&p.ID, &p.Title, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
