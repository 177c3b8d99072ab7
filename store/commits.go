package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gusuku-oknw/peerdiffx/cas"
	"github.com/gusuku-oknw/peerdiffx/element"
	"github.com/gusuku-oknw/peerdiffx/history"
)

const commitColumns = `id, presentation_id, branch_id, parent_id, merged_from_id, message, author, created_at, seq`

func scanCommit(row interface{ Scan(...interface{}) error }) (*history.Commit, error) {
	var c history.Commit
	var parent, mergedFrom sql.NullString
	if err := row.Scan(&c.ID, &c.PresentationID, &c.BranchID, &parent, &mergedFrom,
		&c.Message, &c.Author, &c.CreatedAt, &c.Seq); err != nil {
		return nil, err
	}
	c.ParentID = parent.String
	c.MergedFromID = mergedFrom.String
	return &c, nil
}

// InsertCommit stores a commit and its slide versions. ID, CreatedAt and Seq
// are assigned here; slide contents are stored as deduplicated objects.
// The branch head is not moved; use SetBranchHead in the same transaction.
func (h *handle) InsertCommit(c *history.Commit, slides []*history.SlideVersion) error {
	if c.ID == "" {
		c.ID = newUUID()
	}
	c.CreatedAt = h.now()

	if err := h.queryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM commits WHERE presentation_id = ?`, c.PresentationID,
	).Scan(&c.Seq); err != nil {
		return fmt.Errorf("allocating commit seq: %w", err)
	}

	if _, err := h.exec(
		`INSERT INTO commits (`+commitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PresentationID, c.BranchID, nullString(c.ParentID), nullString(c.MergedFromID),
		c.Message, c.Author, c.CreatedAt, c.Seq,
	); err != nil {
		return fmt.Errorf("inserting commit: %w", err)
	}

	for _, sv := range slides {
		sv.CommitID = c.ID
		if err := h.insertSlideVersion(sv); err != nil {
			return fmt.Errorf("slide %d: %w", sv.SlideNumber, err)
		}
	}
	return nil
}

func (h *handle) insertSlideVersion(sv *history.SlideVersion) error {
	elements := sv.Elements
	if elements == nil {
		elements = element.Collection{}
	}
	data, err := cas.CanonicalJSON(elements)
	if err != nil {
		return fmt.Errorf("encoding elements: %w", err)
	}
	elementsDigest, err := h.PutObject(KindElements, data)
	if err != nil {
		return err
	}

	var xmlDigest []byte
	if sv.XML != "" {
		if xmlDigest, err = h.PutObject(KindXML, []byte(sv.XML)); err != nil {
			return err
		}
	}

	_, err = h.exec(
		`INSERT INTO slide_versions (commit_id, slide_number, title, elements_digest, xml_digest)
		 VALUES (?, ?, ?, ?, ?)`,
		sv.CommitID, sv.SlideNumber, sv.Title, elementsDigest, xmlDigest,
	)
	if err != nil {
		return fmt.Errorf("inserting slide version: %w", err)
	}
	return nil
}

// GetCommit retrieves a commit by id.
func (h *handle) GetCommit(id string) (*history.Commit, error) {
	c, err := scanCommit(h.queryRow(`SELECT `+commitColumns+` FROM commits WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying commit: %w", err)
	}
	return c, nil
}

// ListCommits returns every commit of a presentation in creation order.
func (h *handle) ListCommits(presentationID string) ([]*history.Commit, error) {
	rows, err := h.query(
		`SELECT `+commitColumns+` FROM commits WHERE presentation_id = ? ORDER BY seq`,
		presentationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	defer rows.Close()

	var out []*history.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type slideRow struct {
	number         int
	title          string
	elementsDigest []byte
	xmlDigest      []byte
}

// GetSnapshot loads all slide versions of a commit. A commit without slides
// yields an empty snapshot; an unknown commit yields ErrNotFound.
func (h *handle) GetSnapshot(commitID string) (history.Snapshot, error) {
	if _, err := h.GetCommit(commitID); err != nil {
		return nil, err
	}

	rows, err := h.query(
		`SELECT slide_number, title, elements_digest, xml_digest FROM slide_versions
		 WHERE commit_id = ? ORDER BY slide_number`,
		commitID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing slide versions: %w", err)
	}
	var slideRows []slideRow
	for rows.Next() {
		var r slideRow
		if err := rows.Scan(&r.number, &r.title, &r.elementsDigest, &r.xmlDigest); err != nil {
			rows.Close()
			return nil, err
		}
		slideRows = append(slideRows, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Objects are read after the cursor is closed; SQLite runs on one connection.
	snap := make(history.Snapshot, len(slideRows))
	for _, r := range slideRows {
		sv, err := h.loadSlide(commitID, r)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", r.number, err)
		}
		snap[r.number] = sv
	}
	return snap, nil
}

// GetSlideVersion loads one slide of a commit.
func (h *handle) GetSlideVersion(commitID string, slideNumber int) (*history.SlideVersion, error) {
	var r slideRow
	err := h.queryRow(
		`SELECT slide_number, title, elements_digest, xml_digest FROM slide_versions
		 WHERE commit_id = ? AND slide_number = ?`,
		commitID, slideNumber,
	).Scan(&r.number, &r.title, &r.elementsDigest, &r.xmlDigest)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying slide version: %w", err)
	}
	return h.loadSlide(commitID, r)
}

func (h *handle) loadSlide(commitID string, r slideRow) (*history.SlideVersion, error) {
	data, err := h.GetObject(r.elementsDigest)
	if err != nil {
		return nil, err
	}
	var elements element.Collection
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("decoding elements: %w", err)
	}

	sv := &history.SlideVersion{
		CommitID:    commitID,
		SlideNumber: r.number,
		Title:       r.title,
		Elements:    elements,
	}
	if len(r.xmlDigest) > 0 {
		xml, err := h.GetObject(r.xmlDigest)
		if err != nil {
			return nil, err
		}
		sv.XML = string(xml)
	}
	return sv, nil
}
