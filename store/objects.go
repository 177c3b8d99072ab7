package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/gusuku-oknw/peerdiffx/cas"
)

// Object kinds.
const (
	KindElements = "elements"
	KindXML      = "xml"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil)
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// PutObject stores content under its digest and returns the digest. Storing
// the same content twice is a no-op.
func (h *handle) PutObject(kind string, content []byte) ([]byte, error) {
	enc, _, err := codec()
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	digest := cas.ObjectDigest(kind, content)
	compressed := enc.EncodeAll(content, nil)

	_, err = h.exec(
		`INSERT INTO objects (digest, kind, size, data, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (digest) DO NOTHING`,
		digest, kind, len(content), compressed, h.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting object: %w", err)
	}
	return digest, nil
}

// GetObject returns the decompressed content stored under digest.
func (h *handle) GetObject(digest []byte) ([]byte, error) {
	var compressed []byte
	err := h.queryRow(`SELECT data FROM objects WHERE digest = ?`, digest).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object %s: %w", cas.BytesToHex(digest), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying object: %w", err)
	}
	_, dec, err := codec()
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	content, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing object: %w", err)
	}
	return content, nil
}

// CountObjects returns the number of stored objects.
func (h *handle) CountObjects() (int, error) {
	var n int
	if err := h.queryRow(`SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting objects: %w", err)
	}
	return n, nil
}
