package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/holoship/internal/ports"
)

const anchorSuffix = ".anchor.json"

// anchorRecord is the on-disk form of one saved anchor.
type anchorRecord struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"saved_at"`
	Data    []byte    `json:"data"`
}

// AnchorFileStore implements ports.AnchorStore with one JSON file per
// anchor id.
type AnchorFileStore struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

var _ ports.AnchorStore = (*AnchorFileStore)(nil)

// NewAnchorFileStore creates a store rooted at dir.
func NewAnchorFileStore(dir string) *AnchorFileStore {
	return &AnchorFileStore{dir: dir, now: time.Now}
}

// Save persists blob under id atomically.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func (s *AnchorFileStore) Save(ctx context.Context, id string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(anchorRecord{ID: id, SavedAt: s.now().UTC(), Data: blob}, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load returns the blob saved under id. ok is false when nothing was saved.
func (s *AnchorFileStore) Load(ctx context.Context, id string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := s.path(id)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var rec anchorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("anchor %q: %w", id, err)
	}
	if rec.ID != id {
		return nil, false, fmt.Errorf("anchor %q: file holds %q", id, rec.ID)
	}
	return rec.Data, true, nil
}

// Dir returns the directory anchors are stored in.
func (s *AnchorFileStore) Dir() string {
	return s.dir
}

func (s *AnchorFileStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid anchor id %q", id)
	}
	return filepath.Join(s.dir, id+anchorSuffix), nil
}
