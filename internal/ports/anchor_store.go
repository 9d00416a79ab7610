package ports

import "context"

// AnchorStore persists opaque position blobs keyed by anchor identity.
type AnchorStore interface {
	// Save stores blob atomically under anchorID.
	Save(ctx context.Context, anchorID string, blob []byte) error

	// Load returns the blob saved under anchorID. ok is false when
	// nothing was saved.
	Load(ctx context.Context, anchorID string) (blob []byte, ok bool, err error)
}
