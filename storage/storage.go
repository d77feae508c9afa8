// Package storage defines the collaborator interfaces consumed by the file share
// (content-addressed blob storage and a per-identity append-only log) together
// with in-memory and BadgerDB backends.
package storage

import (
	"context"

	"github.com/i5heu/ouroboros-fileshare/internal/types"
)

// ErrNotFound is returned by GetBlob for an unknown address.
var ErrNotFound = types.ErrNotFound

// BlobStore is immutable content-addressed storage. PutBlob must return the same
// address for the same bytes and must not store a second copy of known content.
type BlobStore interface {
	PutBlob(ctx context.Context, payload []byte) (types.Address, error)
	GetBlob(ctx context.Context, addr types.Address) ([]byte, error)
	HasBlob(ctx context.Context, addr types.Address) (bool, error)
	// DeleteBlob exists for the store's own garbage collection. The file share never calls it.
	DeleteBlob(ctx context.Context, addr types.Address) error
}

// Record is one entry of an identity's log.
type Record struct {
	ID   string
	Seq  uint64 // Position in the owner's log, starting at 1
	Data []byte
}

// Log is an append-only, per-identity ordered log. Append is atomic: either the
// record becomes visible to Read or nothing does.
type Log interface {
	Append(ctx context.Context, owner types.Identity, data []byte) (string, error)
	Read(ctx context.Context, owner types.Identity) ([]Record, error)
}
