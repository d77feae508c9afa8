package fileshare

import "github.com/i5heu/ouroboros-fileshare/internal/types"

type (
	Address      = types.Address
	Digest       = types.Digest
	Identity     = types.Identity
	Agent        = types.Agent
	FileMetadata = types.FileMetadata
	Draft        = types.Draft
	FileInput    = types.FileInput

	ChunkMissingError = types.ChunkMissingError
	SizeMismatchError = types.SizeMismatchError
	HashMismatchError = types.HashMismatchError
	PublishError      = types.PublishError
)

var (
	ErrNotFound        = types.ErrNotFound
	ErrChunkMissing    = types.ErrChunkMissing
	ErrSizeMismatch    = types.ErrSizeMismatch
	ErrHashMismatch    = types.ErrHashMismatch
	ErrPublishFailed   = types.ErrPublishFailed
	ErrInvalidDraft    = types.ErrInvalidDraft
	ErrInvalidIdentity = types.ErrInvalidIdentity
	ErrEmptyChunk      = types.ErrEmptyChunk
	ErrCorruptChunk    = types.ErrCorruptChunk
	ErrNotReceiver     = types.ErrNotReceiver
)

// NewAgent returns the capability of acting as id. Only the process that owns id
// should call it.
func NewAgent(id Identity) (Agent, error) {
	return types.NewAgent(id)
}

// AddressOf computes the content address of a chunk.
func AddressOf(chunk []byte) Address {
	return types.AddressOf(chunk)
}

// ParseAddress parses the hexadecimal form of an Address.
func ParseAddress(s string) (Address, error) {
	return types.ParseAddress(s)
}
