package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an address is unknown to the blob store.
	ErrNotFound = errors.New("not found")

	// ErrChunkMissing is matched by *ChunkMissingError.
	ErrChunkMissing = errors.New("chunk missing")

	// ErrSizeMismatch is matched by *SizeMismatchError.
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrHashMismatch is matched by *HashMismatchError.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrPublishFailed is matched by *PublishError.
	ErrPublishFailed = errors.New("publish failed")

	// ErrInvalidDraft is returned when a draft violates the metadata invariants.
	ErrInvalidDraft = errors.New("invalid draft")

	// ErrInvalidIdentity is returned for an empty identity or an Agent not built with NewAgent.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrEmptyChunk is returned when an empty byte slice is ingested.
	ErrEmptyChunk = errors.New("empty chunk")

	// ErrCorruptChunk is returned when resolved bytes do not hash to their address.
	ErrCorruptChunk = errors.New("corrupt chunk")

	// ErrNotReceiver is returned when an agent acknowledges a record addressed to someone else.
	ErrNotReceiver = errors.New("agent is not the receiver of this file")
)

// ChunkMissingError reports the lowest-indexed chunk of a metadata record that the blob
// store does not hold or that no longer hashes to its address. Cause matches ErrNotFound
// or ErrCorruptChunk respectively.
type ChunkMissingError struct {
	Index   int
	Address Address
	Cause   error
}

func (e *ChunkMissingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("chunk %d (%s) missing: %v", e.Index, e.Address.Short(), e.Cause)
	}
	return fmt.Sprintf("chunk %d (%s) missing", e.Index, e.Address.Short())
}

func (e *ChunkMissingError) Is(target error) bool {
	return target == ErrChunkMissing
}

func (e *ChunkMissingError) Unwrap() error {
	return e.Cause
}

// SizeMismatchError reports a reassembled length that disagrees with the declared file size.
type SizeMismatchError struct {
	Expected uint64
	Actual   uint64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}

// HashMismatchError reports a reassembled payload whose digest disagrees with the record.
type HashMismatchError struct {
	Expected Digest
	Actual   Digest
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *HashMismatchError) Is(target error) bool {
	return target == ErrHashMismatch
}

// PublishError reports that a record was not appended. No part of it is visible.
type PublishError struct {
	Author Identity
	Cause  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed for author %s: %v", e.Author, e.Cause)
}

func (e *PublishError) Is(target error) bool {
	return target == ErrPublishFailed
}

func (e *PublishError) Unwrap() error {
	return e.Cause
}
