// Package chunkstore is the content-addressed chunk layer on top of a BlobStore.
// It holds no state of its own.
package chunkstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Store struct {
	blobs       storage.BlobStore
	concurrency int
	log         logrus.FieldLogger
}

// New wraps blobs. concurrency bounds IngestAll and ResolveAll; values below 1 mean 1.
func New(blobs storage.BlobStore, concurrency int, log logrus.FieldLogger) *Store {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logrus.New()
	}
	return &Store{blobs: blobs, concurrency: concurrency, log: log}
}

// Ingest stores chunk and returns its address. Ingesting known bytes stores nothing new.
func (s *Store) Ingest(ctx context.Context, chunk []byte) (types.Address, error) {
	if len(chunk) == 0 {
		return types.Address{}, types.ErrEmptyChunk
	}
	addr, err := s.blobs.PutBlob(ctx, chunk)
	if err != nil {
		s.log.WithFields(logrus.Fields{"size": len(chunk), "error": err}).Error("Failed to ingest chunk")
		return types.Address{}, fmt.Errorf("failed to ingest chunk: %w", err)
	}
	if addr != types.AddressOf(chunk) {
		return types.Address{}, fmt.Errorf("blob store returned address %s for content %s", addr.Short(), types.AddressOf(chunk).Short())
	}
	return addr, nil
}

// IngestAll ingests chunks concurrently. The addresses are in the order of chunks.
func (s *Store) IngestAll(ctx context.Context, chunks [][]byte) ([]types.Address, error) {
	addrs := make([]types.Address, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			addr, err := s.Ingest(ctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			addrs[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return addrs, nil
}

// Resolve returns the bytes stored under addr. An unknown address yields an error
// matching types.ErrNotFound; bytes that do not hash to addr yield types.ErrCorruptChunk.
func (s *Store) Resolve(ctx context.Context, addr types.Address) ([]byte, error) {
	chunk, err := s.blobs.GetBlob(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chunk %s: %w", addr.Short(), err)
	}
	if types.AddressOf(chunk) != addr {
		s.log.WithField("address", addr.Short()).Error("Resolved chunk does not match its address")
		return nil, fmt.Errorf("chunk %s: %w", addr.Short(), types.ErrCorruptChunk)
	}
	return chunk, nil
}

// ResolveAll resolves addrs concurrently into a slice of the same order. Chunks that
// are unknown or corrupt are reported as *types.ChunkMissingError carrying the lowest
// such index. Any other store failure is returned as is and stops the remaining lookups.
func (s *Store) ResolveAll(ctx context.Context, addrs []types.Address) ([][]byte, error) {
	chunks := make([][]byte, len(addrs))
	missing := make([]error, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			chunk, err := s.Resolve(gctx, addr)
			switch {
			case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrCorruptChunk):
				missing[i] = err
				return nil
			case err != nil:
				return fmt.Errorf("failed to resolve chunk %d: %w", i, err)
			}
			chunks[i] = chunk
			return nil
		})
	}
	err := g.Wait()
	// A cancelled caller is not a missing chunk.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	for i, cause := range missing {
		if cause != nil {
			return nil, &types.ChunkMissingError{Index: i, Address: addrs[i], Cause: cause}
		}
	}
	return chunks, nil
}

func (s *Store) Has(ctx context.Context, addr types.Address) (bool, error) {
	ok, err := s.blobs.HasBlob(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk %s: %w", addr.Short(), err)
	}
	return ok, nil
}

// Size resolves addr and returns the length of its bytes.
func (s *Store) Size(ctx context.Context, addr types.Address) (uint64, error) {
	chunk, err := s.Resolve(ctx, addr)
	if err != nil {
		return 0, err
	}
	return uint64(len(chunk)), nil
}
