// Package assembler rebuilds file payloads from metadata records.
package assembler

import (
	"context"

	"github.com/i5heu/ouroboros-fileshare/internal/chunkstore"
	"github.com/i5heu/ouroboros-fileshare/internal/hasher"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/sirupsen/logrus"
)

type Assembler struct {
	chunks *chunkstore.Store
	log    logrus.FieldLogger
}

func New(chunks *chunkstore.Store, log logrus.FieldLogger) *Assembler {
	if log == nil {
		log = logrus.New()
	}
	return &Assembler{chunks: chunks, log: log}
}

// Reconstruct resolves every chunk of md, concatenates them in record order and
// checks length and digest against the record. It returns either the verified
// payload or one of *types.ChunkMissingError, *types.SizeMismatchError and
// *types.HashMismatchError, never partial output.
func (a *Assembler) Reconstruct(ctx context.Context, md types.FileMetadata) ([]byte, error) {
	parts, err := a.chunks.ResolveAll(ctx, md.Chunks)
	if err != nil {
		a.log.WithFields(logrus.Fields{"file": md.FileName, "author": md.Author, "error": err}).Error("Failed to resolve file chunks")
		return nil, err
	}

	var total uint64
	for _, p := range parts {
		total += uint64(len(p))
	}
	if total != md.FileSize {
		a.log.WithFields(logrus.Fields{"file": md.FileName, "expected": md.FileSize, "actual": total}).Error("Reconstructed size mismatch")
		return nil, &types.SizeMismatchError{Expected: md.FileSize, Actual: total}
	}

	payload := make([]byte, 0, total)
	h := hasher.New()
	for _, p := range parts {
		payload = append(payload, p...)
		_, _ = h.Write(p)
	}

	if sum := h.Sum(); sum != md.Hash {
		a.log.WithFields(logrus.Fields{"file": md.FileName, "expected": md.Hash.String(), "actual": sum.String()}).Error("Reconstructed digest mismatch")
		return nil, &types.HashMismatchError{Expected: md.Hash, Actual: sum}
	}

	a.log.WithFields(logrus.Fields{"file": md.FileName, "size": total, "chunks": len(parts)}).Debug("Successfully reconstructed file")
	return payload, nil
}
