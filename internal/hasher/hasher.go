// Package hasher computes the whole-file digest recorded in file metadata. The same
// algorithm is used when publishing and when verifying a reconstruction.
package hasher

import (
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/zeebo/blake3"
)

// Size is the digest length in bytes.
const Size = len(types.Digest{})

// Digest returns the BLAKE3-256 digest of payload.
func Digest(payload []byte) types.Digest {
	return types.Digest(blake3.Sum256(payload))
}

// Hasher digests a payload written in pieces, e.g. chunk by chunk.
type Hasher struct {
	h *blake3.Hasher
}

func New() *Hasher {
	return &Hasher{h: blake3.New()}
}

// Write never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

func (h *Hasher) Sum() types.Digest {
	var d types.Digest
	copy(d[:], h.h.Sum(nil))
	return d
}

func (h *Hasher) Reset() {
	h.h.Reset()
}
