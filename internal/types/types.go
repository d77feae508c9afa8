package types

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/i5heu/ouroboros-crypt/hash"
)

// Address is the content address of a chunk. It is derived from the chunk bytes only,
// so identical bytes always map to the same Address.
type Address [64]byte

// AddressOf computes the content address of payload.
func AddressOf(payload []byte) Address {
	return Address(hash.HashBytes(payload))
}

// ParseAddress parses the hexadecimal form produced by Address.String.
func ParseAddress(s string) (Address, error) {
	var addr Address
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("failed to parse address: %w", err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("address is %d bytes, want %d", len(decoded), len(addr))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns the first 12 hex characters, for logs.
func (a Address) Short() string {
	return hex.EncodeToString(a[:6])
}

func (a Address) IsZero() bool {
	var zero Address
	return a == zero
}

// Digest is the whole-file BLAKE3 digest used for end-to-end verification.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	var zero Digest
	return d == zero
}

// Identity names a participant, usually the encoded form of its public key.
type Identity string

// Valid reports whether the identity is usable as a log owner.
func (i Identity) Valid() bool {
	return i != ""
}

func (i Identity) String() string {
	return string(i)
}

// Agent is the capability of acting as one identity. Its identity cannot be changed
// after construction, so records published through an Agent cannot carry a forged author.
type Agent struct {
	identity Identity
}

// NewAgent binds an Agent to id. The caller is responsible for having authenticated id.
func NewAgent(id Identity) (Agent, error) {
	if !id.Valid() {
		return Agent{}, fmt.Errorf("%w: empty identity", ErrInvalidIdentity)
	}
	return Agent{identity: id}, nil
}

func (a Agent) Identity() Identity {
	return a.identity
}

// Valid reports whether the Agent was created through NewAgent.
func (a Agent) Valid() bool {
	return a.identity.Valid()
}

// FileMetadata is one published file transfer record. It is immutable once published.
type FileMetadata struct {
	RecordID     string     // Log record id assigned on append (not part of the encoded record)
	Author       Identity   // Bound from the publishing Agent
	Receiver     Identity   // Intended recipient
	FileName     string     // Display name, not unique
	FileSize     uint64     // Byte length of the reconstructed file
	FileType     string     // Free-form tag supplied by the sender
	Chunks       []Address  // Concatenation order of the file
	Hash         Digest     // Digest of the full reconstructed payload
	TimeSent     time.Time  // Set at publish time
	TimeReceived *time.Time // Set only on the receiver's acknowledged copy
}

// Draft is an unpublished FileMetadata. It deliberately has no author field.
type Draft struct {
	Receiver Identity
	FileName string
	FileSize uint64
	FileType string
	Chunks   []Address
	Hash     Digest
}

// FileInput is the single-call publish request carrying the raw payload.
type FileInput struct {
	Receiver Identity
	FileName string
	FileSize uint64
	FileType string
	Bytes    []byte
}
