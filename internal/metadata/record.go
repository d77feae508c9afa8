package metadata

import (
	"fmt"
	"time"

	"github.com/i5heu/ouroboros-fileshare/internal/codec"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
)

const recordVersion = 1

// record is the encoded form of a FileMetadata as it is appended to a log.
type record struct {
	Version      uint8           `cbor:"v"`
	Author       types.Identity  `cbor:"author"`
	Receiver     types.Identity  `cbor:"receiver"`
	FileName     string          `cbor:"file_name"`
	FileSize     uint64          `cbor:"file_size"`
	FileType     string          `cbor:"file_type"`
	Chunks       []types.Address `cbor:"chunks"`
	Hash         types.Digest    `cbor:"hash"`
	TimeSent     time.Time       `cbor:"time_sent"`
	TimeReceived *time.Time      `cbor:"time_received,omitempty"`
}

// Encode returns the log representation of md. RecordID is not encoded.
func Encode(md types.FileMetadata) ([]byte, error) {
	data, err := codec.Marshal(record{
		Version:      recordVersion,
		Author:       md.Author,
		Receiver:     md.Receiver,
		FileName:     md.FileName,
		FileSize:     md.FileSize,
		FileType:     md.FileType,
		Chunks:       md.Chunks,
		Hash:         md.Hash,
		TimeSent:     md.TimeSent,
		TimeReceived: md.TimeReceived,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode file metadata: %w", err)
	}
	return data, nil
}

// Decode parses a log entry written by Encode. recordID is copied into the result.
func Decode(recordID string, data []byte) (types.FileMetadata, error) {
	var r record
	if err := codec.Unmarshal(data, &r); err != nil {
		return types.FileMetadata{}, fmt.Errorf("failed to decode file metadata %s: %w", recordID, err)
	}
	if r.Version != recordVersion {
		return types.FileMetadata{}, fmt.Errorf("file metadata %s has unsupported version %d", recordID, r.Version)
	}

	md := types.FileMetadata{
		RecordID:     recordID,
		Author:       r.Author,
		Receiver:     r.Receiver,
		FileName:     r.FileName,
		FileSize:     r.FileSize,
		FileType:     r.FileType,
		Chunks:       r.Chunks,
		Hash:         r.Hash,
		TimeSent:     r.TimeSent,
		TimeReceived: r.TimeReceived,
	}
	if len(md.Chunks) == 0 {
		md.Chunks = nil
	}
	return md, nil
}
