package fileshare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetAllFileMetadata returns the records agent authored, in publish order.
func (fs *FileShare) GetAllFileMetadata(ctx context.Context, agent Agent) ([]FileMetadata, error) {
	ctx, span := tracer.Start(ctx, "fileshare.get_all_file_metadata")
	defer span.End()

	atomic.AddUint64(&fs.readCounter, 1)
	files, err := fs.index.ListAll(ctx, agent)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("files", len(files)))
	return files, nil
}

// GetReceivedFileMetadata returns the copies agent acknowledged with ReceiveFile.
func (fs *FileShare) GetReceivedFileMetadata(ctx context.Context, agent Agent) ([]FileMetadata, error) {
	ctx, span := tracer.Start(ctx, "fileshare.get_received_file_metadata")
	defer span.End()

	atomic.AddUint64(&fs.readCounter, 1)
	files, err := fs.index.ListReceived(ctx, agent)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return files, nil
}

// GetAllFileMetadataFromAddresses returns the authored records of every identity in ids.
// Every requested identity is present in the result.
func (fs *FileShare) GetAllFileMetadataFromAddresses(ctx context.Context, ids []Identity) (map[Identity][]FileMetadata, error) {
	ctx, span := tracer.Start(ctx, "fileshare.get_all_file_metadata_from_addresses",
		trace.WithAttributes(attribute.Int("identities", len(ids))),
	)
	defer span.End()

	atomic.AddUint64(&fs.readCounter, 1)
	result, err := fs.index.ListByAuthors(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// FileInfo describes how a file's chunks are held by the blob store.
type FileInfo struct {
	RecordID      string
	FileName      string
	Author        Identity
	Receiver      Identity
	FileSize      uint64
	StoredSize    uint64 // Sum of the sizes of the distinct chunks present
	NumChunks     int
	UniqueChunks  int
	MissingChunks int
	ChunkDetails  []ChunkInfo
}

// ChunkInfo represents one chunk reference of a file.
type ChunkInfo struct {
	Index   int
	Address Address
	Size    uint64
	Present bool
}

// GetFileInfo inspects the chunks of md without reconstructing the file.
// Missing chunks are reported, not returned as errors.
func (fs *FileShare) GetFileInfo(ctx context.Context, md FileMetadata) (FileInfo, error) {
	info := FileInfo{
		RecordID:  md.RecordID,
		FileName:  md.FileName,
		Author:    md.Author,
		Receiver:  md.Receiver,
		FileSize:  md.FileSize,
		NumChunks: len(md.Chunks),
	}

	seen := make(map[Address]uint64, len(md.Chunks))
	for i, addr := range md.Chunks {
		atomic.AddUint64(&fs.readCounter, 1)
		ci := ChunkInfo{Index: i, Address: addr}

		size, known := seen[addr]
		if !known {
			var err error
			size, err = fs.chunks.Size(ctx, addr)
			switch {
			case errors.Is(err, ErrNotFound):
				info.MissingChunks++
				info.ChunkDetails = append(info.ChunkDetails, ci)
				continue
			case err != nil:
				return FileInfo{}, fmt.Errorf("failed to inspect chunk %d: %w", i, err)
			}
			seen[addr] = size
			info.StoredSize += size
		}

		ci.Size = size
		ci.Present = true
		info.ChunkDetails = append(info.ChunkDetails, ci)
	}
	info.UniqueChunks = len(seen)
	return info, nil
}

// FormatFileInfo returns a human-readable string representation of FileInfo
func (info FileInfo) FormatFileInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s (record %s)\n", info.FileName, info.RecordID)
	fmt.Fprintf(&b, "Author: %s, Receiver: %s\n", info.Author, info.Receiver)
	fmt.Fprintf(&b, "File Size: %s (%d bytes)\n", humanize.IBytes(info.FileSize), info.FileSize)
	fmt.Fprintf(&b, "Stored Size: %s (%d bytes)\n", humanize.IBytes(info.StoredSize), info.StoredSize)
	fmt.Fprintf(&b, "Chunks: %d, Unique: %d, Missing: %d\n\n", info.NumChunks, info.UniqueChunks, info.MissingChunks)

	for _, chunk := range info.ChunkDetails {
		if !chunk.Present {
			fmt.Fprintf(&b, "  Chunk %d: %s MISSING\n", chunk.Index+1, chunk.Address.Short())
			continue
		}
		fmt.Fprintf(&b, "  Chunk %d: %s %s (%d bytes)\n", chunk.Index+1, chunk.Address.Short(), humanize.IBytes(chunk.Size), chunk.Size)
	}
	return b.String()
}
