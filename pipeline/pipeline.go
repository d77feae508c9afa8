package pipeline

import (
	"bytes"
	"fmt"
	"io"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/klauspost/compress/zstd"
)

// Strategy selects how a file payload is cut into chunks.
type Strategy string

const (
	// StrategyFixed cuts the payload into slices of exactly ChunkSize bytes (the last one may be shorter).
	StrategyFixed Strategy = "fixed"
	// StrategyBuzhash cuts at content-defined boundaries, which keeps addresses stable across insertions.
	StrategyBuzhash Strategy = "buzhash"
)

// DefaultChunkSize is the fixed chunk size used when none is configured.
const DefaultChunkSize int64 = 256 * 1024

// ParseStrategy accepts the configuration spelling of a Strategy. Empty means fixed.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyFixed:
		return StrategyFixed, nil
	case StrategyBuzhash:
		return StrategyBuzhash, nil
	default:
		return "", fmt.Errorf("unknown chunking strategy %q", s)
	}
}

// Splitter cuts file payloads into chunks. The zero value splits fixed-size at DefaultChunkSize.
type Splitter struct {
	Strategy  Strategy
	ChunkSize int64
}

// Split breaks data into chunks. An empty payload yields no chunks.
// Concatenating the result always gives back data.
func (s Splitter) Split(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	reader := bytes.NewReader(data)
	var split chunker.Splitter
	switch s.Strategy {
	case StrategyBuzhash:
		split = chunker.NewBuzhash(reader)
	case "", StrategyFixed:
		size := s.ChunkSize
		if size <= 0 {
			size = DefaultChunkSize
		}
		split = chunker.NewSizeSplitter(reader, size)
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", s.Strategy)
	}

	var chunks [][]byte
	for {
		chunk, err := split.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to split payload: %w", err)
		}
		if len(chunk) > 0 {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// CompressWithZstd compresses data using the Zstandard algorithm.
func CompressWithZstd(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = enc.Write(data); err != nil {
		return nil, err
	}
	if err = enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressWithZstd decompresses Zstandard-compressed data.
func DecompressWithZstd(data []byte) ([]byte, error) {
	reader := bytes.NewReader(data)
	dec, err := zstd.NewReader(reader)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var buf bytes.Buffer
	if _, err = io.Copy(&buf, dec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
