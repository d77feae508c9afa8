package pipeline

import (
	"bytes"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Slice is one Reed-Solomon slice of an encoded blob. Data slices come first, parity slices after.
type Slice struct {
	Index   uint8
	Payload []byte
}

// SplitReedSolomon encodes payload into dataSlices+paritySlices slices.
// Any dataSlices of them are enough to rebuild payload with JoinReedSolomon.
func SplitReedSolomon(payload []byte, dataSlices, paritySlices uint8) ([]Slice, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("cannot split empty payload")
	}
	enc, err := reedsolomon.New(int(dataSlices), int(paritySlices))
	if err != nil {
		return nil, fmt.Errorf("error creating reed solomon encoder: %w", err)
	}

	split, err := enc.Split(payload)
	if err != nil {
		return nil, fmt.Errorf("error splitting payload: %w", err)
	}
	if err := enc.Encode(split); err != nil {
		return nil, fmt.Errorf("error computing parity slices: %w", err)
	}
	if len(split) != int(dataSlices)+int(paritySlices) {
		return nil, fmt.Errorf("unexpected number of slices: got %d, expected %d", len(split), int(dataSlices)+int(paritySlices))
	}

	slices := make([]Slice, len(split))
	for i, s := range split {
		slices[i] = Slice{Index: uint8(i), Payload: s}
	}
	return slices, nil
}

// JoinReedSolomon rebuilds a payload of originalSize bytes from whatever slices survived.
func JoinReedSolomon(slices []Slice, dataSlices, paritySlices uint8, originalSize int) ([]byte, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("no slices provided for reconstruction")
	}
	total := int(dataSlices) + int(paritySlices)
	if len(slices) > total {
		return nil, fmt.Errorf("too many slices: got %d, expected at most %d", len(slices), total)
	}
	enc, err := reedsolomon.New(int(dataSlices), int(paritySlices))
	if err != nil {
		return nil, fmt.Errorf("failed to create Reed-Solomon decoder: %w", err)
	}

	shards := make([][]byte, total)
	for _, s := range slices {
		if int(s.Index) >= total {
			return nil, fmt.Errorf("invalid Reed-Solomon index: %d (max %d)", s.Index, total-1)
		}
		shards[s.Index] = s.Payload
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("failed to reconstruct Reed-Solomon slices: %w", err)
	}

	var joined bytes.Buffer
	if err := enc.Join(&joined, shards, originalSize); err != nil {
		return nil, fmt.Errorf("failed to join Reed-Solomon slices: %w", err)
	}
	return joined.Bytes(), nil
}
