package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
)

// Memory is an in-process BlobStore and Log.
type Memory struct {
	mu    sync.RWMutex
	blobs map[types.Address][]byte
	logs  map[types.Identity][]Record
}

func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[types.Address][]byte),
		logs:  make(map[types.Identity][]Record),
	}
}

func (m *Memory) PutBlob(ctx context.Context, payload []byte) (types.Address, error) {
	if err := ctx.Err(); err != nil {
		return types.Address{}, err
	}
	if len(payload) == 0 {
		return types.Address{}, types.ErrEmptyChunk
	}
	addr := types.AddressOf(payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.blobs[addr]; !exists {
		m.blobs[addr] = append([]byte(nil), payload...)
	}
	return addr, nil
}

func (m *Memory) GetBlob(ctx context.Context, addr types.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.blobs[addr]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", addr.Short(), ErrNotFound)
	}
	return append([]byte(nil), payload...), nil
}

func (m *Memory) HasBlob(ctx context.Context, addr types.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[addr]
	return ok, nil
}

func (m *Memory) DeleteBlob(ctx context.Context, addr types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, addr)
	return nil
}

// BlobCount returns the number of distinct blobs held.
func (m *Memory) BlobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

func (m *Memory) Append(ctx context.Context, owner types.Identity, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !owner.Valid() {
		return "", types.ErrInvalidIdentity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record := Record{
		ID:   uuid.NewString(),
		Seq:  uint64(len(m.logs[owner]) + 1),
		Data: append([]byte(nil), data...),
	}
	m.logs[owner] = append(m.logs[owner], record)
	return record.ID, nil
}

func (m *Memory) Read(ctx context.Context, owner types.Identity) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]Record, len(m.logs[owner]))
	for i, r := range m.logs[owner] {
		records[i] = Record{ID: r.ID, Seq: r.Seq, Data: append([]byte(nil), r.Data...)}
	}
	return records, nil
}
