package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(mem, 4, logger), mem
}

// corruptingStore hands back different bytes than were stored.
type corruptingStore struct {
	*storage.Memory
}

func (c corruptingStore) GetBlob(ctx context.Context, addr types.Address) ([]byte, error) {
	b, err := c.Memory.GetBlob(ctx, addr)
	if err != nil {
		return nil, err
	}
	b[0] ^= 0xFF
	return b, nil
}

func TestIngestResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	addr, err := store.Ingest(ctx, []byte("chunk data"))
	require.NoError(t, err)
	assert.Equal(t, types.AddressOf([]byte("chunk data")), addr)

	got, err := store.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk data"), got)

	has, err := store.Has(ctx, addr)
	require.NoError(t, err)
	assert.True(t, has)

	size, err := store.Size(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), size)
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, mem := setupStore(t)

	a, err := store.Ingest(ctx, []byte("same"))
	require.NoError(t, err)
	b, err := store.Ingest(ctx, []byte("same"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, mem.BlobCount())
}

func TestIngestRejectsEmptyChunk(t *testing.T) {
	store, _ := setupStore(t)
	_, err := store.Ingest(context.Background(), []byte{})
	require.ErrorIs(t, err, types.ErrEmptyChunk)
}

func TestResolveUnknownAddress(t *testing.T) {
	store, _ := setupStore(t)
	_, err := store.Resolve(context.Background(), types.AddressOf([]byte("absent")))
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestResolveDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	store := New(corruptingStore{mem}, 1, nil)

	addr, err := store.Ingest(ctx, []byte("payload"))
	require.NoError(t, err)

	_, err = store.Resolve(ctx, addr)
	require.ErrorIs(t, err, types.ErrCorruptChunk)
}

func TestIngestAllKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	var chunks [][]byte
	for i := 0; i < 50; i++ {
		chunks = append(chunks, []byte(fmt.Sprintf("chunk-%03d", i)))
	}

	addrs, err := store.IngestAll(ctx, chunks)
	require.NoError(t, err)
	require.Len(t, addrs, len(chunks))
	for i, chunk := range chunks {
		assert.Equal(t, types.AddressOf(chunk), addrs[i])
	}

	resolved, err := store.ResolveAll(ctx, addrs)
	require.NoError(t, err)
	assert.Equal(t, chunks, resolved)
}

func TestIngestAllFailsOnEmptyChunk(t *testing.T) {
	store, _ := setupStore(t)
	_, err := store.IngestAll(context.Background(), [][]byte{[]byte("a"), {}, []byte("c")})
	require.ErrorIs(t, err, types.ErrEmptyChunk)
}

func TestResolveAllReportsMissingIndex(t *testing.T) {
	ctx := context.Background()
	store, mem := setupStore(t)

	addrs, err := store.IngestAll(ctx, [][]byte{[]byte("one"), []byte("two"), []byte("three")})
	require.NoError(t, err)
	require.NoError(t, mem.DeleteBlob(ctx, addrs[1]))

	_, err = store.ResolveAll(ctx, addrs)
	require.ErrorIs(t, err, types.ErrChunkMissing)
	require.ErrorIs(t, err, types.ErrNotFound)

	var missing *types.ChunkMissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, 1, missing.Index)
	assert.Equal(t, addrs[1], missing.Address)
}

// unreachableStore fails every lookup of one address with a transport error.
type unreachableStore struct {
	*storage.Memory
	broken types.Address
}

func (u unreachableStore) GetBlob(ctx context.Context, addr types.Address) ([]byte, error) {
	if addr == u.broken {
		return nil, errors.New("connection reset by peer")
	}
	return u.Memory.GetBlob(ctx, addr)
}

func TestResolveAllPassesStoreFailuresThrough(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	addrs, err := New(mem, 1, logger).IngestAll(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)

	store := New(unreachableStore{Memory: mem, broken: addrs[2]}, 4, logger)
	_, err = store.ResolveAll(ctx, addrs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NotErrorIs(t, err, types.ErrChunkMissing)
	assert.NotErrorIs(t, err, types.ErrNotFound)

	var missing *types.ChunkMissingError
	assert.False(t, errors.As(err, &missing))
}

func TestResolveAllReportsLowestMissingIndex(t *testing.T) {
	ctx := context.Background()
	store, mem := setupStore(t)

	var chunks [][]byte
	for i := 0; i < 32; i++ {
		chunks = append(chunks, []byte(fmt.Sprintf("chunk-%02d", i)))
	}
	addrs, err := store.IngestAll(ctx, chunks)
	require.NoError(t, err)
	for _, i := range []int{29, 17, 5} {
		require.NoError(t, mem.DeleteBlob(ctx, addrs[i]))
	}

	for run := 0; run < 10; run++ {
		_, err = store.ResolveAll(ctx, addrs)
		var missing *types.ChunkMissingError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, 5, missing.Index)
		assert.Equal(t, addrs[5], missing.Address)
	}
}

func TestResolveAllTreatsCorruptChunkAsMissing(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := New(corruptingStore{mem}, 2, logger)

	addrs, err := store.IngestAll(ctx, [][]byte{[]byte("only")})
	require.NoError(t, err)

	_, err = store.ResolveAll(ctx, addrs)
	require.ErrorIs(t, err, types.ErrChunkMissing)
	require.ErrorIs(t, err, types.ErrCorruptChunk)
	assert.NotErrorIs(t, err, types.ErrNotFound)
}

func TestResolveAllCancelled(t *testing.T) {
	store, _ := setupStore(t)
	addrs, err := store.IngestAll(context.Background(), [][]byte{[]byte("x")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.ResolveAll(ctx, addrs)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, types.ErrChunkMissing)
}
