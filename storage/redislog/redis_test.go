package redislog

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server only when REDIS_ADDR is set.
func setupLog(t *testing.T) *Log {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	l, err := New(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0, "test-"+uuid.NewString()+":")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = l.client.Del(ctx, l.Key("alice"), l.Key("bob")).Err()
		_ = l.Close()
	})
	return l
}

func TestKeyLayout(t *testing.T) {
	l := &Log{prefix: "fs:"}
	assert.Equal(t, "fs:log:alice", l.Key("alice"))
}

func TestAppendAndRead(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	id1, err := l.Append(ctx, "alice", []byte("one"))
	require.NoError(t, err)
	id2, err := l.Append(ctx, "alice", []byte("two"))
	require.NoError(t, err)
	_, err = l.Append(ctx, "bob", []byte("three"))
	require.NoError(t, err)

	records, err := l.Read(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, id1, records[0].ID)
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, []byte("one"), records[0].Data)
	assert.Equal(t, id2, records[1].ID)

	_, err = l.Append(ctx, "", []byte("x"))
	require.ErrorIs(t, err, types.ErrInvalidIdentity)
}
