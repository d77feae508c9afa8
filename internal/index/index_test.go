package index

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/i5heu/ouroboros-fileshare/internal/chunkstore"
	"github.com/i5heu/ouroboros-fileshare/internal/metadata"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mem     *storage.Memory
	builder *metadata.Builder
	index   *Index
}

func setup(t *testing.T) fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	mem := storage.NewMemory()
	chunks := chunkstore.New(mem, 2, logger)
	return fixture{
		mem: mem,
		builder: metadata.NewBuilder(chunks, mem, metadata.Options{
			Clock:  func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
			Logger: logger,
		}),
		index: New(mem, 2, logger),
	}
}

func agent(t *testing.T, id types.Identity) types.Agent {
	t.Helper()
	a, err := types.NewAgent(id)
	require.NoError(t, err)
	return a
}

func (f fixture) send(t *testing.T, from types.Agent, to types.Identity, name string) types.FileMetadata {
	t.Helper()
	payload := []byte("contents of " + name)
	md, err := f.builder.PublishBytes(context.Background(), from, types.FileInput{
		Receiver: to,
		FileName: name,
		FileSize: uint64(len(payload)),
		Bytes:    payload,
	})
	require.NoError(t, err)
	return md
}

func names(files []types.FileMetadata) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.FileName
	}
	return out
}

func TestListByAuthorsComposesPerKey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b := agent(t, "A"), agent(t, "B")

	f.send(t, a, "B", "a1")
	f.send(t, a, "B", "a2")
	f.send(t, b, "A", "b1")

	got, err := f.index.ListByAuthors(ctx, []types.Identity{"A", "B"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a1", "a2"}, names(got["A"]))
	assert.Equal(t, []string{"b1"}, names(got["B"]))
	assert.Equal(t, 3, len(got["A"])+len(got["B"]))

	onlyA, err := f.index.ListByAuthors(ctx, []types.Identity{"A"})
	require.NoError(t, err)
	assert.Equal(t, got["A"], onlyA["A"])

	allA, err := f.index.ListAllFor(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, got["A"], allA)
}

func TestListByAuthorsIsTotal(t *testing.T) {
	f := setup(t)

	got, err := f.index.ListByAuthors(context.Background(), []types.Identity{"quiet", "quiet", "silent"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, id := range []types.Identity{"quiet", "silent"} {
		files, ok := got[id]
		require.True(t, ok, "missing key %s", id)
		assert.NotNil(t, files)
		assert.Empty(t, files)
	}

	got, err = f.index.ListByAuthors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListByAuthorsRejectsEmptyIdentity(t *testing.T) {
	f := setup(t)
	_, err := f.index.ListByAuthors(context.Background(), []types.Identity{"A", ""})
	require.ErrorIs(t, err, types.ErrInvalidIdentity)
}

func TestListAllKeepsPublishOrder(t *testing.T) {
	f := setup(t)
	a := agent(t, "A")
	for i := 0; i < 10; i++ {
		f.send(t, a, "B", fmt.Sprintf("file-%d", i))
	}

	files, err := f.index.ListAll(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, files, 10)
	for i, md := range files {
		assert.Equal(t, fmt.Sprintf("file-%d", i), md.FileName)
		assert.Equal(t, types.Identity("A"), md.Author)
		assert.NotEmpty(t, md.RecordID)
	}

	_, err = f.index.ListAll(context.Background(), types.Agent{})
	require.ErrorIs(t, err, types.ErrInvalidIdentity)
}

func TestReceivedCopiesAreSeparate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b := agent(t, "A"), agent(t, "B")

	sent := f.send(t, a, "B", "gift")
	f.send(t, b, "A", "reply")
	_, err := f.builder.Receive(ctx, b, sent)
	require.NoError(t, err)

	authored, err := f.index.ListAll(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"reply"}, names(authored))

	received, err := f.index.ListReceived(ctx, b)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "gift", received[0].FileName)
	assert.Equal(t, types.Identity("A"), received[0].Author)
	assert.NotNil(t, received[0].TimeReceived)

	none, err := f.index.ListReceived(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSelfSentFileIsListedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := agent(t, "A")

	sent := f.send(t, a, "A", "note-to-self")
	_, err := f.builder.Receive(ctx, a, sent)
	require.NoError(t, err)

	authored, err := f.index.ListAll(ctx, a)
	require.NoError(t, err)
	require.Len(t, authored, 1)
	assert.Equal(t, sent.RecordID, authored[0].RecordID)
	assert.Nil(t, authored[0].TimeReceived)

	byAuthor, err := f.index.ListByAuthors(ctx, []types.Identity{"A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"note-to-self"}, names(byAuthor["A"]))

	received, err := f.index.ListReceived(ctx, a)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.NotEqual(t, sent.RecordID, received[0].RecordID)
	assert.NotNil(t, received[0].TimeReceived)
}

type brokenLog struct{ storage.Log }

var errBroken = errors.New("log read failed")

func (brokenLog) Read(context.Context, types.Identity) ([]storage.Record, error) {
	return nil, errBroken
}

func TestListPropagatesLogErrors(t *testing.T) {
	x := New(brokenLog{}, 2, nil)

	_, err := x.ListByAuthors(context.Background(), []types.Identity{"A", "B"})
	require.ErrorIs(t, err, errBroken)

	_, err = x.ListAllFor(context.Background(), "A")
	require.ErrorIs(t, err, errBroken)
}

func TestListRejectsUndecodableRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.mem.Append(ctx, "A", []byte("not cbor metadata"))
	require.NoError(t, err)

	_, err = f.index.ListAllFor(ctx, "A")
	require.Error(t, err)
}
