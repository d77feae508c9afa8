// Package metadata builds file metadata records and appends them to the author's log.
package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/i5heu/ouroboros-fileshare/internal/chunkstore"
	"github.com/i5heu/ouroboros-fileshare/internal/hasher"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/pipeline"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Splitter pipeline.Splitter
	// VerifyChunks resolves every chunk before a record is appended and rejects
	// records whose chunks are missing or do not add up to FileSize.
	VerifyChunks bool
	Clock        func() time.Time
	Logger       logrus.FieldLogger
}

type Builder struct {
	chunks   *chunkstore.Store
	log      storage.Log
	splitter pipeline.Splitter
	verify   bool
	now      func() time.Time
	logger   logrus.FieldLogger
}

func NewBuilder(chunks *chunkstore.Store, log storage.Log, opts Options) *Builder {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Builder{
		chunks:   chunks,
		log:      log,
		splitter: opts.Splitter,
		verify:   opts.VerifyChunks,
		now:      opts.Clock,
		logger:   opts.Logger,
	}
}

func invalidDraft(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidDraft, fmt.Sprintf(format, args...))
}

func validateDraft(d types.Draft) error {
	if !d.Receiver.Valid() {
		return invalidDraft("receiver is empty")
	}
	if (d.FileSize == 0) != (len(d.Chunks) == 0) {
		return invalidDraft("file size %d does not fit %d chunks", d.FileSize, len(d.Chunks))
	}
	if uint64(len(d.Chunks)) > d.FileSize {
		return invalidDraft("%d chunks cannot hold %d bytes", len(d.Chunks), d.FileSize)
	}
	for i, addr := range d.Chunks {
		if addr.IsZero() {
			return invalidDraft("chunk %d has a zero address", i)
		}
	}
	if d.Hash.IsZero() {
		return invalidDraft("digest is missing")
	}
	return nil
}

// verifyChunks checks that every chunk resolves and that their sizes add up to FileSize.
func (b *Builder) verifyChunks(ctx context.Context, d types.Draft) error {
	resolved, err := b.chunks.ResolveAll(ctx, d.Chunks)
	if err != nil {
		return err
	}
	var total uint64
	for _, chunk := range resolved {
		total += uint64(len(chunk))
	}
	if total != d.FileSize {
		return &types.SizeMismatchError{Expected: d.FileSize, Actual: total}
	}
	return nil
}

// Publish appends a record for chunks the caller already ingested. The author is
// always agent's identity.
func (b *Builder) Publish(ctx context.Context, agent types.Agent, d types.Draft) (types.FileMetadata, error) {
	if !agent.Valid() {
		return types.FileMetadata{}, types.ErrInvalidIdentity
	}
	if err := validateDraft(d); err != nil {
		return types.FileMetadata{}, err
	}
	author := agent.Identity()

	if b.verify {
		if err := b.verifyChunks(ctx, d); err != nil {
			b.logger.WithFields(logrus.Fields{"author": author, "file": d.FileName, "error": err}).Error("Draft failed chunk verification")
			return types.FileMetadata{}, &types.PublishError{Author: author, Cause: err}
		}
	}

	md := types.FileMetadata{
		Author:   author,
		Receiver: d.Receiver,
		FileName: d.FileName,
		FileSize: d.FileSize,
		FileType: d.FileType,
		Hash:     d.Hash,
		TimeSent: b.now().UTC(),
	}
	if len(d.Chunks) > 0 {
		md.Chunks = append([]types.Address(nil), d.Chunks...)
	}

	id, err := b.append(ctx, author, md)
	if err != nil {
		return types.FileMetadata{}, err
	}
	md.RecordID = id

	b.logger.WithFields(logrus.Fields{
		"author":   author,
		"receiver": md.Receiver,
		"file":     md.FileName,
		"size":     md.FileSize,
		"chunks":   len(md.Chunks),
	}).Debug("Successfully published file metadata")
	return md, nil
}

// PublishBytes splits in.Bytes, ingests the chunks, digests the payload and publishes.
func (b *Builder) PublishBytes(ctx context.Context, agent types.Agent, in types.FileInput) (types.FileMetadata, error) {
	if !agent.Valid() {
		return types.FileMetadata{}, types.ErrInvalidIdentity
	}
	if in.FileSize != uint64(len(in.Bytes)) {
		return types.FileMetadata{}, invalidDraft("declared size %d but payload has %d bytes", in.FileSize, len(in.Bytes))
	}

	parts, err := b.splitter.Split(in.Bytes)
	if err != nil {
		return types.FileMetadata{}, fmt.Errorf("failed to split file: %w", err)
	}
	addrs, err := b.chunks.IngestAll(ctx, parts)
	if err != nil {
		return types.FileMetadata{}, fmt.Errorf("failed to ingest file chunks: %w", err)
	}

	return b.Publish(ctx, agent, types.Draft{
		Receiver: in.Receiver,
		FileName: in.FileName,
		FileSize: in.FileSize,
		FileType: in.FileType,
		Chunks:   addrs,
		Hash:     hasher.Digest(in.Bytes),
	})
}

// Receive acknowledges a record addressed to agent. A copy stamped with TimeReceived
// is appended to the receiver's own log; its author stays the sender.
func (b *Builder) Receive(ctx context.Context, agent types.Agent, md types.FileMetadata) (types.FileMetadata, error) {
	if !agent.Valid() {
		return types.FileMetadata{}, types.ErrInvalidIdentity
	}
	if md.Receiver != agent.Identity() {
		return types.FileMetadata{}, fmt.Errorf("%w: record is addressed to %s", types.ErrNotReceiver, md.Receiver)
	}
	if !md.Author.Valid() {
		return types.FileMetadata{}, invalidDraft("record has no author")
	}
	if err := validateDraft(types.Draft{Receiver: md.Receiver, FileSize: md.FileSize, Chunks: md.Chunks, Hash: md.Hash}); err != nil {
		return types.FileMetadata{}, err
	}

	received := md
	received.RecordID = ""
	received.Chunks = append([]types.Address(nil), md.Chunks...)
	if len(received.Chunks) == 0 {
		received.Chunks = nil
	}
	now := b.now().UTC()
	received.TimeReceived = &now

	id, err := b.append(ctx, agent.Identity(), received)
	if err != nil {
		return types.FileMetadata{}, err
	}
	received.RecordID = id

	b.logger.WithFields(logrus.Fields{
		"author":   received.Author,
		"receiver": received.Receiver,
		"file":     received.FileName,
	}).Debug("Successfully received file metadata")
	return received, nil
}

// append writes md to owner's log. Failures are reported as *types.PublishError.
func (b *Builder) append(ctx context.Context, owner types.Identity, md types.FileMetadata) (string, error) {
	data, err := Encode(md)
	if err != nil {
		return "", &types.PublishError{Author: md.Author, Cause: err}
	}
	id, err := b.log.Append(ctx, owner, data)
	if err != nil {
		b.logger.WithFields(logrus.Fields{"owner": owner, "file": md.FileName, "error": err}).Error("Failed to append file metadata")
		return "", &types.PublishError{Author: md.Author, Cause: err}
	}
	return id, nil
}
