// Package index answers "which files did these identities publish" by reading their logs.
package index

import (
	"context"
	"fmt"

	"github.com/i5heu/ouroboros-fileshare/internal/metadata"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Index struct {
	log         storage.Log
	concurrency int
	logger      logrus.FieldLogger
}

func New(log storage.Log, concurrency int, logger logrus.FieldLogger) *Index {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Index{log: log, concurrency: concurrency, logger: logger}
}

// readLog decodes owner's log and keeps the records matching keep, in publish order.
func (x *Index) readLog(ctx context.Context, owner types.Identity, keep func(types.FileMetadata) bool) ([]types.FileMetadata, error) {
	records, err := x.log.Read(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to read log of %s: %w", owner, err)
	}

	out := make([]types.FileMetadata, 0, len(records))
	for _, r := range records {
		md, err := metadata.Decode(r.ID, r.Data)
		if err != nil {
			x.logger.WithFields(logrus.Fields{"owner": owner, "record": r.ID, "error": err}).Error("Failed to decode log record")
			return nil, err
		}
		if keep(md) {
			out = append(out, md)
		}
	}
	return out, nil
}

// authoredBy keeps the records id published. Acknowledged copies carry TimeReceived
// and belong to ListReceived, even when id sent the file to itself.
func authoredBy(id types.Identity) func(types.FileMetadata) bool {
	return func(md types.FileMetadata) bool {
		return md.Author == id && md.TimeReceived == nil
	}
}

// ListByAuthors returns, for every requested identity, the records it authored in
// publish order. Every requested identity is a key of the result, with an empty
// slice when it published nothing.
func (x *Index) ListByAuthors(ctx context.Context, ids []types.Identity) (map[types.Identity][]types.FileMetadata, error) {
	seen := make(map[types.Identity]bool, len(ids))
	var unique []types.Identity
	for _, id := range ids {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: empty identity in request", types.ErrInvalidIdentity)
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	lists := make([][]types.FileMetadata, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.concurrency)
	for i, id := range unique {
		g.Go(func() error {
			files, err := x.readLog(gctx, id, authoredBy(id))
			if err != nil {
				return err
			}
			lists[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[types.Identity][]types.FileMetadata, len(unique))
	for i, id := range unique {
		result[id] = lists[i]
	}
	return result, nil
}

// ListAllFor returns the records id authored.
func (x *Index) ListAllFor(ctx context.Context, id types.Identity) ([]types.FileMetadata, error) {
	if !id.Valid() {
		return nil, types.ErrInvalidIdentity
	}
	return x.readLog(ctx, id, authoredBy(id))
}

// ListAll returns the records the agent authored.
func (x *Index) ListAll(ctx context.Context, agent types.Agent) ([]types.FileMetadata, error) {
	if !agent.Valid() {
		return nil, types.ErrInvalidIdentity
	}
	return x.ListAllFor(ctx, agent.Identity())
}

// ListReceived returns the copies the agent acknowledged as receiver.
func (x *Index) ListReceived(ctx context.Context, agent types.Agent) ([]types.FileMetadata, error) {
	if !agent.Valid() {
		return nil, types.ErrInvalidIdentity
	}
	me := agent.Identity()
	return x.readLog(ctx, me, func(md types.FileMetadata) bool {
		return md.Receiver == me && md.TimeReceived != nil
	})
}
