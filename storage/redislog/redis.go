// Package redislog provides a Log on Redis lists. RPUSH is atomic, so every entry is
// either fully visible or absent, and the list order is the append order.
package redislog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/i5heu/ouroboros-fileshare/internal/codec"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/i5heu/ouroboros-fileshare/storage/redislog")

type entry struct {
	ID   string `cbor:"id"`
	Data []byte `cbor:"data"`
}

type Log struct {
	client *redis.Client
	prefix string
}

var _ storage.Log = (*Log)(nil)

// New connects to addr and pings it. Keys are named "<prefix>log:<identity>".
func New(ctx context.Context, addr, password string, db int, prefix string) (*Log, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Log{client: client, prefix: prefix}, nil
}

func (l *Log) Close() error {
	return l.client.Close()
}

// Key is the list key holding owner's log.
func (l *Log) Key(owner types.Identity) string {
	return fmt.Sprintf("%slog:%s", l.prefix, owner)
}

func (l *Log) Append(ctx context.Context, owner types.Identity, data []byte) (string, error) {
	if !owner.Valid() {
		return "", types.ErrInvalidIdentity
	}
	ctx, span := tracer.Start(ctx, "redis.append",
		trace.WithAttributes(
			attribute.String("owner", owner.String()),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	id := uuid.NewString()
	encoded, err := codec.Marshal(entry{ID: id, Data: data})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal log entry: %w", err)
	}

	length, err := l.client.RPush(ctx, l.Key(owner), encoded).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to append log entry: %w", err)
	}

	span.SetAttributes(attribute.Int64("seq", length))
	return id, nil
}

func (l *Log) Read(ctx context.Context, owner types.Identity) ([]storage.Record, error) {
	ctx, span := tracer.Start(ctx, "redis.read",
		trace.WithAttributes(attribute.String("owner", owner.String())),
	)
	defer span.End()

	values, err := l.client.LRange(ctx, l.Key(owner), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read log of %s: %w", owner, err)
	}

	records := make([]storage.Record, 0, len(values))
	for i, v := range values {
		var e entry
		if err := codec.Unmarshal([]byte(v), &e); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to decode log entry %d of %s: %w", i+1, owner, err)
		}
		records = append(records, storage.Record{ID: e.ID, Seq: uint64(i + 1), Data: e.Data})
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}
