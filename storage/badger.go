package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/i5heu/ouroboros-fileshare/internal/codec"
	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/i5heu/ouroboros-fileshare/pipeline"
	"github.com/sirupsen/logrus"
)

const (
	// Key prefixes for different data types in BadgerDB
	CHUNK_PREFIX   = "chunk:"  // chunk:<address>_<rs index> -> storedSlice
	LOG_PREFIX     = "log:"    // log:<hex identity>:<seq> -> logEntry
	LOG_SEQ_PREFIX = "logseq:" // logseq:<hex identity> -> last seq (big endian)

	maxAppendAttempts = 16
)

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	Path           string // Directory of the database; ignored when InMemory is set
	InMemory       bool
	RSDataSlices   uint8
	RSParitySlices uint8
	Logger         logrus.FieldLogger
}

// Badger is a BlobStore and Log on one BadgerDB instance. Blobs are compressed with
// zstd and stored as Reed-Solomon slices so a blob survives the loss of up to
// RSParitySlices of its slices.
type Badger struct {
	db             *badger.DB
	rsDataSlices   uint8
	rsParitySlices uint8
	log            logrus.FieldLogger
}

// storedSlice is one Reed-Solomon slice of a compressed blob.
type storedSlice struct {
	Address        types.Address `cbor:"address"`
	RSDataSlices   uint8         `cbor:"rs_data"`
	RSParitySlices uint8         `cbor:"rs_parity"`
	RSSliceIndex   uint8         `cbor:"rs_index"`
	EncodedSize    uint64        `cbor:"encoded_size"` // Size of the compressed blob before slicing
	ClearSize      uint64        `cbor:"clear_size"`   // Size of the blob as ingested
	Payload        []byte        `cbor:"payload"`
}

type logEntry struct {
	ID   string `cbor:"id"`
	Seq  uint64 `cbor:"seq"`
	Data []byte `cbor:"data"`
}

func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if opts.RSDataSlices == 0 {
		return nil, fmt.Errorf("RSDataSlices must be at least 1")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("badger path must not be empty")
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
		badgerOpts.ValueLogFileSize = 1024 * 1024 * 100 // Set max size of each value log file to 100MB
	}
	badgerOpts.Logger = nil
	badgerOpts.SyncWrites = false

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Badger{
		db:             db,
		rsDataSlices:   opts.RSDataSlices,
		rsParitySlices: opts.RSParitySlices,
		log:            opts.Logger,
	}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func chunkPrefix(addr types.Address) []byte {
	return []byte(fmt.Sprintf("%s%x_", CHUNK_PREFIX, addr[:]))
}

func sliceKey(addr types.Address, index uint8) []byte {
	return []byte(fmt.Sprintf("%s%x_%d", CHUNK_PREFIX, addr[:], index))
}

func logPrefix(owner types.Identity) []byte {
	return []byte(fmt.Sprintf("%s%x:", LOG_PREFIX, string(owner)))
}

func logKey(owner types.Identity, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%x:%016x", LOG_PREFIX, string(owner), seq))
}

func logSeqKey(owner types.Identity) []byte {
	return []byte(fmt.Sprintf("%s%x", LOG_SEQ_PREFIX, string(owner)))
}

// PutBlob stores payload unless its address is already present.
func (b *Badger) PutBlob(ctx context.Context, payload []byte) (types.Address, error) {
	if err := ctx.Err(); err != nil {
		return types.Address{}, err
	}
	if len(payload) == 0 {
		return types.Address{}, types.ErrEmptyChunk
	}
	addr := types.AddressOf(payload)

	exists, err := b.HasBlob(ctx, addr)
	if err != nil {
		return types.Address{}, err
	}
	if exists {
		b.log.WithField("address", addr.Short()).Debug("Blob already stored")
		return addr, nil
	}

	compressed, err := pipeline.CompressWithZstd(payload)
	if err != nil {
		return types.Address{}, fmt.Errorf("failed to compress blob: %w", err)
	}
	slices, err := pipeline.SplitReedSolomon(compressed, b.rsDataSlices, b.rsParitySlices)
	if err != nil {
		return types.Address{}, fmt.Errorf("failed to encode blob: %w", err)
	}

	// Use WriteBatch so all slices land together
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, slice := range slices {
		record := storedSlice{
			Address:        addr,
			RSDataSlices:   b.rsDataSlices,
			RSParitySlices: b.rsParitySlices,
			RSSliceIndex:   slice.Index,
			EncodedSize:    uint64(len(compressed)),
			ClearSize:      uint64(len(payload)),
			Payload:        slice.Payload,
		}
		data, err := codec.Marshal(record)
		if err != nil {
			return types.Address{}, fmt.Errorf("failed to marshal slice: %w", err)
		}
		if err := wb.Set(sliceKey(addr, slice.Index), data); err != nil {
			return types.Address{}, fmt.Errorf("failed to store slice: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		b.log.WithFields(logrus.Fields{"address": addr.Short(), "error": err}).Error("Failed to write blob")
		return types.Address{}, fmt.Errorf("failed to commit blob: %w", err)
	}

	b.log.WithFields(logrus.Fields{"address": addr.Short(), "size": len(payload), "slices": len(slices)}).Debug("Successfully wrote blob")
	return addr, nil
}

// GetBlob loads the surviving slices of addr and rebuilds the blob.
func (b *Badger) GetBlob(ctx context.Context, addr types.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var slices []storedSlice
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		slices, err = loadSlices(txn, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("blob %s: %w", addr.Short(), ErrNotFound)
	}

	first := slices[0]
	parts := make([]pipeline.Slice, 0, len(slices))
	for _, s := range slices {
		if s.RSDataSlices != first.RSDataSlices || s.RSParitySlices != first.RSParitySlices {
			return nil, fmt.Errorf("blob %s has slices with mixed Reed-Solomon layouts", addr.Short())
		}
		parts = append(parts, pipeline.Slice{Index: s.RSSliceIndex, Payload: s.Payload})
	}

	compressed, err := pipeline.JoinReedSolomon(parts, first.RSDataSlices, first.RSParitySlices, int(first.EncodedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild blob %s: %w", addr.Short(), err)
	}
	payload, err := pipeline.DecompressWithZstd(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob %s: %w", addr.Short(), err)
	}
	if uint64(len(payload)) != first.ClearSize {
		return nil, fmt.Errorf("blob %s decoded to %d bytes, expected %d", addr.Short(), len(payload), first.ClearSize)
	}
	return payload, nil
}

func loadSlices(txn *badger.Txn, addr types.Address) ([]storedSlice, error) {
	var slices []storedSlice

	prefix := chunkPrefix(addr)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var record storedSlice
		err := it.Item().Value(func(val []byte) error {
			return codec.Unmarshal(val, &record)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read slice value: %w", err)
		}
		slices = append(slices, record)
	}
	return slices, nil
}

// HasBlob reports whether addr has enough slices stored to be rebuilt. A blob left with
// fewer than its data slices counts as absent, so PutBlob writes it again.
func (b *Badger) HasBlob(ctx context.Context, addr types.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // We only need keys
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := chunkPrefix(addr)
		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		var first storedSlice
		if err := it.Item().Value(func(val []byte) error {
			return codec.Unmarshal(val, &first)
		}); err != nil {
			return fmt.Errorf("failed to read slice value: %w", err)
		}

		count := 0
		for ; it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		exists = count >= int(first.RSDataSlices)
		return nil
	})
	return exists, err
}

// DeleteBlob removes every slice of addr. Deleting an unknown address is not an error.
func (b *Badger) DeleteBlob(ctx context.Context, addr types.Address) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		prefix := chunkPrefix(addr)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to delete slice %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		b.log.WithFields(logrus.Fields{"address": addr.Short(), "error": err}).Error("Failed to delete blob")
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	b.log.WithField("address", addr.Short()).Debug("Successfully deleted blob")
	return nil
}

// Append writes data as the next entry of owner's log in a single transaction.
func (b *Badger) Append(ctx context.Context, owner types.Identity, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !owner.Valid() {
		return "", types.ErrInvalidIdentity
	}

	id := uuid.NewString()
	var err error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err = b.db.Update(func(txn *badger.Txn) error {
			last, err := readSeq(txn, owner)
			if err != nil {
				return err
			}
			seq := last + 1

			entry, err := codec.Marshal(logEntry{ID: id, Seq: seq, Data: data})
			if err != nil {
				return fmt.Errorf("failed to marshal log entry: %w", err)
			}
			if err := txn.Set(logKey(owner, seq), entry); err != nil {
				return err
			}
			return txn.Set(logSeqKey(owner), encodeSeq(seq))
		})
		// Concurrent appends to the same log conflict; the loser retries on the new tail.
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		b.log.WithFields(logrus.Fields{"owner": owner, "error": err}).Error("Failed to append log entry")
		return "", fmt.Errorf("failed to append log entry: %w", err)
	}

	b.log.WithFields(logrus.Fields{"owner": owner, "id": id}).Debug("Successfully appended log entry")
	return id, nil
}

// Read returns owner's log in append order.
func (b *Badger) Read(ctx context.Context, owner types.Identity) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := logPrefix(owner)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry logEntry
			if err := it.Item().Value(func(val []byte) error {
				return codec.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("failed to read log entry: %w", err)
			}
			records = append(records, Record{ID: entry.ID, Seq: entry.Seq, Data: entry.Data})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read log of %s: %w", owner, err)
	}
	return records, nil
}

func readSeq(txn *badger.Txn, owner types.Identity) (uint64, error) {
	item, err := txn.Get(logSeqKey(owner))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}

	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("log sequence has %d bytes, want 8", len(val))
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
