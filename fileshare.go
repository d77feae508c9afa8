// Package fileshare exchanges files between identities as content-addressed chunks
// plus a metadata record per file appended to the author's log.
package fileshare

import (
	"fmt"

	"github.com/i5heu/ouroboros-fileshare/internal/assembler"
	"github.com/i5heu/ouroboros-fileshare/internal/chunkstore"
	"github.com/i5heu/ouroboros-fileshare/internal/index"
	"github.com/i5heu/ouroboros-fileshare/internal/metadata"
	"github.com/i5heu/ouroboros-fileshare/pkg/config"
	"github.com/i5heu/ouroboros-fileshare/pkg/spaceInformations"
	"github.com/i5heu/ouroboros-fileshare/storage"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/i5heu/ouroboros-fileshare")

type Config = config.Config

type FileShare struct {
	config    Config
	log       *logrus.Logger
	blobs     storage.BlobStore
	records   storage.Log
	chunks    *chunkstore.Store
	builder   *metadata.Builder
	assembler *assembler.Assembler
	index     *index.Index
	metrics   *metrics
	badgerDB  *storage.Badger // Set when Init opened the database

	readCounter  uint64
	writeCounter uint64
}

// Init opens a BadgerDB-backed file share at cfg.Paths[0], or in memory when cfg.InMemory is set.
func Init(cfg *Config) (*FileShare, error) {
	cfg.ApplyDefaults()
	if err := cfg.CheckConfig(); err != nil {
		return nil, fmt.Errorf("error checking config for FileShare: %w", err)
	}

	opts := storage.BadgerOptions{
		InMemory:       cfg.InMemory,
		RSDataSlices:   cfg.RSDataSlices,
		RSParitySlices: cfg.RSParitySlices,
		Logger:         cfg.Logger,
	}
	if !cfg.InMemory {
		opts.Path = cfg.Paths[0]
	}
	db, err := storage.OpenBadger(opts)
	if err != nil {
		return nil, err
	}

	if !cfg.InMemory {
		if err := spaceInformations.DisplayDiskUsage(cfg.Logger, cfg.Paths); err != nil {
			// Disk usage is informational only
			cfg.Logger.WithError(err).Warn("Could not display disk usage")
		}
	}

	fs, err := New(cfg, db, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	fs.badgerDB = db
	return fs, nil
}

// New builds a file share over caller-provided collaborators. cfg.Paths is not used.
func New(cfg *Config, blobs storage.BlobStore, records storage.Log) (*FileShare, error) {
	if blobs == nil || records == nil {
		return nil, fmt.Errorf("blob store and log must not be nil")
	}
	cfg.ApplyDefaults()
	splitter, err := cfg.Splitter()
	if err != nil {
		return nil, fmt.Errorf("error checking config for FileShare: %w", err)
	}

	logger := cfg.Logger
	chunks := chunkstore.New(blobs, cfg.Concurrency, logger)

	return &FileShare{
		config:  *cfg,
		log:     logger,
		blobs:   blobs,
		records: records,
		chunks:  chunks,
		builder: metadata.NewBuilder(chunks, records, metadata.Options{
			Splitter:     splitter,
			VerifyChunks: cfg.VerifyChunksOnPublish,
			Logger:       logger,
		}),
		assembler: assembler.New(chunks, logger),
		index:     index.New(records, cfg.Concurrency, logger),
		metrics:   newMetrics(cfg.Registerer),
	}, nil
}

// Close releases the database opened by Init. Collaborators passed to New are left open.
func (fs *FileShare) Close() error {
	if fs.badgerDB == nil {
		return nil
	}
	if err := fs.badgerDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
