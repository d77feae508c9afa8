package fileshare

import (
	"errors"

	"github.com/i5heu/ouroboros-fileshare/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconstruction outcomes used as the "result" label.
const (
	resultOK           = "ok"
	resultChunkMissing = "chunk_missing"
	resultSizeMismatch = "size_mismatch"
	resultHashMismatch = "hash_mismatch"
	resultError        = "error"
)

type metrics struct {
	chunksIngested        prometheus.Counter
	bytesIngested         prometheus.Counter
	filesPublished        prometheus.Counter
	publishFailures       prometheus.Counter
	reconstructions       *prometheus.CounterVec
	reconstructionSeconds prometheus.Histogram
}

// newMetrics builds the collectors and registers them with reg. A nil reg keeps them
// unregistered. File shares built with the same reg share their collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(nil)
	return &metrics{
		chunksIngested: register(reg, factory.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_chunks_ingested_total",
			Help: "Chunks passed to the chunk store, including deduplicated ones",
		})),
		bytesIngested: register(reg, factory.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_chunk_bytes_ingested_total",
			Help: "Bytes passed to the chunk store",
		})),
		filesPublished: register(reg, factory.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_files_published_total",
			Help: "File metadata records appended to a log",
		})),
		publishFailures: register(reg, factory.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_publish_failures_total",
			Help: "Publish attempts that did not append a record",
		})),
		reconstructions: register(reg, factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fileshare_reconstructions_total",
			Help: "File reconstructions by result",
		}, []string{"result"})),
		reconstructionSeconds: register(reg, factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fileshare_reconstruction_duration_seconds",
			Help:    "Time spent resolving and verifying a file",
			Buckets: prometheus.DefBuckets,
		})),
	}
}

// register adds c to reg, or returns the collector already registered under the same
// descriptor. Other registration errors panic like promauto does.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func reconstructionResult(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, types.ErrChunkMissing):
		return resultChunkMissing
	case errors.Is(err, types.ErrSizeMismatch):
		return resultSizeMismatch
	case errors.Is(err, types.ErrHashMismatch):
		return resultHashMismatch
	default:
		return resultError
	}
}
