package fileshare

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GetFileFromMetadata reconstructs the file described by md and verifies its size and
// digest. Failures are *ChunkMissingError, *SizeMismatchError or *HashMismatchError.
func (fs *FileShare) GetFileFromMetadata(ctx context.Context, md FileMetadata) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fileshare.get_file_from_metadata",
		trace.WithAttributes(
			attribute.String("author", md.Author.String()),
			attribute.String("file_name", md.FileName),
			attribute.Int("chunks", len(md.Chunks)),
		),
	)
	defer span.End()

	atomic.AddUint64(&fs.readCounter, 1)
	start := time.Now()
	payload, err := fs.assembler.Reconstruct(ctx, md)
	fs.metrics.reconstructionSeconds.Observe(time.Since(start).Seconds())
	fs.metrics.reconstructions.WithLabelValues(reconstructionResult(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("size_bytes", len(payload)))
	return payload, nil
}

// GetAllFiles reconstructs every file agent authored, in publish order. The first
// record that fails to reconstruct aborts the call.
func (fs *FileShare) GetAllFiles(ctx context.Context, agent Agent) ([][]byte, error) {
	files, err := fs.GetAllFileMetadata(ctx, agent)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(files))
	for _, md := range files {
		payload, err := fs.GetFileFromMetadata(ctx, md)
		if err != nil {
			fs.log.WithFields(logrus.Fields{"record": md.RecordID, "file": md.FileName, "error": err}).Error("Failed to reconstruct file")
			return nil, fmt.Errorf("failed to reconstruct %q (record %s): %w", md.FileName, md.RecordID, err)
		}
		out = append(out, payload)
	}
	return out, nil
}
