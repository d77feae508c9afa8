package fileshare

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UploadChunk stores chunk and returns its content address. Uploading the same bytes
// again returns the same address and stores nothing new.
func (fs *FileShare) UploadChunk(ctx context.Context, chunk []byte) (Address, error) {
	ctx, span := tracer.Start(ctx, "fileshare.upload_chunk",
		trace.WithAttributes(attribute.Int("size_bytes", len(chunk))),
	)
	defer span.End()

	atomic.AddUint64(&fs.writeCounter, 1)
	addr, err := fs.chunks.Ingest(ctx, chunk)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Address{}, err
	}

	fs.metrics.chunksIngested.Inc()
	fs.metrics.bytesIngested.Add(float64(len(chunk)))
	span.SetAttributes(attribute.String("address", addr.Short()))
	return addr, nil
}

// SendFile chunks in.Bytes, stores the chunks and publishes a record authored by agent.
func (fs *FileShare) SendFile(ctx context.Context, agent Agent, in FileInput) (FileMetadata, error) {
	ctx, span := tracer.Start(ctx, "fileshare.send_file",
		trace.WithAttributes(
			attribute.String("receiver", in.Receiver.String()),
			attribute.String("file_name", in.FileName),
			attribute.Int("size_bytes", len(in.Bytes)),
		),
	)
	defer span.End()

	atomic.AddUint64(&fs.writeCounter, 1)
	md, err := fs.builder.PublishBytes(ctx, agent, in)
	if err != nil {
		fs.metrics.publishFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return FileMetadata{}, err
	}

	fs.metrics.chunksIngested.Add(float64(len(md.Chunks)))
	fs.metrics.bytesIngested.Add(float64(md.FileSize))
	fs.metrics.filesPublished.Inc()
	span.SetAttributes(attribute.Int("chunks", len(md.Chunks)), attribute.String("record_id", md.RecordID))
	return md, nil
}

// SendFileChunks publishes a record for chunks that were uploaded with UploadChunk.
func (fs *FileShare) SendFileChunks(ctx context.Context, agent Agent, d Draft) (FileMetadata, error) {
	ctx, span := tracer.Start(ctx, "fileshare.send_file_chunks",
		trace.WithAttributes(
			attribute.String("receiver", d.Receiver.String()),
			attribute.String("file_name", d.FileName),
			attribute.Int("chunks", len(d.Chunks)),
		),
	)
	defer span.End()

	atomic.AddUint64(&fs.writeCounter, 1)
	md, err := fs.builder.Publish(ctx, agent, d)
	if err != nil {
		fs.metrics.publishFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return FileMetadata{}, err
	}

	fs.metrics.filesPublished.Inc()
	span.SetAttributes(attribute.String("record_id", md.RecordID))
	return md, nil
}

// ReceiveFile records that agent received md. The acknowledged copy carries
// TimeReceived and is stored in agent's own log.
func (fs *FileShare) ReceiveFile(ctx context.Context, agent Agent, md FileMetadata) (FileMetadata, error) {
	ctx, span := tracer.Start(ctx, "fileshare.receive_file",
		trace.WithAttributes(
			attribute.String("author", md.Author.String()),
			attribute.String("file_name", md.FileName),
		),
	)
	defer span.End()

	atomic.AddUint64(&fs.writeCounter, 1)
	received, err := fs.builder.Receive(ctx, agent, md)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return FileMetadata{}, err
	}
	return received, nil
}
