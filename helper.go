package fileshare

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// StartOperationCounter logs read and write operations per interval until ctx is done.
func (fs *FileShare) StartOperationCounter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				readOps := atomic.SwapUint64(&fs.readCounter, 0)
				writeOps := atomic.SwapUint64(&fs.writeCounter, 0)
				fs.log.WithFields(logrus.Fields{
					"read_ops":  readOps,
					"write_ops": writeOps,
					"interval":  interval,
				}).Info("File share operations")
			}
		}
	}()
}

// OperationCounts returns the operations counted since the last report.
func (fs *FileShare) OperationCounts() (reads, writes uint64) {
	return atomic.LoadUint64(&fs.readCounter), atomic.LoadUint64(&fs.writeCounter)
}
