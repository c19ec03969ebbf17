// Package usage records one audit entry per authenticated request without
// blocking or failing the request that produced it.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taishikato/supavec-api/pkg/models"
)

// DefaultQueueSize bounds the number of pending entries.
const DefaultQueueSize = 256

// writeTimeout bounds a single store write.
const writeTimeout = 5 * time.Second

// Store persists usage entries.
type Store interface {
	InsertUsageLog(ctx context.Context, l models.UsageLog) error
}

// DropCounter is notified when an entry is dropped.
type DropCounter interface {
	CountDropped()
}

// Logger queues entries and writes them from a single worker goroutine.
type Logger struct {
	store   Store
	dropped DropCounter
	queue   chan models.UsageLog

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewLogger starts the worker. dropped may be nil.
func NewLogger(store Store, queueSize int, dropped DropCounter) *Logger {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	l := &Logger{
		store:   store,
		dropped: dropped,
		queue:   make(chan models.UsageLog, queueSize),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Record enqueues an entry and returns immediately. A full queue or a
// closed logger drops the entry.
func (l *Logger) Record(entry models.UsageLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		slog.Warn("usage logger closed, dropping entry", "user_id", entry.UserID, "endpoint", entry.Endpoint)
		l.countDrop()
		return
	}

	select {
	case l.queue <- entry:
	default:
		slog.Warn("usage queue full, dropping entry", "user_id", entry.UserID, "endpoint", entry.Endpoint)
		l.countDrop()
	}
}

// Close stops accepting entries and waits for queued ones to be written
// or for ctx to end.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) run() {
	defer close(l.done)

	for entry := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := l.store.InsertUsageLog(ctx, entry); err != nil {
			slog.Error("failed to write usage log", "user_id", entry.UserID, "endpoint", entry.Endpoint, "error", err)
		}
		cancel()
	}
}

func (l *Logger) countDrop() {
	if l.dropped != nil {
		l.dropped.CountDropped()
	}
}
