// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rerun-tools/chunkbatcher/internal/chunk"
)

// Batcher is the producer-facing front-end: a cheaply shared handle over
// the command channel that feeds the single background worker goroutine.
// All its methods are safe for concurrent use by any number of producers.
type Batcher struct {
	cfg    Config
	logger *slog.Logger

	cmdCh    chan command
	cmdQueue *unboundedQueue[command] // non-nil iff MaxCommandsInFlight <= 0

	outCh    chan *chunk.Chunk
	outQueue *unboundedQueue[*chunk.Chunk] // non-nil iff MaxChunksInFlight <= 0

	throttle *rowThrottle

	closeOnce sync.Once
	closed    chan struct{}
	workerWG  sync.WaitGroup

	stats *workerStats
}

// New constructs a Batcher and starts its background worker goroutine.
// Callers own the returned handle and must call Close when done to drain
// pending data and release the worker.
func New(cfg Config, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Batcher{
		cfg:      cfg,
		logger:   logger,
		throttle: newRowThrottle(cfg.MaxRowsPerSecond),
		closed:   make(chan struct{}),
		stats:    newWorkerStats(),
	}

	cmdChCap := cfg.MaxCommandsInFlight
	if cmdChCap <= 0 {
		b.cmdQueue = newUnboundedQueue[command]()
		cmdChCap = 1
	}
	b.cmdCh = make(chan command, cmdChCap)

	outChCap := cfg.MaxChunksInFlight
	if outChCap <= 0 {
		b.outQueue = newUnboundedQueue[*chunk.Chunk]()
		outChCap = 1
	}
	b.outCh = make(chan *chunk.Chunk, outChCap)

	w := &worker{cfg: cfg, logger: logger, cmdCh: b.cmdCh, outCh: b.outCh, outQueue: b.outQueue, stats: b.stats}

	b.workerWG.Add(1)
	go func() {
		defer b.workerWG.Done()
		w.run()
	}()

	if b.cmdQueue != nil {
		go relayCommands(b.cmdQueue, b.cmdCh)
	}
	if b.outQueue != nil {
		go relayChunks(b.outQueue, b.outCh)
	}

	return b
}

// relayCommands forwards queued commands into the worker's bounded
// command channel one at a time, so producer sends into the queue never
// block even when MaxCommandsInFlight is unset.
func relayCommands(q *unboundedQueue[command], out chan<- command) {
	for {
		cmd, ok := q.pop()
		if !ok {
			return
		}
		out <- cmd
	}
}

// relayChunks performs the same job on the output side. It owns out and
// closes it once the queue is closed and fully drained, so Chunks()
// consumers still observe a clean channel-close at shutdown.
func relayChunks(q *unboundedQueue[*chunk.Chunk], out chan *chunk.Chunk) {
	defer close(out)
	for {
		c, ok := q.pop()
		if !ok {
			return
		}
		out <- c
	}
}

func (b *Batcher) send(cmd command) error {
	select {
	case <-b.closed:
		return ErrBatcherClosed
	default:
	}

	if b.cmdQueue != nil {
		b.cmdQueue.push(cmd)
		return nil
	}
	select {
	case b.cmdCh <- cmd:
		return nil
	case <-b.closed:
		return ErrBatcherClosed
	}
}

// PushRow appends row to entityPath's accumulator. Non-blocking unless
// MaxCommandsInFlight is set and the command channel is full, or a
// MaxRowsPerSecond throttle is configured and exhausted.
func (b *Batcher) PushRow(ctx context.Context, entityPath chunk.EntityPath, row chunk.PendingRow) error {
	if err := b.throttle.wait(ctx); err != nil {
		return err
	}
	return b.send(appendRowCmd{entityPath: entityPath, row: row})
}

// PushChunk bypasses the accumulator and forwards a pre-built Chunk
// directly, in command order relative to other PushRow/PushChunk calls
// from the same caller. It is NOT merged with any pending rows for the
// same entity path — a caller that interleaves PushRow and PushChunk for
// one entity will see the pushed Chunk emitted on its own.
func (b *Batcher) PushChunk(c *chunk.Chunk) error {
	return b.send(appendChunkCmd{chunk: c})
}

// FlushAsync enqueues a manual flush of every accumulator and returns
// immediately.
func (b *Batcher) FlushAsync() error {
	return b.send(flushCmd{reply: nil})
}

// FlushBlocking enqueues a manual flush and waits for it to be
// materialized into the output channel, or for ctx to be done. A returned
// nil error means every prior command from this caller has been
// materialized.
func (b *Batcher) FlushBlocking(ctx context.Context) error {
	reply := make(chan struct{})
	if err := b.send(flushCmd{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Chunks returns the receive-only output stream. Multiple goroutines may
// read from it concurrently; each Chunk is delivered to exactly one
// reader.
func (b *Batcher) Chunks() <-chan *chunk.Chunk {
	return b.outCh
}

// Stats returns a point-in-time snapshot of worker activity.
func (b *Batcher) Stats() Stats {
	return b.stats.snapshot()
}

// Close marks the handle closed (later sends return ErrBatcherClosed),
// sends Shutdown, blocks until the worker has finished draining every
// accumulator, and then closes the output side. With an unbounded output
// queue the channel returned by Chunks is closed by the relay goroutine
// once the queued Chunks have been delivered. Close is idempotent and safe to call more than once or
// concurrently with in-flight PushRow/PushChunk calls.
func (b *Batcher) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
		if b.cmdQueue != nil {
			b.cmdQueue.push(shutdownCmd{})
			b.cmdQueue.close()
		} else {
			b.cmdCh <- shutdownCmd{}
		}
		b.workerWG.Wait()
		if b.outQueue != nil {
			b.outQueue.close()
		} else {
			close(b.outCh)
		}
	})
}
