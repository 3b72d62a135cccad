// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"log/slog"
	"time"

	"github.com/rerun-tools/chunkbatcher/internal/chunk"
)

// worker owns every Accumulator and is the sole goroutine that ever reads
// or writes them; no locking is needed because producers only ever reach
// it through the command channel.
type worker struct {
	cfg    Config
	logger *slog.Logger

	cmdCh    <-chan command
	outCh    chan<- *chunk.Chunk
	outQueue *unboundedQueue[*chunk.Chunk] // non-nil iff the output side is unbounded

	stats *workerStats

	accumulators map[string]*accumulator
	// skipNextTick is set whenever a row-count or byte-count threshold
	// flushed one accumulator, or a manual Flush flushed all of them; the
	// next tick is then skipped entirely, so rows pending in other
	// accumulators wait for the tick after it.
	skipNextTick bool
}

// run is the worker's entire lifetime: select over the command channel and
// the flush ticker until a Shutdown command arrives, then drain and exit.
func (w *worker) run() {
	w.accumulators = make(map[string]*accumulator)

	ticker := time.NewTicker(w.cfg.FlushTick)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-w.cmdCh:
			if !w.handle(cmd) {
				w.shutdown()
				return
			}
		case <-ticker.C:
			w.onTick()
		}
	}
}

// handle processes one command and reports whether the worker should keep
// running (false means a Shutdown command was received).
func (w *worker) handle(cmd command) bool {
	switch c := cmd.(type) {
	case appendChunkCmd:
		w.emitChunk(c.chunk, false)

	case appendRowCmd:
		w.onAppendRow(c.entityPath, c.row)

	case flushCmd:
		w.flushAll(flushReasonManual, false)
		w.skipNextTick = true
		if c.reply != nil {
			close(c.reply)
		}

	case shutdownCmd:
		return false
	}
	return true
}

func (w *worker) onAppendRow(entityPath chunk.EntityPath, row chunk.PendingRow) {
	key := entityPath.String()
	acc, ok := w.accumulators[key]
	if !ok {
		acc = newAccumulator(entityPath)
		w.accumulators[key] = acc
		w.stats.accumulators.Add(1)
	}

	acc.push(row)
	w.stats.pendingRows.Add(1)
	w.stats.pendingBytes.Add(int64(row.ByteSize()))

	if w.cfg.Hooks.OnInsert != nil {
		w.cfg.Hooks.OnInsert(row)
	}

	switch {
	case uint64(acc.numRows()) >= w.cfg.FlushNumRows:
		w.flushOne(acc, flushReasonRows, false)
		w.skipNextTick = true
	case acc.pendingBytes >= w.cfg.FlushNumBytes:
		w.flushOne(acc, flushReasonBytes, false)
		w.skipNextTick = true
	}
}

func (w *worker) onTick() {
	if w.skipNextTick {
		w.skipNextTick = false
		return
	}
	w.flushAll(flushReasonTick, false)
}

// shutdown flushes every remaining accumulator with reason "shutdown"; the
// output side is closed afterwards by Batcher.Close, once run has returned.
// Final sends are best-effort so Close never
// blocks on a bounded, unconsumed output channel: a chunk that doesn't
// fit is logged as dropped rather than awaited forever.
func (w *worker) shutdown() {
	w.flushAll(flushReasonShutdown, true)
}

func (w *worker) flushAll(reason flushReason, final bool) {
	for _, acc := range w.accumulators {
		w.flushOne(acc, reason, final)
	}
}

func (w *worker) flushOne(acc *accumulator, reason flushReason, final bool) {
	if acc.numRows() == 0 {
		return
	}

	rows := acc.take()
	w.stats.pendingRows.Add(-int64(len(rows)))

	var pendingBytes int64
	for _, r := range rows {
		pendingBytes += r.ByteSize()
	}
	w.stats.pendingBytes.Add(-pendingBytes)
	w.stats.recordFlush(reason)

	results := chunk.Assemble(acc.entityPath, rows, w.cfg.ChunkMaxRowsIfUnsorted)
	for _, res := range results {
		if res.Err != nil {
			w.stats.corruptChunks.Add(1)
			w.logger.Error("dropping corrupt chunk",
				"entity_path", acc.entityPath.String(),
				"reason", string(reason),
				"error", res.Err,
			)
			continue
		}

		w.logger.Debug("flushing chunk",
			"entity_path", acc.entityPath.String(),
			"reason", string(reason),
			"num_rows", res.Chunk.NumRows(),
		)
		w.emitChunk(res.Chunk, final)
	}
}

// emitChunk hands c to the output side and invokes OnRelease exactly once,
// regardless of whether the send succeeded or was dropped at shutdown.
func (w *worker) emitChunk(c *chunk.Chunk, final bool) {
	delivered := true
	if w.outQueue != nil {
		w.outQueue.push(c)
	} else if final {
		select {
		case w.outCh <- c:
		default:
			delivered = false
		}
	} else {
		w.outCh <- c
	}

	if delivered {
		w.stats.chunksEmitted.Add(1)
	} else {
		w.stats.chunksDropped.Add(1)
		w.logger.Warn("dropping unread chunk at shutdown: output channel full with no consumer",
			"entity_path", c.EntityPath().String(),
			"num_rows", c.NumRows(),
		)
	}

	if w.cfg.Hooks.OnRelease != nil {
		w.cfg.Hooks.OnRelease(c)
	}
}
