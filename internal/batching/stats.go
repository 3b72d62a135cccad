// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import "sync/atomic"

// workerStats holds lock-free counters the worker updates and Batcher.Stats
// reads. The worker is the sole writer; atomics make concurrent reads safe
// without a mutex, mirroring this codebase's atomic stats-snapshot idiom.
type workerStats struct {
	accumulators atomic.Int64
	pendingRows  atomic.Int64
	pendingBytes atomic.Int64

	flushRows     atomic.Int64
	flushBytes    atomic.Int64
	flushManual   atomic.Int64
	flushTick     atomic.Int64
	flushShutdown atomic.Int64

	chunksEmitted atomic.Int64
	corruptChunks atomic.Int64
	chunksDropped atomic.Int64 // undelivered at shutdown, bounded-channel case only
}

func newWorkerStats() *workerStats { return &workerStats{} }

func (s *workerStats) recordFlush(reason flushReason) {
	switch reason {
	case flushReasonRows:
		s.flushRows.Add(1)
	case flushReasonBytes:
		s.flushBytes.Add(1)
	case flushReasonManual:
		s.flushManual.Add(1)
	case flushReasonTick:
		s.flushTick.Add(1)
	case flushReasonShutdown:
		s.flushShutdown.Add(1)
	}
}

func (s *workerStats) snapshot() Stats {
	return Stats{
		Accumulators: int(s.accumulators.Load()),
		PendingRows:  int(s.pendingRows.Load()),
		PendingBytes: uint64(s.pendingBytes.Load()),
		FlushesByReason: map[string]int64{
			string(flushReasonRows):     s.flushRows.Load(),
			string(flushReasonBytes):    s.flushBytes.Load(),
			string(flushReasonManual):   s.flushManual.Load(),
			string(flushReasonTick):     s.flushTick.Load(),
			string(flushReasonShutdown): s.flushShutdown.Load(),
		},
		ChunksEmitted: s.chunksEmitted.Load(),
		CorruptChunks: s.corruptChunks.Load(),
		ChunksDropped: s.chunksDropped.Load(),
	}
}
