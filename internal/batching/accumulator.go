// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"time"

	"github.com/rerun-tools/chunkbatcher/internal/chunk"
)

// accumulator buffers one entity path's PendingRows between flushes. It is
// owned exclusively by the worker goroutine — no locking is needed.
type accumulator struct {
	entityPath   chunk.EntityPath
	pendingRows  []chunk.PendingRow
	pendingBytes uint64
	latestTouch  time.Time
}

func newAccumulator(entityPath chunk.EntityPath) *accumulator {
	return &accumulator{entityPath: entityPath}
}

func (a *accumulator) push(row chunk.PendingRow) {
	a.pendingRows = append(a.pendingRows, row)
	a.pendingBytes += uint64(row.ByteSize())
	a.latestTouch = time.Now()
}

func (a *accumulator) numRows() int { return len(a.pendingRows) }

// reset clears the buffer in place, keeping the accumulator alive for the
// next round of rows rather than discarding it: accumulators are reset,
// not destroyed, after each flush.
func (a *accumulator) reset() {
	a.pendingRows = a.pendingRows[:0]
	a.pendingBytes = 0
}

// take returns the current rows for assembly and resets the buffer. The
// returned slice shares the buffer's backing array, so it is only valid
// until the next push.
func (a *accumulator) take() []chunk.PendingRow {
	rows := a.pendingRows
	a.reset()
	return rows
}
