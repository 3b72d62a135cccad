// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import "github.com/rerun-tools/chunkbatcher/internal/chunk"

// command is the typed message the batcher handle sends to the worker.
// This subsumes all cross-goroutine synchronization: the worker never
// shares accumulator state with producers, only channels.
type command interface {
	isCommand()
}

// appendChunkCmd bypasses the accumulator and forwards a pre-built Chunk
// straight to the output channel.
type appendChunkCmd struct {
	chunk *chunk.Chunk
}

func (appendChunkCmd) isCommand() {}

// appendRowCmd routes one row into its entity's accumulator.
type appendRowCmd struct {
	entityPath chunk.EntityPath
	row        chunk.PendingRow
}

func (appendRowCmd) isCommand() {}

// flushCmd asks the worker to flush every accumulator with reason
// "manual". reply is closed (never sent on) once the flush has been
// materialized into the output channel, signaling FlushBlocking callers.
type flushCmd struct {
	reply chan struct{}
}

func (flushCmd) isCommand() {}

// shutdownCmd asks the worker to drain and exit.
type shutdownCmd struct{}

func (shutdownCmd) isCommand() {}

// flushReason records why a Chunk-producing flush happened, surfaced only
// through logging/diagnostics — it carries no contractual meaning to
// consumers of Chunks().
type flushReason string

const (
	flushReasonRows     flushReason = "rows"
	flushReasonBytes    flushReason = "bytes"
	flushReasonManual   flushReason = "manual"
	flushReasonTick     flushReason = "tick"
	flushReasonShutdown flushReason = "shutdown"
)
