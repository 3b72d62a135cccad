// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rerun-tools/chunkbatcher/internal/chunk"
)

func mustRecv(t *testing.T, b *Batcher) *chunk.Chunk {
	t.Helper()
	select {
	case c := <-b.Chunks():
		if c == nil {
			t.Fatalf("expected a chunk, got channel close")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a chunk")
		return nil
	}
}

// Three rows on one entity with the NEVER preset, flushed manually, end up in
// exactly one Chunk in input order.
func TestSingleEntitySingleChunk(t *testing.T) {
	b := New(Never(), nil)
	defer b.Close()

	ep := chunk.ParseEntityPath("a/b/c")
	ctx := context.Background()
	_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: 42}, 1))
	_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: 43}, 2))
	_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: 44}, 3))

	if err := b.FlushBlocking(ctx); err != nil {
		t.Fatalf("FlushBlocking: %v", err)
	}

	c := mustRecv(t, b)
	if c.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", c.NumRows())
	}
	if !c.IsSorted() {
		t.Fatalf("expected sorted chunk")
	}
	if got := c.Timelines()[logTime.Name].Values(); got[0] != 42 || got[1] != 43 || got[2] != 44 {
		t.Fatalf("unexpected times: %v", got)
	}
}

// Rows routed to ent1, ent2, ent1 never co-occur across entities.
func TestEntityPartitioning(t *testing.T) {
	b := New(Never(), nil)
	defer b.Close()

	ent1 := chunk.ParseEntityPath("ent1")
	ent2 := chunk.ParseEntityPath("ent2")
	ctx := context.Background()
	_ = b.PushRow(ctx, ent1, row(t, chunk.TimePoint{logTime: 42}, 1))
	_ = b.PushRow(ctx, ent2, row(t, chunk.TimePoint{logTime: 43}, 2))
	_ = b.PushRow(ctx, ent1, row(t, chunk.TimePoint{logTime: 44}, 3))

	if err := b.FlushBlocking(ctx); err != nil {
		t.Fatalf("FlushBlocking: %v", err)
	}

	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		c := mustRecv(t, b)
		seen[c.EntityPath().String()] = c.NumRows()
	}
	if seen["/ent1"] != 2 {
		t.Fatalf("expected 2 rows for /ent1, got %d", seen["/ent1"])
	}
	if seen["/ent2"] != 1 {
		t.Fatalf("expected 1 row for /ent2, got %d", seen["/ent2"])
	}
}

// Property: with the ALWAYS preset, every pushed row produces its own
// Chunk, exercising the byte/row threshold path rather than manual flush.
func TestAlwaysPresetFlushesEveryRow(t *testing.T) {
	b := New(Always(), nil)
	defer b.Close()

	ep := chunk.ParseEntityPath("e")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: int64(i)}, float32(i)))
		c := mustRecv(t, b)
		if c.NumRows() != 1 {
			t.Fatalf("expected 1 row per chunk under ALWAYS, got %d", c.NumRows())
		}
	}
}

// Property: the periodic tick flushes accumulated rows even without an
// explicit Flush call.
func TestTickFlushesPendingRows(t *testing.T) {
	cfg := Default()
	cfg.FlushTick = 5 * time.Millisecond
	b := New(cfg, nil)
	defer b.Close()

	ep := chunk.ParseEntityPath("e")
	ctx := context.Background()
	_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: 1}, 1))

	c := mustRecv(t, b)
	if c.NumRows() != 1 {
		t.Fatalf("expected 1 row, got %d", c.NumRows())
	}
}

// PushChunk bypasses the accumulator entirely and is forwarded as-is.
func TestPushChunkBypassesAccumulator(t *testing.T) {
	b := New(Never(), nil)
	defer b.Close()

	ep := chunk.ParseEntityPath("e")
	pre, err := row(t, chunk.TimePoint{logTime: 1}, 1).IntoChunk(ep)
	if err != nil {
		t.Fatalf("IntoChunk: %v", err)
	}

	if err := b.PushChunk(pre); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}

	got := mustRecv(t, b)
	if got.ID() != pre.ID() {
		t.Fatalf("expected the same chunk identity to pass through unchanged")
	}
}

// Dropping the last handle drains every accumulator; rows
// pushed before Close all surface as Chunks before the channel closes.
func TestShutdownDrainsPendingRows(t *testing.T) {
	b := New(Never(), nil)
	ep := chunk.ParseEntityPath("e")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: int64(i)}, float32(i)))
	}

	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()

	c := mustRecv(t, b)
	if c.NumRows() != 5 {
		t.Fatalf("expected all 5 rows drained into one chunk, got %d", c.NumRows())
	}

	if _, ok := <-b.Chunks(); ok {
		t.Fatalf("expected the output channel to be closed after shutdown drain")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Close did not return")
	}
}

// FlushBlocking returning implies every prior push from the
// same caller has been materialized into the output channel.
func TestFlushBlockingCompleteness(t *testing.T) {
	b := New(Never(), nil)
	defer b.Close()

	ep := chunk.ParseEntityPath("e")
	ctx := context.Background()

	var wg sync.WaitGroup
	const n = 50
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: int64(i)}, float32(i)))
		}
		if err := b.FlushBlocking(ctx); err != nil {
			t.Errorf("FlushBlocking: %v", err)
		}
	}()
	wg.Wait()

	c := mustRecv(t, b)
	if c.NumRows() != n {
		t.Fatalf("expected all %d rows materialized by the time FlushBlocking returned, got %d", n, c.NumRows())
	}
}

// Hooks.OnInsert fires once per inserted row, and Hooks.OnRelease fires
// once per Chunk handed to the output channel.
func TestHooksFireOnInsertAndRelease(t *testing.T) {
	var inserted, released int
	var mu sync.Mutex

	cfg := Never()
	cfg.Hooks.OnInsert = func(chunk.PendingRow) {
		mu.Lock()
		inserted++
		mu.Unlock()
	}
	cfg.Hooks.OnRelease = func(*chunk.Chunk) {
		mu.Lock()
		released++
		mu.Unlock()
	}

	b := New(cfg, nil)
	ep := chunk.ParseEntityPath("e")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: int64(i)}, float32(i)))
	}
	if err := b.FlushBlocking(ctx); err != nil {
		t.Fatalf("FlushBlocking: %v", err)
	}
	mustRecv(t, b)
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if inserted != 3 {
		t.Fatalf("expected OnInsert called 3 times, got %d", inserted)
	}
	if released != 1 {
		t.Fatalf("expected OnRelease called once, got %d", released)
	}
}

// FlushNumRows triggers a flush as soon as the threshold is reached,
// without waiting for a tick or manual flush.
func TestFlushNumRowsThreshold(t *testing.T) {
	cfg := Never()
	cfg.FlushNumRows = 2
	b := New(cfg, nil)
	defer b.Close()

	ep := chunk.ParseEntityPath("e")
	ctx := context.Background()
	_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: 1}, 1))
	_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: 2}, 2))

	c := mustRecv(t, b)
	if c.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", c.NumRows())
	}
}

// Operations issued by a producer after Close return ErrBatcherClosed
// rather than panicking or blocking forever.
func TestPushAfterCloseReturnsSentinelError(t *testing.T) {
	b := New(Never(), nil)
	b.Close()

	ep := chunk.ParseEntityPath("e")
	err := b.PushRow(context.Background(), ep, row(t, chunk.TimePoint{logTime: 1}, 1))
	if err != ErrBatcherClosed {
		t.Fatalf("expected ErrBatcherClosed, got %v", err)
	}
}

// Close is idempotent: calling it more than once, including concurrently,
// never panics or deadlocks.
func TestCloseIsIdempotent(t *testing.T) {
	b := New(Never(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Close()
		}()
	}
	wg.Wait()
}

// Stats reports flush reasons and emitted-chunk counts consistent with
// the commands issued.
func TestStatsReflectActivity(t *testing.T) {
	b := New(Never(), nil)
	defer b.Close()

	ep := chunk.ParseEntityPath("e")
	ctx := context.Background()
	_ = b.PushRow(ctx, ep, row(t, chunk.TimePoint{logTime: 1}, 1))
	if err := b.FlushBlocking(ctx); err != nil {
		t.Fatalf("FlushBlocking: %v", err)
	}
	mustRecv(t, b)

	stats := b.Stats()
	if stats.ChunksEmitted != 1 {
		t.Fatalf("expected 1 chunk emitted, got %d", stats.ChunksEmitted)
	}
	if stats.FlushesByReason["manual"] != 1 {
		t.Fatalf("expected 1 manual flush, got %d", stats.FlushesByReason["manual"])
	}
}
