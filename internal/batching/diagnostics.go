// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"encoding/json"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Stats is a point-in-time snapshot of worker activity, exposed for
// diagnostics reporting and for tests that want to assert on flush
// behavior without racing the worker goroutine directly.
type Stats struct {
	Accumulators    int              `json:"accumulators"`
	PendingRows     int              `json:"pending_rows"`
	PendingBytes    uint64           `json:"pending_bytes"`
	FlushesByReason map[string]int64 `json:"flushes_by_reason"`
	ChunksEmitted   int64            `json:"chunks_emitted"`
	CorruptChunks   int64            `json:"corrupt_chunks_dropped"`
	ChunksDropped   int64            `json:"chunks_dropped_at_shutdown"`
}

// DiagnosticsReporter periodically logs a Stats snapshot on a cron
// schedule, entirely separate from the worker's ms-granularity flush
// ticker: cron's practical resolution (whole seconds at best) is
// unsuitable for an 8ms default tick, so this exists purely as a
// low-frequency, human-facing log line, mirroring this codebase's
// scheduler+stats-reporter pairing.
type DiagnosticsReporter struct {
	cron     *cron.Cron
	logger   *slog.Logger
	snapshot func() Stats
	entryID  cron.EntryID
}

// NewDiagnosticsReporter builds a reporter that logs snapshot() on the
// given cron schedule (seconds-enabled, e.g. "*/30 * * * * *" for every 30
// seconds). The schedule is validated eagerly so a malformed expression
// fails at construction rather than silently never firing.
func NewDiagnosticsReporter(schedule string, logger *slog.Logger, snapshot func() Stats) (*DiagnosticsReporter, error) {
	c := cron.New(cron.WithSeconds(), cron.WithLogger(cron.DiscardLogger))
	r := &DiagnosticsReporter{cron: c, logger: logger.With("component", "batcher_diagnostics"), snapshot: snapshot}

	id, err := c.AddFunc(schedule, r.report)
	if err != nil {
		return nil, err
	}
	r.entryID = id
	return r, nil
}

// Start begins the cron scheduler in the background.
func (r *DiagnosticsReporter) Start() { r.cron.Start() }

// Stop stops the scheduler and waits for any in-flight report to finish.
func (r *DiagnosticsReporter) Stop() { <-r.cron.Stop().Done() }

func (r *DiagnosticsReporter) report() {
	snap := r.snapshot()
	raw, _ := json.Marshal(snap.FlushesByReason)
	r.logger.Info("batcher stats",
		"accumulators", snap.Accumulators,
		"pending_rows", snap.PendingRows,
		"pending_bytes", snap.PendingBytes,
		"chunks_emitted", snap.ChunksEmitted,
		"corrupt_chunks_dropped", snap.CorruptChunks,
		"chunks_dropped_at_shutdown", snap.ChunksDropped,
		"flushes_by_reason", json.RawMessage(raw),
	)
}
