// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"context"

	"golang.org/x/time/rate"
)

// maxRowBurst bounds how many PushRow calls may be admitted back-to-back
// without waiting, mirroring this codebase's ThrottledWriter burst cap.
const maxRowBurst = 4096

// rowThrottle rate-limits row ingestion at the batcher front-end using a
// token-bucket, the same pattern this codebase already applies to byte
// throughput. A rowThrottle with a non-positive rate is a no-op bypass.
type rowThrottle struct {
	limiter *rate.Limiter
}

// newRowThrottle builds a throttle admitting rowsPerSecond rows/sec. If
// rowsPerSecond <= 0, wait never blocks.
func newRowThrottle(rowsPerSecond float64) *rowThrottle {
	if rowsPerSecond <= 0 {
		return &rowThrottle{}
	}
	burst := maxRowBurst
	if rowsPerSecond < float64(burst) {
		burst = int(rowsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &rowThrottle{limiter: rate.NewLimiter(rate.Limit(rowsPerSecond), burst)}
}

// wait blocks until one row's worth of budget is available, or ctx is
// done. A nil/disabled limiter returns immediately.
func (t *rowThrottle) wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
