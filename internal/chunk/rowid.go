// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RowID is a globally unique, monotonically increasing, time-ordered
// identifier attached to every row a producer logs. RowIds define the
// canonical global order of events independently of any timeline.
type RowID struct {
	ulid ulid.ULID
}

// RowIDGenerator produces strictly-increasing RowIds for a single producer.
// ulid.Monotonic already guarantees monotonicity for calls against the same
// generator within one millisecond tick; a mutex makes it safe to share one
// generator across goroutines belonging to the same producer.
type RowIDGenerator struct {
	mu  sync.Mutex
	src *ulid.MonotonicEntropy
}

// NewRowIDGenerator builds a generator seeded from crypto/rand.
func NewRowIDGenerator() *RowIDGenerator {
	return &RowIDGenerator{src: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns the next RowID for this generator.
func (g *RowIDGenerator) Next() RowID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return RowID{ulid: ulid.MustNew(ulid.Timestamp(time.Now()), g.src)}
}

var defaultGenerator = NewRowIDGenerator()

// NewRowID returns a fresh RowID from a shared, process-wide generator.
// Producers that need per-producer isolation should construct their own
// RowIDGenerator instead.
func NewRowID() RowID {
	return defaultGenerator.Next()
}

// Compare orders two RowIds; it matches the ordering used to sort rows
// into canonical order during chunk assembly.
func (r RowID) Compare(other RowID) int {
	return r.ulid.Compare(other.ulid)
}

// Less reports whether r sorts before other.
func (r RowID) Less(other RowID) bool {
	return r.Compare(other) < 0
}

// String renders the RowID in its canonical ULID text encoding.
func (r RowID) String() string {
	return r.ulid.String()
}

// IsZero reports whether this is the zero-value RowID (never produced by
// NewRowID, useful as a sentinel in tests and defaulted structs).
func (r RowID) IsZero() bool {
	return r.ulid == ulid.ULID{}
}
