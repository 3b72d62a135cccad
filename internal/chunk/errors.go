// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import "fmt"

// CorruptChunkError reports that a set of inputs destined to become a Chunk
// violates one of the structural invariants checked by New. Callers that
// assemble many chunks from a stream of rows should log and skip a
// CorruptChunkError rather than abort the whole batch.
type CorruptChunkError struct {
	EntityPath EntityPath
	Reason     string
}

func (e *CorruptChunkError) Error() string {
	return fmt.Sprintf("corrupt chunk for entity %q: %s", e.EntityPath.String(), e.Reason)
}

func corrupt(path EntityPath, format string, args ...any) error {
	return &CorruptChunkError{EntityPath: path, Reason: fmt.Sprintf(format, args...)}
}
