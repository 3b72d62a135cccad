// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import "github.com/apache/arrow/go/v12/arrow"

// assemblyState holds the buffers for one in-progress Chunk while walking
// a sub-bucket's rows during Assemble.
type assemblyState struct {
	rowIDs     []RowID
	timelines  map[TimelineName]*pendingTimeColumn
	components map[ComponentDescriptor]*pendingComponentColumn
}

type pendingComponentColumn struct {
	dataType arrow.DataType
	cells    []Cell
}

func newAssemblyState(timelines []Timeline, allComponents map[ComponentDescriptor]arrow.DataType) *assemblyState {
	s := &assemblyState{
		timelines:  make(map[TimelineName]*pendingTimeColumn, len(timelines)),
		components: make(map[ComponentDescriptor]*pendingComponentColumn, len(allComponents)),
	}
	for _, tl := range timelines {
		s.timelines[tl.Name] = newPendingTimeColumn(tl)
	}
	for desc, dt := range allComponents {
		s.components[desc] = &pendingComponentColumn{dataType: dt}
	}
	return s
}

func (s *assemblyState) len() int { return len(s.rowIDs) }

// wouldExceedUnsortedCap reports whether any tracked timeline is already
// unsorted and the buffer has reached the cap, i.e. whether the *next*
// pushed row must instead start a new Chunk.
func (s *assemblyState) wouldExceedUnsortedCap(cap int) bool {
	if s.len() == 0 || s.len() < cap {
		return false
	}
	for _, tc := range s.timelines {
		if !tc.sorted {
			return true
		}
	}
	return false
}

func (s *assemblyState) push(row PendingRow) {
	s.rowIDs = append(s.rowIDs, row.RowID)
	for _, tc := range s.timelines {
		v, ok := row.TimePoint[tc.timeline]
		if !ok {
			// A row landed in this sub-bucket by timeline-set equality,
			// so every tracked timeline must be present on every row.
			v = 0
		}
		tc.push(v)
	}
	for desc, col := range s.components {
		col.cells = append(col.cells, row.Components[desc]) // zero Cell when absent: a sparse null
	}
}

// cut finalizes the currently buffered state into one Chunk.
func (s *assemblyState) cut(entityPath EntityPath) AssembleResult {
	timelines := make(map[TimelineName]TimeColumn, len(s.timelines))
	for name, tc := range s.timelines {
		timelines[name] = tc.finish()
	}
	components := make(map[ComponentDescriptor]*ComponentColumn, len(s.components))
	for desc, col := range s.components {
		components[desc] = newComponentColumn(col.dataType, col.cells)
	}

	c, err := New(NewChunkID(), entityPath, nil, s.rowIDs, timelines, components)
	return AssembleResult{Chunk: c, Err: err}
}
