// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import (
	"sort"

	"github.com/apache/arrow/go/v12/arrow"
)

// AssembleResult pairs one assembled Chunk with the error that prevented
// it from being built, if any. A CorruptChunk error on one sub-bucket never
// prevents the others in the same call from being emitted.
type AssembleResult struct {
	Chunk *Chunk
	Err   error
}

// Assemble converts one accumulator's worth of PendingRows into zero or
// more well-formed Chunks for entityPath. It is the heart of the batcher:
// rows are globally sorted by RowID, bucketed by timeline set and then by
// component datatype set, and walked in order within each sub-bucket,
// cutting a new Chunk whenever an unsorted timeline's buffered row count
// would exceed chunkMaxRowsIfUnsorted.
func Assemble(entityPath EntityPath, rows []PendingRow, chunkMaxRowsIfUnsorted int) []AssembleResult {
	if len(rows) == 0 {
		return nil
	}

	sorted := append([]PendingRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RowID.Less(sorted[j].RowID) })

	var results []AssembleResult
	for _, timelineGroup := range bucketByTimelineSet(sorted) {
		for _, datatypeGroup := range bucketByDatatypeSet(timelineGroup.rows) {
			results = append(results, assembleSubBucket(entityPath, timelineGroup.timelines, datatypeGroup, chunkMaxRowsIfUnsorted)...)
		}
	}
	return results
}

type timelineGroup struct {
	timelines []Timeline
	rows      []PendingRow
}

// bucketByTimelineSet groups rows that share exactly the same set of
// Timelines, preserving the relative (already RowID-sorted) order both
// across and within groups. The bucket key is an FNV hash over the sorted
// timelines, so it does not depend on map order; a rare
// hash collision between two distinct timeline sets is resolved by
// appending a new group instead of merging.
func bucketByTimelineSet(rows []PendingRow) []timelineGroup {
	type bucket struct {
		key       uint64
		timelines []Timeline
		groupIdx  int
	}
	var buckets []bucket
	var groups []timelineGroup

	for _, row := range rows {
		key := row.TimePoint.timelineSetKey()
		tls := row.TimePoint.timelines()

		idx := -1
		for _, b := range buckets {
			if b.key == key && equalTimelineSet(b.timelines, tls) {
				idx = b.groupIdx
				break
			}
		}
		if idx == -1 {
			idx = len(groups)
			groups = append(groups, timelineGroup{timelines: tls})
			buckets = append(buckets, bucket{key: key, timelines: tls, groupIdx: idx})
		}
		groups[idx].rows = append(groups[idx].rows, row)
	}
	return groups
}

// datatypeGroup accumulates, per component identifier, the Arrow datatype
// every row assigned to it has contributed so far.
type datatypeGroup struct {
	seen map[ComponentDescriptor]string
	rows []PendingRow
}

// bucketByDatatypeSet further splits a timeline-set bucket so that no two
// rows sharing a component identifier with conflicting Arrow datatypes
// ever land in the same sub-bucket. Unlike the timeline-set bucketing
// above, the key a row is matched against is not its own component set
// but the datatype each group has accumulated so far: a row carrying a
// component identifier no group has seen yet, or one whose type agrees
// with what a group has already seen, joins that group (the ordinary
// sparse-null / late-arriving component case, which must stay in one
// Chunk); only when a row's datatype genuinely
// conflicts with every existing group does it start a new one. Groups are
// tried in creation order, so two non-conflicting rows separated by a
// conflicting one still land in the same group.
func bucketByDatatypeSet(rows []PendingRow) [][]PendingRow {
	var groups []*datatypeGroup

	for _, row := range rows {
		var target *datatypeGroup
		for _, g := range groups {
			if !rowConflictsWithSeen(row, g.seen) {
				target = g
				break
			}
		}
		if target == nil {
			target = &datatypeGroup{seen: map[ComponentDescriptor]string{}}
			groups = append(groups, target)
		}
		for desc, cell := range row.Components {
			target.seen[desc] = datatypeKey(cell.Type)
		}
		target.rows = append(target.rows, row)
	}

	out := make([][]PendingRow, len(groups))
	for i, g := range groups {
		out[i] = g.rows
	}
	return out
}

// rowConflictsWithSeen reports whether row carries a component identifier
// already present in seen under a different Arrow datatype.
func rowConflictsWithSeen(row PendingRow, seen map[ComponentDescriptor]string) bool {
	for desc, cell := range row.Components {
		if existing, ok := seen[desc]; ok && existing != datatypeKey(cell.Type) {
			return true
		}
	}
	return false
}

// assembleSubBucket walks one (timeline-set, datatype-set) sub-bucket's
// rows in order, cutting a Chunk whenever appending the next row would let
// an already-unsorted timeline exceed chunkMaxRowsIfUnsorted.
func assembleSubBucket(entityPath EntityPath, timelines []Timeline, rows []PendingRow, chunkMaxRowsIfUnsorted int) []AssembleResult {
	if len(rows) == 0 {
		return nil
	}

	allComponents := collectAllDescriptors(rows)

	state := newAssemblyState(timelines, allComponents)
	var results []AssembleResult

	for _, row := range rows {
		if state.wouldExceedUnsortedCap(chunkMaxRowsIfUnsorted) {
			results = append(results, state.cut(entityPath))
			state = newAssemblyState(timelines, allComponents)
		}
		state.push(row)
	}
	if state.len() > 0 {
		results = append(results, state.cut(entityPath))
	}
	return results
}

// collectAllDescriptors gathers every ComponentDescriptor seen anywhere in
// the sub-bucket's rows, along with its datatype, so that a component
// introduced by a late row still produces a properly-null-padded column
// for every earlier row.
func collectAllDescriptors(rows []PendingRow) map[ComponentDescriptor]arrow.DataType {
	out := map[ComponentDescriptor]arrow.DataType{}
	for _, row := range rows {
		for desc, cell := range row.Components {
			out[desc] = cell.Type
		}
	}
	return out
}
