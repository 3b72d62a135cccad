// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import (
	"hash/fnv"
	"sort"
)

// TimelineName uniquely identifies one axis of time, e.g. "log_time" or
// "frame_nr".
type TimelineName string

// TimelineType tags the semantic unit a Timeline's i64 values are measured
// in. Timelines with the same name but different types must never coexist.
type TimelineType int

const (
	// TimelineSequence counts discrete steps (frame numbers, call counts).
	TimelineSequence TimelineType = iota
	// TimelineDurationNs measures elapsed nanoseconds since an arbitrary epoch.
	TimelineDurationNs
	// TimelineTimestampNs measures nanoseconds since the Unix epoch.
	TimelineTimestampNs
)

func (t TimelineType) String() string {
	switch t {
	case TimelineSequence:
		return "sequence"
	case TimelineDurationNs:
		return "duration_ns"
	case TimelineTimestampNs:
		return "timestamp_ns"
	default:
		return "unknown"
	}
}

// Timeline is a named time axis plus its unit type.
type Timeline struct {
	Name TimelineName
	Type TimelineType
}

// NewTimeline builds a Timeline from a name and type.
func NewTimeline(name TimelineName, typ TimelineType) Timeline {
	return Timeline{Name: name, Type: typ}
}

// TimePoint maps each Timeline a row is logged on to its i64 time value. An
// empty TimePoint marks the row as static: timeless, applying at every time.
type TimePoint map[Timeline]int64

// IsStatic reports whether this TimePoint carries no timelines.
func (tp TimePoint) IsStatic() bool {
	return len(tp) == 0
}

// Names returns the TimelineNames present in tp, sorted for deterministic
// iteration. The assembly bucket key is computed separately by
// timelineSetKey.
func (tp TimePoint) Names() []TimelineName {
	names := make([]TimelineName, 0, len(tp))
	for tl := range tp {
		names = append(names, tl.Name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// timelineSetKey is a deterministic, order-insensitive hash of the set of
// Timelines (name+type) present in a TimePoint. Two TimePoints with the same
// timelines (in any order) always produce the same key; distinct timeline
// sets MAY collide on the key, so callers must still verify equality before
// treating two buckets as the same set (see equalTimelineSet).
func (tp TimePoint) timelineSetKey() uint64 {
	type pair struct {
		name TimelineName
		typ  TimelineType
	}
	pairs := make([]pair, 0, len(tp))
	for tl := range tp {
		pairs = append(pairs, pair{tl.Name, tl.Type})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].name != pairs[j].name {
			return pairs[i].name < pairs[j].name
		}
		return pairs[i].typ < pairs[j].typ
	})

	h := fnv.New64a()
	for _, p := range pairs {
		_, _ = h.Write([]byte(p.name))
		_, _ = h.Write([]byte{byte(p.typ)})
		_, _ = h.Write([]byte{0}) // separator, avoids "ab"+"c" colliding with "a"+"bc"
	}
	return h.Sum64()
}

// timelines returns the set of Timelines in tp as a sorted slice, used both
// to verify equality across a hash collision and to seed a new bucket's
// timeline set.
func (tp TimePoint) timelines() []Timeline {
	out := make([]Timeline, 0, len(tp))
	for tl := range tp {
		out = append(out, tl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func equalTimelineSet(a, b []Timeline) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
