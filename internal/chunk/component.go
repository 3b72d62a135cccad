// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import (
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
)

// ComponentDescriptor identifies one logical column. Two descriptors with
// the same ComponentID but different ArchetypeName or ComponentType are
// distinct columns — the triple, not the bare id, is the column's identity.
type ComponentDescriptor struct {
	// ArchetypeName optionally names the higher-level archetype this
	// component was logged as part of (e.g. "rerun.archetypes.Points3D").
	ArchetypeName string
	// ComponentID is the bare component identifier (e.g. "Position3D").
	ComponentID string
	// ComponentType optionally refines ComponentID with the component's
	// fully-qualified type name (e.g. "rerun.components.Position3D").
	ComponentType string
}

// NewComponentDescriptor builds a descriptor from its three fields; leave
// archetype or componentType empty when they don't apply.
func NewComponentDescriptor(archetype, componentID, componentType string) ComponentDescriptor {
	return ComponentDescriptor{ArchetypeName: archetype, ComponentID: componentID, ComponentType: componentType}
}

// String renders the descriptor for logs and error messages.
func (d ComponentDescriptor) String() string {
	if d.ArchetypeName == "" && d.ComponentType == "" {
		return d.ComponentID
	}
	return fmt.Sprintf("%s::%s::%s", d.ArchetypeName, d.ComponentID, d.ComponentType)
}

// Cell is the Arrow-backed value one row contributes to one component
// column: an arbitrary Arrow array representing the logged value (often,
// but not necessarily, length 1 — e.g. a row logging a list of N points
// contributes one Cell that is itself an N-element array).
type Cell struct {
	Type  arrow.DataType
	Array arrow.Array
}

// datatypeKey returns a string uniquely identifying an Arrow datatype for
// use as a bucket key. arrow.DataType doesn't implement a comparable
// identity beyond its ID plus nested field info, so this renders the type's
// fingerprint via its canonical string form.
func datatypeKey(t arrow.DataType) string {
	if t == nil {
		return "<nil>"
	}
	return t.ID().String() + ":" + t.String()
}
