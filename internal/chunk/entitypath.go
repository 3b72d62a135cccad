// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import "strings"

// EntityPath is a hierarchical routing key: a sequence of unescaped path
// parts. The batcher treats it as an opaque key and never rewrites it.
type EntityPath struct {
	parts []string
}

// NewEntityPath builds an EntityPath from its ordered parts.
func NewEntityPath(parts ...string) EntityPath {
	cp := make([]string, len(parts))
	copy(cp, parts)
	return EntityPath{parts: cp}
}

// ParseEntityPath splits a "/"-separated string into an EntityPath. Empty
// segments (leading, trailing, or repeated slashes) are dropped.
func ParseEntityPath(s string) EntityPath {
	raw := strings.Split(s, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return EntityPath{parts: parts}
}

// Parts returns the path's components. Callers must not mutate the result.
func (p EntityPath) Parts() []string {
	return p.parts
}

// String renders the path in its canonical "/"-joined form.
func (p EntityPath) String() string {
	return "/" + strings.Join(p.parts, "/")
}

// Equal reports whether two paths share the same parts in the same order.
func (p EntityPath) Equal(other EntityPath) bool {
	if len(p.parts) != len(other.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}
