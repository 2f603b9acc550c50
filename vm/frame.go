package vm

import "github.com/tmpleaf/gojinja2/value"

// Frame is one lexical scope: `for`/`block`/`macro`/`with`/`namespace`/
// `scope` all push a Frame, chained to its parent so name resolution walks
// outward the way Python-style scoping does (spec §4.2/§4.5), grounded on
// the teacher's runtime/context.go Scope type, generalized from
// interface{} to value.Value.
type Frame struct {
	vars   map[string]value.Value
	parent *Frame
}

// NewFrame creates a root frame seeded with the render context.
func NewFrame(vars map[string]value.Value) *Frame {
	return &Frame{vars: vars}
}

// Push creates a child frame.
func (f *Frame) Push() *Frame {
	return &Frame{vars: make(map[string]value.Value), parent: f}
}

// Lookup resolves name by walking outward through parent frames.
func (f *Frame) Lookup(name string) (value.Value, bool) {
	for s := f; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return value.Undefined, false
}

// Store binds name in the innermost frame only (Jinja's `{% set %}` never
// writes through to an outer `for`/`block` scope).
func (f *Frame) Store(name string, v value.Value) {
	f.vars[name] = v
}
