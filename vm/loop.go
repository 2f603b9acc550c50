package vm

import (
	"github.com/tmpleaf/gojinja2/value"
)

// LoopState backs the implicit `loop` variable inside a `{% for %}` body
// (spec §4.5), grounded on minijinja/src/vm/loop_object.rs
// (original_source) and the teacher's nodes.For.Recursive flag.
type LoopState struct {
	value.BaseObject
	index     int // 0-based index of the current item; starts at -1 before the first OpIterate
	length    int
	known     bool
	iter      *value.ValueIterator
	recurse   func(iterable value.Value) (value.Value, error) // set for `{% for ... recursive %}`
	cycleCall int
}

// GetValue also exposes `loop()` as a callable for the recursive case; that
// is handled via Call rather than GetValue since it takes an argument.
func (l *LoopState) Call(_ value.CallState, args []value.Value) (value.Value, error) {
	if l.recurse == nil {
		return value.Undefined, &value.OpError{Msg: "loop is not recursive"}
	}
	if len(args) != 1 {
		return value.Undefined, &value.OpError{Msg: "loop() takes exactly one argument"}
	}
	return l.recurse(args[0])
}

func (l *LoopState) GetValue(key value.Value) (value.Value, bool) {
	name, ok := key.AsStr()
	if !ok {
		return value.Undefined, false
	}
	switch name {
	case "index":
		return value.I64(int64(l.index + 1)), true
	case "index0":
		return value.I64(int64(l.index)), true
	case "revindex":
		if !l.known {
			return value.Undefined, false
		}
		return value.I64(int64(l.length - l.index)), true
	case "revindex0":
		if !l.known {
			return value.Undefined, false
		}
		return value.I64(int64(l.length - l.index - 1)), true
	case "first":
		return value.Bool(l.index == 0), true
	case "last":
		if !l.known {
			return value.Undefined, false
		}
		return value.Bool(l.index == l.length-1), true
	case "length":
		if !l.known {
			return value.Undefined, false
		}
		return value.I64(int64(l.length)), true
	case "depth":
		return value.I64(1), true
	case "depth0":
		return value.I64(0), true
	default:
		return value.Undefined, false
	}
}

func (l *LoopState) Len() (int, bool) { return l.length, l.known }

func (l *LoopState) Repr() value.Repr { return value.ReprPlain }

// CallMethod implements `loop.cycle(...)` (spec §4.5).
func (l *LoopState) CallMethod(_ value.CallState, name string, args []value.Value) (value.Value, error) {
	if name != "cycle" {
		return value.Undefined, &value.UnknownMethodError{Method: name}
	}
	if len(args) == 0 {
		return value.Undefined, nil
	}
	v := args[l.cycleCall%len(args)]
	l.cycleCall++
	return v, nil
}
