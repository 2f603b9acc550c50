// Package output implements the VM's write sink: a stack of buffers so
// that `{% filter %}` blocks, `{% set %}` blocks, and macro bodies can
// capture their rendered text instead of streaming straight to the
// caller, plus the HTML/JSON auto-escape formatters (spec §4.6/§6),
// grounded on minijinja/src/output.rs (original_source).
package output

import (
	"strconv"
	"strings"

	"github.com/tmpleaf/gojinja2/value"
)

// Escaper renders a Value's text form with a format-specific escaping
// policy applied, unless the value already carries the Safe string tag.
type Escaper func(v value.Value, w *strings.Builder)

// HTML escapes the five characters Jinja2's html escaper has always
// escaped: & < > " '.
func HTML(v value.Value, w *strings.Builder) {
	if v.IsSafe() {
		w.WriteString(v.String())
		return
	}
	s := v.String()
	for _, r := range s {
		switch r {
		case '&':
			w.WriteString("&amp;")
		case '<':
			w.WriteString("&lt;")
		case '>':
			w.WriteString("&gt;")
		case '"':
			w.WriteString("&#34;")
		case '\'':
			w.WriteString("&#39;")
		default:
			w.WriteRune(r)
		}
	}
}

// JSON renders the value as a JSON literal (spec §6: "json" auto-escape
// mode, used for embedding template output inside a <script> tag).
func JSON(v value.Value, w *strings.Builder) {
	writeJSON(v, w)
}

func writeJSON(v value.Value, w *strings.Builder) {
	switch v.Kind() {
	case value.KindNone, value.KindUndefined:
		w.WriteString("null")
	case value.KindBool:
		b, _ := v.AsBool()
		w.WriteString(strconv.FormatBool(b))
	case value.KindU64, value.KindI64, value.KindU128, value.KindI128, value.KindF64:
		if f, ok := v.Float(); ok {
			w.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case value.KindString:
		s, _ := v.AsStr()
		w.WriteString(strconv.Quote(s))
	case value.KindSeq:
		w.WriteByte('[')
		items, _ := v.AsSeq()
		for i, item := range items {
			if i > 0 {
				w.WriteByte(',')
			}
			writeJSON(item, w)
		}
		w.WriteByte(']')
	case value.KindMap:
		w.WriteByte('{')
		m, _ := v.AsMap()
		first := true
		if m != nil {
			for _, k := range m.Keys() {
				if !first {
					w.WriteByte(',')
				}
				first = false
				w.WriteString(strconv.Quote(k.ToValue().String()))
				w.WriteByte(':')
				val, _ := m.Get(k)
				writeJSON(val, w)
			}
		}
		w.WriteByte('}')
	default:
		w.WriteString(strconv.Quote(v.String()))
	}
}

// None performs no escaping at all (spec §6 "none" auto-escape mode).
func None(v value.Value, w *strings.Builder) {
	w.WriteString(v.String())
}

// Sink is a stack of output buffers. The bottom of the stack is the
// caller-visible writer; pushing a capture frame redirects Emit into a
// fresh in-memory buffer until it's popped and collected (spec §4.6
// "{% set %}"/"{% filter %}" capture semantics).
type Sink struct {
	frames []*strings.Builder
	root   *strings.Builder
}

// NewSink wraps the final destination buffer.
func NewSink(root *strings.Builder) *Sink {
	return &Sink{root: root}
}

func (s *Sink) current() *strings.Builder {
	if len(s.frames) == 0 {
		return s.root
	}
	return s.frames[len(s.frames)-1]
}

// WriteString emits already-escaped text to the current frame.
func (s *Sink) WriteString(str string) { s.current().WriteString(str) }

// PushCapture begins capturing output into a new in-memory buffer.
func (s *Sink) PushCapture() { s.frames = append(s.frames, &strings.Builder{}) }

// PopCapture ends the innermost capture, returning what it collected.
func (s *Sink) PopCapture() string {
	n := len(s.frames)
	b := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return b.String()
}

// Depth reports the current capture nesting depth.
func (s *Sink) Depth() int { return len(s.frames) }
