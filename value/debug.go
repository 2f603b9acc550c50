package value

import "github.com/alecthomas/repr"

// GoString produces a Go-syntax-ish structural dump of v for debug-info
// snapshots (spec §6 "Debug output"), distinct from Repr/String which
// render Jinja-facing text. Grounded on getevo-evo's dependency on
// github.com/alecthomas/repr, the pack's only structural-dump library.
func (v Value) GoString() string {
	switch v.kind {
	case KindSeq:
		return repr.String(v.seq)
	case KindMap:
		if v.m == nil {
			return "map[]"
		}
		dump := make(map[string]string, v.m.Len())
		for _, k := range v.m.Keys() {
			val, _ := v.m.Get(k)
			dump[k.Repr()] = val.Repr()
		}
		return repr.String(dump)
	default:
		return repr.String(v.Repr())
	}
}
